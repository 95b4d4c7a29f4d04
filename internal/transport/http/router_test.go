package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"qcall/internal/blocklist"
	"qcall/internal/call"
	"qcall/internal/calllog"
	"qcall/internal/contacts"
	"qcall/internal/screening"
)

// RouterSuite exercises the HTTP edge against real in-memory components, the
// same wiring main uses minus the bridge and the background dispatcher.
type RouterSuite struct {
	suite.Suite
	registry *blocklist.MemoryStore
	callLog  *calllog.MemoryStore
	machine  *call.Machine
	server   http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.registry = blocklist.NewMemoryStore()
	s.callLog = calllog.NewMemoryStore()

	blockSvc, err := blocklist.NewService(s.registry)
	s.Require().NoError(err)

	resolver := contacts.StaticResolver{"9876543210": "Asha Rao"}
	s.machine, err = call.NewMachine(call.NopCommands{}, call.WithResolver(resolver))
	s.Require().NoError(err)

	engine := screening.NewEngine(s.registry)

	s.server = NewRouter(logger, []Registrar{
		NewTelephonyHandler(s.machine, engine, nil, logger),
		NewCallsHandler(s.machine, s.callLog, logger),
		NewBlocklistHandler(blockSvc, logger),
	}, nil)
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.server.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *RouterSuite) TestScreenAllowsUnregisteredNumber() {
	w := s.do(http.MethodPost, "/v1/telephony/screen", ScreenRequest{
		Direction: call.DirectionIncoming,
		Number:    "+911234567890",
	})

	s.Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal("allow", resp["decision"])
	s.Equal(false, resp["disallow"])
}

func (s *RouterSuite) TestBlockThenScreenRejects() {
	w := s.do(http.MethodPut, "/v1/blocklist/+91%2098765%2043210", nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, "/v1/telephony/screen", ScreenRequest{
		Direction: call.DirectionIncoming,
		// Different formatting, same last ten digits.
		Number: "09876543210",
	})

	s.Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal("block", resp["decision"])
	s.Equal(true, resp["disallow"])
	s.Equal(true, resp["reject"])
	s.Equal(true, resp["skipNotification"])
	s.Equal(false, resp["skipCallLog"])
}

func (s *RouterSuite) TestUnblockRestoresCall() {
	s.do(http.MethodPut, "/v1/blocklist/9876543210", nil)
	w := s.do(http.MethodDelete, "/v1/blocklist/9876543210", nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, "/v1/telephony/screen", ScreenRequest{
		Direction: call.DirectionIncoming,
		Number:    "9876543210",
	})
	s.Equal("allow", s.decode(w)["decision"])
}

func (s *RouterSuite) TestBlocklistListing() {
	s.do(http.MethodPut, "/v1/blocklist/+911112223334", nil)

	w := s.do(http.MethodGet, "/v1/blocklist", nil)
	s.Equal(http.StatusOK, w.Code)

	resp := s.decode(w)
	entries := resp["entries"].([]any)
	s.Require().Len(entries, 1)
	s.Equal("1112223334", entries[0].(map[string]any)["fingerprint"])
}

func (s *RouterSuite) TestCallLifecycleOverHTTP() {
	w := s.do(http.MethodPost, "/v1/telephony/events", TelephonyEvent{
		Type:      EventCallAdded,
		Direction: call.DirectionIncoming,
		Number:    "+91 98765 43210",
	})
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ringing", s.decode(w)["status"])
	s.Equal("Asha Rao", s.decode(w)["name"])

	w = s.do(http.MethodGet, "/v1/calls/current", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ringing", s.decode(w)["status"])

	w = s.do(http.MethodPost, "/v1/calls/actions", ActionRequest{Action: ActionAccept})
	s.Equal(http.StatusAccepted, w.Code)

	w = s.do(http.MethodPost, "/v1/telephony/events", TelephonyEvent{
		Type:   EventStateChanged,
		Status: call.StatusActive,
	})
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, "/v1/telephony/events", TelephonyEvent{
		Type:   EventStateChanged,
		Status: call.StatusDisconnected,
	})
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/v1/calls/current", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestActionWithoutCallConflicts() {
	w := s.do(http.MethodPost, "/v1/calls/actions", ActionRequest{Action: ActionAccept})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/v1/calls/actions", ActionRequest{Action: ActionDecline})
	s.Equal(http.StatusConflict, w.Code)
}

func (s *RouterSuite) TestStateChangeWithoutCall() {
	w := s.do(http.MethodPost, "/v1/telephony/events", TelephonyEvent{
		Type:   EventStateChanged,
		Status: call.StatusActive,
	})
	s.Equal(http.StatusConflict, w.Code)

	// A late disconnect for a torn-down call is harmless.
	w = s.do(http.MethodPost, "/v1/telephony/events", TelephonyEvent{
		Type:   EventStateChanged,
		Status: call.StatusDisconnected,
	})
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *RouterSuite) TestCallLogEndpoint() {
	s.Require().NoError(s.callLog.Append(s.T().Context(), calllog.Entry{
		Number:      "+919876543210",
		Fingerprint: "9876543210",
		Direction:   string(call.DirectionIncoming),
		Outcome:     calllog.OutcomeBlocked,
	}))

	w := s.do(http.MethodGet, "/v1/calls/log?limit=10", nil)
	s.Equal(http.StatusOK, w.Code)
	entries := s.decode(w)["entries"].([]any)
	s.Require().Len(entries, 1)
	s.Equal("blocked", entries[0].(map[string]any)["outcome"])
}

func (s *RouterSuite) TestCallLogRejectsBadLimit() {
	w := s.do(http.MethodGet, "/v1/calls/log?limit=nope", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestUnknownEventType() {
	w := s.do(http.MethodPost, "/v1/telephony/events", map[string]string{"type": "ghost"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestHealthEndpoint() {
	w := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ok", s.decode(w)["status"])
}

func (s *RouterSuite) TestMetricsEndpoint() {
	w := s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
}
