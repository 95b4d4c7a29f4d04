package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qcall/internal/blocklist"
	"qcall/internal/call"
	"qcall/internal/handoff"
	"qcall/internal/notify"
)

type stubIdentifier struct {
	identity Identity
	err      error
	delay    time.Duration
}

func (s *stubIdentifier) Identify(ctx context.Context, rawNumber string) (Identity, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		}
	}
	return s.identity, s.err
}

type stubLauncher struct {
	mu    sync.Mutex
	links []handoff.DeepLink
	shown bool
	err   error
}

func (l *stubLauncher) Launch(ctx context.Context, link handoff.DeepLink) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links = append(l.links, link)
	return l.shown, l.err
}

func (l *stubLauncher) launched() []handoff.DeepLink {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]handoff.DeepLink, len(l.links))
	copy(out, l.links)
	return out
}

type DispatcherSuite struct {
	suite.Suite
	sink *notify.MemorySink
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.sink = notify.NewMemorySink()
}

func (s *DispatcherSuite) TestLaunchesUIWithIdentity() {
	launcher := &stubLauncher{shown: true}
	d := NewDispatcher(&stubIdentifier{identity: Identity{Name: "Pizza Palace", Spam: false}}, launcher, s.sink)

	d.Handle(s.T().Context(), call.DirectionIncoming, "+911234567890")

	links := launcher.launched()
	s.Require().Len(links, 1)
	s.Equal("Pizza Palace", links[0].Name)
	s.Equal("+911234567890", links[0].Number)
	s.Equal(call.StatusRinging, links[0].Status)
	s.False(links[0].Spam)

	s.Empty(s.sink.Posts(), "no fallback when the UI came up")
}

func (s *DispatcherSuite) TestFallsBackToFullScreenNotification() {
	launcher := &stubLauncher{shown: false}
	d := NewDispatcher(&stubIdentifier{}, launcher, s.sink)

	d.Handle(s.T().Context(), call.DirectionIncoming, "+911234567890")

	posts := s.sink.Posts()
	s.Require().Len(posts, 1)
	s.Equal("+911234567890", posts[0].Title, "unidentified callers show the raw number")
	s.True(posts[0].FullScreen)
	s.Equal(notify.ChannelIncoming.ID, posts[0].ChannelID)
	s.Equal([]notify.Action{notify.ActionAccept, notify.ActionDecline}, posts[0].Actions)
}

func (s *DispatcherSuite) TestSpamVerdictReachesLinkAndFallback() {
	launcher := &stubLauncher{shown: false}
	d := NewDispatcher(&stubIdentifier{identity: Identity{Name: "Telemarketer", Spam: true}}, launcher, s.sink)

	d.Handle(s.T().Context(), call.DirectionIncoming, "+919876543210")

	links := launcher.launched()
	s.Require().Len(links, 1)
	s.True(links[0].Spam)

	posts := s.sink.Posts()
	s.Require().Len(posts, 1)
	s.Equal("Suspected spam call", posts[0].Body)
}

func (s *DispatcherSuite) TestSpamVerdictRecordedLocally() {
	marks := blocklist.NewSpamMarks()
	launcher := &stubLauncher{shown: true}
	d := NewDispatcher(
		&stubIdentifier{identity: Identity{Spam: true}},
		launcher,
		s.sink,
		WithSpamMarker(marks.Mark),
	)

	d.Handle(s.T().Context(), call.DirectionIncoming, "+91 98765 43210")

	s.True(marks.Seen("9876543210"), "spam mark must survive number reformatting")
}

func (s *DispatcherSuite) TestIdentificationFaultFallsBackToNotification() {
	launcher := &stubLauncher{shown: true}
	d := NewDispatcher(&stubIdentifier{err: errors.New("service down")}, launcher, s.sink)

	d.Handle(s.T().Context(), call.DirectionIncoming, "+911234567890")

	s.Empty(launcher.launched(), "no hand-off without an identity")
	posts := s.sink.Posts()
	s.Require().Len(posts, 1)
	s.Equal("+911234567890", posts[0].Title)
	s.True(posts[0].FullScreen)
}

func (s *DispatcherSuite) TestLaunchErrorStillNotifies() {
	launcher := &stubLauncher{err: errors.New("bridge unreachable")}
	d := NewDispatcher(&stubIdentifier{}, launcher, s.sink)

	d.Handle(s.T().Context(), call.DirectionIncoming, "+911234567890")

	s.Len(s.sink.Posts(), 1)
}

func (s *DispatcherSuite) TestSlowIdentificationStillNotifies() {
	launcher := &stubLauncher{shown: true}
	d := NewDispatcher(
		&stubIdentifier{delay: time.Second},
		launcher,
		s.sink,
		WithTimeout(50*time.Millisecond),
	)

	d.Handle(s.T().Context(), call.DirectionIncoming, "+915550001111")

	s.Empty(launcher.launched(), "no hand-off without an identity")
	posts := s.sink.Posts()
	s.Require().Len(posts, 1, "a slow identify service must not hide the call")
	s.Equal("+915550001111", posts[0].Title)
	s.Equal(notify.ChannelIncoming.ID, posts[0].ChannelID)
	s.True(posts[0].FullScreen)
}

func (s *DispatcherSuite) TestCancelledByCallTeardown() {
	machine, err := call.NewMachine(call.NopCommands{})
	s.Require().NoError(err)

	launcher := &stubLauncher{shown: true}
	d := NewDispatcher(
		&stubIdentifier{delay: 5 * time.Second},
		launcher,
		s.sink,
		WithTimeout(10*time.Second),
		WithCancelRegistrar(machine),
	)

	// No live call, so the registrar cancels the dispatch immediately.
	d.Handle(s.T().Context(), call.DirectionIncoming, "+911234567890")

	s.Empty(launcher.launched())
	s.Empty(s.sink.Posts())
}

func (s *DispatcherSuite) TestOutgoingCallLinksDialing() {
	launcher := &stubLauncher{shown: true}
	d := NewDispatcher(&stubIdentifier{}, launcher, s.sink)

	d.Handle(s.T().Context(), call.DirectionOutgoing, "+915550001111")

	links := launcher.launched()
	s.Require().Len(links, 1)
	s.Equal(call.StatusDialing, links[0].Status)
}
