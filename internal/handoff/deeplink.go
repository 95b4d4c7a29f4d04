// Package handoff brings the phone UI to the foreground when a call needs
// attention. It builds the qcall:// deep link describing the call and asks a
// launcher to open it, falling back to a full-screen notification when the
// launch fails or is refused.
package handoff

import (
	"fmt"
	"net/url"
	"strconv"

	"qcall/internal/call"
)

// Scheme is the deep link scheme the phone UI registers for.
const Scheme = "qcall"

// DeepLink carries everything the foreground UI needs to render the call
// screen without a round trip back to the service.
type DeepLink struct {
	Direction call.Direction
	Number    string
	Name      string
	Status    call.Status
	Spam      bool
}

// URL renders the link as qcall://{incoming|outgoing}?number=...&name=...
func (d DeepLink) URL() string {
	q := url.Values{}
	q.Set("number", d.Number)
	q.Set("name", d.Name)
	q.Set("status", string(d.Status))
	q.Set("spam", strconv.FormatBool(d.Spam))
	u := url.URL{
		Scheme:   Scheme,
		Host:     string(d.Direction),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Parse decodes a deep link previously produced by URL. Used by the bridge
// tests and by tooling that replays launches.
func Parse(raw string) (DeepLink, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return DeepLink{}, fmt.Errorf("parse deep link: %w", err)
	}
	if u.Scheme != Scheme {
		return DeepLink{}, fmt.Errorf("unexpected deep link scheme %q", u.Scheme)
	}
	dir := call.Direction(u.Host)
	if dir != call.DirectionIncoming && dir != call.DirectionOutgoing {
		return DeepLink{}, fmt.Errorf("unexpected deep link host %q", u.Host)
	}
	q := u.Query()
	spam, _ := strconv.ParseBool(q.Get("spam"))
	return DeepLink{
		Direction: dir,
		Number:    q.Get("number"),
		Name:      q.Get("name"),
		Status:    call.Status(q.Get("status")),
		Spam:      spam,
	}, nil
}
