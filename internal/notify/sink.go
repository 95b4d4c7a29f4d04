package notify

import "context"

// Channel is a notification channel. Creation is idempotent: ensuring an
// existing channel must succeed without duplicating it.
type Channel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	HighImportance bool   `json:"highImportance"`
}

// Action is a button attached to a call notification.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// Notification is the rendered view of the current call. The fixed ID means
// posting again updates the existing notification in place.
type Notification struct {
	ID         string   `json:"id"`
	ChannelID  string   `json:"channelId"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Actions    []Action `json:"actions,omitempty"`
	FullScreen bool     `json:"fullScreen"`
	Ongoing    bool     `json:"ongoing"`
}

// Sink delivers notifications to the device. Post and Cancel run on the
// presenter's worker goroutine, off the call transition path, so they may
// perform bounded I/O.
type Sink interface {
	EnsureChannel(ctx context.Context, ch Channel) error
	Post(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, id string) error
}
