package call

import (
	"time"

	"github.com/google/uuid"

	"qcall/internal/calllog"
)

// Status is the lifecycle state of the current call.
type Status string

const (
	StatusRinging      Status = "ringing"
	StatusDialing      Status = "dialing"
	StatusActive       Status = "active"
	StatusDisconnected Status = "disconnected"
)

// Direction distinguishes who initiated the call.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Record is the single current call. The machine owns the only mutable
// instance; everything else sees value snapshots or events.
type Record struct {
	ID          uuid.UUID
	RawHandle   string
	Fingerprint string
	Direction   Direction
	DisplayName string
	IsUnknown   bool
	Status      Status
	StartedAt   time.Time
	ConnectedAt time.Time

	declined bool
}

// Event is what the machine emits on every applied transition. Delivery is
// at-least-once; subscribers must treat a repeated status as a no-op.
type Event struct {
	CallID    uuid.UUID `json:"callId"`
	Status    Status    `json:"status"`
	Number    string    `json:"callerNumber"`
	Name      string    `json:"callerName"`
	Direction Direction `json:"direction,omitempty"`

	// Outcome is set only on disconnected events, for call history.
	Outcome calllog.Outcome `json:"outcome,omitempty"`

	StartedAt time.Time `json:"startedAt,omitzero"`
	EndedAt   time.Time `json:"endedAt,omitzero"`

	// Fault carries a rejected telephony command ("answer", "hangup") so
	// the UI collaborator can surface it. The machine never retries.
	Fault string `json:"fault,omitempty"`
}
