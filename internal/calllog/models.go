package calllog

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal disposition of a logged call.
type Outcome string

const (
	// OutcomeBlocked means screening rejected the call before it rang.
	// Blocked calls still appear in the log for user transparency, they
	// just never produce a missed-call alert.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeMissed means an incoming call rang out unanswered.
	OutcomeMissed Outcome = "missed"

	// OutcomeDeclined means the user rejected the call while ringing.
	OutcomeDeclined Outcome = "declined"

	// OutcomeAnswered means the call reached the active state.
	OutcomeAnswered Outcome = "answered"

	// OutcomeDialed means an outgoing call that never connected.
	OutcomeDialed Outcome = "dialed"
)

// Entry is one row of call history.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"number"`
	Fingerprint string    `json:"fingerprint"`
	Direction   string    `json:"direction"`
	Outcome     Outcome   `json:"outcome"`
	CallerName  string    `json:"caller_name,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}
