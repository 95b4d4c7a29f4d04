package call

import "context"

// Commands is the outbound half of the telephony layer: the machine issues
// answer/hangup and waits for the platform's state callbacks to confirm.
// Neither command changes local state by itself.
type Commands interface {
	Answer(ctx context.Context) error
	Hangup(ctx context.Context) error
}

// Subscriber receives transition events in the order the platform delivered
// them. Callbacks run on the transition path, so implementations must be
// fast and must never block; push slow work onto a queue.
type Subscriber interface {
	OnCallEvent(event Event)
}

// NopCommands satisfies Commands for tests and bridge-less demo runs.
type NopCommands struct{}

func (NopCommands) Answer(ctx context.Context) error { return nil }
func (NopCommands) Hangup(ctx context.Context) error { return nil }
