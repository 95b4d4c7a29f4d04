package blocklist

import "time"

// Entry is one blocked number. Presence in the registry is what makes a
// number blocked; unblocking deletes the entry outright rather than flagging
// it, which keeps the registry small and lookups cheap.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}
