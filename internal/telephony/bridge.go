// Package telephony talks to the device bridge that owns the actual radio.
// The service never manipulates call state directly; it issues commands here
// and waits for the bridge's state callbacks to come back over HTTP.
package telephony

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// BridgeCommands implements the call command port against the device bridge.
type BridgeCommands struct {
	baseURL string
	client  *http.Client
}

// NewBridgeCommands constructs the command port for the bridge at baseURL.
func NewBridgeCommands(baseURL string) *BridgeCommands {
	return &BridgeCommands{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Answer asks the bridge to pick up the ringing call.
func (b *BridgeCommands) Answer(ctx context.Context) error {
	return b.post(ctx, "/telephony/answer")
}

// Hangup asks the bridge to end the current call.
func (b *BridgeCommands) Hangup(ctx context.Context) error {
	return b.post(ctx, "/telephony/hangup")
}

func (b *BridgeCommands) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("build bridge command: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("bridge rejected %s with %d", path, resp.StatusCode)
	}
	return nil
}
