package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BridgeSink delivers notifications to the device bridge over HTTP. The
// bridge owns the actual platform notification surface; we just describe
// what to show.
type BridgeSink struct {
	baseURL string
	client  *http.Client
}

// NewBridgeSink constructs a sink posting to the bridge at baseURL.
func NewBridgeSink(baseURL string) *BridgeSink {
	return &BridgeSink{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *BridgeSink) EnsureChannel(ctx context.Context, ch Channel) error {
	return s.send(ctx, http.MethodPost, "/notifications/channels", ch)
}

func (s *BridgeSink) Post(ctx context.Context, n Notification) error {
	return s.send(ctx, http.MethodPost, "/notifications", n)
}

func (s *BridgeSink) Cancel(ctx context.Context, id string) error {
	return s.send(ctx, http.MethodDelete, "/notifications/"+id, nil)
}

func (s *BridgeSink) send(ctx context.Context, method, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal bridge payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build bridge request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("bridge responded %d for %s %s", resp.StatusCode, method, path)
	}
	return nil
}
