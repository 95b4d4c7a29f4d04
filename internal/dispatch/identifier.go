// Package dispatch handles call events that arrive while nothing is in the
// foreground. It identifies the caller against the spam service, then hands
// off to the UI via deep link, falling back to a full-screen notification
// when the device refuses the launch.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Identity is what the spam service knows about a number.
type Identity struct {
	Name string `json:"name"`
	Spam bool   `json:"isSpam"`
}

// Identifier looks a number up with the remote identification service.
type Identifier interface {
	Identify(ctx context.Context, rawNumber string) (Identity, error)
}

// HTTPIdentifier queries the remote identification endpoint.
type HTTPIdentifier struct {
	url    string
	client *http.Client
}

// NewHTTPIdentifier constructs an identifier against the given endpoint.
func NewHTTPIdentifier(url string) *HTTPIdentifier {
	return &HTTPIdentifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type identifyRequest struct {
	Number string `json:"number"`
}

func (h *HTTPIdentifier) Identify(ctx context.Context, rawNumber string) (Identity, error) {
	body, err := json.Marshal(identifyRequest{Number: rawNumber})
	if err != nil {
		return Identity{}, fmt.Errorf("marshal identify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("build identify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identify service responded %d", resp.StatusCode)
	}

	var out Identity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, fmt.Errorf("decode identify response: %w", err)
	}
	return out, nil
}
