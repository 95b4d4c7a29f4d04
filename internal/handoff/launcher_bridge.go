package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BridgeLauncher asks the device bridge to open a deep link.
type BridgeLauncher struct {
	baseURL string
	client  *http.Client
}

// NewBridgeLauncher constructs a launcher posting to the bridge at baseURL.
func NewBridgeLauncher(baseURL string) *BridgeLauncher {
	return &BridgeLauncher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type launchRequest struct {
	URL string `json:"url"`
}

type launchResponse struct {
	Shown bool `json:"shown"`
}

func (l *BridgeLauncher) Launch(ctx context.Context, link DeepLink) (bool, error) {
	body, err := json.Marshal(launchRequest{URL: link.URL()})
	if err != nil {
		return false, fmt.Errorf("marshal launch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/launch", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build launch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("launch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("bridge responded %d to launch", resp.StatusCode)
	}

	var out launchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode launch response: %w", err)
	}
	return out.Shown, nil
}
