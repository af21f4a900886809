package sensor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"engine-health-monitor/internal/parser"
)

// HTTPProvider fetches a JSON reading from a networked endpoint
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider polling url on every Read
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Read implements Provider
func (p *HTTPProvider) Read(ctx context.Context) (parser.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return parser.Record{}, fmt.Errorf("failed to build sensor request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return parser.Record{}, fmt.Errorf("sensor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.CopyN(io.Discard, resp.Body, 512)
		return parser.Record{}, fmt.Errorf("sensor endpoint returned %d", resp.StatusCode)
	}

	rec, err := parser.DecodeReading(resp.Body)
	if err != nil {
		return parser.Record{}, fmt.Errorf("sensor payload rejected: %w", err)
	}
	return rec, nil
}
