package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StaticSource always returns the same table.
type StaticSource map[string]float64

func (s StaticSource) Rates(context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// HTTPSource fetches a USD based table from an exchange-rate API that
// responds with {"rates": {"JPY": 150.1, ...}}.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource builds an HTTPSource with a bounded client timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

type ratesPayload struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (s *HTTPSource) Rates(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate api returned %d", resp.StatusCode)
	}

	var payload ratesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if payload.Base != "" && payload.Base != Base {
		return nil, fmt.Errorf("rate api quoted against %s, want %s", payload.Base, Base)
	}
	if len(payload.Rates) == 0 {
		return nil, errors.New("rate api returned no rates")
	}
	return payload.Rates, nil
}
