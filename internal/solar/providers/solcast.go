package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// DefaultSolcastURL is the public Solcast API root.
const DefaultSolcastURL = "https://api.solcast.com.au/"

// forecastHours is the window requested for both categories, in 30 minute periods.
const forecastHours = 168

// SolcastProvider implements the solar.Provider interface for Solcast rooftop sites.
type SolcastProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// SolcastOption customises a SolcastProvider.
type SolcastOption func(*SolcastProvider)

// WithBaseURL overrides DefaultSolcastURL.
func WithBaseURL(u string) SolcastOption {
	return func(p *SolcastProvider) {
		if u == "" {
			return
		}
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		p.baseURL = u
	}
}

// WithBackoff overrides the retry policy.
func WithBackoff(b BackoffConfig) SolcastOption {
	return func(p *SolcastProvider) {
		p.httpCfg.Backoff = b
	}
}

func NewSolcastProvider(client *http.Client, apiKey string, opts ...SolcastOption) *SolcastProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "solcast",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	p := &SolcastProvider{
		name:    "solcast",
		apiKey:  apiKey,
		baseURL: DefaultSolcastURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SolcastProvider) Name() string {
	return p.name
}

// FetchCategory returns the half-hourly records of one category for one site.
// Anything but a 200 response is reported as a *solar.TransportError.
func (p *SolcastProvider) FetchCategory(ctx context.Context, site string, category solar.Category) ([]solar.RawRecord, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("solcast api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("format", "json")
		values.Set("hours", fmt.Sprintf("%d", forecastHours))
		values.Set("period", "PT30M")

		u := fmt.Sprintf("%srooftop_sites/%s/%s?%s", p.baseURL, url.PathEscape(site), category, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(p.apiKey, "")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, &solar.TransportError{
			Site:       site,
			Category:   category,
			StatusCode: statusCode(err),
			Err:        err,
		}
	}
	defer resp.Body.Close()

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeError(site, category, err)
	}

	body, ok := payload[string(category)]
	if !ok {
		return nil, nil
	}
	var records []solar.RawRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, decodeError(site, category, err)
	}
	return records, nil
}

func decodeError(site string, category solar.Category, err error) error {
	return &solar.TransportError{
		Site:       site,
		Category:   category,
		StatusCode: http.StatusOK,
		Err:        fmt.Errorf("decode response: %w", err),
	}
}
