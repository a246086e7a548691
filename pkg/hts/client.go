// Package hts provides a client for the public candidate-codes tariff API.
package hts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the API has no tariff data for an HTS code.
// An empty candidate list is treated the same as a 404.
var ErrNotFound = eris.New("hts: no tariff data for code")

// Client defines the candidate-codes API operations.
type Client interface {
	// CandidateCodes fetches all tariff records filed under an HTS code.
	CandidateCodes(ctx context.Context, htsCode string) ([]CandidateCode, error)
}

// CandidateCode is one tariff record as returned by the API.
type CandidateCode struct {
	Type                    string          `json:"type"`
	Label                   string          `json:"label"`
	FullDescription         string          `json:"fullDescription"`
	RateDescription         string          `json:"rateDescription"`
	Priority                *int            `json:"priority"`
	RequiresUserChoice      bool            `json:"requiresUserChoice"`
	EffectiveFrom           string          `json:"effectiveFrom"`
	EffectiveTo             string          `json:"effectiveTo"`
	CodeVariant             CodeVariant     `json:"codeVariant"`
	RateInfo                RateInfo        `json:"rateInfo"`
	CountriesOfOrigin       []Country       `json:"countriesOfOrigin"`
	ApplicabilityConditions []RawCondition  `json:"applicabilityConditions"`
	ExcludedByCodes         []CodeReference `json:"excludedByCodes"`
	SpecialRates            []SpecialRate   `json:"specialRates"`
}

// CodeVariant carries the code string for a record.
type CodeVariant struct {
	Code string `json:"code"`
}

// RateInfo carries rate metadata. PenaltyRate arrives as a string and may be
// empty for non-penalty records.
type RateInfo struct {
	PenaltyRate string `json:"penaltyRate"`
}

// Country is a country-of-origin entry.
type Country struct {
	USCustomsCountryCode string `json:"usCustomsCountryCode"`
}

// RawCondition is one applicability condition. The GraphQL __typename
// distinguishes the date-comparison variants.
type RawCondition struct {
	Typename         string `json:"__typename"`
	FieldKey         string `json:"fieldKey"`
	FieldShouldEqual string `json:"fieldShouldEqual"`
	Threshold        string `json:"threshold"`
	LowerBound       string `json:"lowerBound"`
	UpperBound       string `json:"upperBound"`
}

// CodeReference points at another record by code.
type CodeReference struct {
	Code string `json:"code"`
}

// SpecialRate is a preferential-program rate on the primary record.
type SpecialRate struct {
	SPI             string        `json:"spi"`
	RateDescription string        `json:"rateDescription"`
	ImportProgram   ImportProgram `json:"importProgram"`
}

// ImportProgram describes the trade program a special rate belongs to.
type ImportProgram struct {
	ProgramName       string    `json:"programName"`
	CountriesOfOrigin []Country `json:"countriesOfOrigin"`
}

// Option configures the hts client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a candidate-codes API client. The API is public and
// needs no credentials.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://tariffs.flexport.com/api/public/v1",
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "hts: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("hts: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) CandidateCodes(ctx context.Context, htsCode string) ([]CandidateCode, error) {
	reqURL := fmt.Sprintf("%s/candidate-codes/%s", c.baseURL, htsCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "hts: create request")
	}
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "hts: request failed")
	}

	if statusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("hts: unexpected status %d: %s", statusCode, string(body))
	}

	var codes []CandidateCode
	if err := json.Unmarshal(body, &codes); err != nil {
		return nil, eris.Wrap(err, "hts: unmarshal response")
	}

	if len(codes) == 0 {
		return nil, ErrNotFound
	}

	return codes, nil
}
