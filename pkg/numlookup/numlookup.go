// Package numlookup validates and enriches phone numbers through a
// number-lookup API. Without a configured base URL it degrades to local
// syntactic validation.
package numlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadworks/salesfilter/internal/resilience"
)

var phoneRe = regexp.MustCompile(`\+?[0-9][0-9\s().-]{6,18}[0-9]`)

// PhoneInfo is the lookup result for one number.
type PhoneInfo struct {
	Number  string `json:"number"`
	Valid   bool   `json:"valid"`
	Type    string `json:"type"` // mobile, landline, voip, unknown
	Carrier string `json:"carrier,omitempty"`
	Country string `json:"country,omitempty"`
}

type lookupResponse struct {
	Valid       bool   `json:"valid"`
	LineType    string `json:"line_type"`
	Carrier     string `json:"carrier"`
	CountryName string `json:"country_name"`
}

// ExtractPhone finds the first phone-shaped token in free text and
// normalizes it to digits with an optional leading plus.
func ExtractPhone(s string) string {
	match := phoneRe.FindString(s)
	if match == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range match {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	n := b.String()
	if len(strings.TrimPrefix(n, "+")) < 7 {
		return ""
	}
	return n
}

// Client performs number lookups against the configured API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retryCfg   resilience.RetryConfig
}

func NewClient(baseURL, apiKey string) *Client {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("numlookup", "validate")
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		retryCfg:   retryCfg,
	}
}

// Lookup validates a phone number. With no API configured the result is
// syntactic only: the number is marked valid with type "unknown".
func (c *Client) Lookup(ctx context.Context, number string) (*PhoneInfo, error) {
	number = ExtractPhone(number)
	if number == "" {
		return nil, eris.New("numlookup: no parseable phone number")
	}
	if c.baseURL == "" {
		return &PhoneInfo{Number: number, Valid: true, Type: "unknown"}, nil
	}
	return resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*PhoneInfo, error) {
		return c.fetch(ctx, number)
	})
}

func (c *Client) fetch(ctx context.Context, number string) (*PhoneInfo, error) {
	q := url.Values{}
	q.Set("number", number)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/v1/validate?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "numlookup: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "numlookup: validate request")
	}
	defer resp.Body.Close()

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("numlookup: validate returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("numlookup: validate returned status %d", resp.StatusCode)
	}

	var parsed lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "numlookup: decode response")
	}

	info := &PhoneInfo{
		Number:  number,
		Valid:   parsed.Valid,
		Type:    strings.ToLower(parsed.LineType),
		Carrier: parsed.Carrier,
		Country: parsed.CountryName,
	}
	if info.Type == "" {
		info.Type = "unknown"
	}
	return info, nil
}
