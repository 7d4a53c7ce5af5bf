// Package opencorp is a small client for an OpenCorporates-style company
// registry API. Lookups are cached in memory with a TTL; when no base URL
// is configured the client falls back to a heuristic derived from the
// domain so enrichment stays functional offline.
package opencorp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leadworks/salesfilter/internal/resilience"
)

// Company is the registry view of one organization.
type Company struct {
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	Industry          string     `json:"industry"`
	EmployeeCount     int        `json:"employee_count"`
	IncorporationDate *time.Time `json:"incorporation_date,omitempty"`
	Source            string     `json:"source"`
}

type searchResponse struct {
	Results struct {
		Companies []struct {
			Company struct {
				Name              string `json:"name"`
				CurrentStatus     string `json:"current_status"`
				Industry          string `json:"industry"`
				EmployeeCount     int    `json:"employee_count"`
				IncorporationDate string `json:"incorporation_date"`
			} `json:"company"`
		} `json:"companies"`
	} `json:"results"`
}

type cacheEntry struct {
	company *Company
	expires time.Time
}

// Client queries the registry API with per-domain result caching.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	mu    sync.Mutex
	cache map[string]cacheEntry
	ttl   time.Duration

	retryCfg resilience.RetryConfig
	titler   cases.Caser
}

func NewClient(baseURL, apiKey string, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("opencorp", "company search")
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cache:      make(map[string]cacheEntry),
		ttl:        ttl,
		retryCfg:   retryCfg,
		titler:     cases.Title(language.English),
	}
}

// LookupDomain resolves company details for an email domain. Results,
// including negative ones, are cached for the configured TTL.
func (c *Client) LookupDomain(ctx context.Context, domain string) (*Company, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, eris.New("opencorp: empty domain")
	}

	c.mu.Lock()
	if entry, ok := c.cache[domain]; ok && time.Now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.company, nil
	}
	c.mu.Unlock()

	company, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*Company, error) {
		return c.fetch(ctx, domain)
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[domain] = cacheEntry{company: company, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return company, nil
}

func (c *Client) fetch(ctx context.Context, domain string) (*Company, error) {
	guess := c.CompanyNameFromDomain(domain)
	if c.baseURL == "" {
		zap.L().Debug("opencorp: no registry configured, using heuristic", zap.String("domain", domain))
		return &Company{Name: guess, Status: "unknown", Source: "heuristic"}, nil
	}

	q := url.Values{}
	q.Set("q", guess)
	if c.apiKey != "" {
		q.Set("api_token", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/v0.4/companies/search?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "opencorp: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "opencorp: search request")
	}
	defer resp.Body.Close()

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("opencorp: search returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("opencorp: search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "opencorp: decode response")
	}
	if len(parsed.Results.Companies) == 0 {
		return nil, nil
	}

	raw := parsed.Results.Companies[0].Company
	company := &Company{
		Name:          raw.Name,
		Status:        strings.ToLower(raw.CurrentStatus),
		Industry:      raw.Industry,
		EmployeeCount: raw.EmployeeCount,
		Source:        "registry",
	}
	if raw.IncorporationDate != "" {
		if ts, err := time.Parse("2006-01-02", raw.IncorporationDate); err == nil {
			company.IncorporationDate = &ts
		}
	}
	return company, nil
}

// CompanyNameFromDomain turns "global-tel.net" into "Global Tel".
func (c *Client) CompanyNameFromDomain(domain string) string {
	label := strings.SplitN(domain, ".", 2)[0]
	label = strings.NewReplacer("-", " ", "_", " ").Replace(label)
	return c.titler.String(label)
}
