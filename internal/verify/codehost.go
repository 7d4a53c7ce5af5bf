package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/resilience"
	"github.com/leadworks/salesfilter/internal/scoring"
)

// CodeHost checks a code-hosting user search API for accounts tied to the
// lead's mail handle. Calls are rate limited and retried; when the API is
// unreachable the adapter degrades to a local heuristic instead of
// failing the row.
type CodeHost struct {
	rules      *scoring.Rules
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	retryCfg   resilience.RetryConfig
}

type userSearchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Login string `json:"login"`
	} `json:"items"`
}

func NewCodeHost(rules *scoring.Rules, baseURL string, rps float64) *CodeHost {
	if rps <= 0 {
		rps = 1
	}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("codehost", "user search")
	return &CodeHost{
		rules:      rules,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retryCfg:   retryCfg,
	}
}

func (c *CodeHost) Name() string { return "codehost" }

func (c *CodeHost) Check(ctx context.Context, name, email, domain string) model.VerificationResult {
	local := strings.SplitN(strings.ToLower(email), "@", 2)[0]
	if c.baseURL == "" {
		return c.heuristic(name, local, domain)
	}

	found, login, err := c.search(ctx, local)
	if err != nil {
		zap.L().Debug("verify: codehost search failed, falling back to heuristic",
			zap.String("domain", domain), zap.Error(err))
		return c.heuristic(name, local, domain)
	}
	if !found {
		return model.VerificationResult{Detail: "no code hosting account found"}
	}
	if login == strings.ReplaceAll(local, ".", "") || login == local {
		return model.VerificationResult{
			Verified: true,
			Matched:  true,
			Detail:   fmt.Sprintf("code hosting account %q matches handle", login),
		}
	}
	return model.VerificationResult{
		Verified: true,
		Detail:   fmt.Sprintf("code hosting account %q found", login),
	}
}

func (c *CodeHost) search(ctx context.Context, handle string) (bool, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, "", eris.Wrap(err, "verify: rate limiter wait")
	}

	out, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (searchOut, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (searchOut, error) {
			return c.doSearch(ctx, handle)
		})
	})
	if err != nil {
		return false, "", err
	}
	return out.found, out.login, nil
}

type searchOut struct {
	found bool
	login string
}

func (c *CodeHost) doSearch(ctx context.Context, handle string) (searchOut, error) {
	var out searchOut

	endpoint := fmt.Sprintf("%s/search/users?q=%s", c.baseURL, url.QueryEscape(handle))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, eris.Wrap(err, "verify: build codehost request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, eris.Wrap(err, "verify: codehost request")
	}
	defer resp.Body.Close()

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return out, resilience.NewTransientError(
			eris.Errorf("verify: codehost returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return out, eris.Errorf("verify: codehost returned status %d", resp.StatusCode)
	}

	var parsed userSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return out, eris.Wrap(err, "verify: decode codehost response")
	}
	if parsed.TotalCount > 0 && len(parsed.Items) > 0 {
		out.found = true
		out.login = parsed.Items[0].Login
	}
	return out, nil
}

// heuristic estimates code hosting presence from technical markers when
// no live API is available.
func (c *CodeHost) heuristic(name, local, domain string) model.VerificationResult {
	tld := scoring.TLD(domain)
	technical := containsAny(local, c.rules.Technical.LocalKeywords) ||
		containsAny(strings.ToLower(name), c.rules.Technical.NameTerms) ||
		containsString(c.rules.Technical.TLDs, tld)
	if technical {
		return model.VerificationResult{
			Verified: true,
			Detail:   "technical profile, code hosting presence simulated",
		}
	}
	return model.VerificationResult{Detail: "no technical markers"}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
