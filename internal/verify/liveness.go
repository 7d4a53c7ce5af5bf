package verify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Liveness probes whether an email domain actually exists and serves web
// traffic. It is not an Adapter: the orchestrator calls it directly and
// skips it entirely for consumer mail providers.
type Liveness struct {
	resolver    *net.Resolver
	client      *http.Client
	dnsTimeout  time.Duration
	httpTimeout time.Duration
}

func NewLiveness(dnsTimeout, httpTimeout time.Duration) *Liveness {
	if dnsTimeout <= 0 {
		dnsTimeout = 2 * time.Second
	}
	if httpTimeout <= 0 {
		httpTimeout = 3 * time.Second
	}
	return &Liveness{
		resolver:    net.DefaultResolver,
		client:      &http.Client{Timeout: httpTimeout},
		dnsTimeout:  dnsTimeout,
		httpTimeout: httpTimeout,
	}
}

// Check resolves the domain and, if it resolves, probes HTTPS then HTTP.
// A resolvable domain counts as alive even without a reachable web server;
// the detail string records which level responded.
func (l *Liveness) Check(ctx context.Context, domain string) (bool, string) {
	dnsCtx, cancel := context.WithTimeout(ctx, l.dnsTimeout)
	defer cancel()

	if _, err := l.resolver.LookupHost(dnsCtx, domain); err != nil {
		zap.L().Debug("verify: domain did not resolve", zap.String("domain", domain), zap.Error(err))
		return false, "domain does not resolve"
	}

	for _, scheme := range []string{"https", "http"} {
		if ok := l.probe(ctx, scheme, domain); ok {
			return true, fmt.Sprintf("domain live, accessible via %s", scheme)
		}
	}
	return true, "domain resolves but no web server responded"
}

func (l *Liveness) probe(ctx context.Context, scheme, domain string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, l.httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, scheme+"://"+domain, nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
