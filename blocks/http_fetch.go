package blocks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/reliability/retry"
	"github.com/enrichflow/enrichflow/types"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 4 << 20

// HTTPFetch calls an enrichment provider over HTTP. Config keys:
//
//	url:          request URL (required)
//	method:       HTTP method, default GET
//	cache:        bool, default true, reuse a recent response for the same URL
//	cache_ttl:    seconds, default the cache's own default
//	max_retries:  override the base retry budget
//	auth_secret:  name of a run secret sent as a bearer token
//
// Each request passes through the shared reliability stack in order: cache
// lookup, per-host circuit breaker, per-host rate limiter, retrying HTTP
// call. The breaker is checked before the limiter so a short-circuited
// request never consumes a rate-limit token. In demo mode a synthesized
// response is returned without any network call; in test mode a
// deterministic fixture.
type HTTPFetch struct {
	deps Deps
}

func (b *HTTPFetch) Type() string { return "http_fetch" }

func (b *HTTPFetch) Execute(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
	rawURL := config.StringOption("url", "")
	if rawURL == "" {
		return nil, types.NewError(types.ErrValidation, "http_fetch requires a url option")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, types.NewError(types.ErrValidation,
			fmt.Sprintf("http_fetch url %q is not a valid absolute URL", rawURL))
	}

	switch ec.Mode() {
	case block.ModeDemo:
		return b.demoResponse(parsed, input), nil
	case block.ModeTest:
		return map[string]any{"source": parsed.Host, "fixture": true}, nil
	}

	return b.fetch(ctx, parsed, config, ec)
}

func (b *HTTPFetch) fetch(ctx context.Context, u *url.URL, config block.Config, ec *block.ExecutionContext) (any, error) {
	method := strings.ToUpper(config.StringOption("method", http.MethodGet))
	cacheKey := method + " " + u.String()
	cacheable := method == http.MethodGet && config.BoolOption("cache", true)

	if cacheable && b.deps.Cache != nil {
		if v, ok := b.deps.Cache.Get(cacheKey); ok {
			ec.Log("cache hit for " + u.Host)
			return v, nil
		}
	}

	cb := b.deps.Breakers.GetOrCreate(u.Host)
	if err := cb.AllowRequest(); err != nil {
		return nil, err
	}

	if b.deps.Limiters != nil {
		if err := b.deps.Limiters.GetOrCreate(u.Host).Acquire(ctx); err != nil {
			return nil, err
		}
	}

	policy := b.deps.RetryBase
	if mr := config.IntOption("max_retries", -1); mr >= 0 {
		policy.MaxRetries = mr
	}
	policy.RetryIf = retryableHTTPError
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		ec.NoteRetry()
		ec.Log(fmt.Sprintf("retrying %s (attempt %d): %v", u.Host, attempt, err))
	}
	executor := retry.NewExecutor(&policy, b.deps.Logger)

	result, err := executor.DoWithResult(ctx, func(ctx context.Context) (any, error) {
		return b.doRequest(ctx, method, u.String(), config, ec)
	})
	if err != nil {
		cb.RecordFailure()
		return nil, err
	}
	cb.RecordSuccess()

	if cacheable && b.deps.Cache != nil {
		ttl := time.Duration(config.IntOption("cache_ttl", 0)) * time.Second
		b.deps.Cache.SetTTL(cacheKey, result, ttl)
	}
	return result, nil
}

// doRequest performs a single HTTP exchange and decodes the response.
// Server-side failures (5xx, 429) come back retryable; other non-2xx
// statuses do not.
func (b *HTTPFetch) doRequest(ctx context.Context, method, rawURL string, config block.Config, ec *block.ExecutionContext) (any, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, types.NewError(types.ErrValidation, fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	if secretName := config.StringOption("auth_secret", ""); secretName != "" {
		token, ok := ec.Secret(secretName)
		if !ok {
			return nil, types.NewError(types.ErrValidation,
				fmt.Sprintf("http_fetch: secret %q is not set for this run", secretName))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, fmt.Sprintf("request to %s failed: %v", req.URL.Host, err)).
			WithService(req.URL.Host).
			WithRetryable(true).
			WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, fmt.Sprintf("reading response from %s: %v", req.URL.Host, err)).
			WithService(req.URL.Host).
			WithRetryable(true).
			WithCause(err)
	}

	if resp.StatusCode >= 400 {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		code := types.ErrUpstreamError
		if resp.StatusCode == http.StatusTooManyRequests {
			code = types.ErrRateLimited
		}
		return nil, types.NewError(code,
			fmt.Sprintf("%s returned %d: %s", req.URL.Host, resp.StatusCode, truncate(string(body), 200))).
			WithService(req.URL.Host).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(retryable)
	}

	b.deps.Logger.Debug("provider response",
		zap.String("host", req.URL.Host),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Not JSON; hand the raw body through.
		return string(body), nil
	}
	return decoded, nil
}

// demoResponse synthesizes a plausible provider payload without touching the
// network.
func (b *HTTPFetch) demoResponse(u *url.URL, input any) any {
	return map[string]any{
		"source":    u.Host,
		"path":      u.Path,
		"input":     input,
		"demo":      true,
		"fetchedAt": time.Now().UTC().Format(time.RFC3339),
	}
}

func retryableHTTPError(err error) bool {
	return types.IsRetryable(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
