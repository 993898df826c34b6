// Package translate implements the synchronous request/response client used to
// translate single lines and metadata fields through an external translation
// service: LibreTranslate (the default), an OpenAI-compatible chat endpoint,
// or Google Gemini.
//
// Failures never propagate as panics or aborted batches: Client.Translate
// returns a Result whose Text is the original input whenever the service
// could not produce a translation, and whose Err says why.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderLibreTranslate = "libretranslate"
	ProviderOpenAI         = "openai"
	ProviderGemini         = "gemini"
)

// FormatHTML is the payload format sent to LibreTranslate.
const FormatHTML = "html"

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrService is a non-success response, a malformed response body, or an
	// open circuit breaker.
	ErrService = errors.New("translation service error")
	// ErrTimeout is a request that exceeded its deadline.
	ErrTimeout = errors.New("translation request timed out")
)

// StatusError is a non-200 response from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrService }

// retryable reports whether a failed call is worth repeating.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	// Malformed bodies will not get better on retry.
	if errors.Is(err, ErrService) {
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for a translation backend.
type Provider struct {
	// ID is the provider identifier (libretranslate, openai, gemini).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the endpoint (LibreTranslate: the full /translate URL).
	BaseURL string
	// APIKey is the authentication key (empty for a local LibreTranslate).
	APIKey string
	// Model is the model identifier for LLM providers.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request deadline.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderLibreTranslate: {
			ID:      ProviderLibreTranslate,
			Name:    "LibreTranslate",
			BaseURL: "http://localhost:5000/translate",
			Timeout: 30 * time.Second,
		},
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI-compatible",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		ProviderGemini: {
			ID:      ProviderGemini,
			Name:    "Google Gemini",
			Model:   "gemini-2.5-flash",
			Timeout: 60 * time.Second,
		},
	}
}

// ---------------------------------------------------------------------------
// Request / result
// ---------------------------------------------------------------------------

// Request is one stateless translation request.
type Request struct {
	Text   string
	Source string
	Target string
	Format string
}

// Result is either a translation (Err == nil) or a failure, in which case
// Text holds the original input unchanged.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the request was translated.
func (r Result) OK() bool { return r.Err == nil }

// Backend performs a single call against a translation service.
type Backend interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// ---------------------------------------------------------------------------
// Client options
// ---------------------------------------------------------------------------

// Options controls the client behavior around the backend call.
type Options struct {
	// Timeout is the deadline for each backend call.
	Timeout time.Duration
	// MaxRetries is how many times a retryable failure (429, 5xx, network,
	// timeout) is repeated before falling back. 0 = no retries.
	MaxRetries int
	// BreakerThreshold opens the circuit after this many consecutive failed
	// calls. 0 disables the breaker.
	BreakerThreshold int
	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration
	// CacheSize is the number of successful translations memoised per run.
	// 0 disables the cache.
	CacheSize int
	// Verbose enables request-level debug logging.
	Verbose bool
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return 30 * time.Second
}

func (o *Options) effectiveCooldown() time.Duration {
	if o.BreakerCooldown > 0 {
		return o.BreakerCooldown
	}
	return 30 * time.Second
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client wraps a Backend with the fallback-to-original policy, per-request
// deadlines, retries, a circuit breaker and a memo cache. It is safe for
// concurrent use.
type Client struct {
	backend Backend
	opts    Options
	cache   *lru.Cache[string, string]
	breaker *gobreaker.CircuitBreaker
	calls   atomic.Int64

	// retryBase is the first backoff step; doubled on each attempt.
	retryBase time.Duration
}

// NewClient builds a client around backend.
func NewClient(backend Backend, opts Options) (*Client, error) {
	c := &Client{backend: backend, opts: opts, retryBase: time.Second}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating translation cache: %w", err)
		}
		c.cache = cache
	}

	if opts.BreakerThreshold > 0 {
		threshold := uint32(opts.BreakerThreshold)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "translation-service",
			MaxRequests: 1,
			Timeout:     opts.effectiveCooldown(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// A cancelled run says nothing about the service.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if opts.Verbose {
					log.Printf("[DEBUG] %s circuit %s -> %s", name, from, to)
				}
			},
		})
	}

	return c, nil
}

// Calls returns how many backend calls have been attempted, retries included.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// Translate translates req.Text. Empty or whitespace-only text is returned as
// is without calling the service. On any failure the original text is
// returned together with the error.
func (c *Client) Translate(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.Text) == "" {
		return Result{Text: req.Text}
	}
	if req.Format == "" {
		req.Format = FormatHTML
	}

	key := req.Source + "\x00" + req.Target + "\x00" + req.Text
	if c.cache != nil {
		if text, ok := c.cache.Get(key); ok {
			return Result{Text: text}
		}
	}

	var (
		text string
		err  error
	)
	if c.breaker != nil {
		var v interface{}
		v, err = c.breaker.Execute(func() (interface{}, error) {
			return c.callWithRetry(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrService, err)
		}
		if err == nil {
			text = v.(string)
		}
	} else {
		text, err = c.callWithRetry(ctx, req)
	}

	if err != nil {
		return Result{Text: req.Text, Err: err}
	}
	if c.cache != nil {
		c.cache.Add(key, text)
	}
	return Result{Text: text}
}

// callWithRetry calls the backend with a bounded deadline, retrying
// retryable failures with exponential backoff.
func (c *Client) callWithRetry(ctx context.Context, req Request) (string, error) {
	timeout := c.opts.effectiveTimeout()
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if c.opts.Verbose {
			log.Printf("[DEBUG] translate attempt %d: %s", attempt+1, truncate(req.Text, 80))
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		c.calls.Add(1)
		text, err := c.backend.Translate(callCtx, req)
		timedOut := callCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		lastErr = err

		if attempt == c.opts.MaxRetries || !retryable(err) {
			break
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryBase
		if c.opts.Verbose {
			log.Printf("[WARN] translate failed (%v), retrying in %v", err, wait)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	return "", lastErr
}

// ---------------------------------------------------------------------------
// Backend factory
// ---------------------------------------------------------------------------

// NewBackend builds the backend for prov. source and target are used by LLM
// backends to fill in their system prompt.
func NewBackend(ctx context.Context, prov Provider, source, target string) (Backend, error) {
	switch prov.ID {
	case ProviderLibreTranslate, "":
		return NewLibreTranslate(prov), nil
	case ProviderOpenAI:
		return NewOpenAI(prov, source, target), nil
	case ProviderGemini:
		return NewGemini(ctx, prov, source, target)
	default:
		return nil, fmt.Errorf("unknown provider %q (want %s, %s or %s)",
			prov.ID, ProviderLibreTranslate, ProviderOpenAI, ProviderGemini)
	}
}

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

// makeHTTPClient builds an HTTP client. Deadlines come from the request
// context, so timeout is normally 0 here.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// truncate cuts s to at most maxLen bytes without splitting a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
