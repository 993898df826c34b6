// Package config resolves the settings of a translation run into one
// immutable Config: built-in defaults, then .mdtrans.yaml in the corpus root,
// then MDTRANS_* environment variables (a .env file in the root is loaded
// first), then CLI flags the user actually set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/javierasping/Markdown-translation/langmeta"
	"github.com/javierasping/Markdown-translation/settings"
	"github.com/javierasping/Markdown-translation/translate"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MDTRANS_"

// Defaults.
const (
	DefaultSourceLang       = "es"
	DefaultTargetLang       = "en"
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRetries       = 2
	DefaultConcurrency      = 1
	DefaultBreakerThreshold = 5
	DefaultCacheSize        = 4096
)

// Config is the resolved configuration of a run. Accessors return copies of
// slice fields, so a Config can be shared freely.
type Config struct {
	root             string
	sourceLang       string
	targetLang       string
	provider         translate.Provider
	maxRetries       int
	concurrency      int
	requestDelay     time.Duration
	breakerThreshold int
	cacheSize        int
	protectedLines   []int
	keepMetadata     []string
	exclude          []string
	repairHeadings   bool
}

// Overrides carries CLI flag values. nil fields were not set by the user.
type Overrides struct {
	SourceLang     *string
	TargetLang     *string
	Provider       *string
	Endpoint       *string
	BaseURL        *string
	APIKey         *string
	Model          *string
	Proxy          *string
	Timeout        *time.Duration
	MaxRetries     *int
	Concurrency    *int
	RequestDelay   *time.Duration
	Exclude        []string
	RepairHeadings *bool
}

// raw is the mutable form used while layering.
type raw struct {
	File
	timeout          time.Duration
	maxRetries       int
	concurrency      int
	requestDelay     time.Duration
	breakerThreshold int
	cacheSize        int
	repairHeadings   bool
}

// Load resolves the configuration for the corpus in root.
func Load(root string, ov Overrides) (Config, error) {
	r := raw{
		File: File{
			SourceLang: DefaultSourceLang,
			TargetLang: DefaultTargetLang,
			Provider:   translate.ProviderLibreTranslate,
		},
		timeout:          DefaultTimeout,
		maxRetries:       DefaultMaxRetries,
		concurrency:      DefaultConcurrency,
		breakerThreshold: DefaultBreakerThreshold,
		cacheSize:        DefaultCacheSize,
	}

	f, err := LoadFile(root)
	if err != nil {
		return Config{}, err
	}
	if f != nil {
		r.applyFile(f)
	}

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	if err := r.applyEnv(); err != nil {
		return Config{}, err
	}

	r.applyOverrides(ov)

	cfg, err := r.resolve(root)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (r *raw) applyFile(f *File) {
	setString(&r.SourceLang, f.SourceLang)
	setString(&r.TargetLang, f.TargetLang)
	setString(&r.Provider, f.Provider)
	setString(&r.Endpoint, f.Endpoint)
	setString(&r.BaseURL, f.BaseURL)
	setString(&r.APIKey, f.APIKey)
	setString(&r.Model, f.Model)
	setString(&r.Proxy, f.Proxy)

	if f.Timeout != nil {
		r.timeout = *f.Timeout
	}
	if f.MaxRetries != nil {
		r.maxRetries = *f.MaxRetries
	}
	if f.Concurrency != nil {
		r.concurrency = *f.Concurrency
	}
	if f.RequestDelay != nil {
		r.requestDelay = *f.RequestDelay
	}
	if f.BreakerThreshold != nil {
		r.breakerThreshold = *f.BreakerThreshold
	}
	if f.CacheSize != nil {
		r.cacheSize = *f.CacheSize
	}
	if f.RepairHeadings != nil {
		r.repairHeadings = *f.RepairHeadings
	}
	if f.ProtectedLines != nil {
		r.ProtectedLines = f.ProtectedLines
	}
	r.KeepMetadata = f.KeepMetadata
	r.Exclude = f.Exclude
}

func (r *raw) applyEnv() error {
	for key, dst := range map[string]*string{
		"SOURCE_LANG": &r.SourceLang,
		"TARGET_LANG": &r.TargetLang,
		"PROVIDER":    &r.Provider,
		"ENDPOINT":    &r.Endpoint,
		"BASE_URL":    &r.BaseURL,
		"API_KEY":     &r.APIKey,
		"MODEL":       &r.Model,
		"PROXY":       &r.Proxy,
	} {
		setString(dst, os.Getenv(EnvPrefix+key))
	}

	for key, dst := range map[string]*time.Duration{
		"TIMEOUT":       &r.timeout,
		"REQUEST_DELAY": &r.requestDelay,
	} {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	for key, dst := range map[string]*int{
		"MAX_RETRIES":       &r.maxRetries,
		"CONCURRENCY":       &r.concurrency,
		"BREAKER_THRESHOLD": &r.breakerThreshold,
		"CACHE_SIZE":        &r.cacheSize,
	} {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv(EnvPrefix + "REPAIR_HEADINGS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREPAIR_HEADINGS: %w", EnvPrefix, err)
		}
		r.repairHeadings = b
	}
	if v := os.Getenv(EnvPrefix + "EXCLUDE"); v != "" {
		r.Exclude = splitList(v)
	}
	return nil
}

func (r *raw) applyOverrides(ov Overrides) {
	for _, o := range []struct{ src, dst *string }{
		{ov.SourceLang, &r.SourceLang},
		{ov.TargetLang, &r.TargetLang},
		{ov.Provider, &r.Provider},
		{ov.Endpoint, &r.Endpoint},
		{ov.BaseURL, &r.BaseURL},
		{ov.APIKey, &r.APIKey},
		{ov.Model, &r.Model},
		{ov.Proxy, &r.Proxy},
	} {
		if o.src != nil {
			*o.dst = *o.src
		}
	}
	if ov.Timeout != nil {
		r.timeout = *ov.Timeout
	}
	if ov.RequestDelay != nil {
		r.requestDelay = *ov.RequestDelay
	}
	if ov.MaxRetries != nil {
		r.maxRetries = *ov.MaxRetries
	}
	if ov.Concurrency != nil {
		r.concurrency = *ov.Concurrency
	}
	if ov.RepairHeadings != nil {
		r.repairHeadings = *ov.RepairHeadings
	}
	if ov.Exclude != nil {
		r.Exclude = ov.Exclude
	}
}

// resolve validates the layered values and builds the provider definition.
func (r *raw) resolve(root string) (Config, error) {
	src := strings.TrimSpace(r.SourceLang)
	dst := strings.TrimSpace(r.TargetLang)
	switch {
	case src == "" || dst == "":
		return Config{}, fmt.Errorf("source and target languages must be set")
	case strings.EqualFold(src, dst):
		return Config{}, fmt.Errorf("source and target language are both %q", src)
	}
	if err := validateProvider(r.Provider); err != nil {
		return Config{}, err
	}
	if r.timeout <= 0 {
		return Config{}, fmt.Errorf("timeout must be positive")
	}
	if r.concurrency < 1 {
		return Config{}, fmt.Errorf("concurrency must be at least 1")
	}
	if r.maxRetries < 0 || r.breakerThreshold < 0 || r.cacheSize < 0 || r.requestDelay < 0 {
		return Config{}, fmt.Errorf("max_retries, breaker_threshold, cache_size and request_delay must not be negative")
	}

	prov := translate.DefaultProviders()[r.Provider]
	prov.Timeout = r.timeout
	prov.Proxy = r.Proxy
	if r.Model != "" {
		prov.Model = r.Model
	}
	switch r.Provider {
	case translate.ProviderLibreTranslate:
		if r.Endpoint != "" {
			prov.BaseURL = r.Endpoint
		} else if stored := settings.GetBaseURL(r.Provider); stored != "" {
			prov.BaseURL = stored
		}
	default:
		if r.BaseURL != "" {
			prov.BaseURL = r.BaseURL
		} else if stored := settings.GetBaseURL(r.Provider); stored != "" {
			prov.BaseURL = stored
		}
	}
	prov.APIKey = settings.ResolveAPIKey(r.Provider, r.APIKey)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, err
	}

	return Config{
		root:             absRoot,
		sourceLang:       src,
		targetLang:       dst,
		provider:         prov,
		maxRetries:       r.maxRetries,
		concurrency:      r.concurrency,
		requestDelay:     r.requestDelay,
		breakerThreshold: r.breakerThreshold,
		cacheSize:        r.cacheSize,
		protectedLines:   cloneInts(r.ProtectedLines),
		keepMetadata:     cloneStrings(r.KeepMetadata),
		exclude:          cloneStrings(r.Exclude),
		repairHeadings:   r.repairHeadings,
	}, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (c Config) Root() string { return c.root }
func (c Config) SourceLang() string { return c.sourceLang }
func (c Config) TargetLang() string { return c.targetLang }
func (c Config) Provider() translate.Provider { return c.provider }
func (c Config) MaxRetries() int { return c.maxRetries }
func (c Config) Concurrency() int { return c.concurrency }
func (c Config) RequestDelay() time.Duration { return c.requestDelay }
func (c Config) BreakerThreshold() int { return c.breakerThreshold }
func (c Config) CacheSize() int { return c.cacheSize }
func (c Config) RepairHeadings() bool { return c.repairHeadings }
func (c Config) KeepMetadata() []string { return cloneStrings(c.keepMetadata) }
func (c Config) Exclude() []string { return cloneStrings(c.exclude) }
func (c Config) Timeout() time.Duration { return c.provider.Timeout }

// ProtectedLines returns the configured protected body lines; nil means the
// built-in default set.
func (c Config) ProtectedLines() []int { return cloneInts(c.protectedLines) }

// ClientOptions returns the translation client settings.
func (c Config) ClientOptions(verbose bool) translate.Options {
	return translate.Options{
		Timeout:          c.provider.Timeout,
		MaxRetries:       c.maxRetries,
		BreakerThreshold: c.breakerThreshold,
		CacheSize:        c.cacheSize,
		Verbose:          verbose,
	}
}

// Warnings lists non-fatal problems, such as language codes LibreTranslate
// does not know.
func (c Config) Warnings() []string {
	var out []string
	for _, lang := range []string{c.sourceLang, c.targetLang} {
		if !langmeta.Known(lang) {
			out = append(out, fmt.Sprintf("unknown language code %q", lang))
		}
	}
	if c.provider.ID == translate.ProviderOpenAI && c.provider.APIKey == "" {
		out = append(out, fmt.Sprintf("provider %s has no API key", c.provider.ID))
	}
	return out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append([]int{}, s...)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
