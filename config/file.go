// .mdtrans.yaml configuration file support.
//
// A .mdtrans.yaml file in the corpus root overrides the built-in defaults.
// Every key is optional; unknown keys are rejected so typos don't silently
// fall back to a default.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/javierasping/Markdown-translation/translate"
)

// FileName is the config file name looked up in the corpus root.
const FileName = ".mdtrans.yaml"

// File is the .mdtrans.yaml structure. Pointer and nil-slice fields
// distinguish "absent" from an explicit zero value.
type File struct {
	// SourceLang is the language of the corpus (default "es").
	SourceLang string `yaml:"source_lang,omitempty"`
	// TargetLang is the language translations are written in (default "en").
	TargetLang string `yaml:"target_lang,omitempty"`

	// Provider is libretranslate, openai or gemini.
	Provider string `yaml:"provider,omitempty"`
	// Endpoint is the full LibreTranslate /translate URL.
	Endpoint string `yaml:"endpoint,omitempty"`
	// BaseURL is the API base for OpenAI-compatible servers.
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`
	Proxy   string `yaml:"proxy,omitempty"`

	Timeout          *time.Duration `yaml:"timeout,omitempty"`
	MaxRetries       *int           `yaml:"max_retries,omitempty"`
	Concurrency      *int           `yaml:"concurrency,omitempty"`
	RequestDelay     *time.Duration `yaml:"request_delay,omitempty"`
	BreakerThreshold *int           `yaml:"breaker_threshold,omitempty"`
	CacheSize        *int           `yaml:"cache_size,omitempty"`

	// ProtectedLines replaces the default protected body lines. An empty
	// list protects none.
	ProtectedLines []int `yaml:"protected_lines,omitempty"`
	// KeepMetadata lists extra front matter keys kept untranslated.
	KeepMetadata []string `yaml:"keep_metadata,omitempty"`
	// Exclude holds doublestar patterns relative to the corpus root.
	Exclude []string `yaml:"exclude,omitempty"`
	// RepairHeadings enables the heading marker repair pass.
	RepairHeadings *bool `yaml:"repair_headings,omitempty"`
}

// LoadFile loads and validates .mdtrans.yaml from rootDir.
// Returns nil if no file exists.
func LoadFile(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.Provider != "" {
		if err := validateProvider(f.Provider); err != nil {
			return err
		}
	}
	for name, v := range map[string]*int{
		"max_retries":       f.MaxRetries,
		"breaker_threshold": f.BreakerThreshold,
		"cache_size":        f.CacheSize,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if f.Concurrency != nil && *f.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if f.Timeout != nil && *f.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	for _, n := range f.ProtectedLines {
		if n < 1 {
			return fmt.Errorf("protected_lines: line numbers start at 1, got %d", n)
		}
	}
	return nil
}

func validateProvider(id string) error {
	switch id {
	case translate.ProviderLibreTranslate, translate.ProviderOpenAI, translate.ProviderGemini:
		return nil
	}
	return fmt.Errorf("unknown provider %q (valid: %s, %s, %s)", id,
		translate.ProviderLibreTranslate, translate.ProviderOpenAI, translate.ProviderGemini)
}
