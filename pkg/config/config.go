package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	// Spec is the root document: a filesystem path or an HTTP(S) URL.
	Spec string `yaml:"spec"`
	// AllowedDomains restricts external reference fetching. Empty means any
	// domain is allowed.
	AllowedDomains []string `yaml:"allowedDomains"`
	Fetch          Fetch    `yaml:"fetch"`
	Cache          Cache    `yaml:"cache"`
	// Workers bounds batch resolution concurrency. Zero sizes the pool from
	// the schema count.
	Workers int `yaml:"workers"`
	// ConditionCacheSize bounds the condition-result cache.
	ConditionCacheSize int `yaml:"conditionCacheSize"`
	// Rules are caller-registered validation rules, merged over the
	// built-ins by name.
	Rules []Rule `yaml:"rules"`
	// Format-driven rule toggles.
	UniqueEmail    bool `yaml:"uniqueEmail"`
	StrongPassword bool `yaml:"strongPassword"`
	PhoneNumber    bool `yaml:"phoneNumber"`
	Verbose        bool `yaml:"verbose"`
}

// Fetch configures external document fetching.
type Fetch struct {
	// Timeout, Backoff are duration strings ("10s", "500ms").
	Timeout      string `yaml:"timeout"`
	Retries      int    `yaml:"retries"`
	Backoff      string `yaml:"backoff"`
	MaxRedirects int    `yaml:"maxRedirects"`
}

// Cache configures the external document cache.
type Cache struct {
	// TTL is a duration string ("5m").
	TTL     string `yaml:"ttl"`
	MaxSize int    `yaml:"maxSize"`
}

// Rule declares a custom validation rule in configuration.
type Rule struct {
	Name       string         `yaml:"name"`
	Annotation string         `yaml:"annotation"`
	Params     map[string]any `yaml:"params"`
	Message    string         `yaml:"message"`
	Imports    []string       `yaml:"imports"`
}

// Defaults applied by Load when the file leaves a knob unset.
const (
	DefaultTTL                = 5 * time.Minute
	DefaultMaxCacheSize       = 50
	DefaultTimeout            = 10 * time.Second
	DefaultRetries            = 3
	DefaultBackoff            = 500 * time.Millisecond
	DefaultMaxRedirects       = 5
	DefaultConditionCacheSize = 256
)

// Load loads configuration from a YAML file, validates required fields and
// fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Spec == "" {
		return nil, errors.New("config.spec is required")
	}
	for i, r := range cfg.Rules {
		if r.Name == "" || r.Annotation == "" {
			return nil, fmt.Errorf("rules[%d] missing required fields (name, annotation)", i)
		}
	}
	// Do not absolutize when spec is an HTTP(S) URL
	if u, err := url.Parse(cfg.Spec); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		// keep as-is
	} else if !filepath.IsAbs(cfg.Spec) {
		abs, _ := filepath.Abs(cfg.Spec)
		cfg.Spec = abs
	}
	if cfg.ConditionCacheSize <= 0 {
		cfg.ConditionCacheSize = DefaultConditionCacheSize
	}
	if cfg.Cache.MaxSize <= 0 {
		cfg.Cache.MaxSize = DefaultMaxCacheSize
	}
	if cfg.Fetch.Retries <= 0 {
		cfg.Fetch.Retries = DefaultRetries
	}
	if cfg.Fetch.MaxRedirects <= 0 {
		cfg.Fetch.MaxRedirects = DefaultMaxRedirects
	}
	return &cfg, nil
}

// TTLDuration returns the parsed cache TTL.
func (c *Cache) TTLDuration() (time.Duration, error) {
	return duration(c.TTL, DefaultTTL)
}

// TimeoutDuration returns the parsed fetch timeout.
func (f *Fetch) TimeoutDuration() (time.Duration, error) {
	return duration(f.Timeout, DefaultTimeout)
}

// BackoffDuration returns the parsed retry backoff step.
func (f *Fetch) BackoffDuration() (time.Duration, error) {
	return duration(f.Backoff, DefaultBackoff)
}

func duration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
