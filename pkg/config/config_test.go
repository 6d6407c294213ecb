package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typegen.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
spec: https://specs.example.com/openapi.yaml
allowedDomains: [specs.example.com]
workers: 4
cache:
  ttl: 2m
  maxSize: 10
fetch:
  timeout: 5s
  retries: 2
  backoff: 250ms
rules:
  - name: cpf
    annotation: CPF
    imports: [com.example.validation.CPF]
uniqueEmail: true
verbose: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Spec != "https://specs.example.com/openapi.yaml" {
		t.Errorf("Spec = %q, URL specs must not be absolutized", cfg.Spec)
	}
	if cfg.Workers != 4 || !cfg.UniqueEmail || !cfg.Verbose {
		t.Error("top-level fields not decoded")
	}
	if ttl, err := cfg.Cache.TTLDuration(); err != nil || ttl != 2*time.Minute {
		t.Errorf("TTLDuration() = %v, %v", ttl, err)
	}
	if timeout, err := cfg.Fetch.TimeoutDuration(); err != nil || timeout != 5*time.Second {
		t.Errorf("TimeoutDuration() = %v, %v", timeout, err)
	}
	if backoff, err := cfg.Fetch.BackoffDuration(); err != nil || backoff != 250*time.Millisecond {
		t.Errorf("BackoffDuration() = %v, %v", backoff, err)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Annotation != "CPF" {
		t.Error("custom rules not decoded")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "spec: ./openapi.yaml\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !filepath.IsAbs(cfg.Spec) {
		t.Errorf("Spec = %q, relative paths must be absolutized", cfg.Spec)
	}
	if cfg.ConditionCacheSize != DefaultConditionCacheSize {
		t.Errorf("ConditionCacheSize = %d, want default", cfg.ConditionCacheSize)
	}
	if cfg.Cache.MaxSize != DefaultMaxCacheSize {
		t.Errorf("Cache.MaxSize = %d, want default", cfg.Cache.MaxSize)
	}
	if ttl, _ := cfg.Cache.TTLDuration(); ttl != DefaultTTL {
		t.Errorf("TTLDuration() = %v, want %v", ttl, DefaultTTL)
	}
	if cfg.Fetch.Retries != DefaultRetries {
		t.Errorf("Fetch.Retries = %d, want default", cfg.Fetch.Retries)
	}
}

func TestLoadRejectsMissingSpec(t *testing.T) {
	if _, err := Load(writeConfig(t, "workers: 2\n")); err == nil {
		t.Fatal("Load() must require spec")
	}
}

func TestLoadRejectsBadRule(t *testing.T) {
	path := writeConfig(t, `
spec: ./openapi.yaml
rules:
  - name: cpf
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load() must require rule annotations")
	}
}

func TestBadDuration(t *testing.T) {
	cfg, err := Load(writeConfig(t, "spec: ./a.yaml\ncache: {ttl: forever}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := cfg.Cache.TTLDuration(); err == nil {
		t.Fatal("TTLDuration() must reject unparsable durations")
	}
}
