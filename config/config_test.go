package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.Upstream.Templates) != 1 || cfg.Upstream.Templates[0] != DefaultUpstream {
		t.Errorf("Upstream.Templates = %v, want [%s]", cfg.Upstream.Templates, DefaultUpstream)
	}
	if cfg.Archive.Concurrency != 6 {
		t.Errorf("Archive.Concurrency = %d, want 6", cfg.Archive.Concurrency)
	}
	if cfg.Fetcher.AllowPrivate {
		t.Error("Fetcher.AllowPrivate should default to false")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SITELENS_PORT", "9090")
	t.Setenv("SITELENS_UPSTREAMS", "https://a.test/{domain}, https://b.test/{domain}")
	t.Setenv("SITELENS_ESCALATION_DELAYS", "0s,1s,bogus")
	t.Setenv("SITELENS_ALLOW_PRIVATE", "true")
	t.Setenv("SITELENS_API_KEYS", "k1,,k2")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if got := cfg.Upstream.Templates; len(got) != 2 || got[1] != "https://b.test/{domain}" {
		t.Errorf("Upstream.Templates = %v", got)
	}
	if got := cfg.Upstream.EscalationDelays; len(got) != 2 || got[1] != time.Second {
		t.Errorf("EscalationDelays = %v, want [0s 1s]", got)
	}
	if !cfg.Fetcher.AllowPrivate {
		t.Error("Fetcher.AllowPrivate should be true")
	}
	if got := cfg.Auth.APIKeys; len(got) != 2 {
		t.Errorf("APIKeys = %v, want two keys", got)
	}
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	t.Setenv("SITELENS_RATE_BURST", "many")
	if got := Load().RateLimit.Burst; got != 10 {
		t.Errorf("RateLimit.Burst = %d, want fallback 10", got)
	}
}
