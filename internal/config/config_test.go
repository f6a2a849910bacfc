package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsMatchSpec(t *testing.T) {
	cfg := Load()
	if cfg.Auth.Method != "none" {
		t.Fatalf("expected default auth.method=none, got %q", cfg.Auth.Method)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("expected default server.host=0.0.0.0, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default server.port=8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "quentin.db" {
		t.Fatalf("expected default database.path=quentin.db, got %q", cfg.Database.Path)
	}
}

func TestLoad_ReadsOverridesFromEnv(t *testing.T) {
	t.Setenv("QUENTIN_AUTH_METHOD", "api_key")
	t.Setenv("QUENTIN_AUTH_API_KEY", "secret")
	t.Setenv("QUENTIN_SERVER_PORT", "9090")
	t.Setenv("QUENTIN_ORCHESTRATOR_DOWNLOAD_POLL_INTERVAL", "30s")

	cfg := Load()
	if cfg.Auth.Method != "api_key" || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected api_key auth with secret, got %+v", cfg.Auth)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected overridden port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Orchestrator.DownloadPollInterval != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %s", cfg.Orchestrator.DownloadPollInterval)
	}
}

func TestParseIndexers_SkipsMalformedEntries(t *testing.T) {
	got := parseIndexers("jackett|http://localhost:9117|key1|60;broken;nzbgeek|http://nzbgeek.example")
	if len(got) != 2 {
		t.Fatalf("expected 2 valid indexers, got %d: %+v", len(got), got)
	}
	if got[0].Name != "jackett" || got[0].Endpoint != "http://localhost:9117" || got[0].APIKey != "key1" || got[0].RequestsPerMinute != 60 {
		t.Fatalf("unexpected first indexer: %+v", got[0])
	}
	if got[1].Name != "nzbgeek" || got[1].RequestsPerMinute != 0 {
		t.Fatalf("unexpected second indexer: %+v", got[1])
	}
}

func TestParseLLMConfig_NilWhenProviderUnset(t *testing.T) {
	t.Setenv("QUENTIN_LLM_PROVIDER", "")
	if cfg := parseLLMConfig(); cfg != nil {
		t.Fatalf("expected nil LLM config when provider unset, got %+v", cfg)
	}
}

func TestParseLLMConfig_PopulatedWhenProviderSet(t *testing.T) {
	t.Setenv("QUENTIN_LLM_PROVIDER", "anthropic")
	t.Setenv("QUENTIN_LLM_MODEL", "claude")
	cfg := parseLLMConfig()
	if cfg == nil || cfg.Provider != "anthropic" || cfg.Model != "claude" {
		t.Fatalf("unexpected LLM config: %+v", cfg)
	}
}
