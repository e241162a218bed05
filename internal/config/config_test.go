package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("lakesage-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Schema.CatalogPath != "catalog.json" {
		t.Fatalf("Schema.CatalogPath = %q", cfg.Schema.CatalogPath)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Fatalf("Pipeline.MaxAttempts = %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.ExecTimeout != 30*time.Second {
		t.Fatalf("Pipeline.ExecTimeout = %v", cfg.Pipeline.ExecTimeout)
	}
	if cfg.Pipeline.PromptRowLimit != 50 {
		t.Fatalf("Pipeline.PromptRowLimit = %d", cfg.Pipeline.PromptRowLimit)
	}
	if cfg.LLM.Model != "gpt-5" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0 {
		t.Fatalf("LLM.Temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.History.Enabled {
		t.Fatal("History.Enabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"LAKESAGE_PROFILE": "prod"})
	cfg, err := Load("lakesage-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"LAKESAGE_HTTP_ADDR":                 ":9999",
		"LAKESAGE_SCHEMA_CATALOG_PATH":       "/etc/lakesage/catalog.json",
		"LAKESAGE_PIPELINE_MAX_ATTEMPTS":     "5",
		"LAKESAGE_PIPELINE_EXEC_TIMEOUT":     "45s",
		"LAKESAGE_LLM_MODEL":                 "gpt-4o-mini",
		"LAKESAGE_LLM_TEMPERATURE":           "0.2",
		"LAKESAGE_HISTORY_ENABLED":           "true",
		"LAKESAGE_HISTORY_DSN":               "postgres://history:secret@db:5432/history",
		"LAKESAGE_AUTH_REQUIRED":             "true",
		"LAKESAGE_AUTH_STATIC_KEYS":          "key-1:agent:ask",
		"LAKESAGE_OBJECTSTORE_BUCKET":        "salesforce-lake",
		"LAKESAGE_PIPELINE_PROMPT_ROW_LIMIT": "25",
	})
	cfg, err := Load("lakesage-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Schema.CatalogPath != "/etc/lakesage/catalog.json" {
		t.Fatalf("Schema.CatalogPath = %q", cfg.Schema.CatalogPath)
	}
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Fatalf("Pipeline.MaxAttempts = %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.ExecTimeout != 45*time.Second {
		t.Fatalf("Pipeline.ExecTimeout = %v", cfg.Pipeline.ExecTimeout)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Fatalf("LLM.Temperature = %v", cfg.LLM.Temperature)
	}
	if !cfg.History.Enabled {
		t.Fatal("History.Enabled should be true")
	}
	if cfg.ObjectStore.Bucket != "salesforce-lake" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if cfg.Pipeline.PromptRowLimit != 25 {
		t.Fatalf("Pipeline.PromptRowLimit = %d", cfg.Pipeline.PromptRowLimit)
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{"LAKESAGE_PROFILE": "staging"})
	if _, err := Load("lakesage-api", lookup); err == nil {
		t.Fatal("expected error for invalid profile")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":    {"LAKESAGE_HTTP_READ_TIMEOUT": "soon"},
		"bad bool":        {"LAKESAGE_AUTH_REQUIRED": "sometimes"},
		"bad int":         {"LAKESAGE_PIPELINE_MAX_ATTEMPTS": "three"},
		"bad float":       {"LAKESAGE_LLM_TEMPERATURE": "warm"},
		"bad log level":   {"LAKESAGE_LOG_LEVEL": "verbose"},
		"zero attempts":   {"LAKESAGE_PIPELINE_MAX_ATTEMPTS": "0"},
		"zero timeout":    {"LAKESAGE_PIPELINE_EXEC_TIMEOUT": "0s"},
		"empty catalog":   {"LAKESAGE_SCHEMA_CATALOG_PATH": ""},
		"empty http addr": {"LAKESAGE_HTTP_ADDR": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load("lakesage-api", mapLookup(env)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("lakesage-api", nil); err == nil {
		t.Fatal("expected error for nil lookup")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
