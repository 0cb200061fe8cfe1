package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "TMDB_BEARER_TOKEN", "TMDB_API_BASE", "STORAGE_BACKEND",
		"SEARCH_DEBOUNCE", "METRICS_ENABLED", "FAVORITES_KEY", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if len(cfg.TMDBTokens) != 0 {
		t.Fatalf("expected no tokens, got %v", cfg.TMDBTokens)
	}
	if cfg.SearchDebounce != 500*time.Millisecond {
		t.Fatalf("expected 500ms debounce, got %v", cfg.SearchDebounce)
	}
	if cfg.FavoritesKey != "movie_app_favorites" {
		t.Fatalf("unexpected favorites key %q", cfg.FavoritesKey)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Fatalf("expected any origin by default, got %v", cfg.CORSOrigins)
	}
	if cfg.StorageBackend != "redis" || !cfg.MetricsEnabled {
		t.Fatalf("unexpected backend defaults: %q metrics=%v", cfg.StorageBackend, cfg.MetricsEnabled)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TMDB_BEARER_TOKEN", " a , ,b ")
	t.Setenv("TMDB_API_BASE", "http://example.test/3/")
	t.Setenv("STORAGE_BACKEND", "SQLite")
	t.Setenv("SEARCH_DEBOUNCE", "250ms")
	t.Setenv("SESSION_IDLE_TTL", "nonsense")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://popcorn.test, http://localhost:5173")

	cfg := Load()
	if len(cfg.TMDBTokens) != 2 || cfg.TMDBTokens[0] != "a" || cfg.TMDBTokens[1] != "b" {
		t.Fatalf("unexpected tokens %v", cfg.TMDBTokens)
	}
	if cfg.TMDBBaseURL != "http://example.test/3" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.TMDBBaseURL)
	}
	if cfg.StorageBackend != "sqlite" {
		t.Fatalf("expected sqlite, got %q", cfg.StorageBackend)
	}
	if cfg.SearchDebounce != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", cfg.SearchDebounce)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Fatalf("invalid duration should fall back to default, got %v", cfg.SessionIdleTTL)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("expected metrics disabled")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://localhost:5173" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
}
