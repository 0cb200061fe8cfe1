package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the service
type Config struct {
	Port    string
	GinMode string

	TMDBTokens       []string // 支持多个 Bearer Token 轮询
	TMDBBaseURL      string
	TMDBSearchPath   string
	TMDBDiscoverPath string
	TMDBImageBase    string
	TMDBLanguage     string

	StorageBackend string // redis | sqlite
	RedisURL       string
	SQLitePath     string
	FavoritesKey   string
	DefaultTheme   string

	SearchDebounce time.Duration
	SessionIdleTTL time.Duration
	MetricsEnabled bool
	AdminAPIKey    string
	CORSOrigins    []string // 为空表示允许任意来源
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		TMDBTokens:       splitList(os.Getenv("TMDB_BEARER_TOKEN")), // 支持多个 Token 轮询
		TMDBBaseURL:      strings.TrimRight(getEnv("TMDB_API_BASE", "https://api.themoviedb.org/3"), "/"),
		TMDBSearchPath:   getEnv("TMDB_SEARCH_MOVIE", "/search/movie"),
		TMDBDiscoverPath: getEnv("TMDB_DISCOVER_MOVIE", "/discover/movie"),
		TMDBImageBase:    getEnv("TMDB_IMAGE_BASE", "https://image.tmdb.org/t/p/w500"),
		TMDBLanguage:     getEnv("TMDB_LANGUAGE", "en-US"),
		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", "redis")),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		SQLitePath:       getEnv("SQLITE_PATH", "popcorn.db"),
		FavoritesKey:     getEnv("FAVORITES_KEY", "movie_app_favorites"),
		DefaultTheme:     getEnv("DEFAULT_THEME", "light"),
		SearchDebounce:   getDuration("SEARCH_DEBOUNCE", 500*time.Millisecond),
		SessionIdleTTL:   getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		MetricsEnabled:   getBool("METRICS_ENABLED", true),
		AdminAPIKey:      os.Getenv("ADMIN_API_KEY"),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

// splitList splits a comma-separated value, dropping blanks
func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid bool, using default")
		return defaultValue
	}
	return b
}
