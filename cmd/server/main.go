package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"popcorn-grinder-service/internal/config"
	"popcorn-grinder-service/internal/favorites"
	"popcorn-grinder-service/internal/handler"
	"popcorn-grinder-service/internal/middleware"
	"popcorn-grinder-service/internal/preference"
	"popcorn-grinder-service/internal/repository"
	"popcorn-grinder-service/internal/service"
	"popcorn-grinder-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	// Load configuration
	cfg := config.Load()
	if cfg.GinMode == gin.DebugMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Info().
		Str("port", cfg.Port).
		Str("mode", cfg.GinMode).
		Str("storage", cfg.StorageBackend).
		Msg("🚀 Starting popcorn-grinder-service")

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize storage and metrics
	storage, metrics, closeAll := openStorage(cfg)
	defer closeAll()
	metrics.RecordServerStart(ctx)

	// Favorites are shared by every view
	favs := favorites.NewStore(storage, cfg.FavoritesKey)
	// 读取失败时不能以空集合启动，否则下一次写入会覆盖已保存的收藏
	if err := favs.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load favorites")
	}
	if err := favs.Watch(ctx); err != nil {
		log.Warn().Err(err).Msg("Favorites change notifications unavailable")
	}
	log.Info().Int("count", favs.Count()).Msg("⭐ Favorites loaded")

	themes := preference.NewThemeStore(storage, cfg.DefaultTheme)

	// Initialize services
	tmdbService := service.NewTMDBService(service.TMDBConfig{
		Tokens:       cfg.TMDBTokens,
		BaseURL:      cfg.TMDBBaseURL,
		SearchPath:   cfg.TMDBSearchPath,
		DiscoverPath: cfg.TMDBDiscoverPath,
		ImageBase:    cfg.TMDBImageBase,
		Language:     cfg.TMDBLanguage,
	})
	if tmdbService.IsConfigured() {
		log.Info().Int("tokens", tmdbService.TokenCount()).Msg("🎬 TMDB service enabled")
	} else {
		log.Warn().Msg("⚠️  TMDB_BEARER_TOKEN not set, upstream requests will be rejected")
	}

	// 类型目录在后台加载，失败时保持为空
	genres := service.NewGenreCatalog()
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		genres.Load(loadCtx, tmdbService)
	}()

	sessions := session.NewManager(tmdbService, metrics, cfg.SearchDebounce, cfg.SessionIdleTTL)
	go sessions.Run(ctx)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessions, favs, tmdbService, genres)
	favoritesHandler := handler.NewFavoritesHandler(favs, tmdbService, genres)
	themeHandler := handler.NewThemeHandler(themes)
	genreHandler := handler.NewGenreHandler(genres)
	adminHandler := handler.NewAdminHandler(tmdbService, genres, sessions, favs, metrics, cfg.StorageBackend)

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes - 公开访问
	api := r.Group("/api/v1")
	{
		api.GET("/status", adminHandler.GetStatus)
		api.GET("/genres", genreHandler.GetGenres)

		// 首页会话：查询、筛选、无限滚动
		api.POST("/sessions", sessionHandler.CreateSession)
		api.GET("/sessions/:id", sessionHandler.GetSession)
		api.DELETE("/sessions/:id", sessionHandler.DeleteSession)
		api.PUT("/sessions/:id/filters", sessionHandler.SetFilters)
		api.DELETE("/sessions/:id/filters", sessionHandler.ClearFilters)
		api.POST("/sessions/:id/search", sessionHandler.Search)
		api.POST("/sessions/:id/advance", sessionHandler.Advance)

		// 收藏
		api.GET("/favorites", favoritesHandler.ListFavorites)
		api.GET("/favorites/events", favoritesHandler.Events)
		api.POST("/favorites/toggle", favoritesHandler.ToggleFavorite)
		api.GET("/favorites/:id", favoritesHandler.IsFavorite)
		api.DELETE("/favorites/:id", favoritesHandler.RemoveFavorite)

		// 主题
		api.GET("/theme", themeHandler.GetTheme)
		api.PUT("/theme", themeHandler.SetTheme)
		api.POST("/theme/toggle", themeHandler.ToggleTheme)
	}

	// Admin routes - 需要认证（如果配置了 ADMIN_API_KEY）
	admin := r.Group("/api/v1")
	admin.Use(middleware.AdminAuth(cfg.AdminAPIKey))
	{
		admin.GET("/analytics", adminHandler.GetAnalytics)
		admin.GET("/analytics/endpoint", adminHandler.GetEndpointStats)
		admin.DELETE("/analytics", adminHandler.ResetAnalytics)
	}

	// 日志输出认证状态
	if cfg.AdminAPIKey != "" {
		log.Info().Msg("🔐 Admin API authentication enabled")
	} else {
		log.Warn().Msg("⚠️  ADMIN_API_KEY not set, analytics endpoints are open")
	}

	// Create HTTP server with graceful shutdown support
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		// request contexts end with ctx, which closes open event streams
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("🌐 Server listening")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server...")

	// SSE streams, the session janitor and the favorites watch end with ctx
	stop()

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("👋 Server exited")
}

// openStorage picks the storage backend. Metrics always live in Redis; with
// the sqlite backend they are recorded only if Redis is reachable.
func openStorage(cfg *config.Config) (repository.Storage, *repository.Metrics, func()) {
	switch cfg.StorageBackend {
	case "sqlite":
		storage, err := repository.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("Failed to open SQLite storage")
		}
		closers := []func() error{storage.Close}

		var metrics *repository.Metrics
		if cfg.MetricsEnabled {
			if rs, err := repository.NewRedisStorage(cfg.RedisURL); err != nil {
				log.Warn().Err(err).Msg("Redis unavailable, metrics disabled")
			} else {
				metrics = repository.NewMetrics(rs.Client())
				closers = append(closers, rs.Close)
				log.Info().Msg("📊 Metrics enabled")
			}
		}
		return storage, metrics, closeFuncs(closers)

	case "redis":
		storage, err := repository.NewRedisStorage(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		var metrics *repository.Metrics
		if cfg.MetricsEnabled {
			metrics = repository.NewMetrics(storage.Client())
			log.Info().Msg("📊 Metrics enabled")
		}
		return storage, metrics, closeFuncs([]func() error{storage.Close})

	default:
		log.Fatal().Str("backend", cfg.StorageBackend).Msg("Unknown STORAGE_BACKEND, use redis or sqlite")
		return nil, nil, nil
	}
}

func closeFuncs(closers []func() error) func() {
	return func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("Failed to close storage")
			}
		}
	}
}
