package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/imagetrace/backend/config"
	httpDelivery "github.com/imagetrace/backend/internal/delivery/http"
	"github.com/imagetrace/backend/internal/domain"
	"github.com/imagetrace/backend/internal/infrastructure/cache"
	"github.com/imagetrace/backend/internal/infrastructure/tracking"
	"github.com/imagetrace/backend/internal/infrastructure/vision"
	"github.com/imagetrace/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.Server.Environment)
	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Str("spam_mode", cfg.Spam.Mode).
		Msg("starting imagetrace backend v1.0.0")

	ctx := context.Background()

	resultCache, err := newCache(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise cache")
	}
	if closer, ok := resultCache.(io.Closer); ok {
		defer closer.Close()
	}
	log.Info().Dur("ttl", cfg.Cache.TTL).Msg("cache ready")

	// Left as a nil interface when tracking is disabled
	var tracker domain.SearchTracker
	if cfg.Tracking.Enabled {
		store, err := tracking.Open(ctx, cfg.Tracking.DSN, log)
		if err != nil {
			log.Fatal().Err(err).Str("dsn", cfg.Tracking.DSN).Msg("failed to open tracking store")
		}
		defer store.Close()
		tracker = store
		log.Info().Str("dsn", cfg.Tracking.DSN).Msg("search tracking enabled")
	}

	visionClient := vision.NewClient(vision.ClientConfig{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		MaxResults:     cfg.Vision.MaxResults,
		Timeout:        cfg.Vision.Timeout,
		RequestsPerMin: cfg.RateLimit.Vision,
		Logger:         log,
	})
	if cfg.Server.Environment == "development" {
		visionClient.SetDebug(true)
		log.Debug().Msg("vision client debug mode enabled")
	}

	pipeline := usecase.NewPipeline(usecase.PipelineConfig{
		Thresholds: usecase.Thresholds{
			Exact:         cfg.Matching.ExactThreshold,
			Partial:       cfg.Matching.PartialThreshold,
			Similar:       cfg.Matching.SimilarThreshold,
			EnableSimilar: cfg.Matching.EnableSimilar,
			PageFloor:     cfg.Matching.PageFloor,
		},
		Sites:    siteLists(cfg.Classifier),
		SpamMode: usecase.SpamMode(cfg.Spam.Mode),
		PageSize: cfg.Pagination.PageSize,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	log.Info().
		Float64("exact", cfg.Matching.ExactThreshold).
		Float64("partial", cfg.Matching.PartialThreshold).
		Bool("similar", cfg.Matching.EnableSimilar).
		Int("page_size", cfg.Pagination.PageSize).
		Msg("result pipeline configured")

	analysisService := usecase.NewAnalysisService(
		resultCache,
		visionClient,
		tracker,
		pipeline,
		usecase.NewSessionStore(cfg.Session.TTL, nil),
		log,
		usecase.AnalysisServiceConfig{
			CacheTTL:       cfg.Cache.TTL,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		},
	)

	handler := httpDelivery.NewHandler(analysisService, cfg.Server.MaxUploadBytes, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(environment string) zerolog.Logger {
	if environment == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func newCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, error) {
	if cfg.Cache.Type == "redis" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		redisCache, err := cache.NewRedisCache(pingCtx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	}
	return cache.NewMemoryCache(), nil
}

// siteLists applies configured overrides on top of the built-in lists
func siteLists(c config.ClassifierConfig) usecase.SiteLists {
	lists := usecase.DefaultSiteLists()
	if len(c.Marketplaces) > 0 {
		lists.Marketplaces = c.Marketplaces
	}
	if len(c.Social) > 0 {
		lists.Social = c.Social
	}
	if len(c.Ecommerce) > 0 {
		lists.Ecommerce = c.Ecommerce
	}
	return lists.WithExtraCDNs(c.CDNs)
}
