package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/listing"
	"server/internal/middleware"
	"server/internal/providers/gemini"
	"server/internal/providers/openai"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	invoker, err := newInvoker(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure model provider")
	}
	pipeline, err := listing.NewPipeline(listing.Options{
		Invoker:      invoker,
		MaxImages:    cfg.MaxImages,
		ModelTimeout: cfg.ModelTimeout,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}

	store, err := storage.NewFileStore(cfg.StorageDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init photo storage")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
		defer func() {
			if closer, ok := resolver.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}()
	}

	app := handlers.NewApp(
		logger,
		repo.NewUserRepository(dbpool),
		repo.NewHistoryRepository(dbpool),
		pipeline,
		store,
		cfg.JWTSecret,
	)

	pages := handlers.NewPages(cfg.FrontendDir)
	if pages == nil {
		logger.Info().Str("dir", cfg.FrontendDir).Msg("frontend not found, serving API only")
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Pages:           pages,
		CountryLookup:   lookup,
		DefaultLang:     domain.LangRU,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s (provider=%s)", cfg.Port, cfg.ListingProvider)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newInvoker(cfg *infra.Config) (listing.Invoker, error) {
	switch cfg.ListingProvider {
	case "gemini":
		return gemini.NewClient(gemini.Options{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
	default:
		return openai.NewClient(openai.Options{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
		})
	}
}
