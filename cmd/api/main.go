package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/publish"
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
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer dbpool.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip resolver unavailable")
	}
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	httpClient := &http.Client{Timeout: cfg.HTTPWriteTimeout}
	tokens := credentials.NewEnvTokenProvider(
		publish.PlatformInstagram,
		publish.PlatformTikTok,
		publish.PlatformLinkedIn,
		publish.PlatformFacebook,
		publish.PlatformX,
		publish.PlatformPinterest,
	)
	coordinator := publish.NewCoordinator(tokens, logger,
		publish.NewInstagram(publish.InstagramOptions{
			BaseURL:         cfg.InstagramBaseURL,
			HTTPClient:      httpClient,
			Logger:          logger,
			PollInterval:    cfg.PublishPollEvery,
			MaxPollAttempts: cfg.PublishPollMax,
		}),
		publish.NewTikTok(publish.TikTokOptions{
			BaseURL:         cfg.TikTokBaseURL,
			HTTPClient:      httpClient,
			Logger:          logger,
			PollInterval:    cfg.PublishPollEvery,
			MaxPollAttempts: cfg.PublishPollMax,
		}),
		publish.NewLinkedIn(publish.LinkedInOptions{
			BaseURL:    cfg.LinkedInBaseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		publish.NewUnsupported(publish.PlatformFacebook),
		publish.NewUnsupported(publish.PlatformX),
		publish.NewUnsupported(publish.PlatformPinterest),
	)

	app := handlers.NewApp(repo.NewJobStore(dbpool), fileStore, coordinator, logger)

	router := httpapi.NewRouter(app, httpapi.Options{
		Verify:         credentials.NewStaticVerifier(cfg.AuthTokens),
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  lookup,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
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
