package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"tutorchat/internal/retention"
	"tutorchat/pkg/api"
	"tutorchat/pkg/auth"
	"tutorchat/pkg/banner"
	"tutorchat/pkg/chat"
	"tutorchat/pkg/config"
	"tutorchat/pkg/llm"
	"tutorchat/pkg/logger"
	"tutorchat/pkg/shutdown"
	"tutorchat/pkg/store"
	"tutorchat/pkg/telemetry"
	"tutorchat/pkg/validation"
)

func main() {
	// build metadata - set via ldflags during build/release
	var (
		version   = "dev"
		commit    = "none"
		buildDate = "unknown"
	)
	_ = godotenv.Load(".env")
	flags := config.ParseConfigFlags()

	eff, err := config.Effective(flags)
	if err != nil {
		logger.InitWithLevel("")
		shutdown.Abort("config load failed", err, "", 0)
	}
	cfg := eff.Config
	logger.InitWithLevel(cfg.Logging.Level)

	if err := validation.ValidateConfig(eff); err != nil {
		shutdown.Abort("invalid configuration", err, eff.DBPath, 0)
	}

	st, err := store.Open(cfg.Storage, eff.DBPath)
	if err != nil {
		shutdown.Abort("failed to open store", err, eff.DBPath, 0)
	}

	verifier, err := auth.NewVerifier(cfg.Auth, cfg.Storage.Supabase)
	if err != nil {
		shutdown.Abort("failed to build verifier", err, eff.DBPath, 0)
	}

	engine := chat.NewEngine(chat.Options{
		Store:           st,
		Inference:       llm.New(cfg.Gateway),
		Catalog:         cfg.Catalog(),
		SystemPrompt:    cfg.SystemPrompt(),
		MaxUtteranceLen: cfg.Chat.MaxUtteranceLen,
	})

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	stopRetention, err := retention.Start(ctx, cfg.Retention, st)
	if err != nil {
		shutdown.Abort("failed to start retention", err, eff.DBPath, 0)
	}

	verStr := version
	if commit != "none" {
		verStr = verStr + " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr = verStr + " @ " + buildDate
	}
	banner.PrintWithEff(eff, verStr)

	router := api.NewRouter(engine, st.Ready)
	router.Handle("/metrics", promhttp.Handler())
	router.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	router.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	secCfg := auth.SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    cfg.Security.IPWhitelist,
	}
	wrapped := auth.AuthenticateRequestMiddleware(secCfg, verifier)(telemetry.Middleware(router))

	srv := &http.Server{
		Addr:    eff.Addr,
		Handler: wrapped,
		// no write timeout: SSE responses stay open for the stream's lifetime
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		cert := cfg.Server.TLS.CertFile
		key := cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errc <- srv.ListenAndServeTLS(cert, key)
			return
		}
		errc <- srv.ListenAndServe()
	}()
	logger.Info("server_started", "addr", eff.Addr, "version", verStr)

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			shutdown.Abort("server failed", err, eff.DBPath, 0)
		}
	case <-ctx.Done():
	}

	// graceful drain: in-flight streams get a bounded window to finish
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	stopRetention()
	if err := st.Close(); err != nil {
		logger.Error("store_close_error", "error", err)
	}
	logger.Info("server_stopped")
}
