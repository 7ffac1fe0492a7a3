package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/resumeforge/internal/ai"
	"github.com/geocoder89/resumeforge/internal/auth"
	"github.com/geocoder89/resumeforge/internal/billing"
	"github.com/geocoder89/resumeforge/internal/breaker"
	"github.com/geocoder89/resumeforge/internal/config"
	"github.com/geocoder89/resumeforge/internal/db"
	httpx "github.com/geocoder89/resumeforge/internal/http"
	"github.com/geocoder89/resumeforge/internal/http/middlewares"
	"github.com/geocoder89/resumeforge/internal/observability"
	"github.com/geocoder89/resumeforge/internal/pdf"
	"github.com/geocoder89/resumeforge/internal/redisclient"
	"github.com/geocoder89/resumeforge/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "resumeforge-api", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.DBURL,
		MaxConns:        cfg.DB.MaxConns,
		MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
	})
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	usersRepo := postgres.NewUsersRepo(pool, prom)
	tokensRepo := postgres.NewRefreshTokensRepo(pool, prom)
	resumesRepo := postgres.NewResumesRepo(pool, prom)

	if err := db.EnsureAdminUser(ctx, usersRepo, cfg, log); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	// Redis is optional: without it rate limits and webhook dedupe stay in process.
	var (
		rateStore middlewares.WindowStore = middlewares.NewMemoryWindowStore()
		deduper   billing.Deduper         = billing.NewMemoryDeduper(billing.DedupeTTL)
	)
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, using in-process stores", "addr", cfg.RedisAddr, "err", err)
		} else {
			defer rdb.Close()
			rateStore = middlewares.NewRedisWindowStore(rdb.Raw())
			deduper = billing.NewRedisDeduper(rdb.Raw(), billing.DedupeTTL)
		}
	}

	jwtManager := auth.NewManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	tokens := auth.NewTokenService(jwtManager, tokensRepo, usersRepo, auth.TokenServiceConfig{
		StoreTTL:      cfg.RefreshStoreTTL,
		SingleSession: cfg.SessionPolicy == config.SessionPolicySingle,
	})
	authSvc := auth.NewService(usersRepo, tokens, log, prom)

	outbound := observability.NewHTTPClient(30 * time.Second)

	prices := billing.NewPriceTable(cfg.StripeBasicPriceID, cfg.StripeProPriceID)
	gateway := billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, outbound)
	reconciler := billing.NewReconciler(usersRepo, gateway, prices, deduper, log)

	summarizer := ai.NewSummarizer(outbound, ai.Config{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.OpenAIModel,
	}, prom)
	renderer := pdf.NewRenderer(outbound, cfg.PDFRendererURL, breaker.Config{Timeout: 20 * time.Second}, prom)

	router := httpx.NewRouter(httpx.Deps{
		Log:            log,
		Prom:           prom,
		Env:            cfg.Env,
		Auth:           authSvc,
		JWT:            jwtManager,
		Users:          usersRepo,
		Resumes:        resumesRepo,
		Summarize:      summarizer,
		Renderer:       renderer,
		Checkout:       gateway,
		Prices:         prices,
		Verifier:       gateway,
		Billing:        reconciler,
		RateLimitStore: rateStore,
		CORSOrigins:    cfg.CORSOrigins,
		SecureCookie:   cfg.IsProd(),
		Ping:           usersRepo.Ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
