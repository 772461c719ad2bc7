package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/config"
	"plannersuite.org/internal/httpapi"
	"plannersuite.org/internal/obs"
	"plannersuite.org/internal/ratelimit"
	"plannersuite.org/internal/schedule"
	"plannersuite.org/internal/store/pg"
	"plannersuite.org/internal/tenant"
)

var version = "0.3.1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; stderr is all we have.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := obs.NewLogger(cfg.Env, cfg.LogLevel)
	obs.Init()

	store, err := pg.Open(cfg.DatabaseDSN, cfg.StoreTimeout)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("parse redis url")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	} else {
		log.Warn("no redis configured; rate limits are per-process and logout revocation is version-only")
	}

	codec, err := auth.NewCodec(cfg.AuthSecret, auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		log.WithError(err).Fatal("auth codec")
	}

	loginLimiter := ratelimit.New("login", ratelimit.Login, redisClient, log)
	registerLimiter := ratelimit.New("register_tenant", ratelimit.TenantRegistration, redisClient, log)
	resetLimiter := ratelimit.New("password_reset", ratelimit.PasswordReset, redisClient, log)

	api := httpapi.New(httpapi.Config{
		Log:        log,
		Dev:        !cfg.IsProduction(),
		TrustProxy: cfg.TrustProxy,
		Version:    version,
		Stores:     httpapi.Stores{Tenants: store, Registrar: store},
		Resolver:   tenant.NewResolver(store, log),
		Codec:      codec,
		Loader:     auth.NewLoader(store, log),
		Auth:       auth.NewService(store, codec, log),
		Planner:    schedule.NewService(store, log),
		Blacklist:  ratelimit.NewBlacklist(redisClient, log),
		Limiters: httpapi.Limiters{
			Login:              loginLimiter,
			TenantRegistration: registerLimiter,
			PasswordReset:      resetLimiter,
		},
		Probe: store,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.WithField("addr", cfg.Addr).WithField("version", version).Info("starting plannersuite-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("stopped")
}
