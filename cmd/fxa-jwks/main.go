// fxa-jwks sirve el documento público de claves del issuer.
//
// Solo lectura: las transiciones del ring las hace el operador con fxa-keys.
// La generación de claves (RSA, CPU-bound) nunca corre en este proceso, así
// el request path del JWKS no se bloquea.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/arku/fxa/internal/cache"
	memcache "github.com/arku/fxa/internal/cache/memory"
	redcache "github.com/arku/fxa/internal/cache/redis"
	"github.com/arku/fxa/internal/config"
	"github.com/arku/fxa/internal/http/handlers"
	"github.com/arku/fxa/internal/http/router"
	"github.com/arku/fxa/internal/jwks"
	"github.com/arku/fxa/internal/keys"
	"github.com/arku/fxa/internal/metrics"
	"github.com/arku/fxa/internal/observability/logger"
)

func main() {
	var (
		flagConfig  = flag.String("config", "configs/config.yaml", "ruta a config.yaml")
		flagEnvFile = flag.String("env-file", ".env", "ruta a .env (opcional)")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		_ = godotenv.Load(*flagEnvFile)
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		// logger todavía no inicializado
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "fxa-jwks",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	if err := metrics.Register(nil); err != nil {
		log.Fatal("metrics register", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatal("ring store", logger.Err(err))
	}
	defer cleanup()

	// Fatal de startup: un ring sin clave activa no sirve tráfico.
	ring, err := store.Load(ctx)
	if err != nil {
		log.Fatal("load ring", logger.Err(err))
	}
	if err := ring.Validate(); err != nil {
		log.Fatal("invalid key ring (bootstrap with fxa-keys prepare/activate)", logger.Err(err))
	}
	log.Info("key ring loaded", logger.KID(ring.Active.KID))

	cli, err := buildCache(ctx, cfg)
	if err != nil {
		log.Fatal("cache", logger.Err(err))
	}
	defer func() { _ = cli.Close() }()

	jwksCache := jwks.NewCache(store, cli, cfg.JWKSCacheTTL())

	h := router.New(router.Deps{
		JWKS:   handlers.NewJWKSHandler(jwksCache, cfg.Server.JWKSMaxAge),
		Health: handlers.NewHealthHandler(store),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serve", logger.Err(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", logger.Err(err))
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (keys.RingStore, func(), error) {
	masterKey, err := cfg.MasterKey()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Keys.Store {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Keys.DSN)
		if err != nil {
			return nil, nil, err
		}
		return keys.NewPGRingStore(pool, masterKey), pool.Close, nil
	default:
		s, err := keys.NewFSRingStore(cfg.Keys.Dir, masterKey)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Kind == "redis" {
		c := redcache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
	return memcache.New(cfg.JWKSCacheTTL()), nil
}
