package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ride-hail/internal/accounts"
	"github.com/example/ride-hail/internal/auth"
	"github.com/example/ride-hail/internal/config"
	"github.com/example/ride-hail/internal/eta"
	"github.com/example/ride-hail/internal/fanout"
	"github.com/example/ride-hail/internal/fare"
	"github.com/example/ride-hail/internal/geo"
	httpapi "github.com/example/ride-hail/internal/http"
	"github.com/example/ride-hail/internal/ingest"
	"github.com/example/ride-hail/internal/lifecycle"
	"github.com/example/ride-hail/internal/logging"
	"github.com/example/ride-hail/internal/maps"
	"github.com/example/ride-hail/internal/matcher"
	"github.com/example/ride-hail/internal/payments"
	"github.com/example/ride-hail/internal/registry"
	"github.com/example/ride-hail/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger("server", cfg.LogLevel)

	// storage: postgres when configured, memory otherwise
	var rideStore storage.RideStore
	var acctStore storage.AccountStore
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			if err := runMigrations(pg); err != nil {
				logger.Error("migrations failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		rideStore, acctStore = pg, pg
	} else {
		mem := storage.NewMemoryStore()
		rideStore, acctStore = mem, mem
		logger.Warn("PG_DSN not set, using in-memory storage")
	}

	var g geo.Geo
	if cfg.RedisAddr != "" {
		g = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		g = geo.NewIndex()
		logger.Warn("REDIS_ADDR not set, using in-memory geo index")
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
	}

	var router eta.Client
	if cfg.OSRMEndpoint != "" {
		router = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}

	var mapsClient maps.Client
	if cfg.MapsEndpoint != "" {
		mapsClient = maps.NewHTTPClient(cfg.MapsEndpoint)
	} else {
		logger.Error("MAPS_ENDPOINT must be set")
		os.Exit(1)
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	reg := registry.New()
	notify := fanout.New(reg, logger)
	rank := &matcher.Service{
		Geo:             g,
		DefaultSpeedMps: cfg.DefaultSpeedMps,
		TopN:            cfg.OfferTopN,
		ETAClient:       router,
		ETACache:        eta.NewCache(cfg.QuoteTTL),
	}
	fares := &fare.Service{
		Geocoder:        mapsClient,
		Router:          router,
		Rates:           fare.DefaultRates(),
		DefaultSpeedMps: cfg.DefaultSpeedMps,
	}
	coord := lifecycle.NewCoordinator(rideStore, fares, fare.NewQuoteCache(cfg.QuoteTTL), rank, notify, logger)
	if cfg.StripeAPIKey != "" {
		coord.Payments = payments.NewStripeClient(cfg.StripeAPIKey)
		coord.Riders = acctStore
	}

	srv := httpapi.NewServer(cfg, logger, httpapi.Deps{
		Coordinator: coord,
		Accounts:    &accounts.Service{Store: acctStore, Tokens: tokens},
		Tokens:      tokens,
		Maps:        mapsClient,
		Geo:         g,
		Kafka:       kp,
		Registry:    reg,
		Store:       acctStore,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ride-hail listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped cleanly")
}

func runMigrations(pg *storage.PostgresStore) error {
	entries, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		return err
	}
	for _, path := range entries {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := pg.DB().Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}
