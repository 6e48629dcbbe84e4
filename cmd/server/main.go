// Command server wires the identity registry and practice claim log behind
// a single HTTP API. Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"agritrust/internal/admin"
	"agritrust/internal/jwtauth"
	"agritrust/internal/ledger"
	"agritrust/internal/platform/config"
	"agritrust/internal/platform/httpserver"
	"agritrust/internal/platform/logger"
	"agritrust/internal/platform/middleware"
	platformredis "agritrust/internal/platform/redis"
	loghandler "agritrust/internal/practicelog/handler"
	logmetrics "agritrust/internal/practicelog/metrics"
	logmodels "agritrust/internal/practicelog/models"
	logservice "agritrust/internal/practicelog/service"
	logstore "agritrust/internal/practicelog/store"
	registrycache "agritrust/internal/registry/cache"
	registryhandler "agritrust/internal/registry/handler"
	registrymetrics "agritrust/internal/registry/metrics"
	registrymodels "agritrust/internal/registry/models"
	registryservice "agritrust/internal/registry/service"
	registrystore "agritrust/internal/registry/store"
	"agritrust/pkg/platform/audit"
	"agritrust/pkg/platform/audit/publisher"
	"agritrust/pkg/platform/audit/publishers/kafka"
	auditmemory "agritrust/pkg/platform/audit/store/memory"
	auditpostgres "agritrust/pkg/platform/audit/store/postgres"
	"agritrust/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := ledger.NewLogicalClock()
	bank := ledger.NewInMemoryLedger(cfg.LedgerSeed)

	stores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	// Audit pipeline: every event goes to the queryable store through the
	// async publisher; when Kafka is configured a second branch forwards
	// events to the broker through the worker inbox.
	auditSink, auditCleanup, auditWorker, err := buildAuditPipeline(ctx, cfg, log, stores.auditStore)
	if err != nil {
		return err
	}
	defer auditCleanup()

	registryOpts := []registryservice.Option{
		registryservice.WithAuditSink(auditSink),
		registryservice.WithMetrics(registrymetrics.New()),
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		registryOpts = append(registryOpts,
			registryservice.WithVerificationCache(
				registrycache.New(redisClient.Client, config.VerificationCacheTTL)))
		log.Info("verification cache enabled")
	}

	registry := registryservice.New(stores.registry, bank, clock, cfg.FeeAccount, registryOpts...)
	practiceLog := logservice.New(stores.practiceLog, registry, clock,
		logservice.WithAuditSink(auditSink),
		logservice.WithMetrics(logmetrics.New()),
	)

	tokens := jwtauth.New(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))

	registryhandler.New(registry, log, tokens).Register(router)
	loghandler.New(practiceLog, log, tokens).Register(router)
	if cfg.AdminToken != "" {
		admin.New(stores.auditStore, log, cfg.AdminToken).Register(router)
	}
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting agritrust server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if auditWorker != nil {
		group.Go(func() error { return auditWorker.Run(ctx) })
	}
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

type storeSet struct {
	registry    registryservice.Store
	practiceLog logservice.Store
	auditStore  audit.Store
	db          *sql.DB
}

func (s *storeSet) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// buildStores selects PostgreSQL-backed stores when a DSN is configured and
// in-memory stores otherwise. Initial role holders are seeded only when the
// settings do not exist yet.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*storeSet, error) {
	registrySettings := registrymodels.Settings{
		Owner:           cfg.Owner,
		Verifier:        cfg.Verifier,
		RegistrationFee: cfg.RegistrationFee,
	}
	logSettings := logmodels.Settings{
		Owner:     cfg.Owner,
		Moderator: cfg.Moderator,
	}

	if cfg.PostgresDSN == "" {
		return &storeSet{
			registry:    registrystore.NewInMemory(registrySettings),
			practiceLog: logstore.NewInMemory(logSettings),
			auditStore:  auditmemory.NewInMemoryStore(),
		}, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	for _, schema := range []string{registrystore.Schema, logstore.Schema, auditpostgres.Schema} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return nil, err
		}
	}

	registryPg := registrystore.NewPostgres(db)
	if err := registryPg.EnsureSettings(ctx, registrySettings); err != nil {
		db.Close()
		return nil, err
	}
	logPg := logstore.NewPostgresLog(db)
	if err := logPg.EnsureSettings(ctx, logSettings); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("postgres persistence enabled")
	return &storeSet{
		registry:    registryPg,
		practiceLog: logPg,
		auditStore:  auditpostgres.New(db),
		db:          db,
	}, nil
}

func buildAuditPipeline(ctx context.Context, cfg config.Server, log *slog.Logger, store audit.Store) (audit.Emitter, func(), *worker.Worker, error) {
	pub := publisher.NewPublisher(store, publisher.WithAsyncBuffer(cfg.AuditBufferSize))

	if len(cfg.KafkaBrokers) == 0 {
		return pub, func() { pub.Close() }, nil, nil
	}

	kafkaPub, err := kafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		pub.Close()
		return nil, nil, nil, err
	}

	inbox := make(chan audit.Event, cfg.AuditBufferSize)
	w := worker.NewWorker(kafkaPub, inbox)
	sink := audit.Tee(pub, worker.InboxEmitter(inbox))
	cleanup := func() {
		pub.Close()
		kafkaPub.Close()
	}
	log.Info("kafka audit publisher enabled", "topic", cfg.KafkaTopic)
	return sink, cleanup, w, nil
}
