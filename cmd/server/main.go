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
	"golang.org/x/sync/errgroup"

	"facturasv/internal/contingency"
	"facturasv/internal/dte/lifecycle"
	"facturasv/internal/dte/service"
	"facturasv/internal/dte/signer"
	"facturasv/internal/dte/validator"
	"facturasv/internal/mh"
	"facturasv/internal/platform/config"
	"facturasv/internal/platform/httpserver"
	"facturasv/internal/platform/kafka"
	"facturasv/internal/platform/logger"
	"facturasv/internal/platform/metrics"
	platformredis "facturasv/internal/platform/redis"
	httptransport "facturasv/internal/transport/http"
	"facturasv/pkg/domain"
)

// replayerFunc lets main hand the drainer a replay hook before the service
// exists; the two reference each other and the closure breaks the cycle.
type replayerFunc func(ctx context.Context, id domain.GenerationCode) (mh.Outcome, error)

func (f replayerFunc) Replay(ctx context.Context, id domain.GenerationCode) (mh.Outcome, error) {
	return f(ctx, id)
}

// main wires the issuance pipeline and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schemas, err := validator.NewSchemaSource(validator.DefaultSchemaSet())
	if err != nil {
		return err
	}
	v := validator.New(schemas, cfg.Environment)

	var cred *signer.Credential
	if cfg.Signer.KeystorePath == "" {
		log.Warn("no signing keystore configured, documents will park in signing_failed")
	} else {
		cred, err = signer.LoadKeystore(cfg.Signer.KeystorePath, cfg.Signer.KeystorePassword)
		if err != nil {
			return err
		}
	}
	sg := signer.New(cred, cfg.Signer.MaxDocumentBytes)

	checks := make(map[string]httptransport.HealthCheck)

	var store lifecycle.Store
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		store = lifecycle.NewPostgresStore(db)
		checks["postgres"] = db.PingContext
	} else {
		log.Warn("no postgres DSN configured, lifecycle records are in-memory only")
		store = lifecycle.NewInMemoryStore()
	}

	var events lifecycle.EventSink
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := kafka.NewPublisher(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.EnsureTopic(ctx); err != nil {
			return err
		}
		events = pub
	} else {
		log.Warn("no kafka brokers configured, lifecycle audit trail disabled")
	}

	var queue contingency.Queue
	rc, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
		queue = contingency.NewRedisQueue(rc.Client)
		checks["redis"] = rc.Health
	} else {
		log.Warn("no redis configured, contingency queue is in-memory only")
		queue = contingency.NewInMemoryQueue()
	}

	client := mh.NewClient(cfg.MH, cfg.Environment, nil, log, m)
	machine := lifecycle.NewMachine(store, log, m, events)

	var svc *service.Service
	replay := replayerFunc(func(ctx context.Context, id domain.GenerationCode) (mh.Outcome, error) {
		return svc.Replay(ctx, id)
	})
	drainer := contingency.NewDrainer(queue, replay, client, sg, cfg.Environment,
		cfg.ContingencyProbeInterval, log, m)
	svc = service.New(v, sg, machine, client, drainer, log, m)

	router := chi.NewRouter()
	httptransport.New(svc, drainer, cfg.Environment, log, checks).Register(router)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting facturasv",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"probe_interval", cfg.ContingencyProbeInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return drainer.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
