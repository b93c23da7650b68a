// Command server runs the electoral commission service: commission
// lifecycle, the election ladder, the ballot ledger, and result
// certification behind one HTTP API.
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
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	authorityhandler "khural/internal/authority/handler"
	authoritymetrics "khural/internal/authority/metrics"
	authorityservice "khural/internal/authority/service"
	authoritystore "khural/internal/authority/store"
	ballothandler "khural/internal/ballot/handler"
	ballotmetrics "khural/internal/ballot/metrics"
	ballotservice "khural/internal/ballot/service"
	ballotstore "khural/internal/ballot/store"
	"khural/internal/election"
	electionhandler "khural/internal/election/handler"
	electionmetrics "khural/internal/election/metrics"
	electionservice "khural/internal/election/service"
	electionstore "khural/internal/election/store"
	"khural/internal/eligibility"
	"khural/internal/events"
	eventstore "khural/internal/events/store"
	eventworker "khural/internal/events/worker"
	httpapi "khural/internal/http"
	"khural/internal/platform/config"
	"khural/internal/platform/httpserver"
	"khural/internal/platform/logger"
	platformredis "khural/internal/platform/redis"
	id "khural/pkg/domain"
	"khural/pkg/platform/httputil"
	"khural/pkg/platform/middleware/auth"
	"khural/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	authorities authorityservice.Store
	elections   electionservice.ElectionStore
	candidacies *candidacyStores
	ballots     ballotservice.Store
	events      events.Store
	runner      tx.Runner
	health      func(ctx context.Context) error
}

// candidacyStores exists because the election and ballot services each
// depend on a different slice of the candidacy store.
type candidacyStores struct {
	electionservice.CandidacyStore
	ballotservice.CandidacyReader
}

// ListByElection disambiguates the method promoted by both embedded
// interfaces; both fields hold the same underlying store.
func (c *candidacyStores) ListByElection(ctx context.Context, electionID id.ElectionID) ([]*election.Candidacy, error) {
	return c.CandidacyStore.ListByElection(ctx, electionID)
}

func run(cfg config.Config, log *slog.Logger) error {
	st, closeStores, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("tally cache enabled", "ttl", cfg.Redis.TallyTTL)
	}

	// The scope hierarchy directory is service-local until the hierarchy
	// service exposes its registry.
	identity := eligibility.NewMemoryDirectory()
	hierarchy := eligibility.NewMemoryRegistry()
	gate := eligibility.NewGate(identity, hierarchy, st.ballots)

	publisher := events.NewPublisher(st.events)

	authoritySvc := authorityservice.New(
		st.authorities, cfg.Server.BootstrapPrincipal, st.runner, log, authoritymetrics.New())
	electionSvc := electionservice.New(
		st.elections, st.candidacies, st.ballots, authoritySvc, gate, hierarchy,
		publisher, st.runner, log, electionmetrics.New())

	var cacheClient *ballotservice.TallyCache
	if redisClient != nil {
		cacheClient = ballotservice.NewTallyCache(redisClient.Client, cfg.Redis.TallyTTL)
	}
	ballotSvc := ballotservice.New(
		st.ballots, st.elections, st.candidacies, gate, cacheClient,
		st.runner, log, ballotmetrics.New())

	router := httpapi.NewRouter(httpapi.Deps{
		Authority: authorityhandler.New(authoritySvc, log),
		Election:  electionhandler.New(electionSvc, log),
		Ballot:    ballothandler.New(ballotSvc, log),
		Validator: auth.NewJWTValidator(cfg.Server.JWTSigningKey),
		Logger:    log,
		Health:    healthRoute(st, redisClient),
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting khural server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()

		worker := eventworker.New(
			st.events, kafkaClient, cfg.Kafka.Topic, cfg.Kafka.OutboxPollInterval, log)
		g.Go(func() error {
			log.Info("starting outbox worker",
				"topic", cfg.Kafka.Topic,
				"interval", cfg.Kafka.OutboxPollInterval,
			)
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// buildStores selects the persistence backend: postgres when a DSN is
// configured, in-memory otherwise. The in-memory backend keeps local
// development and the test suites free of infrastructure.
func buildStores(cfg config.Config, log *slog.Logger) (*stores, func(), error) {
	if cfg.Postgres.DSN == "" {
		log.Info("no postgres DSN configured, using in-memory stores")
		candidacies := electionstore.NewMemoryCandidacies()
		return &stores{
			authorities: authoritystore.NewMemory(),
			elections:   electionstore.NewMemoryElections(),
			candidacies: &candidacyStores{CandidacyStore: candidacies, CandidacyReader: candidacies},
			ballots:     ballotstore.NewMemory(),
			events:      eventstore.NewMemory(),
			runner:      tx.NewMemoryRunner(),
			health:      func(context.Context) error { return nil },
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}

	candidacies := electionstore.NewPostgresCandidacies(db)
	return &stores{
		authorities: authoritystore.NewPostgres(db),
		elections:   electionstore.NewPostgresElections(db),
		candidacies: &candidacyStores{CandidacyStore: candidacies, CandidacyReader: candidacies},
		ballots:     ballotstore.NewPostgres(db),
		events:      eventstore.NewPostgres(db),
		runner:      tx.NewSQLRunner(db),
		health:      db.PingContext,
	}, func() { db.Close() }, nil
}

func healthRoute(st *stores, redisClient *platformredis.Client) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if err := st.health(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy", "reason": "postgres",
				})
				return
			}
			if redisClient != nil {
				if err := redisClient.Health(ctx); err != nil {
					httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
						"status": "unhealthy", "reason": "redis",
					})
					return
				}
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
}
