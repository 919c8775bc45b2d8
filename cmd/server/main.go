package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"auditflow/internal/audit/handler"
	"auditflow/internal/audit/metrics"
	"auditflow/internal/audit/ports"
	"auditflow/internal/audit/service/assignment"
	"auditflow/internal/audit/service/cascade"
	"auditflow/internal/audit/service/instantiate"
	"auditflow/internal/audit/service/retraining"
	"auditflow/internal/audit/service/scoring"
	"auditflow/internal/audit/store/memory"
	"auditflow/internal/audit/store/postgres"
	"auditflow/internal/enrichment"
	"auditflow/internal/events"
	httpapi "auditflow/internal/http"
	"auditflow/internal/identity"
	"auditflow/internal/notification"
	"auditflow/internal/platform/config"
	"auditflow/internal/platform/httpserver"
	"auditflow/internal/platform/logger"
	platformredis "auditflow/internal/platform/redis"
	"auditflow/internal/template"
)

// main wires stores, services, and the HTTP router, then runs the server
// until interrupted. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	stores, err := buildStores(ctx, cfg, log)
	if err != nil {
		fatal(log, "store setup failed", err)
	}

	resolverOpts := []template.ResolverOption{template.WithLogger(log)}
	if cfg.RedisURL != "" {
		client, err := platformredis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			fatal(log, "redis setup failed", err)
		}
		defer client.Close()
		resolverOpts = append(resolverOpts, template.WithCache(template.NewCache(client, cfg.TemplateCacheTTL)))
	}
	resolver, err := template.NewResolver(stores.classifier, stores.templates, resolverOpts...)
	if err != nil {
		fatal(log, "resolver setup failed", err)
	}

	sink, err := buildEventSink(cfg)
	if err != nil {
		fatal(log, "event sink setup failed", err)
	}
	publisher := events.NewPublisher(sink, events.WithLogger(log), events.WithAsyncBuffer(256))
	defer publisher.Close()

	m := metrics.New()

	engine, err := scoring.NewEngine(stores.checklists, stores.thresholds)
	if err != nil {
		fatal(log, "scoring setup failed", err)
	}
	retrainingSvc, err := retraining.New(stores.processes, stores.steps, stores.checklists,
		retraining.WithEvents(publisher), retraining.WithLogger(log))
	if err != nil {
		fatal(log, "retraining setup failed", err)
	}
	notifier, err := notification.New(notification.NewInMemorySender(), stores.identity,
		notification.WithLogger(log))
	if err != nil {
		fatal(log, "notification setup failed", err)
	}
	instantiateSvc, err := instantiate.New(stores.processes, stores.steps, stores.checklists, resolver,
		instantiate.WithEnrichment(enrichment.NewStaticLookup()),
		instantiate.WithEvents(publisher),
		instantiate.WithMetrics(m),
		instantiate.WithLogger(log))
	if err != nil {
		fatal(log, "instantiation setup failed", err)
	}
	assignmentSvc, err := assignment.New(stores.processes, stores.steps, stores.checklists, stores.identity,
		assignment.WithEvents(publisher),
		assignment.WithMetrics(m),
		assignment.WithLogger(log))
	if err != nil {
		fatal(log, "assignment setup failed", err)
	}
	cascadeSvc, err := cascade.New(stores.processes, stores.steps, stores.checklists, engine,
		cascade.WithRetraining(retrainingSvc),
		cascade.WithNotifier(notifier),
		cascade.WithEvents(publisher),
		cascade.WithMetrics(m),
		cascade.WithLogger(log))
	if err != nil {
		fatal(log, "cascade setup failed", err)
	}

	h := handler.New(instantiateSvc, assignmentSvc, cascadeSvc, retrainingSvc, log)
	srv := httpserver.New(cfg.Addr, httpapi.NewRouter(h))

	log.Info("starting auditflow", "addr", cfg.Addr, "postgres", cfg.PostgresURL != "", "kafka", len(cfg.KafkaBrokers) > 0)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
}

// storeSet groups every persistence collaborator so memory and Postgres modes
// swap in one place.
type storeSet struct {
	processes  ports.ProcessStore
	steps      ports.StepStore
	checklists ports.ChecklistStore
	thresholds ports.ThresholdStore
	templates  template.Store
	classifier template.Classifier
	identity   identity.Store
}

func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*storeSet, error) {
	if cfg.PostgresURL == "" {
		log.Warn("no postgres url configured, using in-memory stores")
		return &storeSet{
			processes:  memory.NewProcessStore(),
			steps:      memory.NewStepStore(),
			checklists: memory.NewChecklistStore(),
			thresholds: memory.NewThresholdStore(),
			templates:  template.NewInMemoryStore(),
			classifier: template.NewStaticClassifier(),
			identity:   identity.NewInMemoryStore(),
		}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, err
	}

	tmpl := template.NewPostgresStore(db)
	return &storeSet{
		processes:  postgres.NewProcessStore(db),
		steps:      postgres.NewStepStore(db),
		checklists: postgres.NewChecklistStore(db),
		thresholds: postgres.NewThresholdStore(db),
		templates:  tmpl,
		classifier: tmpl,
		identity:   identity.NewPostgresStore(db),
	}, nil
}

func buildEventSink(cfg config.Server) (events.Sink, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewInMemorySink(), nil
	}
	return events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
