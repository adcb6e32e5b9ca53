package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carebridge/internal/account"
	"carebridge/internal/audit"
	auditmemory "carebridge/internal/audit/store/memory"
	identitystore "carebridge/internal/identity/store"
	identitymemory "carebridge/internal/identity/store/memory"
	identitypostgres "carebridge/internal/identity/store/postgres"
	"carebridge/internal/idp"
	"carebridge/internal/notify"
	"carebridge/internal/platform/config"
	"carebridge/internal/platform/httpserver"
	"carebridge/internal/platform/kafka"
	"carebridge/internal/platform/logger"
	"carebridge/internal/platform/metrics"
	"carebridge/internal/platform/postgres"
	"carebridge/internal/platform/ratelimit"
	platformredis "carebridge/internal/platform/redis"
	"carebridge/internal/provision"
	provisionmetrics "carebridge/internal/provision/metrics"
	"carebridge/internal/relation"
	relationmetrics "carebridge/internal/relation/metrics"
	sessionstore "carebridge/internal/session/store"
	sessionmemory "carebridge/internal/session/store/memory"
	sessionredis "carebridge/internal/session/store/redis"
	"carebridge/internal/storage"
	"carebridge/internal/subscription"
	httptransport "carebridge/internal/transport/http"
)

// main wires the dependency graph and owns the server lifecycle. Unconfigured
// backends fall back to in-memory implementations so a development instance
// runs with no infrastructure at all.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var identities identitystore.Store
	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		pgStore := identitypostgres.New(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("identity schema migration failed", "error", err)
			os.Exit(1)
		}
		identities = pgStore
	} else {
		log.Warn("postgres not configured, using in-memory identity store")
		identities = identitymemory.New()
	}

	var drafts sessionstore.Store
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		drafts = sessionredis.New(redisClient)
	} else {
		log.Warn("redis not configured, using in-memory draft store")
		drafts = sessionmemory.New()
	}

	var auditPublisher account.AuditPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		if err := producer.EnsureTopics(ctx, audit.Topics...); err != nil {
			log.Error("audit topic bootstrap failed", "error", err)
			os.Exit(1)
		}
		auditPublisher = audit.NewKafkaPublisher(producer, log)
	} else {
		log.Warn("kafka not configured, audit events stay in memory")
		auditPublisher = audit.NewPublisher(auditmemory.NewInMemoryStore())
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notify.URL != "" {
		notifier = notify.NewHTTPNotifier(cfg.Notify.URL)
	}

	provider := idp.New(idp.Config{
		BaseURL:      cfg.Provider.BaseURL,
		TokenURL:     cfg.Provider.TokenURL,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		Scope:        cfg.Provider.Scope,
		Issuer:       cfg.Provider.Issuer,
	}, idp.WithLogger(log))

	subscriptions := subscription.New(subscription.Config{
		BaseURL: cfg.Subscription.BaseURL,
		APIKey:  cfg.Subscription.APIKey,
	}, subscription.WithLogger(log))

	orchestrator := provision.New(provider, subscriptions, identities,
		provision.WithLogger(log),
		provision.WithMetrics(provisionmetrics.New()),
		provision.WithAuditPublisher(auditPublisher),
	)
	engine := relation.New(identities,
		relation.WithLogger(log),
		relation.WithMetrics(relationmetrics.New()),
	)

	accounts := account.New(orchestrator, engine, identities, drafts,
		storage.NewMemoryContainerManager(),
		account.WithLogger(log),
		account.WithNotifier(notifier),
		account.WithAuditPublisher(auditPublisher),
	)

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, time.Minute)
	}

	handler := httptransport.NewHandler(accounts, log)
	router := httptransport.NewRouter(handler, metrics.New(), limiter)
	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("carebridge listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
