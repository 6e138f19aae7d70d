package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"licenseiq/internal/audit"
	"licenseiq/internal/controls"
	"licenseiq/internal/determine"
	determinehandler "licenseiq/internal/determine/handler"
	"licenseiq/internal/determine/idempotency"
	determinemetrics "licenseiq/internal/determine/metrics"
	determinestore "licenseiq/internal/determine/store"
	"licenseiq/internal/history"
	httpapi "licenseiq/internal/http"
	jwttoken "licenseiq/internal/jwt_token"
	"licenseiq/internal/masterdata"
	"licenseiq/internal/platform/config"
	"licenseiq/internal/platform/httpserver"
	"licenseiq/internal/platform/kafka"
	"licenseiq/internal/platform/logger"
	"licenseiq/internal/platform/postgres"
	platformredis "licenseiq/internal/platform/redis"
	"licenseiq/internal/rules"
	ruleshandler "licenseiq/internal/rules/handler"
	rulesstore "licenseiq/internal/rules/store"
	"licenseiq/internal/simulate"
	simulatehandler "licenseiq/internal/simulate/handler"
)

// main wires dependencies and owns the server lifecycle. Anything configured
// (Redis, Postgres, Kafka) is used; anything absent falls back to in-memory
// or no-op equivalents so a bare binary still serves.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	// Backing stores: Postgres for durable rules/decisions/history, Redis
	// for cross-node idempotency, memory otherwise.
	pool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}

	var ruleStore rules.Store
	var decisionStore determine.DecisionStore
	var historyStore history.Store
	if pool != nil {
		ruleStore = rulesstore.NewPostgresStore(pool)
		decisionStore = determinestore.NewPostgresDecisionStore(pool)
		historyStore = history.NewPostgresStore(pool)
	} else {
		ruleStore = rulesstore.NewInMemoryStore()
		decisionStore = determinestore.NewInMemoryDecisionStore()
		historyStore = history.NewInMemoryStore()
	}
	if pool == nil && redisClient != nil {
		// Postgres is the decision store of record; Redis only stands in for
		// it when no database is configured. With both, Redis serves claims.
		decisionStore = determinestore.NewRedisDecisionStore(redisClient, 30*24*time.Hour)
	}

	var claims determine.ClaimStore
	if redisClient != nil {
		claims = idempotency.NewRedisClaims(redisClient)
	} else {
		claims = idempotency.NewInMemoryClaims()
	}

	// Audit pipeline: durable store plus optional Kafka fan-out.
	auditOpts := []audit.Option{audit.WithLogger(log), audit.WithAsyncBuffer(256)}
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Error("kafka connect failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		auditOpts = append(auditOpts, audit.WithSink(audit.NewKafkaSink(producer)))
	}
	publisher := audit.NewPublisher(audit.NewInMemoryStore(), auditOpts...)
	defer publisher.Close()

	// Rule service, optionally seeded from a YAML pack.
	ruleService := rules.NewService(ruleStore, publisher, log, cfg.Engine.CanaryRegressionThreshold)
	if cfg.RulePackPath != "" {
		n, err := rules.LoadPackFile(cfg.RulePackPath, func(rule rules.Rule) error {
			return ruleStore.Put(ctx, rule)
		})
		if err != nil {
			log.Error("rule pack load failed", "path", cfg.RulePackPath, "error", err)
			os.Exit(1)
		}
		log.Info("rule pack loaded", "path", cfg.RulePackPath, "rules", n)
	}

	// Control lists.
	var snapshot *controls.Snapshot
	if cfg.ControlListPath != "" {
		snapshot, err = controls.LoadSnapshotFile(cfg.ControlListPath)
		if err != nil {
			log.Error("control list load failed", "path", cfg.ControlListPath, "error", err)
			os.Exit(1)
		}
		log.Info("control list loaded", "version", snapshot.Version)
	}
	controlSource := controls.StaticSource{Current: snapshot}

	// Master data. The in-memory store doubles as the dev backend; a real
	// deployment points the resolver at the ERP sync service.
	masterData := masterdata.NewInMemoryStore()
	if cfg.MasterDataPath != "" {
		n, err := masterdata.LoadSeedFile(cfg.MasterDataPath, masterData)
		if err != nil {
			log.Error("master data load failed", "path", cfg.MasterDataPath, "error", err)
			os.Exit(1)
		}
		log.Info("master data loaded", "path", cfg.MasterDataPath, "records", n)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "licenseiq", "licenseiq-api")
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	determineService := determine.NewService(
		masterData,
		ruleService,
		controlSource,
		decisionStore,
		claims,
		publisher,
		historyStore,
		log,
		determinemetrics.New(),
		cfg.Engine,
	)
	simulateService := simulate.NewService(
		masterData,
		ruleService,
		controlSource,
		historyStore,
		log,
		cfg.Engine,
	)

	health := map[string]httpapi.HealthChecker{}
	if redisClient != nil {
		health["redis"] = func() error { return redisClient.Health(context.Background()) }
	}
	if pool != nil {
		health["postgres"] = func() error { return pool.Ping(context.Background()) }
	}

	router := httpapi.NewRouter(log, health,
		determinehandler.New(determineService, log, jwtValidator),
		ruleshandler.New(ruleService, log, jwtValidator),
		simulatehandler.New(simulateService, log, jwtValidator),
	)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting licenseiq", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	if producer != nil {
		producer.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if pool != nil {
		pool.Close()
	}
}
