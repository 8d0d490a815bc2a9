package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"portal-service/internal/apiclient"
	"portal-service/internal/config"
	"portal-service/internal/db"
	igrpc "portal-service/internal/grpc"
	"portal-service/internal/handlers"
	"portal-service/internal/metrics"
	"portal-service/internal/observability"
	"portal-service/internal/rabbitmq"
	"portal-service/internal/repositories"
	"portal-service/internal/session"
	"portal-service/internal/telemetry"
	"portal-service/internal/workspace"
)

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck(cfg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Printf("warning: JWT_SECRET not set; bearer tokens are trusted without signature checks")
	}

	store, closeStore := openSessionStore(cfg)
	defer closeStore()

	observability.InitMetrics(prometheus.DefaultRegisterer)
	metrics.RegisterConnectionMetrics()

	eventPublisher := rabbitmq.Dial(cfg.AMQPURL, cfg.EventsExchange)
	defer eventPublisher.Close()
	auditPublisher := rabbitmq.Dial(cfg.AMQPURL, cfg.LogsExchange)
	defer auditPublisher.Close()

	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.ServiceName, cfg.Environment)
	eventEmitter := telemetry.NewEventEmitter(eventPublisher, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})

	registry := workspace.NewRegistry(workspace.Options{
		APIBaseURL:       cfg.APIBaseURL,
		HTTPClient:       apiclient.NewHTTPClient(cfg.RequestTimeout),
		Store:            store,
		SuggestionsLimit: cfg.SuggestionsLimit,
		UsersLimit:       cfg.UsersLimit,
	})
	defer registry.Close()
	go registry.PruneEvery(ctx, time.Minute, cfg.WorkspaceIdle)

	grpcServer, err := igrpc.StartGRPCServer(ctx, cfg.GRPCAddr, cfg.ServiceName)
	if err != nil {
		log.Fatalf("failed to start gRPC server: %v", err)
	}

	var ready atomic.Bool
	r := handlers.NewRouter(handlers.RouterConfig{
		Registry:    registry,
		Store:       store,
		Audit:       auditEmitter,
		Events:      eventEmitter,
		JWTSecret:   cfg.JWTSecret,
		ServerURL:   cfg.ServerURL,
		CORSOrigins: cfg.CORSOrigins,
		Ready:       ready.Load,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	ready.Store(true)
	grpcServer.SetServing(true)
	log.Printf("%s listening on :%s (api %s)", cfg.ServiceName, cfg.Port, cfg.APIBaseURL)

	<-ctx.Done()

	ready.Store(false)
	grpcServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}

// openSessionStore falls back to memory when the configured database is unreachable.
// The returned func closes whatever was opened.
func openSessionStore(cfg config.Config) (session.TokenStore, func()) {
	noop := func() {}
	if cfg.SessionDriver == "memory" {
		return session.NewMemoryStore(), noop
	}
	database, err := db.Connect(cfg.SessionDriver, cfg.SessionDSN)
	if err != nil {
		log.Printf("warning: failed to open session store (%s): %v; sessions will not survive restarts", cfg.SessionDriver, err)
		return session.NewMemoryStore(), noop
	}
	repo := repositories.NewSessionRepository(database)
	if n, err := repo.Count(context.Background()); err == nil {
		log.Printf("session store %s holds %d saved sessions", cfg.SessionDriver, n)
	}
	return repo, func() {
		if err := database.Close(); err != nil {
			log.Printf("warning: failed to close session store: %v", err)
		}
	}
}

func healthcheck(cfg config.Config) int {
	addr := cfg.GRPCAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	client, err := igrpc.NewHealthClient(addr)
	if err != nil {
		log.Printf("healthcheck: %v", err)
		return 1
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	serving, err := client.Serving(ctx, cfg.ServiceName)
	if err != nil {
		log.Printf("healthcheck: %v", err)
		return 1
	}
	if !serving {
		log.Printf("healthcheck: %s not serving", cfg.ServiceName)
		return 1
	}
	return 0
}
