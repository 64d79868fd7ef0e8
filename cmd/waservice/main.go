// Command waservice boots the core's process-wide dependencies and holds
// the process open; it wires no HTTP handlers of its own beyond the
// Prometheus endpoint and Consul's health check, both observability
// surfaces rather than the transport/session layer this core attaches to.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jaydenbeard/wasubstrate/internal/authstate"
	"github.com/jaydenbeard/wasubstrate/internal/config"
	"github.com/jaydenbeard/wasubstrate/internal/events"
	"github.com/jaydenbeard/wasubstrate/internal/instance"
	"github.com/jaydenbeard/wasubstrate/internal/metrics"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

var logger = log.New(os.Stdout, "[WASERVICE] ", log.Ldate|log.Ltime|log.LUTC)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("ping database: %v", err)
	}
	if err := authstate.EnsureSchema(db); err != nil {
		logger.Fatalf("ensure authstate schema: %v", err)
	}
	if err := instance.EnsureSchema(db); err != nil {
		logger.Fatalf("ensure instance schema: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatalf("ping redis: %v", err)
	}
	defer redisClient.Close()

	bus := events.NewBus(redisClient)
	registry := instance.NewStore(db)

	svcRegistry, err := instance.NewServiceRegistry(cfg.ConsulURL, cfg.ConsulNodeID, metricsPort())
	if err != nil {
		logger.Fatalf("init consul registry: %v", err)
	}
	if err := svcRegistry.Register(); err != nil {
		logger.Printf("warning: consul registration failed: %v", err)
	} else {
		defer func() {
			if err := svcRegistry.Deregister(); err != nil {
				logger.Printf("warning: consul deregistration failed: %v", err)
			}
		}()
	}

	go serveMetrics()

	logger.Printf("wasubstrate core up - node %s, batch size %d, reconnect attempts %d",
		cfg.ConsulNodeID, cfg.BatchSize, cfg.ReconnectAttempts)

	// bus and registry are handed to per-instance managers as the
	// transport/session layer pairs and authenticates each instance; this
	// process only lists and counts known instances at startup.
	known, err := registry.List(context.Background())
	if err != nil {
		logger.Printf("warning: could not list known instances: %v", err)
	} else {
		logger.Printf("%d known instance(s) in registry", len(known))
	}
	_ = bus

	waitForShutdown()
	logger.Printf("shutting down")
}

func serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	addr := ":" + os.Getenv("METRICS_PORT")
	if addr == ":" {
		addr = ":8080"
	}
	logger.Printf("metrics/health listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("metrics server stopped: %v", err)
	}
}

func metricsPort() int {
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			return port
		}
	}
	return 8080
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
