// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command a2a-server serves an echo agent over the enabled A2A protocols.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/go-a2a/a2a-server/internal/config"
	"github.com/go-a2a/a2a-server/internal/metrics"
	"github.com/go-a2a/a2a-server/server"
	"github.com/go-a2a/a2a-server/server/agent_execution"
	"github.com/go-a2a/a2a-server/server/grpcserver"
	"github.com/go-a2a/a2a-server/server/handler"
	"github.com/go-a2a/a2a-server/server/jsonrpc"
	"github.com/go-a2a/a2a-server/server/rest"
	"github.com/go-a2a/a2a-server/server/task"
)

const shutdownTimeout = 10 * time.Second

func init() {
	// Enable the use of the random pool for UUID generation.
	uuid.EnableRandPool()
}

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "a2a-server:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	if len(cfg.Custom) > 0 {
		logger.Debug("custom configuration", "custom", cfg.Custom)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	var (
		recorder       = metrics.Nop()
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusRecorder()
		recorder, metricsHandler = prom, prom.Handler()
	}

	agent := agent_execution.NewEchoAgent(cfg.Agent.Name, cfg.Agent.Description, cfg.Agent.Version)
	h := handler.NewDefaultRequestHandler(agent_execution.NewAgentExecutor(agent), store,
		handler.WithContextBuilder(agent_execution.NewSimpleRequestContextBuilderWithRelatedTasks(store)),
		handler.WithMetrics(recorder),
		handler.WithLogger(logger),
		handler.WithSyncTimeout(cfg.Execution.SyncTimeout),
		handler.WithPollTimeout(cfg.Execution.PollTimeout),
	)

	servers, err := newServers(cfg, h, agent, recorder, metricsHandler, logger)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return errors.New("no protocol is enabled")
	}

	b := server.NewBootstrap(servers,
		server.WithBootstrapLogger(logger),
		server.WithAgentInfo(agent.Name(), agent.Description()),
	)
	if err := b.Start(ctx); err != nil {
		logger.WarnContext(ctx, "some protocol servers failed to start", "error", err)
	}
	if len(b.Running()) == 0 {
		return errors.New("no protocol server is running")
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(b.Stop(shutdownCtx), h.Close(shutdownCtx))
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

func newStore(ctx context.Context, cfg config.StoreConfig) (task.TaskStore, error) {
	if cfg.Driver != config.DriverSQLite {
		return task.NewInMemoryTaskStore(), nil
	}

	db, err := task.OpenSQLite(cfg.DSN)
	if err != nil {
		return nil, err
	}
	store, err := task.NewDatabaseTaskStore(task.DatabaseTaskStoreConfig{DB: db, CreateTable: true})
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize task store: %w", err)
	}
	return store, nil
}

// newServers builds the enabled protocol servers in start order.
func newServers(cfg *config.Config, h handler.RequestHandler, agent server.AgentInfo, recorder metrics.Recorder, metricsHandler http.Handler, logger *slog.Logger) ([]server.ProtocolServer, error) {
	enabled := map[server.Protocol]config.ProtocolConfig{
		server.ProtocolREST:    cfg.REST,
		server.ProtocolGRPC:    cfg.GRPC,
		server.ProtocolJSONRPC: cfg.JSONRPC,
	}

	ports := make(map[server.Protocol]int, len(enabled))
	for p, pc := range enabled {
		if pc.Enabled {
			ports[p] = pc.Port
		}
	}
	interfaces := server.Interfaces(cfg.Server.Host, ports)

	var servers []server.ProtocolServer
	for _, p := range server.Protocols {
		pc := enabled[p]
		if !pc.Enabled {
			logger.Info("protocol server is disabled", "protocol", p.String())
			continue
		}
		opts := []server.Option{
			server.WithHost(cfg.Server.Host),
			server.WithPort(pc.Port),
			server.WithLogger(logger),
		}

		var (
			srv server.ProtocolServer
			err error
		)
		switch p {
		case server.ProtocolREST:
			srv, err = rest.NewServer(rest.Config{
				Handler:        h,
				Agent:          agent,
				Interfaces:     interfaces,
				Metrics:        recorder,
				MetricsHandler: metricsHandler,
				MetricsPath:    cfg.Metrics.Path,
			}, opts...)
		case server.ProtocolGRPC:
			srv, err = grpcserver.NewServer(grpcserver.Config{
				Handler:    h,
				Agent:      agent,
				Interfaces: interfaces,
				Metrics:    recorder,
			}, opts...)
		case server.ProtocolJSONRPC:
			srv, err = jsonrpc.NewServer(jsonrpc.Config{
				Handler:        h,
				Agent:          agent,
				Interfaces:     interfaces,
				Metrics:        recorder,
				MetricsHandler: metricsHandler,
				MetricsPath:    cfg.Metrics.Path,
			}, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("create %s server: %w", p, err)
		}
		servers = append(servers, srv)
	}
	return servers, nil
}
