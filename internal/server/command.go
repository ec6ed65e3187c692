// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server provides the server subcommand.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-dataspace/dsp-engine/dsp"
	"github.com/go-dataspace/dsp-engine/dsp/audit"
	"github.com/go-dataspace/dsp-engine/dsp/callback"
	"github.com/go-dataspace/dsp-engine/dsp/catalog"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/engine"
	"github.com/go-dataspace/dsp-engine/dsp/policy"
	"github.com/go-dataspace/dsp-engine/dsp/shared"
	"github.com/go-dataspace/dsp-engine/internal/cfg"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sloghttp "github.com/samber/slog-http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	readHeaderTimeout = 2 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Command starts the engine: the protocol endpoints, the control API, the metrics endpoint
// and the health service.
var Command = &cobra.Command{
	Use:   "server",
	Short: "Start the dataspace protocol engine",
	Long: `Starts the engine, serving the dataspace protocol endpoints to the peers,
			the control API to local clients, and the metrics and health endpoints.`,
	RunE: run,
}

func init() {
	cfg.AddPersistentFlag(Command, dspAddress, "dsp-address", "address to serve the protocol on", "0.0.0.0")
	cfg.AddPersistentFlag(Command, dspPort, "dsp-port", "port to serve the protocol on", 8080)
	cfg.AddPersistentFlag(
		Command, dspExternalURL, "dsp-external-url", "URL where the peers reach this engine", "")

	cfg.AddPersistentFlag(Command, controlAddress, "control-address", "address of the control API", "127.0.0.1")
	cfg.AddPersistentFlag(Command, controlPort, "control-port", "port of the control API", 8081)

	cfg.AddPersistentFlag(Command, metricsAddress, "metrics-address", "address of the metrics endpoint", "0.0.0.0")
	cfg.AddPersistentFlag(Command, metricsPort, "metrics-port", "port of the metrics endpoint", 9091)

	cfg.AddPersistentFlag(Command, healthAddress, "health-address", "address of the gRPC health service", "0.0.0.0")
	cfg.AddPersistentFlag(Command, healthPort, "health-port", "port of the gRPC health service", 9092)

	cfg.AddPersistentFlag(
		Command, participantID, "participant-id", "participant ID used as assigner of agreements", "")
	cfg.AddPersistentFlag(
		Command, autoProgress, "auto-progress", "answer protocol messages without waiting for the control API", false)

	cfg.AddPersistentFlag(Command, storeInMemory, "store-in-memory", "keep all state in memory", false)
	cfg.AddPersistentFlag(Command, storePath, "store-path", "directory of the badger store", "/var/lib/dsp-engine")

	cfg.AddPersistentFlag(Command, catalogURL, "catalog-url", "URL of the catalog service", "")
	cfg.AddPersistentFlag(
		Command, requestTimeout, "request-timeout", "timeout of outbound HTTP requests", 10*time.Second)
	cfg.AddPersistentFlag(Command, auditURL, "audit-url", "URL to POST audit events to", "")

	cfg.AddPersistentFlag(Command, dispatchWorkers, "dispatch-workers", "amount of delivery workers", 2)
	cfg.AddPersistentFlag(
		Command, dispatchInitialRetry, "dispatch-initial-retry", "first retry interval of a delivery",
		500*time.Millisecond)
	cfg.AddPersistentFlag(
		Command, dispatchMaxElapsed, "dispatch-max-elapsed", "time spent retrying a delivery", time.Minute)
	cfg.AddPersistentFlag(
		Command, dispatchMaxAttempts, "dispatch-max-attempts", "maximum delivery attempts", 50)

	cfg.AddPersistentFlag(
		Command, policyCacheSize, "policy-cache-size", "amount of agreement verdicts to cache", 1024)
	cfg.AddPersistentFlag(
		Command, policyCacheTTL, "policy-cache-ttl", "how long an agreement verdict is cached", 5*time.Minute)
	cfg.AddPersistentFlag(
		Command, policyTimeout, "policy-timeout", "timeout of a catalog format lookup", 5*time.Second)

	cfg.AddPersistentFlag(Command, otelEnabled, "otel-enabled", "export traces over OTLP", false)
	cfg.AddPersistentFlag(Command, otelEndpoint, "otel-endpoint", "OTLP HTTP endpoint URL", "")
	cfg.AddPersistentFlag(Command, otelServiceName, "otel-service-name", "service name of the traces", "dsp-engine")
}

func run(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, ok := viper.Get("initCTX").(context.Context)
	if !ok {
		return errors.New("couldn't fetch initial context")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logging.Extract(ctx)

	otelShutdown, err := setupOTelSDK(ctx, conf.otelEnabled, conf.otelEndpoint, conf.otelServiceName)
	if err != nil {
		return fmt.Errorf("could not set up opentelemetry: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Could not shut down opentelemetry", "err", err)
		}
	}()

	store, err := getStorageProvider(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Could not close the store", "err", err)
		}
	}()

	requester := shared.NewHTTPRequester(conf.requestTimeout)
	sink := audit.Multi{audit.LogSink{}}
	var httpSink *audit.HTTPSink
	if conf.auditURL != nil {
		httpSink = audit.NewHTTPSink(conf.auditURL, requester)
		sink = append(sink, httpSink)
	}

	// Deliveries outlive the signal, so that requests still being served can notify the peers.
	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()
	dispatcher := callback.NewDispatcher(dispatchCtx, requester, sink,
		callback.WithWorkers(conf.workers),
		callback.WithBackoff(conf.initialRetry, conf.maxElapsed, uint64(conf.maxAttempts)),
	)
	dispatcher.Run()

	gate := policy.NewGate(
		catalog.NewClient(conf.catalogURL, requester),
		policy.NewLRUCache(conf.cacheSize, conf.cacheTTL),
		policy.WithTimeout(conf.policyTimeout),
	)
	opts := []engine.Option{engine.WithAutoProgress(conf.autoProgress)}
	if conf.participantID != "" {
		opts = append(opts, engine.WithParticipantID(conf.participantID))
	}
	neg := engine.NewNegotiationEngine(store, dispatcher, sink, conf.self, opts...)
	tr := engine.NewTransferEngine(store, dispatcher, sink, gate, conf.self, opts...)

	baseChain := alice.New(
		sloghttp.Recovery,
		sloghttp.New(logger),
		logging.NewMiddleware(logger),
		jsonHeaderMiddleware,
	)

	dspMux := http.NewServeMux()
	dspMux.Handle("/.well-known/", http.StripPrefix("/.well-known", dsp.GetWellKnownRoutes()))
	dspMux.Handle(constants.APIPath+"/", http.StripPrefix(constants.APIPath, dsp.GetDSPRoutes(neg, tr)))

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	servers := []*http.Server{
		newServer(ctx, conf.dspAddr, otelhttp.NewHandler(baseChain.Then(dspMux), "dsp")),
		newServer(ctx, conf.controlAddr,
			otelhttp.NewHandler(baseChain.Then(dsp.GetControlRoutes(neg, tr)), "control")),
		newServer(ctx, conf.metricsAddr, metricsMux),
	}

	healthListener, err := net.Listen("tcp", conf.healthAddr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", conf.healthAddr, err)
	}
	health := newHealthServer(logger)

	errs := make(chan error, len(servers)+1)
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Starting HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting gRPC health server", "addr", conf.healthAddr)
		if err := health.serve(healthListener); err != nil {
			errs <- fmt.Errorf("health server: %w", err)
		}
	}()
	health.setServing(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-errs:
		logger.Error("Server failed, shutting down", "err", err)
	}
	stop()
	health.setServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if sErr := srv.Shutdown(shutdownCtx); sErr != nil {
			logger.Error("Could not shut down server", "addr", srv.Addr, "err", sErr)
		}
	}
	health.stop()
	wg.Wait()

	drain(shutdownCtx, dispatcher)
	cancelDispatch()
	dispatcher.WaitGroup.Wait()
	if n := dispatcher.Pending(); n > 0 {
		logger.Warn("Dropping undelivered messages", "count", n)
	}
	if httpSink != nil {
		httpSink.Wait()
	}
	return err
}

// drain waits for the queued deliveries until the context expires.
func drain(ctx context.Context, d *callback.Dispatcher) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for d.Pending() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func newServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
}
