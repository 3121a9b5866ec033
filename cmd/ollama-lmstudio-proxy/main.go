// Command ollama-lmstudio-proxy runs the translation proxy: it binds
// an HTTP listener speaking the Ollama dialect and forwards work to an
// LM Studio / OpenAI-compatible backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/config"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/handlers"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/logging"
	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/router"
)

const serviceName = "ollama-lmstudio-proxy"

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Enabled: cfg.LogEnabled, Service: serviceName})

	shutdownTracing, err := initTracing()
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without it", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	shutdownMetrics, err := initMetrics()
	if err != nil {
		logger.Warn("metrics initialization failed, continuing without it", "error", err)
		shutdownMetrics = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(ctx)
		shutdownMetrics(ctx)
	}()

	gin.SetMode(gin.ReleaseMode)

	deps := handlers.Deps{
		Client:         &http.Client{},
		BackendURL:     cfg.BackendURL,
		UseV0:          cfg.UseV0,
		LoadTimeout:    cfg.LoadTimeout,
		RequestTimeout: cfg.RequestTimeout,
		StreamTimeout:  cfg.StreamTimeout,
		ProcessStart:   time.Now(),
		Logger:         logger,
	}

	engine := router.New(deps)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: engine,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "backend_url", cfg.BackendURL)
		serveErrCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// initTracing sets up an OpenTelemetry tracer writing spans to stdout.
// A real deployment would point this at an OTLP collector instead; the
// stdout exporter keeps the proxy self-contained with no external
// collector dependency while still exercising the tracer API the rest
// of the code instruments against.
func initTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// initMetrics sets up an OpenTelemetry meter provider backed by the
// Prometheus exporter, scraped at GET /metrics via promhttp. This
// keeps metrics pull-based and self-contained rather than requiring an
// OTLP collector.
func initMetrics() (func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

