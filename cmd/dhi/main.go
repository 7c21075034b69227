// Command dhi runs the trusted-execution gateway: governance, sandbox
// verification, circuit-breaker orchestration and attestation behind one
// HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhi-engine/dhi/pkg/api"
	"github.com/dhi-engine/dhi/pkg/env"
	"github.com/dhi-engine/dhi/pkg/gateway"
	"github.com/dhi-engine/dhi/pkg/governance"
	"github.com/dhi-engine/dhi/pkg/observability"
	"github.com/dhi-engine/dhi/pkg/sandbox"
	"github.com/dhi-engine/dhi/pkg/veil"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the dispatcher entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(args[1:], stderr)
	}

	switch args[1] {
	case "server", "serve":
		return runServer(args[2:], stderr)
	case "health":
		return runHealth(args[2:], stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "%s %s\n", api.ServiceName, api.Version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return runServer(args[1:], stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func runServer(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	image := fs.String("image", sandbox.DefaultImage, "sandbox container image tag")
	policyPath := fs.String("policy", "", "optional YAML governance policy tables")
	model := fs.String("model", "gpt-4o", "default LLM model")
	provider := fs.String("provider", gateway.ProviderOpenAI, "default LLM provider (openai|nvidia|custom)")
	rateRPS := fs.Int("rate-rps", 10, "per-IP request rate limit")
	rateBurst := fs.Int("rate-burst", 20, "per-IP request burst")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry export")
	otelEndpoint := fs.String("otel-endpoint", "localhost:4317", "OTLP gRPC endpoint")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	env.Load(false)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	logger := slog.Default().With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "dhi-gateway",
		ServiceVersion: api.Version,
		Environment:    envOr("DHI_ENV", "development"),
		OTLPEndpoint:   *otelEndpoint,
		SampleRate:     1.0,
		Enabled:        *otelEnabled,
		Insecure:       true,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "observability init failed: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	tables := governance.DefaultTables()
	if *policyPath != "" {
		tables, err = governance.LoadTables(*policyPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "policy load failed: %v\n", err)
			return 1
		}
	}

	pipeline, err := governance.NewPipeline(tables, governance.NewAuditSink())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "governance init failed: %v\n", err)
		return 1
	}

	executor, err := sandbox.NewExecutor(*image)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "sandbox init failed: %v\n", err)
		return 1
	}

	// The baseline fingerprint is captured once at startup and read-only
	// thereafter.
	ledger := veil.NewLedger()
	observer := veil.NewObserver(ledger, veil.FingerprintOptions{
		SandboxImageFile: "Dockerfile.sandbox",
		Lockfile:         "go.sum",
		Commands:         []string{"python /source/candidate.py"},
	})

	service := api.NewService(api.Config{
		Pipeline: pipeline,
		Verifier: executor,
		Recorder: observer,
		LLMDefaults: gateway.Options{
			Provider: *provider,
			Model:    *model,
		},
	})

	throttle := api.NewThrottle(*rateRPS, *rateBurst)
	handler := api.Observe(obs, service.Handler(throttle))
	logger.Info("starting gateway",
		"addr", *addr, "image", *image, "provider", *provider, "model", *model)

	if err := service.ListenAndServe(ctx, *addr, handler); err != nil && err != http.ErrServerClosed {
		_, _ = fmt.Fprintf(stderr, "server failed: %v\n", err)
		return 1
	}
	return 0
}

func runHealth(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	base := fs.String("url", "http://localhost:8080", "gateway base URL")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*base + "/health")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "unreachable: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_, _ = fmt.Fprintf(stdout, "%s\n", body)
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Usage: dhi [command] [flags]

Commands:
  server     Run the gateway HTTP server (default)
  health     Probe a running gateway
  version    Print version
  help       Show this help

Run 'dhi server -h' for server flags.`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
