// Package main wires the polis-server executable: a data-plane pipeline
// worker, optionally co-located with the control plane.
package main

import (
	"context"
	crypttls "crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/polis-oss/internal/adapters"
	"github.com/polisai/polis-oss/internal/cluster"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/config"
	"github.com/polisai/polis-oss/internal/governance"
	"github.com/polisai/polis-oss/internal/hooks"
	"github.com/polisai/polis-oss/internal/httpapi"
	"github.com/polisai/polis-oss/internal/processor"
	"github.com/polisai/polis-oss/internal/secrets"
	"github.com/polisai/polis-oss/internal/telemetry"
	polistls "github.com/polisai/polis-oss/internal/tls"
)

const (
	defaultServiceName      = "polis-server"
	telemetryShutdownTimeout = 5 * time.Second
	gracefulShutdownTimeout = 10 * time.Second
	heartbeatReapInterval   = 10 * time.Second
)

func main() {
	if envFile := os.Getenv("POLIS_ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	configPath := flag.String("config", "", "Path to polis-server configuration file")
	controlPlane := flag.Bool("control-plane", false, "Run the control-plane HTTP API alongside the data plane")
	dataAddr := flag.String("data-addr", "", "Data-plane listen address (overrides config)")
	adminAddr := flag.String("admin-addr", "", "Admin/control-plane listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration load failed: %v", err)
	}
	if *dataAddr != "" {
		cfg.Server.DataAddress = *dataAddr
	}
	if *adminAddr != "" {
		cfg.Server.AdminAddress = *adminAddr
	}
	if *controlPlane {
		cfg.ControlPlane.Enabled = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("polis-server failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	telemetryShutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: defaultServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Environment: os.Getenv("POLIS_ENVIRONMENT"),
	})
	if err != nil {
		return err
	}
	defer shutdownTelemetry(telemetryShutdown)

	metrics := telemetry.NewMetrics()

	var dataSrv *http.Server
	if cfg.Composition.File != "" {
		dataSrv, err = startDataPlane(cfg, metrics, logger)
		if err != nil {
			return err
		}
		defer shutdownServer(dataSrv, "data plane")
	} else {
		logger.Warn("no composition file configured, data plane disabled")
	}

	var adminSrv *http.Server
	var reg *cluster.Registry
	if cfg.ControlPlane.Enabled {
		reg = cluster.NewRegistry(logger)
		var monitor *polistls.CertificateMonitor
		adminSrv, monitor, err = startControlPlane(ctx, cfg, reg, logger)
		if err != nil {
			return err
		}
		defer shutdownServer(adminSrv, "control plane")
		if monitor != nil {
			defer monitor.Stop()
		}

		stop := startHeartbeatReaper(reg)
		defer stop()
	}

	awaitShutdownSignal(logger)
	return nil
}

func startDataPlane(cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*http.Server, error) {
	comp, err := composition.Load(cfg.Composition.File)
	if err != nil {
		return nil, err
	}

	store, err := secrets.Load(context.Background(), comp)
	if err != nil {
		return nil, err
	}

	topo := composition.Build(comp)
	reg := adapters.NewRegistry(comp)
	hookRunner := hooks.New(comp, logger).WithMetrics(metrics)
	proc := processor.New(topo, reg, hookRunner, cfg.Composition.HopCap, logger).WithMetrics(metrics, cfg.Composition.File)

	dp := httpapi.NewDataPlane(proc, store, logger)
	if cfg.Composition.RequestsPerSecond > 0 {
		limiter := governance.NewRateLimiter(map[string]governance.RateLimiterConfig{
			cfg.Composition.File: {
				RequestsPerSecond: cfg.Composition.RequestsPerSecond,
				BurstSize:         cfg.Composition.BurstSize,
			},
		})
		dp = dp.WithRateLimit(limiter)
	}
	handler := otelhttp.NewHandler(dp.Mux(), "polis.data")

	server := &http.Server{
		Addr:         cfg.Server.DataAddress,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		ln, err := net.Listen("tcp", cfg.Server.DataAddress)
		if err != nil {
			logger.Error("data plane listen error", "error", err)
			return
		}
		logger.Info("data plane listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("data plane server error", "error", err)
		}
	}()

	if cfg.Composition.Watch {
		watchComposition(cfg.Composition.File, logger)
	}

	return server, nil
}

// watchComposition logs composition file changes; a full hot-reload that
// rebuilds the processor is left to a future iteration since swapping a
// live Topology out from under in-flight requests needs its own
// synchronization story.
func watchComposition(path string, logger *slog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("composition watcher unavailable", "error", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		logger.Warn("failed to watch composition file", "path", path, "error", err)
		return
	}
	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Info("composition file changed, restart to apply", "path", event.Name)
			}
		}
	}()
}

// startControlPlane serves the admin HTTP API and, when TLS is configured,
// returns the CertificateMonitor watching the listener's certificate so the
// caller can stop it on shutdown.
func startControlPlane(ctx context.Context, cfg *config.Config, reg *cluster.Registry, logger *slog.Logger) (*http.Server, *polistls.CertificateMonitor, error) {
	cp := httpapi.NewControlPlane(reg, logger)
	securityHeaders := polistls.NewSecurityHeadersMiddleware(nil)
	handler := otelhttp.NewHandler(securityHeaders.WrapHandler(cp.Mux()), "polis.control")

	server := &http.Server{
		Addr:              cfg.Server.AdminAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var tlsCfg *crypttls.Config
	var monitor *polistls.CertificateMonitor
	if cfg.ControlPlane.TLSCertFile != "" {
		mgr := polistls.NewFileCertificateManager(logger)
		if err := mgr.AddCertificate("", cfg.ControlPlane.TLSCertFile, cfg.ControlPlane.TLSKeyFile); err != nil {
			return nil, nil, fmt.Errorf("load control-plane certificate: %w", err)
		}
		tlsCfg = buildTLSConfig(mgr)
		monitor = polistls.NewCertificateMonitor(mgr, nil, logger)
		if err := monitor.Start(ctx); err != nil {
			logger.Warn("certificate monitor failed to start", "error", err)
		}
	}

	go func() {
		ln, err := net.Listen("tcp", cfg.Server.AdminAddress)
		if err != nil {
			logger.Error("control plane listen error", "error", err)
			return
		}
		if tlsCfg != nil {
			ln = crypttls.NewListener(ln, tlsCfg)
		}
		logger.Info("control plane listening", "addr", ln.Addr().String(), "tls", tlsCfg != nil)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control plane server error", "error", err)
		}
	}()
	return server, monitor, nil
}

// buildTLSConfig selects certificates by SNI through mgr and hardens the
// resulting config with the certificate-management package's recommended
// secure defaults (cipher suites, minimum version, session resumption).
func buildTLSConfig(mgr *polistls.FileCertificateManager) *crypttls.Config {
	tlsCfg := &crypttls.Config{
		GetCertificate: func(hello *crypttls.ClientHelloInfo) (*crypttls.Certificate, error) {
			return mgr.GetCertificateForSNI(hello.ServerName)
		},
	}
	polistls.ApplySecureDefaults(tlsCfg, polistls.GetSecurityDefaults())
	return tlsCfg
}

func startHeartbeatReaper(reg *cluster.Registry) func() {
	ticker := time.NewTicker(heartbeatReapInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				reg.ReapExpired(cluster.DefaultHeartbeatThreshold)
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

func shutdownTelemetry(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("telemetry shutdown error: %v", err)
	}
}

func shutdownServer(server *http.Server, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("%s shutdown error: %v", name, err)
	}
}

func awaitShutdownSignal(logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
