package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-oss/internal/adapters"
	"github.com/polisai/polis-oss/internal/cluster"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/hooks"
	"github.com/polisai/polis-oss/internal/httpapi"
	"github.com/polisai/polis-oss/internal/processor"
	"github.com/polisai/polis-oss/internal/secrets"
)

const heartbeatReapInterval = 10 * time.Second

func serveCmd() *cobra.Command {
	var compositionFile string
	var bindAddr string
	var port int
	var controlPlane bool
	var controlPlaneAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the data plane, optionally alongside the control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go awaitSignal(cancel)

			var servers []*http.Server

			if compositionFile != "" {
				srv, err := startServeDataPlane(compositionFile, fmt.Sprintf("%s:%d", bindAddr, port), logger)
				if err != nil {
					return err
				}
				servers = append(servers, srv)
			} else {
				logger.Warn("no composition file given, data plane disabled")
			}

			var stopReaper func()
			if controlPlane {
				reg := cluster.NewRegistry(logger)
				servers = append(servers, startServeControlPlane(reg, controlPlaneAddr, logger))
				stopReaper = startReaper(reg)
			}

			<-ctx.Done()
			logger.Info("shutting down")
			if stopReaper != nil {
				stopReaper()
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			for _, srv := range servers {
				_ = srv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&compositionFile, "composition", "", "composition file to serve on the data plane")
	cmd.Flags().StringVar(&bindAddr, "bind-addr", "0.0.0.0", "data-plane bind address")
	cmd.Flags().IntVar(&port, "port", 8080, "data-plane port")
	cmd.Flags().BoolVar(&controlPlane, "control-plane", false, "also serve the cluster control-plane API")
	cmd.Flags().StringVar(&controlPlaneAddr, "control-plane-addr", "0.0.0.0:8181", "control-plane listen address")
	return cmd
}

func startServeDataPlane(path, addr string, logger *slog.Logger) (*http.Server, error) {
	comp, err := composition.Load(path)
	if err != nil {
		return nil, err
	}
	store, err := secrets.Load(context.Background(), comp)
	if err != nil {
		return nil, err
	}
	topo := composition.Build(comp)
	reg := adapters.NewRegistry(comp)
	hookRunner := hooks.New(comp, logger)
	proc := processor.New(topo, reg, hookRunner, 32, logger)

	dp := httpapi.NewDataPlane(proc, store, logger)
	server := &http.Server{Addr: addr, Handler: dp.Mux()}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	go func() {
		logger.Info("data plane listening", "addr", addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("data plane server error", "error", err)
		}
	}()
	return server, nil
}

func startServeControlPlane(reg *cluster.Registry, addr string, logger *slog.Logger) *http.Server {
	cp := httpapi.NewControlPlane(reg, logger)
	server := &http.Server{Addr: addr, Handler: cp.Mux()}

	go func() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("control plane listen error", "error", err)
			return
		}
		logger.Info("control plane listening", "addr", addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control plane server error", "error", err)
		}
	}()
	return server
}

func startReaper(reg *cluster.Registry) func() {
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
