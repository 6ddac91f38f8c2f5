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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/polisai/polis-oss/internal/adapters"
	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/hooks"
	"github.com/polisai/polis-oss/internal/httpapi"
	"github.com/polisai/polis-oss/internal/processor"
	"github.com/polisai/polis-oss/internal/secrets"
)

func runCmd() *cobra.Command {
	var bindAddr string
	var port int
	var envFile string
	var hopCap int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run <composition-file>",
		Short: "Run a composition as a single local data-plane process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load env file %s: %w", envFile, err)
				}
			}

			comp, err := composition.Load(path)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("%s: composition valid, %d nodes\n", path, len(comp.Architecture))
				return nil
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

			store, err := secrets.Load(cmd.Context(), comp)
			if err != nil {
				return err
			}

			topo := composition.Build(comp)
			reg := adapters.NewRegistry(comp)
			hookRunner := hooks.New(comp, logger)
			if hopCap <= 0 {
				hopCap = 32
			}
			proc := processor.New(topo, reg, hookRunner, hopCap, logger)

			dp := httpapi.NewDataPlane(proc, store, logger)

			addr := fmt.Sprintf("%s:%d", bindAddr, port)
			server := &http.Server{Addr: addr, Handler: dp.Mux()}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go awaitSignal(cancel)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Serve(ln) }()

			logger.Info("running composition", "path", path, "addr", addr)

			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&bindAddr, "bind-addr", "0.0.0.0", "address to bind the data plane to")
	cmd.Flags().IntVar(&port, "port", 8080, "port to serve the data plane on")
	cmd.Flags().StringVar(&envFile, "env-file", "", "optional .env file to load before resolving secrets")
	cmd.Flags().IntVar(&hopCap, "max-hops", 32, "maximum number of node hops per request before aborting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate the composition without serving")
	return cmd
}
