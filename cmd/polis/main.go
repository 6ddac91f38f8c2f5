// Command polis is the control surface for the pipeline engine: it can run
// a composition directly, serve the data and control planes, validate a
// composition file, and talk to a remote control plane to deploy, inspect,
// scale, and delete pipelines.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-oss/internal/pipelineerr"
	"github.com/polisai/polis-oss/internal/usercontext"
)

var (
	userConfigPath string
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:   "polis",
	Short: "Run and manage declarative LLM pipelines",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&userConfigPath, "config", usercontext.DefaultConfigPath(), "path to the CLI's context config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine-readable JSON instead of tables")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(deployCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(scaleCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(contextCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the CLI's exit code convention: 0 success
// (handled by the caller, never reaches here), 1 validation/IO/connection
// failure, 2 not-found.
func exitCodeFor(err error) int {
	if kind, ok := pipelineerr.KindOf(err); ok {
		return kind.CLIExitCode()
	}
	if re, ok := err.(*remoteError); ok {
		return re.ExitCode()
	}
	return 1
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadUserConfig() (*usercontext.Config, error) {
	return usercontext.Load(userConfigPath)
}
