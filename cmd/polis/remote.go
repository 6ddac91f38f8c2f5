package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-oss/internal/pipelineerr"
)

// remoteError carries an HTTP failure from the control plane back up to
// main's exit-code mapping.
type remoteError struct {
	status int
	body   pipelineerr.JSON
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("control plane returned %d: %s", e.status, e.body.ErrorBody.Message)
}

// ExitCode mirrors pipelineerr.Kind.CLIExitCode for errors observed only as
// an HTTP status, since the CLI process never sees the server's *Error.
func (e *remoteError) ExitCode() int {
	if e.status == http.StatusNotFound {
		return 2
	}
	return 1
}

type remoteClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newRemoteClient() (*remoteClient, error) {
	cfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	url, err := cfg.CurrentURL()
	if err != nil {
		return nil, err
	}
	return &remoteClient{
		baseURL: strings.TrimRight(url, "/"),
		apiKey:  cfg.CurrentAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *remoteClient) do(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindConnectivity, err, "request to control plane failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var parsed pipelineerr.JSON
		_ = json.Unmarshal(respBody, &parsed)
		return nil, &remoteError{status: resp.StatusCode, body: parsed}
	}
	return respBody, nil
}

func deployCmd() *cobra.Command {
	var namespace string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "deploy <composition-or-manifest-file>",
		Short: "Deploy a pipeline manifest or bare composition to the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("%s: dry run, not submitted\n", path)
				return nil
			}

			var raw map[string]any
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("parse %s as JSON manifest: %w", path, err)
			}

			client, err := newRemoteClient()
			if err != nil {
				return err
			}

			reqPath := "/v1/pipelines"
			if kind, _ := raw["kind"].(string); kind != "Pipeline" {
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				reqPath = fmt.Sprintf("/v1/pipelines?name=%s&namespace=%s", name, namespaceOrDefault(namespace))
			}

			respBody, err := client.do(http.MethodPost, reqPath, raw)
			if err != nil {
				return err
			}
			return printRawJSON(respBody)
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace for a bare composition deploy")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "read the file and stop without contacting the control plane; the file is not parsed or validated")
	return cmd
}

func getCmd() *cobra.Command {
	var namespace string
	var all bool

	cmd := &cobra.Command{
		Use:       "get {pipelines|nodes|namespaces}",
		Short:     "List resources known to the control plane",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pipelines", "nodes", "namespaces"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRemoteClient()
			if err != nil {
				return err
			}

			var path string
			switch args[0] {
			case "pipelines":
				path = fmt.Sprintf("/v1/pipelines?namespace=%s&all=%t", namespace, all)
			case "nodes":
				path = "/v1/nodes"
			case "namespaces":
				path = "/v1/namespaces"
			default:
				return fmt.Errorf("unknown resource %q, expected pipelines, nodes, or namespaces", args[0])
			}

			respBody, err := client.do(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printRawJSON(respBody)
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "default", "namespace to list pipelines in")
	cmd.Flags().BoolVar(&all, "all", false, "list pipelines across every namespace")
	return cmd
}

func deleteCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "delete {pipeline|node} <name>",
		Short: "Delete a pipeline or unregister a worker node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRemoteClient()
			if err != nil {
				return err
			}

			resource, name := args[0], args[1]
			var path string
			switch resource {
			case "pipeline":
				path = fmt.Sprintf("/v1/pipelines/%s/%s", namespaceOrDefault(namespace), name)
			case "node":
				path = fmt.Sprintf("/v1/nodes/%s", name)
			default:
				return fmt.Errorf("unknown resource %q, expected pipeline or node", resource)
			}

			if _, err := client.do(http.MethodDelete, path, nil); err != nil {
				return err
			}
			fmt.Printf("%s %q deleted\n", resource, name)
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "pipeline namespace")
	return cmd
}

func scaleCmd() *cobra.Command {
	var namespace string
	var replicas int

	cmd := &cobra.Command{
		Use:   "scale <pipeline-name>",
		Short: "Change a pipeline's desired replica count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRemoteClient()
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/v1/pipelines/%s/%s", namespaceOrDefault(namespace), args[0])
			respBody, err := client.do(http.MethodPatch, path, map[string]int{"replicas": replicas})
			if err != nil {
				return err
			}
			return printRawJSON(respBody)
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "pipeline namespace")
	cmd.Flags().IntVar(&replicas, "replicas", 1, "desired replica count")
	_ = cmd.MarkFlagRequired("replicas")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current context's cluster-wide status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRemoteClient()
			if err != nil {
				return err
			}
			respBody, err := client.do(http.MethodGet, "/v1/status", nil)
			if err != nil {
				return err
			}
			return printRawJSON(respBody)
		},
	}
	return cmd
}

func namespaceOrDefault(namespace string) string {
	if namespace == "" {
		return "default"
	}
	return namespace
}

func printRawJSON(body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Println(string(body))
		return nil
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
