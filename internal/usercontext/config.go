// Package usercontext manages the CLI's ~/.polis/config file (spec
// component C12): named control-plane endpoints and a pointer to the
// currently active one, mirroring kubectl's context model.
package usercontext

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultControlPlanePort is the port a freshly deployed control plane
// listens on.
const DefaultControlPlanePort = 8181

// DefaultWorkerPort is the port a standalone data-plane worker listens on.
const DefaultWorkerPort = 8080

// Context is a single named remote endpoint.
type Context struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api-key,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// LocalConfig holds the built-in "local" context's bind settings.
type LocalConfig struct {
	Port     int    `yaml:"port"`
	BindAddr string `yaml:"bind-addr"`
}

// Config is the on-disk shape of ~/.polis/config.
type Config struct {
	CurrentContext string             `yaml:"current-context,omitempty"`
	Contexts       map[string]Context `yaml:"contexts"`
	Local          LocalConfig        `yaml:"local"`
}

// NewConfig returns a Config with the built-in "local" defaults filled in.
func NewConfig() *Config {
	return &Config{
		Contexts: map[string]Context{},
		Local:    LocalConfig{Port: DefaultControlPlanePort, BindAddr: "0.0.0.0"},
	}
}

// DefaultConfigPath returns ~/.polis/config, falling back to "." if the
// home directory cannot be determined.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".polis", "config")
}

// Load reads the config at path, returning a fresh default Config if the
// file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	if cfg.Local.Port == 0 {
		cfg.Local.Port = DefaultControlPlanePort
	}
	if cfg.Local.BindAddr == "" {
		cfg.Local.BindAddr = "0.0.0.0"
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// AddContext inserts or replaces a named context.
func (c *Config) AddContext(ctx Context) {
	c.Contexts[ctx.Name] = ctx
}

// RemoveContext deletes a named context, clearing CurrentContext if it
// pointed at the removed one. Reports whether anything was removed.
func (c *Config) RemoveContext(name string) bool {
	if _, ok := c.Contexts[name]; !ok {
		return false
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return true
}

// SetCurrent switches the active context. "local" and "worker" are
// built-in names that never need a registered Context entry.
func (c *Config) SetCurrent(name string) error {
	if name != "local" && name != "worker" {
		if _, ok := c.Contexts[name]; !ok {
			return fmt.Errorf("context %q not found", name)
		}
	}
	c.CurrentContext = name
	return nil
}

// CurrentName returns the active context's name, defaulting to "local".
func (c *Config) CurrentName() string {
	if c.CurrentContext == "" {
		return "local"
	}
	return c.CurrentContext
}

// CurrentURL resolves the active context to a base URL.
func (c *Config) CurrentURL() (string, error) {
	switch name := c.CurrentName(); name {
	case "local":
		return fmt.Sprintf("http://%s:%d", c.Local.BindAddr, c.Local.Port), nil
	case "worker":
		return fmt.Sprintf("http://localhost:%d", DefaultWorkerPort), nil
	default:
		ctx, ok := c.Contexts[name]
		if !ok {
			return "", fmt.Errorf("context %q not found", name)
		}
		return ctx.URL, nil
	}
}

// CurrentAPIKey returns the active context's API key, if any.
func (c *Config) CurrentAPIKey() string {
	ctx, ok := c.Contexts[c.CurrentName()]
	if !ok {
		return ""
	}
	return ctx.APIKey
}

// IsLocal reports whether the active context is the built-in "local" one.
func (c *Config) IsLocal() bool {
	return c.CurrentName() == "local"
}

// ContextInfo is a display row combining a context's name with whether it
// is currently active.
type ContextInfo struct {
	Name    string
	URL     string
	Current bool
}

// List returns every context, including the built-in "local" and "worker"
// entries, sorted by name.
func (c *Config) List() []ContextInfo {
	current := c.CurrentName()
	out := []ContextInfo{
		{Name: "local", URL: fmt.Sprintf("http://%s:%d", c.Local.BindAddr, c.Local.Port), Current: current == "local"},
		{Name: "worker", URL: fmt.Sprintf("http://localhost:%d", DefaultWorkerPort), Current: current == "worker"},
	}
	for name, ctx := range c.Contexts {
		out = append(out, ContextInfo{Name: name, URL: ctx.URL, Current: current == name})
	}
	sortContextInfos(out)
	return out
}

func sortContextInfos(infos []ContextInfo) {
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].Name < infos[j-1].Name; j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
}
