package secrets

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/polisai/polis-oss/internal/composition"
)

// loadEnvFile parses a dotenv-style file (KEY=VALUE per line, '#'
// comments, blank lines ignored, surrounding quotes stripped) via
// godotenv.Parse, the real ecosystem library for exactly this "trivial
// and uninteresting" concern (spec.md §1).
func loadEnvFile(src composition.SecretSource) (map[string]string, error) {
	path := expandHome(src.Path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("envfile %q: %w", path, err)
	}
	defer f.Close()

	parsed, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("envfile %q: %w", path, err)
	}
	return filterAllowList(parsed, src.Variables), nil
}

// loadEnv copies a single process-environment variable into the named
// secret set, keyed by its own name.
func loadEnv(src composition.SecretSource) (map[string]string, error) {
	v, ok := os.LookupEnv(src.Variable)
	if !ok {
		return nil, fmt.Errorf("environment variable %q is not set", src.Variable)
	}
	return map[string]string{src.Variable: v}, nil
}

func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) == 1 {
		return home
	}
	if path[1] == '/' {
		return home + path[1:]
	}
	return path
}
