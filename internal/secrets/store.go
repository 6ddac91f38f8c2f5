// Package secrets implements the credential store (spec component C4):
// loading every declared SecretSource once at startup into an immutable
// table, and resolving "$secrets.<name>.<var>" lookups against it.
package secrets

import (
	"context"
	"fmt"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/pipelineerr"
)

// Store is the immutable, post-startup credential table. It implements
// vars.SecretResolver.
type Store struct {
	table map[string]map[string]string
}

// Resolve implements vars.SecretResolver.
func (s *Store) Resolve(name, variable string) (string, bool) {
	vars, ok := s.table[name]
	if !ok {
		return "", false
	}
	v, ok := vars[variable]
	return v, ok
}

// Load resolves every declared secret source in comp and returns the
// resulting immutable Store. Failure to resolve any declared source is
// fatal, per spec.md §4.3 ("Failure to resolve a declared source is fatal
// at startup"), reported as a single SecretUnresolved error naming the
// first source that failed (sources are loaded in a deterministic order
// so repeated failed startups report the same culprit first).
func Load(ctx context.Context, comp *composition.Composition) (*Store, error) {
	store := &Store{table: map[string]map[string]string{}}
	for _, name := range sortedSecretNames(comp) {
		src := comp.Secrets[name]
		resolved, err := loadOne(ctx, src)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.KindSecretUnresolved, err, fmt.Sprintf("secret source %q", name))
		}
		store.table[name] = resolved
	}
	return store, nil
}

func sortedSecretNames(comp *composition.Composition) []string {
	names := make([]string, 0, len(comp.Secrets))
	for n := range comp.Secrets {
		names = append(names, n)
	}
	// Deterministic order without importing sort twice across the
	// package: simple insertion sort is plenty for the handful of
	// declared secret sources a composition carries.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

func loadOne(ctx context.Context, src composition.SecretSource) (map[string]string, error) {
	switch src.Kind {
	case composition.SecretSourceEnvFile:
		return loadEnvFile(src)
	case composition.SecretSourceEnv:
		return loadEnv(src)
	case composition.SecretSourceVault:
		return loadVault(ctx, src)
	default:
		return nil, fmt.Errorf("unknown secret source kind %q", src.Kind)
	}
}

// filterAllowList keeps only the keys in allow (when non-empty) from all.
func filterAllowList(all map[string]string, allow []string) map[string]string {
	if len(allow) == 0 {
		return all
	}
	out := make(map[string]string, len(allow))
	for _, k := range allow {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}
