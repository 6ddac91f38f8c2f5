// Package vars implements variable substitution over the per-request
// variable environment (spec component C1): resolving "$VAR" and
// "$secrets.name.var" references inside strings and arbitrary JSON trees.
package vars

import (
	"strings"
	"sync"

	"github.com/polisai/polis-oss/internal/pipelineerr"
)

// Environment is the identifier -> string mapping consulted for both
// substitution and condition evaluation. Secret lookups are delegated to
// a Resolver rather than flattened into the map, so the credential store
// stays the single source of truth for secret values.
//
// Set/Get/Snapshot take mu because a fan-out node's sibling sub-branches and
// a hook's detached observe goroutine (hooks.Runner.runObserve) can all hold
// a reference to the same Environment while the branch that spawned them
// keeps calling Set.
type Environment struct {
	mu      sync.RWMutex
	values  map[string]string
	secrets SecretResolver
}

// SecretResolver resolves a dotted "$secrets.<name>.<var>" reference.
// The credential store implements this.
type SecretResolver interface {
	Resolve(name, variable string) (string, bool)
}

// NewEnvironment builds an Environment from a plain value map and an
// optional secret resolver (nil disables secret references entirely).
func NewEnvironment(values map[string]string, secrets SecretResolver) *Environment {
	if values == nil {
		values = map[string]string{}
	}
	return &Environment{values: values, secrets: secrets}
}

// Set assigns a single variable, overwriting any prior value. Used by the
// pipeline processor to bind per-node variables ($NODE, $OUTPUT, ...).
func (e *Environment) Set(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[name] = value
}

// Get returns a variable's value and whether it was known. Secret
// references are resolved through the configured SecretResolver.
func (e *Environment) Get(identifier string) (string, bool) {
	if name, variable, ok := splitSecretPath(identifier); ok {
		if e.secrets == nil {
			return "", false
		}
		return e.secrets.Resolve(name, variable)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.values[identifier]
	return v, ok
}

// Secrets returns the environment's configured secret resolver, so callers
// that clone an Environment (e.g. the pipeline processor forking a
// fan-out branch) can preserve secret-reference behavior in the copy.
func (e *Environment) Secrets() SecretResolver {
	return e.secrets
}

// Snapshot returns a shallow copy of the plain (non-secret) values,
// primarily for building the router-prompt context or trace entries.
func (e *Environment) Snapshot() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

func splitSecretPath(identifier string) (name, variable string, ok bool) {
	const prefix = "secrets."
	if !strings.HasPrefix(identifier, prefix) {
		return "", "", false
	}
	rest := identifier[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return "", "", false
	}
	return rest[:dot], rest[dot+1:], true
}

// identByte reports whether b may appear inside a variable identifier
// (after the leading "$"), covering both the uppercase IDENT grammar used
// by conditions and the more permissive header-derived names ("$X-Request-Id")
// that extra-options.UseHeaderKeys can introduce.
func identByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-' || b == '.':
		return true
	default:
		return false
	}
}

func identStartByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '_'
}

// scanIdentifier returns the longest identifier starting at s[0] (s[0]
// must be the character right after "$"). Trailing '.' or '-' that is not
// followed by another identifier character is trimmed, so "$FOO." leaves
// the period untouched by substitution.
func scanIdentifier(s string) string {
	if s == "" || !identStartByte(s[0]) {
		return ""
	}
	i := 1
	for i < len(s) && identByte(s[i]) {
		i++
	}
	end := i
	for end > 0 && (s[end-1] == '.' || s[end-1] == '-') {
		end--
	}
	return s[:end]
}

// Substitute replaces every "$identifier" occurrence in s with its
// resolved value. Unknown identifiers resolve to the empty string. A
// trailing "$" not followed by an identifier character is left as a
// literal "$" (Testable Property #2).
func Substitute(s string, env *Environment) string {
	out, _ := substitute(s, env, false)
	return out
}

// SubstituteStrict behaves like Substitute but fails with UnknownVariable
// the first time an identifier cannot be resolved. Used by the condition
// evaluator and anywhere else spec.md calls for "strict mode".
func SubstituteStrict(s string, env *Environment) (string, error) {
	return substitute(s, env, true)
}

func substitute(s string, env *Environment, strict bool) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '$' {
			b.WriteByte(s[i])
			i++
			continue
		}
		ident := scanIdentifier(s[i+1:])
		if ident == "" {
			// Literal "$": not followed by an identifier character.
			b.WriteByte('$')
			i++
			continue
		}
		value, ok := env.Get(ident)
		if !ok {
			if strict {
				return "", pipelineerr.New(pipelineerr.KindUnknownVariable, "unknown variable: $"+ident)
			}
			value = ""
		}
		b.WriteString(value)
		i += 1 + len(ident)
	}
	return b.String(), nil
}

// SubstituteTree recurses into every string leaf of an arbitrary JSON-like
// tree (as decoded by encoding/json into map[string]any / []any / string /
// float64 / bool / nil), substituting strings and leaving every other
// scalar untouched. The input is not mutated; a new tree is returned.
func SubstituteTree(node any, env *Environment) any {
	out, _ := substituteTree(node, env, false)
	return out
}

// SubstituteTreeStrict is the strict-mode counterpart of SubstituteTree.
func SubstituteTreeStrict(node any, env *Environment) (any, error) {
	return substituteTree(node, env, true)
}

func substituteTree(node any, env *Environment, strict bool) (any, error) {
	switch v := node.(type) {
	case string:
		return substitute(v, env, strict)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			res, err := substituteTree(child, env, strict)
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			res, err := substituteTree(child, env, strict)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	default:
		return v, nil
	}
}
