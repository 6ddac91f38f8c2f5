package composition

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// field looks up a key on a decoded map trying both its kebab-case and
// snake_case spellings (e.g. "output-to" / "output_to"), per spec.md §4.1.
// The caller passes the snake_case spelling; the kebab-case variant is
// derived automatically.
func field(m map[string]any, snake string) (any, bool) {
	if v, ok := m[snake]; ok {
		return v, true
	}
	kebab := strings.ReplaceAll(snake, "_", "-")
	if kebab != snake {
		if v, ok := m[kebab]; ok {
			return v, true
		}
	}
	return nil, false
}

func fieldString(m map[string]any, snake string) (string, bool) {
	v, ok := field(m, snake)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func fieldInt(m map[string]any, snake string) (int, bool) {
	v, ok := field(m, snake)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func fieldMap(m map[string]any, snake string) (map[string]any, bool) {
	v, ok := field(m, snake)
	if !ok {
		return nil, false
	}
	sub, ok := v.(map[string]any)
	return sub, ok
}

func fieldSlice(m map[string]any, snake string) ([]any, bool) {
	v, ok := field(m, snake)
	if !ok {
		return nil, false
	}
	sub, ok := v.([]any)
	return sub, ok
}

func fieldStringSlice(m map[string]any, snake string) []string {
	items, ok := fieldSlice(m, snake)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return out
}

func fieldStringMap(m map[string]any, snake string) map[string]string {
	sub, ok := fieldMap(m, snake)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(sub))
	for k, v := range sub {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// sortedKeys returns m's keys in deterministic order, so that aggregated
// validation diagnostics are stable across runs.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func requireMap(v any, context string) (map[string]any, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("%s: expected an object", context)
	}
	return m, nil
}
