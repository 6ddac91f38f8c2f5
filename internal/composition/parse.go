package composition

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/polisai/polis-oss/internal/pipelineerr"
	"gopkg.in/yaml.v3"
)

// Parse is the single pure operation exposed by the composition loader:
// parse(source-text, source-path-hint) -> Composition | ValidationError[].
//
// sourcePathHint is used only to infer the format when the text isn't
// unambiguously JSON; it is never read from disk here (the loader is
// I/O-free apart from the outer file-reading wrapper in Load).
func Parse(sourceText, sourcePathHint string) (*Composition, error) {
	root, err := decodeRoot(sourceText, sourcePathHint)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindCompositionParse, err, "failed to parse composition")
	}

	var verrs pipelineerr.ValidationErrors
	comp := &Composition{
		Models:    map[string]Model{},
		Functions: map[string]Function{},
		Secrets:   map[string]SecretSource{},
	}

	if modelsRaw, ok := fieldMap(root, "models"); ok {
		for _, name := range sortedKeys(modelsRaw) {
			m, ok := asMap(modelsRaw[name])
			if !ok {
				verrs.Add("models."+name, "", "expected an object")
				continue
			}
			model, ok := decodeModel(m, "models."+name, &verrs)
			if ok {
				comp.Models[name] = model
			}
		}
	}

	if fnsRaw, ok := fieldMap(root, "functions"); ok {
		for _, name := range sortedKeys(fnsRaw) {
			m, ok := asMap(fnsRaw[name])
			if !ok {
				verrs.Add("functions."+name, "", "expected an object")
				continue
			}
			fn, ok := decodeFunction(m, name, "functions."+name, &verrs)
			if ok {
				comp.Functions[name] = fn
			}
		}
	}

	if secretsRaw, ok := fieldMap(root, "secrets"); ok {
		for _, name := range sortedKeys(secretsRaw) {
			m, ok := asMap(secretsRaw[name])
			if !ok {
				verrs.Add("secrets."+name, "", "expected an object")
				continue
			}
			src, ok := decodeSecretSource(m, name, "secrets."+name, &verrs)
			if ok {
				comp.Secrets[name] = src
			}
		}
	}

	if archRaw, ok := fieldSlice(root, "architecture"); ok {
		seen := map[string]bool{}
		for i, raw := range archRaw {
			path := fmt.Sprintf("architecture[%d]", i)
			m, ok := asMap(raw)
			if !ok {
				verrs.Add(path, "", "expected an object")
				continue
			}
			node, ok := decodeNode(m, path, &verrs)
			if !ok {
				continue
			}
			if node.Name == "" {
				verrs.Add(path, "name", "node name is required")
				continue
			}
			if seen[node.Name] {
				verrs.Add(path, "name", fmt.Sprintf("duplicate node name %q", node.Name))
				continue
			}
			seen[node.Name] = true
			comp.Architecture = append(comp.Architecture, node)
		}
	} else {
		verrs.Add("architecture", "", "architecture must be a non-empty array")
	}

	// Cross-reference and topology validation runs regardless of shape
	// errors above, so every independent problem is still reported.
	validate(comp, &verrs)

	if verrs.HasErrors() {
		return nil, verrs.Err()
	}
	return comp, nil
}

// decodeRoot turns source text into a generic string-keyed tree,
// accepting JSON, JSON-with-comments, or YAML. Format is inferred from
// sourcePathHint's extension when present; otherwise JSON (after comment
// stripping) is attempted first, falling back to YAML.
func decodeRoot(sourceText, sourcePathHint string) (map[string]any, error) {
	hint := strings.ToLower(sourcePathHint)
	tryYAML := func() (map[string]any, error) {
		var v map[string]any
		if err := yaml.Unmarshal([]byte(sourceText), &v); err != nil {
			return nil, err
		}
		if v == nil {
			v = map[string]any{}
		}
		return v, nil
	}
	tryJSON := func() (map[string]any, error) {
		stripped := stripJSONComments(sourceText)
		var v map[string]any
		if err := json.Unmarshal([]byte(stripped), &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	if strings.HasSuffix(hint, ".yaml") || strings.HasSuffix(hint, ".yml") {
		return tryYAML()
	}
	if strings.HasSuffix(hint, ".json") || strings.HasSuffix(hint, ".jsonc") {
		return tryJSON()
	}
	if v, err := tryJSON(); err == nil {
		return v, nil
	}
	return tryYAML()
}
