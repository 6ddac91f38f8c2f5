package adapters

import (
	"context"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/vars"
)

// OutputAdapter is a pure sink: it hands content back to the caller
// unchanged, for the processor to deliver as the HTTP response. It is the
// only adapter kind that can satisfy a pipeline's "first output" rule
// (spec.md §4.8).
type OutputAdapter struct{}

// Execute returns content verbatim.
func (OutputAdapter) Execute(_ context.Context, _ *composition.Node, content string, _ *vars.Environment) (string, error) {
	return content, nil
}
