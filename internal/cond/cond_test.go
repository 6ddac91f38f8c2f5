package cond

import (
	"context"
	"testing"

	"github.com/polisai/polis-oss/internal/vars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func eval(t *testing.T, expr string, env map[string]string) bool {
	t.Helper()
	v, err := Eval(context.Background(), expr, vars.NewEnvironment(env, nil))
	require.NoError(t, err)
	return v
}

func TestExistence(t *testing.T) {
	assert.True(t, eval(t, "$NODE", map[string]string{"NODE": "router"}))
	assert.False(t, eval(t, "$NODE", map[string]string{"NODE": ""}))
	assert.False(t, eval(t, "$NODE", map[string]string{}))
}

func TestStringComparison(t *testing.T) {
	env := map[string]string{"ROUTE_DECISION": "sales"}
	assert.True(t, eval(t, `$ROUTE_DECISION == "sales"`, env))
	assert.False(t, eval(t, `$ROUTE_DECISION == "support"`, env))
	assert.True(t, eval(t, `$ROUTE_DECISION != "support"`, env))
}

func TestNumericComparison(t *testing.T) {
	env := map[string]string{"WORD_COUNT": "12"}
	assert.True(t, eval(t, "$WORD_COUNT >= 10", env))
	assert.True(t, eval(t, "$WORD_COUNT > 10", env))
	assert.False(t, eval(t, "$WORD_COUNT < 10", env))
	assert.True(t, eval(t, "$WORD_COUNT <= 12", env))
}

func TestNonNumericComparisonIsFalse(t *testing.T) {
	env := map[string]string{"NODE": "router"}
	assert.False(t, eval(t, "$NODE > 10", env))
}

func TestMissingVariableIsEmptyNotError(t *testing.T) {
	v, err := Eval(context.Background(), `$MISSING == ""`, vars.NewEnvironment(nil, nil))
	require.NoError(t, err)
	assert.True(t, v)
}

func TestVariableRHS(t *testing.T) {
	env := map[string]string{"A": "x", "B": "x"}
	assert.True(t, eval(t, "$A == $B", env))
}

func TestSyntaxErrors(t *testing.T) {
	bad := []string{"NODE", "$1BAD", `$NODE ===`, `$NODE == `, `$NODE && $X`}
	for _, e := range bad {
		_, err := Parse(e)
		assert.Error(t, err, e)
	}
}

// Testable Property #3: for every syntactically valid condition and every
// environment, the evaluator returns a boolean, never an exception.
func TestPropertyConditionTotality(t *testing.T) {
	ops := []string{"", "==", "!=", ">", "<", ">=", "<="}
	rapid.Check(t, func(t *rapid.T) {
		ident := rapid.StringMatching(`[A-Z_][A-Z0-9_]{0,8}`).Draw(t, "ident")
		op := rapid.SampledFrom(ops).Draw(t, "op")
		expr := "$" + ident
		if op != "" {
			kind := rapid.IntRange(0, 2).Draw(t, "rhsKind")
			switch kind {
			case 0:
				expr += op + `"` + rapid.StringMatching(`[a-zA-Z0-9 ]{0,10}`).Draw(t, "strlit") + `"`
			case 1:
				expr += op + "$" + rapid.StringMatching(`[A-Z_][A-Z0-9_]{0,8}`).Draw(t, "rhsIdent")
			case 2:
				expr += op + rapid.StringMatching(`-?[0-9]{1,5}(\.[0-9]{1,3})?`).Draw(t, "num")
			}
		}
		env := map[string]string{}
		nKeys := rapid.IntRange(0, 4).Draw(t, "nKeys")
		for i := 0; i < nKeys; i++ {
			k := rapid.StringMatching(`[A-Z_][A-Z0-9_]{0,8}`).Draw(t, "k")
			env[k] = rapid.StringMatching(`[a-zA-Z0-9]{0,8}`).Draw(t, "v")
		}

		c, err := Parse(expr)
		require.NoError(t, err, "expr must parse: %s", expr)
		result := c.Evaluate(context.Background(), vars.NewEnvironment(env, nil))
		_ = result // reaching here without panic satisfies totality
	})
}
