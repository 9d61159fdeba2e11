package formula

import (
	"context"
	"errors"
	"testing"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapReader(values map[string]float64) Reader {
	return func(_ context.Context, key string) (float64, error) {
		v, ok := values[key]
		if !ok {
			return 0, cerrors.ErrNoData
		}
		return v, nil
	}
}

func TestEval(t *testing.T) {
	read := mapReader(map[string]float64{
		"cpu_temp_0":   40,
		"cpu_temp_1":   50,
		"coolant_flow": 3,
		"neg":          -7.5,
	})

	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"literal", "42", 42},
		{"precedence", "1 + 2 * 3", 7},
		{"parens", "(1 + 2) * 3", 9},
		{"unary", "-(2 - 5)", 3},
		{"average", "(float(r.get('cpu_temp_0')) + float(r.get('cpu_temp_1'))) / 2", 45},
		{"bare get", "get(\"coolant_flow\") * 60", 180},
		{"max", "max(r.get('cpu_temp_0'), r.get('cpu_temp_1'), 10)", 50},
		{"min", "min(r.get('cpu_temp_0'), r.get('cpu_temp_1'))", 40},
		{"abs", "abs(r.get('neg'))", 7.5},
		{"int truncates", "int(r.get('neg'))", -7},
		{"round digits", "round(10 / 3, 2)", 3.33},
		{"modulo", "7 % 4", 3},
		{"exponent", "1.5e2", 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := p.Eval(context.Background(), read)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCompileRejects(t *testing.T) {
	for _, expr := range []string{
		"",
		"1 +",
		"__import__('os')",
		"r.keys()",
		"get(cpu)",
		"max()",
		"abs(1, 2)",
		"(1 + 2",
		"1 2",
		"'unterminated",
		"1 ; 2",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Compile(expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cerrors.ErrInvalidFormula))
		})
	}
}

func TestEvalErrors(t *testing.T) {
	read := mapReader(map[string]float64{"zero": 0})

	p := MustCompile("1 / r.get('zero')")
	_, err := p.Eval(context.Background(), read)
	assert.ErrorContains(t, err, "division by zero")

	p = MustCompile("r.get('missing') + 1")
	_, err = p.Eval(context.Background(), read)
	assert.True(t, errors.Is(err, cerrors.ErrNoData))
}

func TestKeys(t *testing.T) {
	p := MustCompile("r.get('b') + r.get('a') - get('b')")
	assert.Equal(t, []string{"a", "b"}, p.Keys())
	assert.Equal(t, "r.get('b') + r.get('a') - get('b')", p.String())
}
