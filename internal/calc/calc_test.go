package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/openweather-collector/internal/jsonflat"
)

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"7 % 4", 3},
		{"1.5e2 / 3", 50},
		{".5 + .25", 0.75},
		{"round(12.346, 2)", 12.35},
		{"round(-2.5)", -3},
		{"round(1234, -2)", 1200},
		{"floor(2.7) + ceil(2.1)", 5},
		{"abs(-3) * sqrt(16)", 12},
		{"min(4, 2, 8) + max(1, 9)", 11},
		{"round(pi, 2)", 3.14},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(tt.src, Env{})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvalNames(t *testing.T) {
	env := Env{
		Value:     "285.45",
		Variables: map[string]any{"temperature": 12.3},
		Flat: map[string]any{
			"wind.speed": 5.0,
			"visibility": 10000.0,
			"rain.1h":    jsonflat.Null,
		},
	}

	got, err := Eval("round(value - 273.15, 1)", env)
	require.NoError(t, err)
	assert.Equal(t, 12.3, got)

	got, err = Eval("[wind.speed] * 3.6", env)
	require.NoError(t, err)
	assert.InDelta(t, 18.0, got, 1e-9)

	got, err = Eval("temperature * 2 + visibility / 1000", env)
	require.NoError(t, err)
	assert.InDelta(t, 34.6, got, 1e-9)

	got, err = Eval("[temperature] + 1", env)
	require.NoError(t, err)
	assert.InDelta(t, 13.3, got, 1e-9)

	_, err = Eval("[rain.1h] + 1", env)
	assert.ErrorIs(t, err, ErrUndefined)

	_, err = Eval("humidity", env)
	assert.ErrorIs(t, err, ErrUndefined)

	_, err = Eval("value", Env{})
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestEvalErrors(t *testing.T) {
	_, err := Eval("1 / 0", Env{})
	assert.ErrorIs(t, err, ErrArithmetic)

	_, err = Eval("1 % 0", Env{})
	assert.ErrorIs(t, err, ErrArithmetic)

	_, err = Eval("sqrt(-1)", Env{})
	assert.ErrorIs(t, err, ErrArithmetic)

	_, err = Eval("round()", Env{})
	assert.ErrorIs(t, err, ErrArithmetic)

	_, err = Eval("10 ^ 400", Env{})
	assert.ErrorIs(t, err, ErrArithmetic)

	_, err = Eval("value * 2", Env{Value: "n/a"})
	assert.ErrorIs(t, err, ErrArithmetic)

	_, err = Eval("log(2)", Env{})
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestCompileSyntaxErrors(t *testing.T) {
	for _, src := range []string{"", "1 +", "(1", "round(1,)", "1 2", "[]", "a $ b"} {
		_, err := Compile(src)
		assert.ErrorIs(t, err, ErrSyntax, "src %q", src)
	}
}

func TestCompiledExprIsReusable(t *testing.T) {
	e := MustCompile("value * 3.6")
	assert.Equal(t, "value * 3.6", e.String())

	for _, v := range []float64{0, 1, 2.5} {
		got, err := e.Eval(Env{Value: v})
		require.NoError(t, err)
		assert.InDelta(t, v*3.6, got, 1e-9)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.0, Round(0.5, 0))
	assert.Equal(t, -1.0, Round(-0.5, 0))
	assert.Equal(t, 21.46, Round(21.456, 2))
}
