package forecast

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit_ConstantSeriesForecastsFlat(t *testing.T) {
	y := []float64{72, 72, 72, 72, 72, 72}
	m, err := Fit(context.Background(), y)
	require.NoError(t, err)

	for _, v := range m.Forecast(5) {
		assert.InDelta(t, 72, v, 1e-9)
	}
}

func TestFit_LinearSeriesKeepsRising(t *testing.T) {
	y := make([]float64, 12)
	for i := range y {
		y[i] = 60 + float64(i)
	}
	m, err := Fit(context.Background(), y)
	require.NoError(t, err)

	out := m.Forecast(3)
	require.Len(t, out, 3)
	assert.Greater(t, out[0], y[len(y)-1])
	assert.InDelta(t, y[len(y)-1]+1, out[0], 0.5)
}

func TestFit_ShortSeriesIsRandomWalk(t *testing.T) {
	tests := []struct {
		name string
		y    []float64
	}{
		{"two points", []float64{70, 72}},
		{"three points", []float64{70, 72, 71}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Fit(context.Background(), tt.y)
			require.NoError(t, err)
			assert.Zero(t, m.Phi)
			assert.Zero(t, m.Theta1)
			assert.Zero(t, m.Theta2)

			last := tt.y[len(tt.y)-1]
			out := m.Forecast(4)
			require.Len(t, out, 4)
			for _, v := range out {
				assert.Equal(t, last, v)
			}
		})
	}
}

func TestFit_ParametersStayInRegion(t *testing.T) {
	y := []float64{70, 71, 70.5, 72, 71.8, 73, 72.5, 74, 73.1, 75, 74.2}
	m, err := Fit(context.Background(), y)
	require.NoError(t, err)

	assert.Less(t, math.Abs(m.Phi), 1.0)
	assertInvertible(t, m.Theta1, m.Theta2)
	assert.GreaterOrEqual(t, m.Sigma2, 0.0)
	assert.Len(t, m.Forecast(30), 30)
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(context.Background(), []float64{70})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Fit(context.Background(), []float64{70, math.NaN(), 72})
	var fitErr *FitError
	assert.True(t, errors.As(err, &fitErr), "expected *FitError, got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fit(ctx, []float64{1, 2, 3, 4})
	require.True(t, errors.As(err, &fitErr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConstrainStationary(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, constrainStationary([]float64{0, 0}))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		u := []float64{rng.NormFloat64() * 5, rng.NormFloat64() * 5, rng.NormFloat64() * 5}
		phi, t1, t2 := transform(u)
		assert.Less(t, math.Abs(phi), 1.0)
		assertInvertible(t, t1, t2)
	}
}

// assertInvertible checks 1 + t1*z + t2*z^2 has no roots inside the unit circle.
func assertInvertible(t *testing.T, t1, t2 float64) {
	t.Helper()
	const eps = 1e-9
	assert.LessOrEqual(t, math.Abs(t2), 1+eps)
	assert.GreaterOrEqual(t, 1+t1+t2, -eps)
	assert.GreaterOrEqual(t, 1-t1+t2, -eps)
}
