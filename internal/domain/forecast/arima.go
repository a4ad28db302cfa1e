package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Model is a fitted ARIMA(1,1,2) without constant:
//
//	w[t] = y[t] - y[t-1]
//	w[t] = phi*w[t-1] + e[t] + theta1*e[t-1] + theta2*e[t-2]
type Model struct {
	Phi    float64
	Theta1 float64
	Theta2 float64
	// Sigma2 is the mean squared one-step residual.
	Sigma2 float64

	lastY float64
	lastW float64
	e1    float64 // residual at the last differenced point
	e2    float64 // residual one step before that
}

const maxFitIterations = 2000

// minEstimable is the shortest differenced series for which the residuals
// depend on each of the three coefficients separately.
const minEstimable = 3

// Fit estimates the model by conditional sum of squares. Presample
// differences and residuals are taken as zero. The AR coefficient is kept
// stationary and the MA polynomial invertible by optimising over
// partial-autocorrelation parameters. Shorter series than the coefficients
// can identify are fitted as a random walk: every coefficient is zero and
// forecasts stay at the last observation.
func Fit(ctx context.Context, y []float64) (*Model, error) {
	if len(y) < 2 {
		return nil, ErrInsufficientData
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &FitError{Err: fmt.Errorf("observation %d is not finite", i)}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FitError{Err: err}
	}
	w := difference(y)
	if len(w) < minEstimable {
		sse, e1, e2 := residuals(w, 0, 0, 0)
		return &Model{
			Sigma2: sse / float64(len(w)),
			lastY:  y[len(y)-1],
			lastW:  w[len(w)-1],
			e1:     e1,
			e2:     e2,
		}, nil
	}

	objective := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		phi, t1, t2 := transform(x)
		sse, _, _ := residuals(w, phi, t1, t2)
		if math.IsNaN(sse) || math.IsInf(sse, 0) {
			return math.Inf(1)
		}
		return sse
	}

	settings := &optimize.Settings{
		MajorIterations: maxFitIterations,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Relative: 1e-10, Iterations: 200},
	}
	res, err := optimize.Minimize(optimize.Problem{Func: objective}, []float64{0, 0, 0}, settings, &optimize.NelderMead{})
	if cerr := ctx.Err(); cerr != nil {
		return nil, &FitError{Err: cerr}
	}
	if err != nil && (res == nil || !acceptable(res.Status)) {
		return nil, &FitError{Err: err}
	}
	if res == nil || math.IsInf(res.F, 0) || math.IsNaN(res.F) {
		return nil, &FitError{Err: errors.New("objective is not finite")}
	}

	phi, t1, t2 := transform(res.X)
	sse, e1, e2 := residuals(w, phi, t1, t2)
	return &Model{
		Phi:    phi,
		Theta1: t1,
		Theta2: t2,
		Sigma2: sse / float64(len(w)),
		lastY:  y[len(y)-1],
		lastW:  w[len(w)-1],
		e1:     e1,
		e2:     e2,
	}, nil
}

// acceptable reports optimiser stops that still leave a usable minimum.
func acceptable(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.IterationLimit, optimize.FunctionEvaluationLimit:
		return true
	}
	return false
}

// Forecast returns the next steps values on the original scale.
func (m *Model) Forecast(steps int) []float64 {
	out := make([]float64, steps)
	level := m.lastY
	var prev float64
	for h := 0; h < steps; h++ {
		var next float64
		switch h {
		case 0:
			next = m.Phi*m.lastW + m.Theta1*m.e1 + m.Theta2*m.e2
		case 1:
			next = m.Phi*prev + m.Theta2*m.e1
		default:
			next = m.Phi * prev
		}
		level += next
		out[h] = level
		prev = next
	}
	return out
}

func difference(y []float64) []float64 {
	w := make([]float64, len(y)-1)
	for i := 1; i < len(y); i++ {
		w[i-1] = y[i] - y[i-1]
	}
	return w
}

// residuals runs the conditional recursion and returns the sum of squared
// residuals plus the last two residuals.
func residuals(w []float64, phi, theta1, theta2 float64) (sse, last, prev float64) {
	var wPrev, e1, e2 float64
	for _, wt := range w {
		e := wt - phi*wPrev - theta1*e1 - theta2*e2
		sse += e * e
		wPrev = wt
		e2, e1 = e1, e
	}
	return sse, e1, e2
}

// transform maps unconstrained optimiser coordinates to (phi, theta1, theta2).
func transform(x []float64) (phi, theta1, theta2 float64) {
	ar := constrainStationary(x[:1])
	ma := constrainStationary(x[1:3])
	return ar[0], -ma[0], -ma[1]
}

// constrainStationary maps unconstrained values to the coefficients of a
// stationary autoregressive polynomial via partial autocorrelations in (-1,1)
// and the Durbin-Levinson recursion.
func constrainStationary(u []float64) []float64 {
	n := len(u)
	r := make([]float64, n)
	for i, v := range u {
		r[i] = v / math.Sqrt(1+v*v)
	}
	prev := make([]float64, n)
	cur := make([]float64, n)
	for k := 0; k < n; k++ {
		for i := 0; i < k; i++ {
			cur[i] = prev[i] + r[k]*prev[k-i-1]
		}
		cur[k] = r[k]
		copy(prev, cur)
	}
	out := make([]float64, n)
	for i, v := range cur {
		out[i] = -v
	}
	return out
}
