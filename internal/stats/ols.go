// Package stats implements the time-series statistics the advisor and the
// models rely on: least squares, autocorrelation, the augmented
// Dickey-Fuller test and classical decomposition. Inputs are plain value
// slices without missing values.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a regression design matrix cannot be inverted.
var ErrSingular = errors.New("stats: singular design matrix")

// OLSResult holds least-squares coefficients and their standard errors.
type OLSResult struct {
	Coef   []float64
	StdErr []float64
	SSE    float64
}

// OLS regresses y on the rows of x. Standard errors are nil when there are
// no residual degrees of freedom.
func OLS(x [][]float64, y []float64) (OLSResult, error) {
	n := len(y)
	if n == 0 || len(x) != n || len(x[0]) == 0 {
		return OLSResult{}, errors.New("stats: empty or mismatched regression input")
	}
	k := len(x[0])
	data := make([]float64, 0, n*k)
	for _, row := range x {
		data = append(data, row...)
	}
	X := mat.NewDense(n, k, data)
	Y := mat.NewVecDense(n, append([]float64(nil), y...))

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return OLSResult{}, ErrSingular
	}
	var xty mat.VecDense
	xty.MulVec(X.T(), Y)
	var beta mat.VecDense
	beta.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	sse := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		sse += r * r
	}

	res := OLSResult{Coef: make([]float64, k), SSE: sse}
	for i := 0; i < k; i++ {
		res.Coef[i] = beta.AtVec(i)
	}
	if n > k {
		s2 := sse / float64(n-k)
		res.StdErr = make([]float64, k)
		for i := 0; i < k; i++ {
			res.StdErr[i] = math.Sqrt(s2 * inv.At(i, i))
		}
	}
	return res, nil
}

// Ridge solves (X'X + λI)β = X'y. It never fails for λ > 0.
func Ridge(x [][]float64, y []float64, lambda []float64) ([]float64, error) {
	n := len(y)
	if n == 0 || len(x) != n || len(x[0]) == 0 {
		return nil, errors.New("stats: empty or mismatched regression input")
	}
	k := len(x[0])
	data := make([]float64, 0, n*k)
	for _, row := range x {
		data = append(data, row...)
	}
	X := mat.NewDense(n, k, data)
	Y := mat.NewVecDense(n, append([]float64(nil), y...))

	var a mat.Dense
	a.Mul(X.T(), X)
	for i := 0; i < k; i++ {
		a.Set(i, i, a.At(i, i)+lambda[i])
	}
	var b mat.VecDense
	b.MulVec(X.T(), Y)
	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		return nil, ErrSingular
	}
	out := make([]float64, k)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}
