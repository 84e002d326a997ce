package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ADFResult is the outcome of an augmented Dickey-Fuller test with a
// constant term. The null hypothesis is a unit root.
type ADFResult struct {
	Statistic  float64
	PValue     float64
	Lags       int
	NObs       int
	Stationary bool
}

// ADFMinPoints is the shortest series ADF will test.
const ADFMinPoints = 10

// ADF regresses Δy_t on [1, y_{t-1}, Δy_{t-1}, ..., Δy_{t-lags}] and tests
// the level coefficient. A non-positive maxLag selects floor((n-1)^(1/3)).
// ok is false when the series is too short, constant or singular.
func ADF(vals []float64, maxLag int) (ADFResult, bool) {
	n := len(vals)
	if n < ADFMinPoints {
		return ADFResult{}, false
	}
	if maxLag <= 0 {
		maxLag = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	if maxLag >= n-1 {
		maxLag = n - 2
	}
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = vals[i] - vals[i-1]
	}

	nObs := n - maxLag - 1
	if nObs < ADFMinPoints {
		return ADFResult{}, false
	}
	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff[t]
		row := make([]float64, 2+maxLag)
		row[0] = 1
		row[1] = vals[t]
		for j := 1; j <= maxLag; j++ {
			row[1+j] = diff[t-j]
		}
		x[i] = row
	}

	fit, err := OLS(x, y)
	if err != nil || fit.StdErr == nil || fit.StdErr[1] == 0 || math.IsNaN(fit.StdErr[1]) {
		return ADFResult{}, false
	}
	tStat := fit.Coef[1] / fit.StdErr[1]
	p := MacKinnonP(tStat)
	return ADFResult{
		Statistic:  tStat,
		PValue:     p,
		Lags:       maxLag,
		NObs:       nObs,
		Stationary: p < 0.05,
	}, true
}

// MacKinnon (1994) response-surface coefficients for the constant-only case.
var (
	tauMin    = -18.83
	tauMax    = 2.74
	tauStar   = -1.61
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// MacKinnonP approximates the asymptotic p-value of an ADF statistic.
func MacKinnonP(tau float64) float64 {
	switch {
	case tau > tauMax:
		return 1
	case tau < tauMin:
		return 0
	}
	coef := tauLargeP
	if tau <= tauStar {
		coef = tauSmallP
	}
	z, pow := 0.0, 1.0
	for _, c := range coef {
		z += c * pow
		pow *= tau
	}
	return distuv.UnitNormal.CDF(z)
}
