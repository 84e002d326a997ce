// Package outlier flags statistical outliers with the IQR rule and turns
// them into missing values, so the gap processor fills them the same way it
// fills true gaps.
package outlier

import (
	"fmt"
	"math"

	"github.com/derickschaefer/forecast/internal/analyze"
	"github.com/derickschaefer/forecast/internal/model"
)

// DefaultK is the conventional Tukey fence multiplier.
const DefaultK = 1.5

// Result describes one detection pass.
type Result struct {
	K         float64 `json:"k"`
	Q1        float64 `json:"q1"`
	Q3        float64 `json:"q3"`
	IQR       float64 `json:"iqr"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Positions []int   `json:"positions"`
}

// Count returns the number of flagged points.
func (r Result) Count() int { return len(r.Positions) }

// Detect returns the positions of known values outside
// [Q1 − k·IQR, Q3 + k·IQR]. Quartiles use linear interpolation over the
// known values. A zero IQR flags nothing.
func Detect(ts model.TimeSeries, k float64) (Result, error) {
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return Result{}, &model.UnsupportedConfigurationError{
			Op: "outlier", Key: "iqr_k", Value: fmt.Sprint(k), Reason: "must be a positive number",
		}
	}
	res := Result{K: k}
	known := ts.Known()
	if len(known) == 0 {
		return res, nil
	}
	res.Q1, res.Q3 = analyze.Quartiles(known)
	res.IQR = res.Q3 - res.Q1
	res.Lower = res.Q1 - k*res.IQR
	res.Upper = res.Q3 + k*res.IQR
	if res.IQR == 0 {
		return res, nil
	}
	for i, o := range ts.Obs {
		if o.IsMissing() {
			continue
		}
		if o.Value < res.Lower || o.Value > res.Upper {
			res.Positions = append(res.Positions, i)
		}
	}
	return res, nil
}

// Remove returns a copy of ts with every detected outlier set to missing.
func Remove(ts model.TimeSeries, k float64) (model.TimeSeries, Result, error) {
	res, err := Detect(ts, k)
	if err != nil {
		return model.TimeSeries{}, Result{}, err
	}
	out := ts.Clone()
	for _, i := range res.Positions {
		out.Obs[i].Value = math.NaN()
	}
	return out, res, nil
}
