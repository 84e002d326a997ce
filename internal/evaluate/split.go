// Package evaluate scores forecasting models on a holdout split. Split
// partitions a series by time, the metric functions compare a forecast with
// the test window, and Runner ties fitting, scoring and refitting together.
package evaluate

import (
	"math"

	"github.com/derickschaefer/forecast/internal/model"
)

// DefaultRatio is the default share of points used for training.
const DefaultRatio = 0.8

// Split returns the first floor(ratio·n) points as train and the rest as
// test. Order is preserved; nothing is shuffled.
func Split(ts model.TimeSeries, ratio float64, minTrain, minTest int) (model.Split, error) {
	n := ts.Len()
	if !(ratio > 0 && ratio < 1) {
		return model.Split{}, &model.InvalidSplitError{
			Op: "split", Ratio: ratio, N: n, Reason: "ratio must be strictly between 0 and 1",
		}
	}
	minTrain, minTest = max(minTrain, 1), max(minTest, 1)
	// The epsilon keeps 0.8·10 from landing on 7.999...
	trainLen := int(math.Floor(ratio*float64(n) + 1e-9))
	testLen := n - trainLen
	if trainLen < minTrain || testLen < minTest {
		return model.Split{}, &model.InvalidSplitError{
			Op: "split", Ratio: ratio, N: n, Train: trainLen, Test: testLen, MinTrain: minTrain, MinTest: minTest,
		}
	}
	return model.Split{
		Ratio: ratio,
		Train: ts.Slice(0, trainLen),
		Test:  ts.Slice(trainLen, n),
	}, nil
}
