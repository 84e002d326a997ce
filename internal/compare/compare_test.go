package compare_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/compare"
	"github.com/derickschaefer/forecast/internal/model"
)

func result(id, modelID string, at time.Time) model.EvaluationResult {
	return model.EvaluationResult{
		RunID: id, Model: modelID, Series: "s", TrainedAt: at,
		Metrics: map[string]float64{"mae": 1, "rmse": 2},
	}
}

func TestResults_StableOrder(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := compare.New(
		result("3", "prophet", t0),
		result("2", "arima", t0.Add(time.Hour)),
		result("1", "arima", t0),
		result("4", "nbeats", t0),
	)
	var ids []string
	for _, r := range c.Results() {
		ids = append(ids, r.RunID)
	}
	assert.Equal(t, []string{"1", "2", "4", "3"}, ids)
}

func TestResults_ReturnsCopy(t *testing.T) {
	c := compare.New(result("1", "arima", time.Now()))
	got := c.Results()
	got[0].Model = "changed"
	assert.Equal(t, "arima", c.Results()[0].Model)
}

func TestAdd_Concurrent(t *testing.T) {
	c := compare.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(result("x", "arima", time.Now()))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}

func TestTable_MetricColumns(t *testing.T) {
	r := result("1", "arima", time.Now())
	r.Metrics["custom"] = 3
	tbl := compare.New(r, result("2", "prophet", time.Now())).Table()
	require.Len(t, tbl.Rows, 2)
	var names []string
	for _, m := range tbl.Metrics {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"mae", "rmse", "mape", "custom"}, names)
	assert.True(t, tbl.Metrics[0].LowerIsBetter)
}

func TestForSeries(t *testing.T) {
	a := result("1", "arima", time.Now())
	b := result("2", "arima", time.Now())
	b.Series = "other"
	assert.Len(t, compare.New(a, b).ForSeries("other"), 1)
}
