package fred

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/util"
)

// ObsOptions holds optional parameters for GetObservations.
type ObsOptions struct {
	Start string // YYYY-MM-DD
	End   string // YYYY-MM-DD
}

// GetObservations fetches the observations of one series. FRED writes
// missing values as "."; they become missing observations. The series name
// is name when set, otherwise the upper-cased ID.
func (c *Client) GetObservations(ctx context.Context, seriesID, name string, opts ObsOptions) (model.TimeSeries, error) {
	id := strings.ToUpper(seriesID)
	params := url.Values{}
	params.Set("series_id", id)
	if opts.Start != "" {
		params.Set("observation_start", opts.Start)
	}
	if opts.End != "" {
		params.Set("observation_end", opts.End)
	}

	var raw struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	}
	if err := c.get(ctx, "series/observations", params, &raw); err != nil {
		return model.TimeSeries{}, fmt.Errorf("observations %s: %w", id, err)
	}

	obs := make([]model.Observation, 0, len(raw.Observations))
	for _, o := range raw.Observations {
		date, err := util.ParseDate(o.Date)
		if err != nil {
			continue // skip malformed dates
		}
		v, ok := util.ParseValue(o.Value)
		if !ok {
			return model.TimeSeries{}, fmt.Errorf("observations %s: value %q on %s is not numeric", id, o.Value, o.Date)
		}
		obs = append(obs, model.Observation{Date: date, Value: v})
	}
	if len(obs) == 0 {
		return model.TimeSeries{}, fmt.Errorf("observations %s: no observations returned", id)
	}
	if name == "" {
		name = id
	}
	ts, err := model.NewTimeSeries(name, obs)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("observations %s: %w", id, err)
	}
	ts.Source = "fred:" + id
	return ts, nil
}
