// Package builtin assembles the registry of bundled forecasting backends.
package builtin

import (
	"github.com/derickschaefer/forecast/internal/models"
	"github.com/derickschaefer/forecast/internal/models/arima"
	"github.com/derickschaefer/forecast/internal/models/nbeats"
	"github.com/derickschaefer/forecast/internal/models/prophet"
)

// Registry returns a fresh registry with arima, prophet and nbeats.
func Registry() *models.Registry {
	return models.NewRegistry(arima.New(), prophet.New(), nbeats.New())
}
