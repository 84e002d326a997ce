package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/model"
	"github.com/derickschaefer/forecast/internal/models/builtin"
)

func TestRegistry_Bundled(t *testing.T) {
	r := builtin.Registry()
	assert.Equal(t, []string{"arima", "nbeats", "prophet"}, r.IDs())

	fams := map[string]model.Family{}
	for _, info := range r.List() {
		fams[info.ID] = info.Family
		assert.NotEmpty(t, info.Params, info.ID)
	}
	assert.Equal(t, model.FamilyClassical, fams["arima"])
	assert.Equal(t, model.FamilyBusiness, fams["prophet"])
	assert.Equal(t, model.FamilyDeepLearning, fams["nbeats"])

	m, err := r.Get("prophet")
	require.NoError(t, err)
	assert.Equal(t, "prophet", m.ID())
}
