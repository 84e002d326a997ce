package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/forecast/internal/logging"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New("info", "json", &buf)
	require.NoError(t, err)

	l.WithFields(logrus.Fields{"op": "train", "model": "arima"}).Info("fitted")
	l.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fitted", entry["msg"])
	assert.Equal(t, "arima", entry["model"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New("WARN", "text", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())

	l.Warn("careful")
	assert.Contains(t, buf.String(), "careful")
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := logging.New("loud", "text", nil)
	assert.Error(t, err)
	_, err = logging.New("info", "xml", nil)
	assert.Error(t, err)
}
