package zerolog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/raykavin/screener/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithWriter(&buf, "debug", "15:04:05", false, true)
	require.NoError(t, err)

	log.WithField("symbol", "BTCUSDT").
		WithError(errors.New("boom")).
		Warn("skipping symbol")

	out := buf.String()
	require.Contains(t, out, `"symbol":"BTCUSDT"`)
	require.Contains(t, out, `"error":"boom"`)
	require.Contains(t, out, "skipping symbol")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := newWithWriter(&bytes.Buffer{}, "loud", "", false, true)
	require.Error(t, err)
}

func TestLevelConversion(t *testing.T) {
	for _, level := range []logger.Level{logger.DebugLevel, logger.InfoLevel, logger.ErrorLevel} {
		require.Equal(t, level, toLevel(toZerologLevel(level)))
	}
}
