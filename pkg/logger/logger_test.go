package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

func TestNew_JSONConServicioYTenant(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "debug", Service: "api", Output: &buf})

	log.WithTenant("t-1").WithComponent("engine").Info().Str("campaign_id", "c-1").Msg("conciliación aplicada")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api", line["service"])
	assert.Equal(t, "t-1", line["tenant_id"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "c-1", line["campaign_id"])
	assert.Equal(t, "info", line["level"])
}

func TestNew_NivelFiltra(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "warn", Output: &buf})

	log.Info().Msg("no aparece")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("aparece")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, logger.ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.ErrorLevel, logger.ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, logger.ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, logger.ParseLevel("verbose"))
}
