package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konitys/antennes-api/internal/config"
)

func TestNewLogger_JSONFieldsAndLevel(t *testing.T) {
	cfg := config.DefaultObservabilityConfig()
	cfg.Environment = "production"
	cfg.Logging.Level = "warn"

	var buf bytes.Buffer
	log := newLogger(cfg, nil, &buf)

	log.Info().Msg("dropped")
	log.Warn().Str("antenne_id", "7").Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, config.ServiceName, entry["service"])
	assert.Equal(t, "production", entry["environment"])
	assert.Equal(t, "7", entry["antenne_id"])
}

func TestNewLogger_DefaultLevelByEnvironment(t *testing.T) {
	cfg := config.DefaultObservabilityConfig()
	cfg.Environment = "development"
	cfg.Logging.Level = ""

	log := newLogger(cfg, nil, &bytes.Buffer{})
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestLoggerService_Disabled(t *testing.T) {
	service, err := NewLoggerService(config.DefaultObservabilityConfig())
	require.NoError(t, err)
	assert.Nil(t, service.GetApplication())

	var nilService *LoggerService
	assert.Nil(t, nilService.GetApplication())
	nilService.Shutdown()
}

func TestGetPgxTraceLogLevel(t *testing.T) {
	assert.Equal(t, int(tracelog.LogLevelDebug), GetPgxTraceLogLevel(zerolog.DebugLevel))
	assert.Equal(t, int(tracelog.LogLevelInfo), GetPgxTraceLogLevel(zerolog.InfoLevel))
	assert.Equal(t, int(tracelog.LogLevelWarn), GetPgxTraceLogLevel(zerolog.WarnLevel))
	assert.Equal(t, int(tracelog.LogLevelError), GetPgxTraceLogLevel(zerolog.ErrorLevel))
	assert.Equal(t, int(tracelog.LogLevelNone), GetPgxTraceLogLevel(zerolog.Disabled))
}

func TestWithTraceContext_NilTransaction(t *testing.T) {
	var buf bytes.Buffer
	log := WithTraceContext(zerolog.New(&buf), nil)
	log.Info().Msg("x")

	assert.NotContains(t, buf.String(), "trace.id")
}
