package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   DebugLevel,
		Output:  &buf,
		Service: "test-service",
		Version: "1.0.0",
	})

	logger.Info("test message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "test-service", entry["service"])
	assert.Equal(t, "info", entry["level"])
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: InfoLevel, Output: &buf})

	logger.WithField("run_id", "abc").InfoWithFields("rows loaded", map[string]interface{}{
		"source": "tickets",
		"rows":   123,
	})

	output := buf.String()
	assert.Contains(t, output, `"run_id":"abc"`)
	assert.Contains(t, output, `"source":"tickets"`)
	assert.Contains(t, output, `"rows":123`)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: WarnLevel, Output: &buf, Format: "text"})

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestLogLevelFromString(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, LogLevelFromString(in), in)
	}
}

func TestAuditCounters(t *testing.T) {
	audit := NewAudit()

	audit.RecordRows("tickets", "read", 10)
	audit.RecordRows("tickets", "dropped", 2)
	audit.RecordFill("weather", "precip_mm", 3)
	audit.RecordJoin("weather", "unmatched", 4)
	audit.RecordTable("dim_date", 7)

	assert.Equal(t, 10.0, testutil.ToFloat64(audit.Counter("tickets", "read")))
	assert.Equal(t, 2.0, testutil.ToFloat64(audit.Counter("tickets", "dropped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(audit.fills.WithLabelValues("weather", "precip_mm")))
	assert.Equal(t, 7.0, testutil.ToFloat64(audit.tables.WithLabelValues("dim_date")))
}

func TestAuditWriteTextfile(t *testing.T) {
	audit := NewAudit()
	audit.RecordRows("sections", "kept", 5)

	path := filepath.Join(t.TempDir(), "ticketstar.prom")
	require.NoError(t, audit.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `ticketstar_rows_total{outcome="kept",source="sections"} 5`))
}
