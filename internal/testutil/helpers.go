package testutil

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"ticketstar/internal/common"
	"ticketstar/internal/config"
	"ticketstar/internal/observability"
	"ticketstar/pkg/models"
)

// TestHelper provides common test utilities
type TestHelper struct {
	t *testing.T
}

// NewTestHelper creates a new test helper
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// WriteFile writes content to a file in the given directory
func (h *TestHelper) WriteFile(dir, filename, content string) string {
	h.t.Helper()
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		h.t.Fatalf("Failed to create directories: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), common.FilePermissionSecure); err != nil {
		h.t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

// Sources holds the contents of the three source files.
type Sources struct {
	Tickets  string
	Sections string
	Weather  string
}

// WriteSources writes the sources into dir and returns a configuration that
// reads them and publishes into dir/cleaned.
func (h *TestHelper) WriteSources(dir string, src Sources) *models.Config {
	h.t.Helper()
	return &models.Config{
		DateRange: models.DateRange{Start: "2025-01-01", End: "2025-02-28"},
		Stations:  config.DefaultStations(),
		Sources: models.Sources{
			Tickets:  h.WriteFile(dir, "tickets.csv", src.Tickets),
			Sections: h.WriteFile(dir, "sections.csv", src.Sections),
			Weather:  h.WriteFile(dir, "weather.csv", src.Weather),
		},
		Output: models.Output{
			Dir:         filepath.Join(dir, "cleaned"),
			MetricsFile: filepath.Join(dir, "ticketstar.prom"),
		},
		Model: models.Model{VenueScope: config.VenueScopeDate},
	}
}

// Gzip compresses body.
func (h *TestHelper) Gzip(body string) []byte {
	h.t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(body)); err != nil {
		h.t.Fatalf("Failed to compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		h.t.Fatalf("Failed to compress: %v", err)
	}
	return buf.Bytes()
}

// Logger returns a text logger at debug level writing into the returned buffer.
func (h *TestHelper) Logger() (*observability.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:  observability.DebugLevel,
		Output: &buf,
		Format: "text",
	})
	return logger, &buf
}
