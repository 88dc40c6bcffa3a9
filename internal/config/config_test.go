package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

func TestGetConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfigFile, "")

	assert.Equal(t, filepath.Join(home, ".ticketstar"), GetConfigPath())
	assert.Equal(t, filepath.Join(home, ".ticketstar", "ticketstar.yaml"), GetConfigFile())
}

func TestGetConfigFileFromEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	t.Setenv(EnvConfigFile, file)

	assert.Equal(t, file, GetConfigFile())
	assert.Equal(t, dir, GetConfigPath())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfigFile, "")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", cfg.DateRange.Start)
	assert.Equal(t, "2025-02-28", cfg.DateRange.End)
	assert.Equal(t, "71508", cfg.Stations["toronto"])
	assert.Len(t, cfg.Stations, 8)
	assert.Equal(t, VenueScopeDate, cfg.Model.VenueScope)
	assert.False(t, cfg.Model.FanOut)
	assert.Equal(t, "data/cleaned", cfg.Output.Dir)
	assert.Equal(t, DriverSnowflake, cfg.Warehouse.Driver)
	assert.NoError(t, Validate(cfg))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticketstar.yaml")
	content := `
date_range:
  start: "2025-01-10"
  end: "2025-01-20"
stations:
  " Toronto ": "71508"
sources:
  tickets: in/tickets.csv
  sections: in/sections.csv
  weather: in/weather.csv
model:
  venue_scope: SECTION
  fan_out: true
warehouse:
  driver: postgres
  dsn: postgres://localhost/analytics
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "2025-01-10", cfg.DateRange.Start)
	assert.Equal(t, map[string]string{"toronto": "71508"}, cfg.Stations)
	assert.Equal(t, "in/tickets.csv", cfg.Sources.Tickets)
	assert.Equal(t, VenueScopeSection, cfg.Model.VenueScope)
	assert.True(t, cfg.Model.FanOut)
	assert.Equal(t, DriverPostgres, cfg.Warehouse.Driver)
	assert.NoError(t, ValidateWarehouse(cfg))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigMissing, errors.GetErrorCode(err))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfigFile, "")
	t.Setenv("TICKETSTAR_WAREHOUSE_PASSWORD", "from-env")
	t.Setenv("TICKETSTAR_OUTPUT_DIR", "/tmp/star")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Warehouse.Password)
	assert.Equal(t, "/tmp/star", cfg.Output.Dir)
}

func validConfig() *models.Config {
	return &models.Config{
		DateRange: models.DateRange{Start: "2025-01-01", End: "2025-02-28"},
		Stations:  DefaultStations(),
		Sources:   models.Sources{Tickets: "t.csv", Sections: "s.csv", Weather: "w.csv"},
		Output:    models.Output{Dir: "out"},
		Model:     models.Model{VenueScope: VenueScopeDate},
		Weather:   models.WeatherSource{BaseURL: "http://example", Timeout: "10s", Concurrency: 2},
		Warehouse: models.Warehouse{
			Driver: DriverSnowflake, Account: "acct", Username: "loader",
			Warehouse: "WH", Database: "DB", Schema: "PUBLIC", Timeout: "1m",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Config)
		field  string
	}{
		{"valid", func(*models.Config) {}, ""},
		{"bad start", func(c *models.Config) { c.DateRange.Start = "01/01/2025" }, "date_range.start"},
		{"end before start", func(c *models.Config) { c.DateRange.End = "2024-12-31" }, "date_range.end"},
		{"missing tickets", func(c *models.Config) { c.Sources.Tickets = "" }, "sources.tickets"},
		{"missing sections", func(c *models.Config) { c.Sources.Sections = "" }, "sources.sections"},
		{"missing weather", func(c *models.Config) { c.Sources.Weather = "" }, "sources.weather"},
		{"missing output", func(c *models.Config) { c.Output.Dir = "" }, "output.dir"},
		{"unknown scope", func(c *models.Config) { c.Model.VenueScope = "arena" }, "model.venue_scope"},
		{"bad timeout", func(c *models.Config) { c.Weather.Timeout = "soon" }, "weather.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Context["field"])
		})
	}
}

func TestValidateFetch(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, ValidateFetch(cfg))

	cfg.Stations = map[string]string{}
	assert.Error(t, ValidateFetch(cfg))
}

func TestValidateWarehouse(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, ValidateWarehouse(cfg))

	cfg.Warehouse.Schema = ""
	err := ValidateWarehouse(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse.schema")

	cfg.Warehouse.Driver = "bigquery"
	assert.Error(t, ValidateWarehouse(cfg))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ticketstar.yaml")
	cfg := validConfig()

	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Warehouse.Account, loaded.Warehouse.Account)
	assert.Equal(t, cfg.Stations, loaded.Stations)
	assert.Equal(t, cfg.Sources, loaded.Sources)
}

type fakeStore map[string]string

func (f fakeStore) Get(name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("not found: %s", name)
}

func TestResolveWarehousePassword(t *testing.T) {
	store := fakeStore{
		"warehouse-snowflake-loader": "default-secret",
		"prod":                       "ref-secret",
	}

	cfg := validConfig()
	require.NoError(t, ResolveWarehousePassword(cfg, store))
	assert.Equal(t, "default-secret", cfg.Warehouse.Password)

	cfg = validConfig()
	cfg.Warehouse.Password = "@credential:prod"
	require.NoError(t, ResolveWarehousePassword(cfg, store))
	assert.Equal(t, "ref-secret", cfg.Warehouse.Password)

	cfg = validConfig()
	cfg.Warehouse.Password = "literal"
	require.NoError(t, ResolveWarehousePassword(cfg, nil))
	assert.Equal(t, "literal", cfg.Warehouse.Password)

	cfg = validConfig()
	cfg.Warehouse.Password = "@credential:missing"
	assert.Error(t, ResolveWarehousePassword(cfg, store))
}
