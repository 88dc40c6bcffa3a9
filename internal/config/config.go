package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"ticketstar/internal/common"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

const (
	// EnvConfigFile overrides the configuration file location.
	EnvConfigFile = "TICKETSTAR_CONFIG"
	envPrefix     = "TICKETSTAR"
	fileName      = "ticketstar.yaml"

	// DateLayout is the layout of configured dates.
	DateLayout = "2006-01-02"

	VenueScopeDate    = "date"
	VenueScopeSection = "section"

	DriverSnowflake = "snowflake"
	DriverPostgres  = "postgres"
)

func GetConfigPath() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		return filepath.Dir(configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ticketstar")
}

func GetConfigFile() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), fileName)
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), fileName)
}

// DefaultStations maps the league cities to their Meteostat station ids.
func DefaultStations() map[string]string {
	return map[string]string{
		"toronto":   "71508",
		"montreal":  "71627",
		"new york":  "72502",
		"boston":    "72509",
		"seattle":   "72793",
		"ottawa":    "71063",
		"minnesota": "72658",
		"vancouver": "71892",
	}
}

// SetDefaults registers every key with its default so environment overrides
// (TICKETSTAR_WAREHOUSE_PASSWORD, ...) are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("date_range.start", "2025-01-01")
	v.SetDefault("date_range.end", "2025-02-28")
	v.SetDefault("sources.tickets", "data/pwhl_ticket_sales.csv")
	v.SetDefault("sources.sections", "data/game_section_capacity.csv")
	v.SetDefault("sources.weather", "data/weather_jan_feb_2025.csv")
	v.SetDefault("output.dir", "data/cleaned")
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("model.venue_scope", VenueScopeDate)
	v.SetDefault("model.fan_out", false)
	v.SetDefault("weather.base_url", "https://bulk.meteostat.net/v2")
	v.SetDefault("weather.timeout", "30s")
	v.SetDefault("weather.requests_per_second", 2.0)
	v.SetDefault("weather.concurrency", 4)
	v.SetDefault("weather.max_retries", 3)
	v.SetDefault("warehouse.driver", DriverSnowflake)
	v.SetDefault("warehouse.account", "")
	v.SetDefault("warehouse.username", "")
	v.SetDefault("warehouse.password", "")
	v.SetDefault("warehouse.role", "")
	v.SetDefault("warehouse.warehouse", "")
	v.SetDefault("warehouse.database", "")
	v.SetDefault("warehouse.schema", "")
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("warehouse.timeout", "5m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration into v. An explicit file must exist; otherwise the
// default locations are searched and a missing file leaves the defaults in place.
func Load(v *viper.Viper, file string) (*models.Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" && os.Getenv(EnvConfigFile) != "" {
		file = GetConfigFile()
	}

	if file != "" {
		cleaned, err := common.CleanPath(file)
		if err != nil {
			return nil, fmt.Errorf("invalid config file path: %w", err)
		}
		v.SetConfigFile(cleaned)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigMissing, "failed to read config file").
				WithContext("path", cleaned)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(GetConfigPath())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file")
			}
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&cfg)
	return &cfg, nil
}

// normalize lower-cases station cities so they line up with normalized weather
// rows. Stations are defaulted here rather than in viper, which would merge the
// default map into a configured one.
func normalize(cfg *models.Config) {
	if len(cfg.Stations) == 0 {
		cfg.Stations = DefaultStations()
	}
	stations := make(map[string]string, len(cfg.Stations))
	for city, id := range cfg.Stations {
		stations[strings.ToLower(strings.TrimSpace(city))] = strings.TrimSpace(id)
	}
	cfg.Stations = stations
	cfg.Model.VenueScope = strings.ToLower(strings.TrimSpace(cfg.Model.VenueScope))
	cfg.Warehouse.Driver = strings.ToLower(strings.TrimSpace(cfg.Warehouse.Driver))
}

// Validate checks the settings every stage needs.
func Validate(cfg *models.Config) error {
	if _, _, err := DateBounds(cfg); err != nil {
		return err
	}
	if cfg.Sources.Tickets == "" {
		return errors.ConfigError("tickets source path is required", "sources.tickets")
	}
	if cfg.Sources.Sections == "" {
		return errors.ConfigError("sections source path is required", "sources.sections")
	}
	if cfg.Sources.Weather == "" {
		return errors.ConfigError("weather source path is required", "sources.weather")
	}
	if cfg.Output.Dir == "" {
		return errors.ConfigError("output directory is required", "output.dir")
	}
	switch cfg.Model.VenueScope {
	case VenueScopeDate, VenueScopeSection:
	default:
		return errors.ConfigError(fmt.Sprintf("unknown venue scope %q", cfg.Model.VenueScope), "model.venue_scope")
	}
	if _, err := ParseDuration(cfg.Weather.Timeout, "weather.timeout"); err != nil {
		return err
	}
	if _, err := ParseDuration(cfg.Warehouse.Timeout, "warehouse.timeout"); err != nil {
		return err
	}
	return nil
}

// ValidateFetch checks the settings of the weather acquisition stage.
func ValidateFetch(cfg *models.Config) error {
	if len(cfg.Stations) == 0 {
		return errors.ConfigError("at least one station is required", "stations")
	}
	if cfg.Weather.BaseURL == "" {
		return errors.ConfigError("weather base URL is required", "weather.base_url")
	}
	if cfg.Weather.Concurrency < 1 {
		return errors.ConfigError("weather concurrency must be positive", "weather.concurrency")
	}
	return nil
}

// ValidateWarehouse checks the settings of the upload stage.
func ValidateWarehouse(cfg *models.Config) error {
	w := cfg.Warehouse
	switch w.Driver {
	case DriverSnowflake:
		required := []struct{ field, value string }{
			{"warehouse.account", w.Account},
			{"warehouse.username", w.Username},
			{"warehouse.warehouse", w.Warehouse},
			{"warehouse.database", w.Database},
			{"warehouse.schema", w.Schema},
		}
		for _, r := range required {
			if r.value == "" {
				return errors.ConfigError(fmt.Sprintf("%s is required for snowflake", r.field), r.field)
			}
		}
	case DriverPostgres:
		if w.DSN == "" {
			return errors.ConfigError("warehouse.dsn is required for postgres", "warehouse.dsn")
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unknown warehouse driver %q", w.Driver), "warehouse.driver")
	}
	return nil
}

// DateBounds parses the configured closed date range.
func DateBounds(cfg *models.Config) (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, cfg.DateRange.Start)
	if err != nil {
		return time.Time{}, time.Time{}, errors.ConfigError(fmt.Sprintf("invalid start date %q", cfg.DateRange.Start), "date_range.start")
	}
	end, err := time.Parse(DateLayout, cfg.DateRange.End)
	if err != nil {
		return time.Time{}, time.Time{}, errors.ConfigError(fmt.Sprintf("invalid end date %q", cfg.DateRange.End), "date_range.end")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.ConfigError("end date is before start date", "date_range.end")
	}
	return start, end, nil
}

// ParseDuration parses a configured duration; empty means zero.
func ParseDuration(value, field string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, errors.ConfigError(fmt.Sprintf("invalid duration %q", value), field)
	}
	return d, nil
}

func Save(config *models.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
