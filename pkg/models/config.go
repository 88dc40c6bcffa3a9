package models

type Config struct {
	DateRange DateRange         `yaml:"date_range" mapstructure:"date_range"`
	Stations  map[string]string `yaml:"stations" mapstructure:"stations"` // city -> station id
	Sources   Sources           `yaml:"sources" mapstructure:"sources"`
	Output    Output            `yaml:"output" mapstructure:"output"`
	Model     Model             `yaml:"model" mapstructure:"model"`
	Weather   WeatherSource     `yaml:"weather" mapstructure:"weather"`
	Warehouse Warehouse         `yaml:"warehouse" mapstructure:"warehouse"`
	Logging   Logging           `yaml:"logging" mapstructure:"logging"`
}

// DateRange is the closed range of days fetched from the weather provider.
type DateRange struct {
	Start string `yaml:"start" mapstructure:"start"` // YYYY-MM-DD
	End   string `yaml:"end" mapstructure:"end"`
}

type Sources struct {
	Tickets  string `yaml:"tickets" mapstructure:"tickets"`
	Sections string `yaml:"sections" mapstructure:"sections"`
	Weather  string `yaml:"weather" mapstructure:"weather"`
}

type Output struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// Model contains the modeling choices of the star schema.
type Model struct {
	VenueScope string `yaml:"venue_scope" mapstructure:"venue_scope"` // "date" or "section"
	FanOut     bool   `yaml:"fan_out" mapstructure:"fan_out"`         // allow one ticket to match several home cities
}

// WeatherSource configures the daily weather provider.
type WeatherSource struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout           string  `yaml:"timeout" mapstructure:"timeout"` // e.g., "30s"
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// Warehouse configures the analytical warehouse the snapshots are loaded into.
type Warehouse struct {
	Driver    string `yaml:"driver" mapstructure:"driver"` // "snowflake" or "postgres"
	Account   string `yaml:"account" mapstructure:"account"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password,omitempty" mapstructure:"password"`
	Role      string `yaml:"role" mapstructure:"role"`
	Warehouse string `yaml:"warehouse" mapstructure:"warehouse"`
	Database  string `yaml:"database" mapstructure:"database"`
	Schema    string `yaml:"schema" mapstructure:"schema"`
	DSN       string `yaml:"dsn,omitempty" mapstructure:"dsn"` // postgres only
	Timeout   string `yaml:"timeout" mapstructure:"timeout"`
}

type Logging struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "json" or "text"
}
