// Package snapshot serializes the star schema as delimited text artifacts and
// publishes them atomically.
package snapshot

import "fmt"

// ColumnType is the logical type of a snapshot column. Warehouse loaders map
// it to a native type.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInteger
	TypeFloat
	TypeDate
	TypeBoolean
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeDate:
		return "date"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Column describes one column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a named set of rows already rendered to text.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]string
}

// Header returns the column names.
func (t Table) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Table names.
const (
	DimDate     = "dim_date"
	DimVenue    = "dim_venue"
	DimWeather  = "dim_weather"
	DimChannel  = "dim_channel"
	DimCustomer = "dim_customer"
	FactSales   = "fact_ticket_sales"
)

// Tables lists every artifact in publish order: dimensions first, fact last.
var Tables = []string{DimDate, DimVenue, DimWeather, DimChannel, DimCustomer, FactSales}

// FactClusterBy is the clustering hint for the fact table.
var FactClusterBy = []string{"event_date", "venue_id", "channel_id"}

var weatherColumns = []Column{
	{"event_date", TypeDate},
	{"avg_temp_c", TypeFloat},
	{"min_temp_c", TypeFloat},
	{"max_temp_c", TypeFloat},
	{"precip_mm", TypeFloat},
	{"snow_mm", TypeFloat},
	{"wind_dir_deg", TypeFloat},
	{"wind_speed_kmh", TypeFloat},
	{"wind_gust_kmh", TypeFloat},
	{"pressure_hpa", TypeFloat},
	{"sun_minutes", TypeFloat},
	{"city", TypeString},
}

var schemas = map[string][]Column{
	DimDate: {
		{"event_date", TypeDate},
		{"date_id", TypeInteger},
		{"day", TypeInteger},
		{"month", TypeInteger},
		{"month_name", TypeString},
		{"year", TypeInteger},
		{"weekday", TypeInteger},
		{"weekday_name", TypeString},
		{"is_weekend", TypeBoolean},
		{"week_of_year", TypeInteger},
	},
	DimVenue: {
		{"event_date", TypeDate},
		{"section", TypeString},
		{"home_city", TypeString},
		{"section_capacity", TypeInteger},
		{"venue_id", TypeInteger},
	},
	DimWeather: append(append([]Column{}, weatherColumns...), Column{"weather_id", TypeInteger}),
	DimChannel: {
		{"purchase_channel", TypeString},
		{"channel_id", TypeInteger},
	},
	DimCustomer: {
		{"acct_id", TypeString},
		{"customer_id", TypeInteger},
	},
	FactSales: {
		{"event_date", TypeDate},
		{"date_id", TypeInteger},
		{"venue_id", TypeInteger},
		{"customer_id", TypeInteger},
		{"channel_id", TypeInteger},
		{"weather_id", TypeInteger},
		{"num_tickets", TypeInteger},
		{"ticket_price", TypeFloat},
		{"total_spend", TypeFloat},
	},
}

// Schema returns the columns of a named table.
func Schema(name string) ([]Column, error) {
	cols, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return append([]Column(nil), cols...), nil
}

// RawWeatherColumns is the layout of the combined raw weather file produced by
// the weather fetcher, in the provider's short column names.
var RawWeatherColumns = []Column{
	{"time", TypeDate},
	{"tavg", TypeFloat},
	{"tmin", TypeFloat},
	{"tmax", TypeFloat},
	{"prcp", TypeFloat},
	{"snow", TypeFloat},
	{"wdir", TypeFloat},
	{"wspd", TypeFloat},
	{"wpgt", TypeFloat},
	{"pres", TypeFloat},
	{"tsun", TypeFloat},
	{"city", TypeString},
}
