// Package normalize coerces raw delimited sources into typed, trimmed and
// case-normalized records and applies the per-column missing-value policy.
package normalize

// Kind is the target type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindDate
)

// Policy decides what happens to a row whose column value is missing after coercion.
type Policy int

const (
	// DropRow removes the whole row.
	DropRow Policy = iota
	// ZeroFill replaces a missing numeric with 0.
	ZeroFill
	// UnknownFill replaces a missing string with "unknown".
	UnknownFill
	// LeaveMissing keeps the value missing.
	LeaveMissing
)

func (p Policy) String() string {
	switch p {
	case DropRow:
		return "drop-row"
	case ZeroFill:
		return "zero-fill"
	case UnknownFill:
		return "unknown-fill"
	case LeaveMissing:
		return "leave-missing"
	default:
		return "invalid"
	}
}

// Constraint restricts numeric values; violations are treated as missing.
type Constraint int

const (
	Unconstrained Constraint = iota
	NonNegative
	Positive
)

// UnknownValue is the sentinel for missing string fields.
const UnknownValue = "unknown"

var (
	ticketDateLayouts  = []string{"1/2/2006"}
	weatherDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00", "1/2/2006"}
)

// Column declares one column of a source.
type Column struct {
	Name        string
	Aliases     []string
	Kind        Kind
	Lowercase   bool
	Policy      Policy
	Constraint  Constraint
	DateLayouts []string
}

// Spec declares the columns of one source.
type Spec struct {
	Source  string
	Columns []Column
}

// Policies returns the fill policy of every column by name.
func (s Spec) Policies() map[string]Policy {
	out := make(map[string]Policy, len(s.Columns))
	for _, c := range s.Columns {
		out[c.Name] = c.Policy
	}
	return out
}

func (s Spec) index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	panic("normalize: unknown column " + name + " in " + s.Source)
}

// Source names, also used as audit labels.
const (
	SourceTickets  = "tickets"
	SourceSections = "sections"
	SourceWeather  = "weather"
)

// TicketSpec describes raw ticket sales.
var TicketSpec = Spec{
	Source: SourceTickets,
	Columns: []Column{
		{Name: "event_date", Kind: KindDate, DateLayouts: ticketDateLayouts, Policy: DropRow},
		{Name: "ticket_price", Kind: KindFloat, Constraint: NonNegative, Policy: ZeroFill},
		{Name: "num_tickets", Kind: KindInt, Constraint: NonNegative, Policy: DropRow},
		{Name: "total_spend", Kind: KindFloat, Policy: DropRow},
		{Name: "section", Kind: KindString, Lowercase: true, Policy: UnknownFill},
		{Name: "purchase_channel", Kind: KindString, Lowercase: true, Policy: UnknownFill},
		{Name: "acct_id", Kind: KindString, Lowercase: true, Policy: UnknownFill},
		{Name: "row", Kind: KindInt, Policy: ZeroFill},
		{Name: "seat", Kind: KindInt, Policy: ZeroFill},
	},
}

// SectionSpec describes raw section capacities.
var SectionSpec = Spec{
	Source: SourceSections,
	Columns: []Column{
		{Name: "event_date", Kind: KindDate, DateLayouts: ticketDateLayouts, Policy: DropRow},
		{Name: "section", Kind: KindString, Lowercase: true, Policy: DropRow},
		{Name: "home_city", Kind: KindString, Lowercase: true, Policy: DropRow},
		{Name: "section_capacity", Kind: KindInt, Constraint: Positive, Policy: DropRow},
	},
}

// WeatherSpec describes raw daily weather with a city label. Every column is
// required; an empty precipitation or snow cell means none fell, any other
// empty measurement stays unknown.
var WeatherSpec = Spec{
	Source: SourceWeather,
	Columns: []Column{
		{Name: "event_date", Aliases: []string{"time", "date"}, Kind: KindDate, DateLayouts: weatherDateLayouts, Policy: DropRow},
		{Name: "avg_temp_c", Aliases: []string{"tavg"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "min_temp_c", Aliases: []string{"tmin"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "max_temp_c", Aliases: []string{"tmax"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "precip_mm", Aliases: []string{"prcp"}, Kind: KindFloat, Policy: ZeroFill},
		{Name: "snow_mm", Aliases: []string{"snow"}, Kind: KindFloat, Policy: ZeroFill},
		{Name: "wind_dir_deg", Aliases: []string{"wdir"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "wind_speed_kmh", Aliases: []string{"wspd"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "wind_gust_kmh", Aliases: []string{"wpgt"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "pressure_hpa", Aliases: []string{"pres"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "sun_minutes", Aliases: []string{"tsun"}, Kind: KindFloat, Policy: LeaveMissing},
		{Name: "city", Kind: KindString, Lowercase: true, Policy: DropRow},
	},
}
