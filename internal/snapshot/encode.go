package snapshot

import (
	"database/sql"
	"strconv"
	"time"

	"ticketstar/pkg/models"
)

// DateLayout is the serialized form of every date column.
const DateLayout = time.DateOnly

// FromStar renders the star schema into its six tables, in publish order.
func FromStar(star models.StarSchema) []Table {
	return []Table{
		DateTable(star.Dates),
		VenueTable(star.Venues),
		WeatherTable(star.Weather),
		ChannelTable(star.Channels),
		CustomerTable(star.Customers),
		FactTable(star.Sales),
	}
}

func newTable(name string, rows int) Table {
	return Table{Name: name, Columns: schemas[name], Rows: make([][]string, 0, rows)}
}

// DateTable renders dim_date.
func DateTable(rows []models.DateDimension) Table {
	t := newTable(DimDate, len(rows))
	for _, d := range rows {
		t.Rows = append(t.Rows, []string{
			formatDate(d.EventDate),
			formatInt(d.DateID),
			strconv.Itoa(d.Day),
			strconv.Itoa(d.Month),
			d.MonthName,
			strconv.Itoa(d.Year),
			strconv.Itoa(d.Weekday),
			d.WeekdayName,
			formatBool(d.IsWeekend),
			strconv.Itoa(d.WeekOfYear),
		})
	}
	return t
}

// VenueTable renders dim_venue. A section-scoped venue has an empty event_date.
func VenueTable(rows []models.VenueDimension) Table {
	t := newTable(DimVenue, len(rows))
	for _, v := range rows {
		t.Rows = append(t.Rows, []string{
			formatDate(v.EventDate),
			v.Section,
			v.HomeCity,
			formatInt(v.SectionCapacity),
			formatInt(v.VenueID),
		})
	}
	return t
}

// WeatherTable renders dim_weather.
func WeatherTable(rows []models.WeatherDimension) Table {
	t := newTable(DimWeather, len(rows))
	for _, w := range rows {
		t.Rows = append(t.Rows, append(weatherCells(w.WeatherObservation), formatInt(w.WeatherID)))
	}
	return t
}

// RawWeatherTable renders observations in the provider layout.
func RawWeatherTable(name string, rows []models.WeatherObservation) Table {
	t := Table{Name: name, Columns: RawWeatherColumns, Rows: make([][]string, 0, len(rows))}
	for _, o := range rows {
		t.Rows = append(t.Rows, weatherCells(o))
	}
	return t
}

func weatherCells(o models.WeatherObservation) []string {
	return []string{
		formatDate(o.EventDate),
		formatNullFloat(o.AvgTempC),
		formatNullFloat(o.MinTempC),
		formatNullFloat(o.MaxTempC),
		formatNullFloat(o.PrecipMM),
		formatNullFloat(o.SnowMM),
		formatNullFloat(o.WindDirDeg),
		formatNullFloat(o.WindSpeedKmh),
		formatNullFloat(o.WindGustKmh),
		formatNullFloat(o.PressureHpa),
		formatNullFloat(o.SunMinutes),
		o.City,
	}
}

// ChannelTable renders dim_channel.
func ChannelTable(rows []models.ChannelDimension) Table {
	t := newTable(DimChannel, len(rows))
	for _, c := range rows {
		t.Rows = append(t.Rows, []string{c.PurchaseChannel, formatInt(c.ChannelID)})
	}
	return t
}

// CustomerTable renders dim_customer.
func CustomerTable(rows []models.CustomerDimension) Table {
	t := newTable(DimCustomer, len(rows))
	for _, c := range rows {
		t.Rows = append(t.Rows, []string{c.AcctID, formatInt(c.CustomerID)})
	}
	return t
}

// FactTable renders fact_ticket_sales. Null foreign keys are empty cells.
func FactTable(rows []models.TicketSaleFact) Table {
	t := newTable(FactSales, len(rows))
	for _, f := range rows {
		t.Rows = append(t.Rows, []string{
			formatDate(f.EventDate),
			formatNullInt(f.DateID),
			formatNullInt(f.VenueID),
			formatNullInt(f.CustomerID),
			formatNullInt(f.ChannelID),
			formatNullInt(f.WeatherID),
			formatInt(f.NumTickets),
			formatFloat(f.TicketPrice),
			formatFloat(f.TotalSpend),
		})
	}
	return t
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatNullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return formatInt(v.Int64)
}

// formatFloat uses the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
