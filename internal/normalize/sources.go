package normalize

import (
	"database/sql"
	"io"

	"ticketstar/pkg/models"
)

// Tickets normalizes a raw ticket sales source.
func Tickets(r io.Reader) ([]models.TicketSale, *Stats, error) {
	records, stats, err := Normalize(r, TicketSpec)
	if err != nil {
		return nil, nil, err
	}

	var (
		date    = TicketSpec.index("event_date")
		price   = TicketSpec.index("ticket_price")
		count   = TicketSpec.index("num_tickets")
		spend   = TicketSpec.index("total_spend")
		section = TicketSpec.index("section")
		channel = TicketSpec.index("purchase_channel")
		acct    = TicketSpec.index("acct_id")
		row     = TicketSpec.index("row")
		seat    = TicketSpec.index("seat")
	)

	tickets := make([]models.TicketSale, 0, len(records))
	for _, rec := range records {
		tickets = append(tickets, models.TicketSale{
			EventDate:       rec[date].Time,
			TicketPrice:     rec[price].Float,
			NumTickets:      rec[count].Int,
			TotalSpend:      rec[spend].Float,
			Section:         rec[section].Str,
			PurchaseChannel: rec[channel].Str,
			AcctID:          rec[acct].Str,
			Row:             rec[row].Int,
			Seat:            rec[seat].Int,
		})
	}
	return tickets, stats, nil
}

// Sections normalizes a raw section capacity source.
func Sections(r io.Reader) ([]models.SectionCapacity, *Stats, error) {
	records, stats, err := Normalize(r, SectionSpec)
	if err != nil {
		return nil, nil, err
	}

	var (
		date     = SectionSpec.index("event_date")
		section  = SectionSpec.index("section")
		city     = SectionSpec.index("home_city")
		capacity = SectionSpec.index("section_capacity")
	)

	sections := make([]models.SectionCapacity, 0, len(records))
	for _, rec := range records {
		sections = append(sections, models.SectionCapacity{
			EventDate:       rec[date].Time,
			Section:         rec[section].Str,
			HomeCity:        rec[city].Str,
			SectionCapacity: rec[capacity].Int,
		})
	}
	return sections, stats, nil
}

// Weather normalizes a raw weather-with-city source.
func Weather(r io.Reader) ([]models.WeatherObservation, *Stats, error) {
	records, stats, err := Normalize(r, WeatherSpec)
	if err != nil {
		return nil, nil, err
	}

	measure := func(rec Record, name string) sql.NullFloat64 {
		v := rec[WeatherSpec.index(name)]
		return sql.NullFloat64{Float64: v.Float, Valid: v.Valid}
	}

	date := WeatherSpec.index("event_date")
	city := WeatherSpec.index("city")

	observations := make([]models.WeatherObservation, 0, len(records))
	for _, rec := range records {
		observations = append(observations, models.WeatherObservation{
			EventDate:    rec[date].Time,
			City:         rec[city].Str,
			AvgTempC:     measure(rec, "avg_temp_c"),
			MinTempC:     measure(rec, "min_temp_c"),
			MaxTempC:     measure(rec, "max_temp_c"),
			PrecipMM:     measure(rec, "precip_mm"),
			SnowMM:       measure(rec, "snow_mm"),
			WindDirDeg:   measure(rec, "wind_dir_deg"),
			WindSpeedKmh: measure(rec, "wind_speed_kmh"),
			WindGustKmh:  measure(rec, "wind_gust_kmh"),
			PressureHpa:  measure(rec, "pressure_hpa"),
			SunMinutes:   measure(rec, "sun_minutes"),
		})
	}
	return observations, stats, nil
}
