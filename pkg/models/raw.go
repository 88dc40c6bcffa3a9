package models

import (
	"database/sql"
	"time"
)

// TicketSale is one normalized ticket transaction.
type TicketSale struct {
	EventDate       time.Time
	TicketPrice     float64
	NumTickets      int64
	TotalSpend      float64
	Section         string
	PurchaseChannel string
	AcctID          string
	Row             int64
	Seat            int64
}

// SectionCapacity is the capacity of one section for one game date.
type SectionCapacity struct {
	EventDate       time.Time
	Section         string
	HomeCity        string
	SectionCapacity int64
}

// WeatherObservation is one daily weather record for a city. Measurements that
// were not reported stay invalid instead of being zeroed.
type WeatherObservation struct {
	EventDate    time.Time
	City         string
	AvgTempC     sql.NullFloat64
	MinTempC     sql.NullFloat64
	MaxTempC     sql.NullFloat64
	PrecipMM     sql.NullFloat64
	SnowMM       sql.NullFloat64
	WindDirDeg   sql.NullFloat64
	WindSpeedKmh sql.NullFloat64
	WindGustKmh  sql.NullFloat64
	PressureHpa  sql.NullFloat64
	SunMinutes   sql.NullFloat64
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
