package models

import (
	"database/sql"
	"time"
)

// DateDimension describes one calendar day that has ticket sales.
type DateDimension struct {
	EventDate   time.Time
	DateID      int64
	Day         int
	Month       int
	MonthName   string
	Year        int
	Weekday     int // 1=Monday..7=Sunday
	WeekdayName string
	IsWeekend   bool
	WeekOfYear  int
}

// VenueDimension is a section capacity context. EventDate is zero when the
// dimension is built per section rather than per game date.
type VenueDimension struct {
	VenueID         int64
	EventDate       time.Time
	Section         string
	HomeCity        string
	SectionCapacity int64
}

// WeatherDimension is a de-duplicated (event_date, city) observation.
type WeatherDimension struct {
	WeatherID int64
	WeatherObservation
}

// ChannelDimension is a distinct purchase channel.
type ChannelDimension struct {
	ChannelID       int64
	PurchaseChannel string
}

// CustomerDimension is a distinct account.
type CustomerDimension struct {
	CustomerID int64
	AcctID     string
}

// TicketSaleFact is one row of the fact table. Foreign keys are invalid when
// the corresponding join found no dimension row.
type TicketSaleFact struct {
	EventDate   time.Time
	DateID      sql.NullInt64
	VenueID     sql.NullInt64
	CustomerID  sql.NullInt64
	ChannelID   sql.NullInt64
	WeatherID   sql.NullInt64
	NumTickets  int64
	TicketPrice float64
	TotalSpend  float64
}

// Dimensions groups the five dimension tables of one run.
type Dimensions struct {
	Dates     []DateDimension
	Venues    []VenueDimension
	Weather   []WeatherDimension
	Channels  []ChannelDimension
	Customers []CustomerDimension
}

// StarSchema is the complete output of one run.
type StarSchema struct {
	Dimensions
	Sales []TicketSaleFact
}
