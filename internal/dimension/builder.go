// Package dimension derives the dimension tables of the star schema and
// assigns their surrogate keys.
//
// Every builder sorts its input by natural key (stable, so duplicates keep
// their input order) before first-seen de-duplication. Surrogate keys are
// therefore contiguous from 1 and independent of upstream row order.
package dimension

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"ticketstar/pkg/models"
)

// VenueScope selects the natural key of the venue dimension.
type VenueScope int

const (
	// ScopeDate keys venues by (event_date, section, home_city, section_capacity).
	ScopeDate VenueScope = iota
	// ScopeSection keys venues by (section, home_city) with the largest observed capacity.
	ScopeSection
)

// Options configures Build.
type Options struct {
	VenueScope VenueScope
}

// Build derives all five dimensions.
func Build(tickets []models.TicketSale, sections []models.SectionCapacity, weather []models.WeatherObservation, opts Options) models.Dimensions {
	return models.Dimensions{
		Dates:     Dates(tickets),
		Venues:    Venues(sections, opts.VenueScope),
		Weather:   Weather(weather),
		Channels:  Channels(tickets),
		Customers: Customers(tickets),
	}
}

// DateID is year*10000 + month*100 + day.
func DateID(t time.Time) int64 {
	y, m, d := t.Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// ISOWeekday maps Monday..Sunday to 1..7.
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// Dates builds one row per distinct ticket event date, in calendar order.
// Sections and weather never contribute dates.
func Dates(tickets []models.TicketSale) []models.DateDimension {
	days := make([]time.Time, 0, len(tickets))
	for _, t := range tickets {
		days = append(days, models.Day(t.EventDate))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })

	dates := make([]models.DateDimension, 0, len(days))
	for _, d := range days {
		weekday := ISOWeekday(d)
		_, week := d.ISOWeek()
		dates = append(dates, models.DateDimension{
			EventDate:   d,
			DateID:      DateID(d),
			Day:         d.Day(),
			Month:       int(d.Month()),
			MonthName:   strings.ToLower(d.Month().String()),
			Year:        d.Year(),
			Weekday:     weekday,
			WeekdayName: strings.ToLower(d.Weekday().String()),
			IsWeekend:   weekday >= 6,
			WeekOfYear:  week,
		})
	}
	return dates
}

// VenueKey is the join key of a venue. EventDate is zero under ScopeSection.
type VenueKey struct {
	EventDate time.Time
	Section   string
	HomeCity  string
}

// VenueKeyOf returns the join key of the venue row.
func VenueKeyOf(v models.VenueDimension) VenueKey {
	return VenueKey{EventDate: v.EventDate, Section: v.Section, HomeCity: v.HomeCity}
}

// Venues builds the venue dimension for the given scope.
func Venues(sections []models.SectionCapacity, scope VenueScope) []models.VenueDimension {
	rows := make([]models.VenueDimension, 0, len(sections))
	for _, s := range sections {
		row := models.VenueDimension{
			EventDate:       models.Day(s.EventDate),
			Section:         s.Section,
			HomeCity:        s.HomeCity,
			SectionCapacity: s.SectionCapacity,
		}
		if scope == ScopeSection {
			row.EventDate = time.Time{}
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b models.VenueDimension) int {
		return cmp.Or(
			a.EventDate.Compare(b.EventDate),
			cmp.Compare(a.Section, b.Section),
			cmp.Compare(a.HomeCity, b.HomeCity),
			cmp.Compare(a.SectionCapacity, b.SectionCapacity),
		)
	})

	if scope == ScopeSection {
		// Sorted ascending by capacity within a key, so the last row carries the maximum.
		merged := rows[:0:0]
		for _, r := range rows {
			if n := len(merged); n > 0 && VenueKeyOf(merged[n-1]) == VenueKeyOf(r) {
				merged[n-1].SectionCapacity = r.SectionCapacity
				continue
			}
			merged = append(merged, r)
		}
		rows = merged
	} else {
		rows = slices.Compact(rows)
	}

	for i := range rows {
		rows[i].VenueID = int64(i + 1)
	}
	return rows
}

// WeatherKey is the natural key of a weather observation.
type WeatherKey struct {
	EventDate time.Time
	City      string
}

// Weather keeps the first observation of every (event_date, city).
func Weather(observations []models.WeatherObservation) []models.WeatherDimension {
	sorted := slices.Clone(observations)
	for i := range sorted {
		sorted[i].EventDate = models.Day(sorted[i].EventDate)
	}
	slices.SortStableFunc(sorted, func(a, b models.WeatherObservation) int {
		return cmp.Or(a.EventDate.Compare(b.EventDate), cmp.Compare(a.City, b.City))
	})

	rows := make([]models.WeatherDimension, 0, len(sorted))
	seen := make(map[WeatherKey]bool, len(sorted))
	for _, o := range sorted {
		key := WeatherKey{EventDate: o.EventDate, City: o.City}
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, models.WeatherDimension{
			WeatherID:          int64(len(rows) + 1),
			WeatherObservation: o,
		})
	}
	return rows
}

// Channels builds one row per distinct purchase channel.
func Channels(tickets []models.TicketSale) []models.ChannelDimension {
	names := distinct(tickets, func(t models.TicketSale) string { return t.PurchaseChannel })
	rows := make([]models.ChannelDimension, len(names))
	for i, name := range names {
		rows[i] = models.ChannelDimension{ChannelID: int64(i + 1), PurchaseChannel: name}
	}
	return rows
}

// Customers builds one row per distinct account id.
func Customers(tickets []models.TicketSale) []models.CustomerDimension {
	ids := distinct(tickets, func(t models.TicketSale) string { return t.AcctID })
	rows := make([]models.CustomerDimension, len(ids))
	for i, id := range ids {
		rows[i] = models.CustomerDimension{CustomerID: int64(i + 1), AcctID: id}
	}
	return rows
}

func distinct[T any](items []T, key func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, key(item))
	}
	slices.Sort(out)
	return slices.Compact(out)
}
