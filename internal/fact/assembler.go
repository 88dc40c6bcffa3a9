// Package fact assembles the ticket sales fact table by resolving every sale
// against the dimension tables.
package fact

import (
	"cmp"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"ticketstar/internal/dimension"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// Join steps in the order they are applied.
const (
	StepDate     = "date"
	StepChannel  = "channel"
	StepCustomer = "customer"
	StepHomeCity = "home_city"
	StepVenue    = "venue"
	StepWeather  = "weather"
)

// Steps lists the join steps in application order.
var Steps = []string{StepDate, StepChannel, StepCustomer, StepHomeCity, StepVenue, StepWeather}

// Options configures Assemble.
type Options struct {
	// FanOut allows a sale to match several home cities for one
	// (event_date, section); the sale is emitted once per city.
	FanOut     bool
	VenueScope dimension.VenueScope
}

// StepStats counts the outcome of one join step.
type StepStats struct {
	Matched   int
	Unmatched int
}

// JoinStats counts join outcomes per step.
type JoinStats struct {
	Tickets int
	Facts   int
	Steps   map[string]*StepStats
}

func newJoinStats(tickets int) *JoinStats {
	s := &JoinStats{Tickets: tickets, Steps: make(map[string]*StepStats, len(Steps))}
	for _, step := range Steps {
		s.Steps[step] = &StepStats{}
	}
	return s
}

func (s *JoinStats) record(step string, ok bool) {
	if ok {
		s.Steps[step].Matched++
	} else {
		s.Steps[step].Unmatched++
	}
}

// SectionKey identifies a section on one game date.
type SectionKey struct {
	EventDate time.Time
	Section   string
}

type lookups struct {
	dates     map[time.Time]int64
	channels  map[string]int64
	customers map[string]int64
	cities    map[SectionKey][]string
	venues    map[dimension.VenueKey]int64
	weather   map[dimension.WeatherKey]int64
	scope     dimension.VenueScope
}

// Assemble joins every ticket against the dimensions with left-outer
// semantics. A failed join leaves the foreign key null and never drops the
// sale. The section source supplies the home city of each sale; when it maps
// an (event_date, section) to more than one city the call fails with a
// structural error unless opts.FanOut is set.
func Assemble(tickets []models.TicketSale, dims models.Dimensions, sections []models.SectionCapacity, opts Options) ([]models.TicketSaleFact, *JoinStats, error) {
	cities, err := HomeCities(sections, opts.FanOut)
	if err != nil {
		return nil, nil, err
	}

	l := lookups{
		dates:     make(map[time.Time]int64, len(dims.Dates)),
		channels:  make(map[string]int64, len(dims.Channels)),
		customers: make(map[string]int64, len(dims.Customers)),
		cities:    cities,
		venues:    make(map[dimension.VenueKey]int64, len(dims.Venues)),
		weather:   make(map[dimension.WeatherKey]int64, len(dims.Weather)),
		scope:     opts.VenueScope,
	}
	for _, d := range dims.Dates {
		l.dates[d.EventDate] = d.DateID
	}
	for _, c := range dims.Channels {
		l.channels[c.PurchaseChannel] = c.ChannelID
	}
	for _, c := range dims.Customers {
		l.customers[c.AcctID] = c.CustomerID
	}
	for _, v := range dims.Venues {
		l.venues[dimension.VenueKeyOf(v)] = v.VenueID
	}
	for _, w := range dims.Weather {
		l.weather[dimension.WeatherKey{EventDate: w.EventDate, City: w.City}] = w.WeatherID
	}

	stats := newJoinStats(len(tickets))
	facts := make([]models.TicketSaleFact, 0, len(tickets))
	for _, t := range tickets {
		facts = l.resolve(facts, t, stats)
	}
	stats.Facts = len(facts)
	return facts, stats, nil
}

func (l lookups) resolve(facts []models.TicketSaleFact, t models.TicketSale, stats *JoinStats) []models.TicketSaleFact {
	day := models.Day(t.EventDate)
	base := models.TicketSaleFact{
		EventDate:   day,
		NumTickets:  t.NumTickets,
		TicketPrice: t.TicketPrice,
		TotalSpend:  t.TotalSpend,
	}

	id, ok := l.dates[day]
	base.DateID = nullable(id, ok)
	stats.record(StepDate, ok)

	id, ok = l.channels[t.PurchaseChannel]
	base.ChannelID = nullable(id, ok)
	stats.record(StepChannel, ok)

	id, ok = l.customers[t.AcctID]
	base.CustomerID = nullable(id, ok)
	stats.record(StepCustomer, ok)

	cities := l.cities[SectionKey{EventDate: day, Section: t.Section}]
	stats.record(StepHomeCity, len(cities) > 0)
	if len(cities) == 0 {
		// Without a home city neither venue nor weather can resolve.
		stats.record(StepVenue, false)
		stats.record(StepWeather, false)
		return append(facts, base)
	}

	for _, city := range cities {
		row := base

		venue := dimension.VenueKey{EventDate: day, Section: t.Section, HomeCity: city}
		if l.scope == dimension.ScopeSection {
			venue.EventDate = time.Time{}
		}
		id, ok = l.venues[venue]
		row.VenueID = nullable(id, ok)
		stats.record(StepVenue, ok)

		id, ok = l.weather[dimension.WeatherKey{EventDate: day, City: city}]
		row.WeatherID = nullable(id, ok)
		stats.record(StepWeather, ok)

		facts = append(facts, row)
	}
	return facts
}

// HomeCities indexes the section source by (event_date, section). Every
// (event_date, section, home_city) must carry a single capacity, and unless
// fanOut is set every (event_date, section) must map to a single city. The
// first violating key, in key order, is named in the returned error.
func HomeCities(sections []models.SectionCapacity, fanOut bool) (map[SectionKey][]string, error) {
	type venueKey struct {
		SectionKey
		HomeCity string
	}

	sorted := slices.Clone(sections)
	slices.SortStableFunc(sorted, func(a, b models.SectionCapacity) int {
		return cmp.Or(
			models.Day(a.EventDate).Compare(models.Day(b.EventDate)),
			cmp.Compare(a.Section, b.Section),
			cmp.Compare(a.HomeCity, b.HomeCity),
		)
	})

	capacities := make(map[venueKey]int64, len(sorted))
	cities := make(map[SectionKey][]string, len(sorted))
	for _, s := range sorted {
		sk := SectionKey{EventDate: models.Day(s.EventDate), Section: s.Section}
		vk := venueKey{SectionKey: sk, HomeCity: s.HomeCity}

		if capacity, seen := capacities[vk]; seen {
			if capacity != s.SectionCapacity {
				return nil, errors.StructuralError("sections", fmt.Sprintf(
					"section %q on %s in %q has conflicting capacities %d and %d",
					s.Section, sk.EventDate.Format(time.DateOnly), s.HomeCity, capacity, s.SectionCapacity)).
					WithContext("section", s.Section).
					WithContext("event_date", sk.EventDate.Format(time.DateOnly))
			}
			continue
		}
		capacities[vk] = s.SectionCapacity

		if existing := cities[sk]; len(existing) > 0 && !fanOut {
			return nil, errors.StructuralError("sections", fmt.Sprintf(
				"section %q on %s maps to more than one home city (%q, %q)",
				s.Section, sk.EventDate.Format(time.DateOnly), existing[0], s.HomeCity)).
				WithContext("section", s.Section).
				WithContext("event_date", sk.EventDate.Format(time.DateOnly)).
				WithSuggestions(
					"Remove the duplicate section rows from the capacity file",
					"Set model.fan_out to true to emit one sale per home city",
				)
		}
		cities[sk] = append(cities[sk], s.HomeCity)
	}
	return cities, nil
}

func nullable(id int64, ok bool) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: ok}
}
