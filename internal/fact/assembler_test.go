package fact

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketstar/internal/dimension"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

var (
	jan15 = time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	jan18 = time.Date(2025, time.January, 18, 0, 0, 0, 0, time.UTC)
)

func sale(date time.Time, section, channel, acct string, n int64, spend float64) models.TicketSale {
	return models.TicketSale{
		EventDate:       date,
		Section:         section,
		PurchaseChannel: channel,
		AcctID:          acct,
		NumTickets:      n,
		TicketPrice:     spend / float64(n),
		TotalSpend:      spend,
	}
}

func assemble(t *testing.T, tickets []models.TicketSale, sections []models.SectionCapacity, weather []models.WeatherObservation, opts Options) ([]models.TicketSaleFact, *JoinStats, models.Dimensions) {
	t.Helper()
	dims := dimension.Build(tickets, sections, weather, dimension.Options{VenueScope: opts.VenueScope})
	facts, stats, err := Assemble(tickets, dims, sections, opts)
	require.NoError(t, err)
	return facts, stats, dims
}

func TestAssembleResolvesEveryKey(t *testing.T) {
	tickets := []models.TicketSale{sale(jan15, "a1", "online", "x123", 2, 100)}
	sections := []models.SectionCapacity{{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120}}
	weather := []models.WeatherObservation{{EventDate: jan15, City: "toronto"}}

	facts, stats, dims := assemble(t, tickets, sections, weather, Options{})
	require.Len(t, facts, 1)

	f := facts[0]
	assert.Equal(t, jan15, f.EventDate)
	assert.Equal(t, sql.NullInt64{Int64: 20250115, Valid: true}, f.DateID)
	assert.Equal(t, sql.NullInt64{Int64: dims.Venues[0].VenueID, Valid: true}, f.VenueID)
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, f.ChannelID)
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, f.CustomerID)
	assert.Equal(t, sql.NullInt64{Int64: dims.Weather[0].WeatherID, Valid: true}, f.WeatherID)
	assert.Equal(t, int64(2), f.NumTickets)
	assert.Equal(t, 50.0, f.TicketPrice)
	assert.Equal(t, 100.0, f.TotalSpend)

	for _, step := range Steps {
		assert.Equal(t, 1, stats.Steps[step].Matched, step)
		assert.Zero(t, stats.Steps[step].Unmatched, step)
	}
}

func TestAssembleLeavesUnmatchedKeysNull(t *testing.T) {
	tickets := []models.TicketSale{
		sale(jan15, "a1", "online", "x1", 1, 40),
		sale(jan15, "z9", "online", "x2", 1, 40),
		sale(jan18, "a1", "box office", "x1", 1, 40),
	}
	sections := []models.SectionCapacity{
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
		{EventDate: jan18, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
	}
	weather := []models.WeatherObservation{{EventDate: jan15, City: "toronto"}}

	facts, stats, _ := assemble(t, tickets, sections, weather, Options{})
	require.Len(t, facts, 3)

	assert.True(t, facts[0].VenueID.Valid)
	assert.True(t, facts[0].WeatherID.Valid)

	// No section row for z9: no home city, so venue and weather stay null.
	assert.False(t, facts[1].VenueID.Valid)
	assert.False(t, facts[1].WeatherID.Valid)
	assert.True(t, facts[1].DateID.Valid)

	// Venue resolves, weather for the 18th is absent.
	assert.True(t, facts[2].VenueID.Valid)
	assert.False(t, facts[2].WeatherID.Valid)

	assert.Equal(t, StepStats{Matched: 2, Unmatched: 1}, *stats.Steps[StepHomeCity])
	assert.Equal(t, StepStats{Matched: 2, Unmatched: 1}, *stats.Steps[StepVenue])
	assert.Equal(t, StepStats{Matched: 1, Unmatched: 2}, *stats.Steps[StepWeather])
	assert.Equal(t, 3, stats.Facts)
}

func TestAssembleNeverAddsRowsWithoutFanOut(t *testing.T) {
	tickets := []models.TicketSale{
		sale(jan15, "a1", "online", "x1", 1, 40),
		sale(jan15, "a1", "online", "x1", 1, 40),
		sale(jan18, "b2", "mobile", "x2", 3, 90),
	}
	sections := []models.SectionCapacity{
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
		{EventDate: jan18, Section: "b2", HomeCity: "boston", SectionCapacity: 80},
	}

	facts, stats, _ := assemble(t, tickets, sections, nil, Options{})
	assert.LessOrEqual(t, len(facts), len(tickets))
	assert.Equal(t, len(tickets), stats.Tickets)
}

func TestAssembleRejectsAmbiguousHomeCity(t *testing.T) {
	tickets := []models.TicketSale{sale(jan15, "a1", "online", "x1", 1, 40)}
	sections := []models.SectionCapacity{
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
		{EventDate: jan15, Section: "a1", HomeCity: "boston", SectionCapacity: 120},
	}
	dims := dimension.Build(tickets, sections, nil, dimension.Options{})

	facts, stats, err := Assemble(tickets, dims, sections, Options{})
	require.Error(t, err)
	assert.Nil(t, facts)
	assert.Nil(t, stats)
	assert.True(t, errors.IsStructural(err))
	assert.Contains(t, err.Error(), `"boston", "toronto"`)
}

func TestAssembleFanOutEmitsOneRowPerCity(t *testing.T) {
	tickets := []models.TicketSale{
		sale(jan15, "a1", "online", "x1", 1, 40),
		sale(jan15, "b2", "online", "x2", 1, 40),
		sale(jan18, "c3", "online", "x3", 1, 40),
	}
	sections := []models.SectionCapacity{
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
		{EventDate: jan15, Section: "a1", HomeCity: "boston", SectionCapacity: 100},
		{EventDate: jan15, Section: "a1", HomeCity: "seattle", SectionCapacity: 90},
		{EventDate: jan15, Section: "b2", HomeCity: "boston", SectionCapacity: 100},
	}
	weather := []models.WeatherObservation{{EventDate: jan15, City: "boston"}}

	facts, stats, _ := assemble(t, tickets, sections, weather, Options{FanOut: true})

	// a1 matches three cities, b2 one, c3 none and is kept once.
	require.Len(t, facts, 3+1+1)
	assert.Equal(t, 5, stats.Facts)
	assert.Equal(t, 5, stats.Steps[StepVenue].Matched+stats.Steps[StepVenue].Unmatched)

	weatherHits := 0
	for _, f := range facts {
		if f.WeatherID.Valid {
			weatherHits++
		}
	}
	assert.Equal(t, 2, weatherHits)
}

func TestAssembleRejectsConflictingCapacityEvenWithFanOut(t *testing.T) {
	sections := []models.SectionCapacity{
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 80},
	}

	_, err := HomeCities(sections, true)
	require.Error(t, err)
	assert.True(t, errors.IsStructural(err))
	assert.Contains(t, err.Error(), "conflicting capacities")
}

func TestAssembleSectionScopedVenues(t *testing.T) {
	tickets := []models.TicketSale{
		sale(jan15, "a1", "online", "x1", 1, 40),
		sale(jan18, "a1", "online", "x2", 1, 40),
	}
	sections := []models.SectionCapacity{
		{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120},
		{EventDate: jan18, Section: "a1", HomeCity: "toronto", SectionCapacity: 130},
	}

	facts, _, dims := assemble(t, tickets, sections, nil, Options{VenueScope: dimension.ScopeSection})
	require.Len(t, dims.Venues, 1)
	require.Len(t, facts, 2)
	assert.Equal(t, facts[0].VenueID, facts[1].VenueID)
	assert.Equal(t, int64(1), facts[0].VenueID.Int64)
}

func TestAssembleUsesCalendarDay(t *testing.T) {
	tickets := []models.TicketSale{sale(jan15.Add(19*time.Hour), "a1", "online", "x1", 1, 40)}
	sections := []models.SectionCapacity{{EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120}}

	facts, _, _ := assemble(t, tickets, sections, nil, Options{})
	require.Len(t, facts, 1)
	assert.Equal(t, jan15, facts[0].EventDate)
	assert.True(t, facts[0].VenueID.Valid)
}
