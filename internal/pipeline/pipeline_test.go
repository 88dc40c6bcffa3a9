package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketstar/internal/dimension"
	"ticketstar/internal/fact"
	"ticketstar/internal/observability"
	"ticketstar/internal/snapshot"
	"ticketstar/internal/testutil"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

const (
	ticketsCSV = `event_date,ticket_price,num_tickets,total_spend,section,purchase_channel,acct_id,row,seat
01/15/2025,50,2,100,"A1 ",Online,x123,4,7
01/15/2025,40,1,,A1,Online,x999,4,8
01/18/2025,30,3,90,B2,Box Office,X456,1,1
01/18/2025,30,1,30,Z9,online,x123,,
`
	sectionsCSV = `event_date,section,home_city,section_capacity
01/15/2025,a1,Toronto,120
01/18/2025,b2,Boston,80
01/18/2025,b2,boston,80
`
	weatherCSV = `time,tavg,tmin,tmax,prcp,snow,wdir,wspd,wpgt,pres,tsun,city
2025-01-15,,-8.1,-1.2,,4,270,18.5,,1012.3,,toronto
2025-01-15,-4,-8.1,-1.2,1,4,270,18.5,,1012.3,,toronto
2025-01-16,-3,-6,0,1.2,0,,,,,,boston
`
)

func sources(tickets, sections, weather string) Sources {
	return Sources{
		Tickets:  strings.NewReader(tickets),
		Sections: strings.NewReader(sections),
		Weather:  strings.NewReader(weather),
	}
}

func TestTransform(t *testing.T) {
	star, report, err := Transform(sources(ticketsCSV, sectionsCSV, weatherCSV), Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Tickets.Read)
	assert.Equal(t, 3, report.Tickets.Kept)
	assert.Equal(t, 1, report.Tickets.DroppedBy["total_spend"])

	require.Len(t, star.Dates, 2)
	assert.Len(t, star.Venues, 2)
	assert.Len(t, star.Weather, 2)
	assert.Len(t, star.Channels, 2)
	// x999 was only on the dropped row and never reaches the customer dimension.
	assert.Equal(t, []models.CustomerDimension{{CustomerID: 1, AcctID: "x123"}, {CustomerID: 2, AcctID: "x456"}}, star.Customers)

	require.Len(t, star.Sales, 3)
	first := star.Sales[0]
	assert.Equal(t, int64(20250115), first.DateID.Int64)
	assert.True(t, first.VenueID.Valid)
	assert.True(t, first.WeatherID.Valid)

	// First observation wins and precipitation was zero-filled.
	weather := star.Weather[0]
	assert.Equal(t, "toronto", weather.City)
	assert.False(t, weather.AvgTempC.Valid)
	assert.True(t, weather.PrecipMM.Valid)
	assert.Zero(t, weather.PrecipMM.Float64)

	boston := star.Sales[1]
	assert.True(t, boston.VenueID.Valid)
	assert.False(t, boston.WeatherID.Valid)

	unmatched := star.Sales[2]
	assert.False(t, unmatched.VenueID.Valid)
	assert.Equal(t, 1, report.Joins.Steps[fact.StepHomeCity].Unmatched)

	assert.LessOrEqual(t, len(star.Sales), report.Tickets.Kept)
}

func TestTransformEveryFactDateHasOneDateRow(t *testing.T) {
	star, _, err := Transform(sources(ticketsCSV, sectionsCSV, weatherCSV), Options{})
	require.NoError(t, err)

	ids := map[int64]int{}
	for _, d := range star.Dates {
		ids[d.DateID]++
		assert.Equal(t, dimension.DateID(d.EventDate), d.DateID)
	}
	for _, f := range star.Sales {
		assert.Equal(t, 1, ids[f.DateID.Int64])
	}
}

func TestTransformStructuralErrors(t *testing.T) {
	tests := []struct {
		name     string
		tickets  string
		sections string
		weather  string
	}{
		{
			name:     "missing ticket column",
			tickets:  "event_date,ticket_price,num_tickets,section,purchase_channel,acct_id,row,seat\n",
			sections: sectionsCSV,
			weather:  weatherCSV,
		},
		{
			name:     "missing section column",
			tickets:  ticketsCSV,
			sections: "event_date,section,section_capacity\n",
			weather:  weatherCSV,
		},
		{
			name:     "empty weather",
			tickets:  ticketsCSV,
			sections: sectionsCSV,
			weather:  "",
		},
		{
			name:     "ambiguous home city",
			tickets:  ticketsCSV,
			sections: sectionsCSV + "01/15/2025,a1,montreal,120\n",
			weather:  weatherCSV,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, report, err := Transform(sources(tt.tickets, tt.sections, tt.weather), Options{})
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, errors.IsStructural(err))
		})
	}
}

func TestTransformFanOut(t *testing.T) {
	sections := sectionsCSV + "01/15/2025,a1,montreal,120\n"
	star, report, err := Transform(sources(ticketsCSV, sections, weatherCSV), Options{FanOut: true})
	require.NoError(t, err)
	assert.Len(t, star.Sales, 4)
	assert.Equal(t, 4, report.Joins.Facts)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &models.Config{Model: models.Model{VenueScope: "section", FanOut: true}}
	assert.Equal(t, Options{VenueScope: dimension.ScopeSection, FanOut: true}, OptionsFromConfig(cfg))

	cfg.Model.VenueScope = "date"
	assert.Equal(t, dimension.ScopeDate, OptionsFromConfig(cfg).VenueScope)
}

func writeSources(t *testing.T, dir, tickets, sections, weather string) *models.Config {
	t.Helper()
	return testutil.NewTestHelper(t).WriteSources(dir, testutil.Sources{Tickets: tickets, Sections: sections, Weather: weather})
}

func TestRunPublishesSnapshots(t *testing.T) {
	dir := t.TempDir()
	cfg := writeSources(t, dir, ticketsCSV, sectionsCSV, weatherCSV)

	var logs bytes.Buffer
	logger := observability.NewLogger(observability.LoggerConfig{Level: observability.InfoLevel, Output: &logs})
	audit := observability.NewAudit()

	result, err := New(cfg, logger, audit).Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Tables[snapshot.FactSales])

	for _, name := range snapshot.Tables {
		assert.FileExists(t, snapshot.Path(cfg.Output.Dir, name))
	}

	metrics, err := os.ReadFile(cfg.Output.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `ticketstar_rows_total{outcome="dropped",source="tickets"} 1`)
	assert.Contains(t, string(metrics), `ticketstar_fills_total{column="precip_mm",source="weather"} 1`)
	assert.Contains(t, string(metrics), `ticketstar_join_total{outcome="unmatched",step="home_city"} 1`)

	assert.Contains(t, logs.String(), result.RunID)
	assert.Contains(t, logs.String(), "Filled missing values in precip_mm")
}

func TestRunLogsCoercionFailuresAtDebug(t *testing.T) {
	dir := t.TempDir()
	tickets := strings.Replace(ticketsCSV, "01/15/2025,50,2,100", "01/15/2025,fifty,2,100", 1)
	cfg := writeSources(t, dir, tickets, sectionsCSV, weatherCSV)

	var info, debug bytes.Buffer
	_, err := New(cfg, observability.NewLogger(observability.LoggerConfig{Level: observability.InfoLevel, Output: &info}), nil).Run(context.Background())
	require.NoError(t, err)
	_, err = New(cfg, observability.NewLogger(observability.LoggerConfig{Level: observability.DebugLevel, Output: &debug}), nil).Run(context.Background())
	require.NoError(t, err)

	const line = "1 values of ticket_price could not be parsed"
	assert.NotContains(t, info.String(), line)
	assert.Contains(t, debug.String(), line)
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := writeSources(t, dir, ticketsCSV, sectionsCSV, weatherCSV)

	_, err := New(cfg, nil, nil).Run(context.Background())
	require.NoError(t, err)

	first := map[string][]byte{}
	for _, name := range snapshot.Tables {
		data, err := os.ReadFile(snapshot.Path(cfg.Output.Dir, name))
		require.NoError(t, err)
		first[name] = data
	}

	_, err = New(cfg, nil, nil).Run(context.Background())
	require.NoError(t, err)

	for _, name := range snapshot.Tables {
		data, err := os.ReadFile(snapshot.Path(cfg.Output.Dir, name))
		require.NoError(t, err)
		assert.Equal(t, first[name], data, name)
	}
}

func TestRunStructuralErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := writeSources(t, dir, ticketsCSV, "event_date,section\n", weatherCSV)

	_, err := New(cfg, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsStructural(err))
	assert.NoDirExists(t, cfg.Output.Dir)
}

func TestRunMissingSource(t *testing.T) {
	dir := t.TempDir()
	cfg := writeSources(t, dir, ticketsCSV, sectionsCSV, weatherCSV)
	cfg.Sources.Weather = filepath.Join(dir, "absent.csv")

	_, err := New(cfg, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetErrorCode(err))
}

func TestRunHonoursCancelledContext(t *testing.T) {
	dir := t.TempDir()
	cfg := writeSources(t, dir, ticketsCSV, sectionsCSV, weatherCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, nil, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, cfg.Output.Dir)
}
