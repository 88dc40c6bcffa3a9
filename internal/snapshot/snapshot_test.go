package snapshot

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

var jan15 = time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

func sampleStar() models.StarSchema {
	return models.StarSchema{
		Dimensions: models.Dimensions{
			Dates: []models.DateDimension{{
				EventDate: jan15, DateID: 20250115, Day: 15, Month: 1, MonthName: "january",
				Year: 2025, Weekday: 3, WeekdayName: "wednesday", WeekOfYear: 3,
			}},
			Venues: []models.VenueDimension{{VenueID: 1, EventDate: jan15, Section: "a1", HomeCity: "toronto", SectionCapacity: 120}},
			Weather: []models.WeatherDimension{{
				WeatherID: 1,
				WeatherObservation: models.WeatherObservation{
					EventDate: jan15,
					City:      "toronto",
					AvgTempC:  sql.NullFloat64{Float64: -3.1, Valid: true},
					PrecipMM:  sql.NullFloat64{Float64: 0, Valid: true},
					SnowMM:    sql.NullFloat64{Float64: 0.25, Valid: true},
				},
			}},
			Channels:  []models.ChannelDimension{{ChannelID: 1, PurchaseChannel: "online"}},
			Customers: []models.CustomerDimension{{CustomerID: 1, AcctID: "x123"}},
		},
		Sales: []models.TicketSaleFact{{
			EventDate:   jan15,
			DateID:      sql.NullInt64{Int64: 20250115, Valid: true},
			VenueID:     sql.NullInt64{Int64: 1, Valid: true},
			CustomerID:  sql.NullInt64{Int64: 1, Valid: true},
			ChannelID:   sql.NullInt64{Int64: 1, Valid: true},
			NumTickets:  3,
			TicketPrice: 33.333333333333336,
			TotalSpend:  100,
		}},
	}
}

func TestFromStarRendersTablesInOrder(t *testing.T) {
	tables := FromStar(sampleStar())
	require.Len(t, tables, len(Tables))
	for i, table := range tables {
		assert.Equal(t, Tables[i], table.Name)
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Columns), table.Name)
		}
	}
}

func TestEncodingFormats(t *testing.T) {
	tables := FromStar(sampleStar())

	assert.Equal(t, []string{"2025-01-15", "20250115", "15", "1", "january", "2025", "3", "wednesday", "0", "3"}, tables[0].Rows[0])

	weather := tables[2].Rows[0]
	assert.Equal(t, "-3.1", weather[1])
	assert.Equal(t, "", weather[2], "missing min temperature stays empty")
	assert.Equal(t, "0", weather[4])
	assert.Equal(t, "0.25", weather[5])
	assert.Equal(t, "toronto", weather[11])
	assert.Equal(t, "1", weather[12])

	fact := tables[5].Rows[0]
	assert.Equal(t, []string{"2025-01-15", "20250115", "1", "1", "1", "", "3", "33.333333333333336", "100"}, fact)
}

func TestSectionScopedVenueHasEmptyDate(t *testing.T) {
	table := VenueTable([]models.VenueDimension{{VenueID: 1, Section: "a1", HomeCity: "toronto", SectionCapacity: 90}})
	assert.Equal(t, []string{"", "a1", "toronto", "90", "1"}, table.Rows[0])
}

func TestPublishWritesEveryArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cleaned")
	require.NoError(t, NewWriter(dir).Publish(FromStar(sampleStar())))

	for _, name := range Tables {
		assert.FileExists(t, Path(dir, name))
	}

	data, err := os.ReadFile(Path(dir, DimChannel))
	require.NoError(t, err)
	assert.Equal(t, "purchase_channel,channel_id\nonline,1\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file %s left behind", e.Name())
	}
}

func TestWeatherColumnsCarrySunshineInMinutes(t *testing.T) {
	header := WeatherTable(nil).Header()
	assert.Contains(t, header, "sun_minutes")
	assert.NotContains(t, header, "sun_hours")
}

func TestPublishIsByteIdenticalAcrossRuns(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, NewWriter(first).Publish(FromStar(sampleStar())))
	require.NoError(t, NewWriter(second).Publish(FromStar(sampleStar())))

	for _, name := range Tables {
		a, err := os.ReadFile(Path(first, name))
		require.NoError(t, err)
		b, err := os.ReadFile(Path(second, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestPublishOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir, DimCustomer), []byte("stale"), 0o644))

	require.NoError(t, NewWriter(dir).Publish([]Table{CustomerTable([]models.CustomerDimension{{CustomerID: 1, AcctID: "x9"}})}))

	data, err := os.ReadFile(Path(dir, DimCustomer))
	require.NoError(t, err)
	assert.Equal(t, "acct_id,customer_id\nx9,1\n", string(data))
}

func TestPublishFailureLeavesPriorArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir, DimChannel), []byte("previous"), 0o644))

	good := ChannelTable([]models.ChannelDimension{{ChannelID: 1, PurchaseChannel: "online"}})
	bad := Table{Name: DimCustomer, Columns: schemas[DimCustomer], Rows: [][]string{{"only-one-cell"}}}

	err := NewWriter(dir).Publish([]Table{good, bad})
	require.Error(t, err)

	data, err := os.ReadFile(Path(dir, DimChannel))
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.NoFileExists(t, Path(dir, DimCustomer))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// publishPrior publishes a first run and returns its artifacts by table.
func publishPrior(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	require.NoError(t, NewWriter(dir).Publish(FromStar(sampleStar())))
	prior := make(map[string][]byte, len(Tables))
	for _, name := range Tables {
		data, err := os.ReadFile(Path(dir, name))
		require.NoError(t, err)
		prior[name] = data
	}
	return prior
}

func nextRun() []Table {
	star := sampleStar()
	star.Dimensions.Channels = append(star.Dimensions.Channels, models.ChannelDimension{ChannelID: 2, PurchaseChannel: "box office"})
	star.Dimensions.Customers[0].AcctID = "y456"
	return FromStar(star)
}

func assertNoLeftovers(t *testing.T, dir string, want int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, want)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "leftover %s", e.Name())
	}
}

func TestPublishRejectsUnreplaceableDestination(t *testing.T) {
	dir := t.TempDir()
	prior := publishPrior(t, dir)
	require.NoError(t, os.Remove(Path(dir, DimChannel)))
	require.NoError(t, os.Mkdir(Path(dir, DimChannel), 0o755))

	err := NewWriter(dir).Publish(nextRun())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileOperation, errors.GetErrorCode(err))

	for _, name := range Tables {
		if name == DimChannel {
			continue
		}
		data, err := os.ReadFile(Path(dir, name))
		require.NoError(t, err)
		assert.Equal(t, string(prior[name]), string(data), name)
	}
	assertNoLeftovers(t, dir, len(Tables))
}

func TestPublishRenameFailureRestoresPriorSet(t *testing.T) {
	dir := t.TempDir()
	prior := publishPrior(t, dir)

	// Fail while moving the new dim_customer into place, after earlier tables
	// have already been replaced.
	t.Cleanup(func() { rename = os.Rename })
	rename = func(from, to string) error {
		if to == Path(dir, DimCustomer) {
			return fmt.Errorf("disk full")
		}
		return os.Rename(from, to)
	}

	err := NewWriter(dir).Publish(nextRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	for _, name := range Tables {
		data, err := os.ReadFile(Path(dir, name))
		require.NoError(t, err)
		assert.Equal(t, string(prior[name]), string(data), name)
	}
	assertNoLeftovers(t, dir, len(Tables))
}

func TestPublishRenameFailureWithoutPriorLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	t.Cleanup(func() { rename = os.Rename })
	rename = func(from, to string) error {
		if to == Path(dir, FactSales) {
			return fmt.Errorf("disk full")
		}
		return os.Rename(from, to)
	}

	require.Error(t, NewWriter(dir).Publish(nextRun()))
	assertNoLeftovers(t, dir, 0)
}

func TestReadTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tables := FromStar(sampleStar())
	require.NoError(t, NewWriter(dir).Publish(tables))

	fact, err := ReadTable(dir, FactSales)
	require.NoError(t, err)
	assert.Equal(t, tables[5], fact)
}

func TestReadTableRejectsWrongHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir, DimChannel), []byte("channel,id\nonline,1\n"), 0o644))

	_, err := ReadTable(dir, DimChannel)
	require.Error(t, err)
	assert.True(t, errors.IsStructural(err))
}

func TestReadTableMissingFile(t *testing.T) {
	_, err := ReadTable(t.TempDir(), DimDate)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetErrorCode(err))
}

func TestWriteFileRawWeather(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "weather.csv")
	table := RawWeatherTable("weather", []models.WeatherObservation{{
		EventDate: jan15, City: "boston", PrecipMM: sql.NullFloat64{Float64: 1.5, Valid: true},
	}})
	require.NoError(t, WriteFile(path, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "time,tavg,tmin,tmax,prcp,snow,wdir,wspd,wpgt,pres,tsun,city\n2025-01-15,,,,1.5,,,,,,,boston\n", string(data))
}

func TestSchemaUnknownTable(t *testing.T) {
	_, err := Schema("dim_nothing")
	assert.Error(t, err)
}
