package weather

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ticketstar/internal/observability"
	"ticketstar/internal/snapshot"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// Report lists what FetchAll retrieved per city.
type Report struct {
	Fetched map[string]int
	// Skipped cities returned no data or failed, sorted.
	Skipped  []string
	Failures map[string]error
}

// Partial reports whether at least one city was skipped.
func (r *Report) Partial() bool {
	return len(r.Skipped) > 0
}

// Fetcher fetches every configured station through a Provider.
type Fetcher struct {
	provider    Provider
	concurrency int
	logger      *observability.Logger
	progress    func(city string, done, total int)
}

// NewFetcher creates a fetcher running at most concurrency requests at once.
func NewFetcher(provider Provider, concurrency int, logger *observability.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Fetcher{provider: provider, concurrency: concurrency, logger: logger}
}

// OnProgress registers fn to be called after each city's download finishes.
// fn may be called from several goroutines at once.
func (f *Fetcher) OnProgress(fn func(city string, done, total int)) *Fetcher {
	f.progress = fn
	return f
}

type cityResult struct {
	city         string
	station      string
	observations []models.WeatherObservation
	err          error
}

// FetchAll fetches every station of the city -> station map over [start, end].
// A city whose fetch fails or returns nothing is skipped and listed in the
// report. The combined observations carry the normalized city label and are
// ordered by city then date. It fails only when no city returned data or ctx
// was cancelled.
func (f *Fetcher) FetchAll(ctx context.Context, stations map[string]string, start, end time.Time) ([]models.WeatherObservation, *Report, error) {
	cities := make([]string, 0, len(stations))
	for city := range stations {
		cities = append(cities, city)
	}
	slices.Sort(cities)

	results := make([]cityResult, len(cities))
	var finished atomic.Int32
	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, city := range cities {
		results[i] = cityResult{city: strings.ToLower(strings.TrimSpace(city)), station: stations[city]}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := &results[i]
			r.observations, r.err = f.provider.FetchDaily(ctx, r.station, start, end)
			if f.progress != nil {
				f.progress(r.city, int(finished.Add(1)), len(cities))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	report := &Report{Fetched: map[string]int{}, Failures: map[string]error{}}
	var combined []models.WeatherObservation
	for _, r := range results {
		log := f.logger.WithFields(map[string]interface{}{"city": r.city, "station": r.station})
		switch {
		case r.err != nil:
			err := errors.CollaboratorError("weather fetch for "+r.city, r.err)
			log.WithError(err).Error("Error fetching weather")
			report.Failures[r.city] = err
			report.Skipped = append(report.Skipped, r.city)
		case len(r.observations) == 0:
			log.Warn("No weather data available for the date range")
			report.Skipped = append(report.Skipped, r.city)
		default:
			for _, o := range r.observations {
				o.City = r.city
				combined = append(combined, o)
			}
			report.Fetched[r.city] = len(r.observations)
			log.InfoWithFields("Fetched weather data", map[string]interface{}{"rows": len(r.observations)})
		}
	}
	slices.Sort(report.Skipped)

	if len(combined) == 0 {
		return nil, report, errors.New(errors.ErrCodeNoData, "no weather data retrieved for any city").
			WithSuggestions("Check the station ids and the configured date range")
	}

	slices.SortStableFunc(combined, func(a, b models.WeatherObservation) int {
		return cmp.Or(cmp.Compare(a.City, b.City), a.EventDate.Compare(b.EventDate))
	})
	return combined, report, nil
}

// WriteCSV atomically writes the combined observations as the raw weather
// source, in the provider's column names plus city.
func WriteCSV(path string, observations []models.WeatherObservation) error {
	return snapshot.WriteFile(path, snapshot.RawWeatherTable("weather", observations))
}
