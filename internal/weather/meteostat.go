// Package weather acquires daily weather observations for the configured
// stations and combines them into the raw weather source.
package weather

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ticketstar/internal/config"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// Provider returns the daily observations of one station within a closed
// date range. An empty result means the provider has no data for it.
type Provider interface {
	FetchDaily(ctx context.Context, stationID string, start, end time.Time) ([]models.WeatherObservation, error)
}

// ClientConfig configures MeteostatClient.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration
}

// ClientConfigFrom maps the weather section of the configuration.
func ClientConfigFrom(src models.WeatherSource) (ClientConfig, error) {
	timeout, err := config.ParseDuration(src.Timeout, "weather.timeout")
	if err != nil {
		return ClientConfig{}, err
	}
	return ClientConfig{
		BaseURL:           src.BaseURL,
		Timeout:           timeout,
		RequestsPerSecond: src.RequestsPerSecond,
		MaxRetries:        src.MaxRetries,
		RetryDelay:        time.Second,
	}, nil
}

// MeteostatClient reads the Meteostat bulk daily feed: one gzip-compressed,
// header-less CSV per station with the columns
// date,tavg,tmin,tmax,prcp,snow,wdir,wspd,wpgt,pres,tsun.
type MeteostatClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      *errors.RetryConfig
}

// NewMeteostatClient creates a throttled, retrying client.
func NewMeteostatClient(cfg ClientConfig) *MeteostatClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	retry.InitialDelay = cfg.RetryDelay

	return &MeteostatClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		retry:   retry,
	}
}

// FetchDaily downloads the station file and keeps the days in [start, end].
// A missing station file is reported as no data.
func (c *MeteostatClient) FetchDaily(ctx context.Context, stationID string, start, end time.Time) ([]models.WeatherObservation, error) {
	endpoint := fmt.Sprintf("%s/daily/%s.csv.gz", c.baseURL, url.PathEscape(stationID))

	var observations []models.WeatherObservation
	err := errors.Retry(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "ticketstar")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConnectionFailed, "weather request failed").
				WithContext("station", stationID)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			observations = nil
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return errors.New(errors.ErrCodeServiceUnavailable, fmt.Sprintf("weather provider returned %d", resp.StatusCode)).
				WithContext("station", stationID)
		case resp.StatusCode != http.StatusOK:
			return errors.New(errors.ErrCodeCollaborator, fmt.Sprintf("unexpected status code: %d", resp.StatusCode)).
				WithContext("station", stationID)
		}

		observations, err = parseDaily(resp.Body, start, end)
		return err
	})
	if err != nil {
		return nil, err
	}
	return observations, nil
}

func parseDaily(body io.Reader, start, end time.Time) ([]models.WeatherObservation, error) {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCollaborator, "weather payload is not gzip")
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.FieldsPerRecord = -1

	start, end = models.Day(start), models.Day(end)
	var observations []models.WeatherObservation
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCollaborator, "failed to read weather payload")
		}

		day, err := time.Parse(time.DateOnly, strings.TrimSpace(field(record, 0)))
		if err != nil || day.Before(start) || day.After(end) {
			continue
		}

		observations = append(observations, models.WeatherObservation{
			EventDate:    day,
			AvgTempC:     number(field(record, 1)),
			MinTempC:     number(field(record, 2)),
			MaxTempC:     number(field(record, 3)),
			PrecipMM:     number(field(record, 4)),
			SnowMM:       number(field(record, 5)),
			WindDirDeg:   number(field(record, 6)),
			WindSpeedKmh: number(field(record, 7)),
			WindGustKmh:  number(field(record, 8)),
			PressureHpa:  number(field(record, 9)),
			SunMinutes:   number(field(record, 10)),
		})
	}
	return observations, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func number(s string) sql.NullFloat64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
