package testutil

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"ticketstar/internal/config"
	"ticketstar/internal/security"
	"ticketstar/internal/snapshot"
	"ticketstar/internal/warehouse"
	"ticketstar/pkg/models"
)

// MockProvider serves canned weather per station id.
type MockProvider struct {
	mu        sync.Mutex
	ByStation map[string][]models.WeatherObservation
	Errors    map[string]error
	Calls     []string
}

// NewMockProvider creates a provider without data.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		ByStation: map[string][]models.WeatherObservation{},
		Errors:    map[string]error{},
	}
}

// FetchDaily returns the canned observations of stationID within [start, end].
func (m *MockProvider) FetchDaily(ctx context.Context, stationID string, start, end time.Time) ([]models.WeatherObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, stationID)
	if err := m.Errors[stationID]; err != nil {
		return nil, err
	}
	var out []models.WeatherObservation
	for _, o := range m.ByStation[stationID] {
		if !o.EventDate.Before(start) && !o.EventDate.After(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Observation builds a weather observation with only the average temperature set.
func Observation(day string, avgTempC float64) models.WeatherObservation {
	date, err := time.Parse(config.DateLayout, day)
	if err != nil {
		panic(err)
	}
	return models.WeatherObservation{
		EventDate: date,
		AvgTempC:  sql.NullFloat64{Float64: avgTempC, Valid: true},
	}
}

// MockLoader records the tables it is asked to load.
type MockLoader struct {
	Password string
	Loaded   []string
	Options  map[string]warehouse.LoadOptions
	Fail     map[string]error
	Closed   bool
}

// Load returns the row count of table unless a failure is configured for it.
func (m *MockLoader) Load(ctx context.Context, table snapshot.Table, opts warehouse.LoadOptions) (int64, error) {
	if err := m.Fail[table.Name]; err != nil {
		return 0, err
	}
	if m.Options == nil {
		m.Options = map[string]warehouse.LoadOptions{}
	}
	m.Options[table.Name] = opts
	m.Loaded = append(m.Loaded, table.Name)
	return int64(len(table.Rows)), nil
}

// Close marks the loader closed.
func (m *MockLoader) Close() error {
	m.Closed = true
	return nil
}

// MemoryStore is an in-memory credential store.
type MemoryStore map[string]string

// Get returns the stored value or security.ErrCredentialNotFound.
func (m MemoryStore) Get(name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", security.ErrCredentialNotFound
}

// Store saves value under name.
func (m MemoryStore) Store(name, value string) error {
	m[name] = value
	return nil
}

// Delete removes name or returns security.ErrCredentialNotFound.
func (m MemoryStore) Delete(name string) error {
	if _, ok := m[name]; !ok {
		return security.ErrCredentialNotFound
	}
	delete(m, name)
	return nil
}
