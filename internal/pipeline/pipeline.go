// Package pipeline runs the cleaning and modeling stage: normalize the three
// raw sources, build the dimensions, assemble the fact table and publish the
// snapshots.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"ticketstar/internal/config"
	"ticketstar/internal/dimension"
	"ticketstar/internal/fact"
	"ticketstar/internal/normalize"
	"ticketstar/internal/observability"
	"ticketstar/internal/snapshot"
	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// Options are the modeling choices of a run.
type Options struct {
	VenueScope dimension.VenueScope
	FanOut     bool
}

// OptionsFromConfig maps the model section of the configuration.
func OptionsFromConfig(cfg *models.Config) Options {
	opts := Options{FanOut: cfg.Model.FanOut}
	if cfg.Model.VenueScope == config.VenueScopeSection {
		opts.VenueScope = dimension.ScopeSection
	}
	return opts
}

// Sources are the three raw inputs of a transform.
type Sources struct {
	Tickets  io.Reader
	Sections io.Reader
	Weather  io.Reader
}

// Report describes what a transform kept, dropped, filled and joined.
type Report struct {
	Tickets  *normalize.Stats
	Sections *normalize.Stats
	Weather  *normalize.Stats
	Joins    *fact.JoinStats
}

// SourceStats returns the per-source stats in a fixed order.
func (r *Report) SourceStats() []*normalize.Stats {
	return []*normalize.Stats{r.Tickets, r.Sections, r.Weather}
}

// Transform is the pure core of a run. It reads all three sources before
// building anything, so a structural error in any of them returns before any
// table exists.
func Transform(src Sources, opts Options) (models.StarSchema, *Report, error) {
	var star models.StarSchema
	report := &Report{}

	tickets, stats, err := normalize.Tickets(src.Tickets)
	if err != nil {
		return star, nil, err
	}
	report.Tickets = stats

	sections, stats, err := normalize.Sections(src.Sections)
	if err != nil {
		return star, nil, err
	}
	report.Sections = stats

	weather, stats, err := normalize.Weather(src.Weather)
	if err != nil {
		return star, nil, err
	}
	report.Weather = stats

	star.Dimensions = dimension.Build(tickets, sections, weather, dimension.Options{VenueScope: opts.VenueScope})

	sales, joins, err := fact.Assemble(tickets, star.Dimensions, sections, fact.Options{
		FanOut:     opts.FanOut,
		VenueScope: opts.VenueScope,
	})
	if err != nil {
		return star, nil, err
	}
	star.Sales = sales
	report.Joins = joins

	return star, report, nil
}

// Result is the outcome of Run.
type Result struct {
	RunID     string
	OutputDir string
	Report    *Report
	Tables    map[string]int
	Duration  time.Duration
}

// Pipeline runs the transform against the configured files.
type Pipeline struct {
	cfg    *models.Config
	logger *observability.Logger
	audit  *observability.Audit
}

// New creates a pipeline. A nil audit disables counters.
func New(cfg *models.Config, logger *observability.Logger, audit *observability.Audit) *Pipeline {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Pipeline{cfg: cfg, logger: logger, audit: audit}
}

// Run reads the configured sources, transforms them and publishes the six
// snapshots into the output directory. Nothing is written unless every stage
// succeeded.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := p.logger.WithField("run_id", runID)

	logger.InfoWithFields("Starting transform", map[string]interface{}{
		"tickets":  p.cfg.Sources.Tickets,
		"sections": p.cfg.Sources.Sections,
		"weather":  p.cfg.Sources.Weather,
		"output":   p.cfg.Output.Dir,
	})

	files := []string{p.cfg.Sources.Tickets, p.cfg.Sources.Sections, p.cfg.Sources.Weather}
	readers := make([]io.Reader, 0, len(files))
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.FileError(path, err)
		}
		defer f.Close()
		readers = append(readers, f)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	star, report, err := Transform(Sources{Tickets: readers[0], Sections: readers[1], Weather: readers[2]}, OptionsFromConfig(p.cfg))
	if err != nil {
		logger.WithError(err).Error("Transform aborted, no snapshots written")
		return nil, err
	}

	for _, stats := range report.SourceStats() {
		p.recordSource(logger, stats)
	}
	p.recordJoins(logger, report.Joins)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tables := snapshot.FromStar(star)
	if err := snapshot.NewWriter(p.cfg.Output.Dir).Publish(tables); err != nil {
		logger.WithError(err).Error("Failed to publish snapshots")
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		OutputDir: p.cfg.Output.Dir,
		Report:    report,
		Tables:    make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		result.Tables[t.Name] = len(t.Rows)
		if p.audit != nil {
			p.audit.RecordTable(t.Name, len(t.Rows))
		}
	}
	logger.InfoWithFields("Published snapshots", map[string]interface{}{
		"dir":          p.cfg.Output.Dir,
		"dim_date":     result.Tables[snapshot.DimDate],
		"dim_venue":    result.Tables[snapshot.DimVenue],
		"dim_weather":  result.Tables[snapshot.DimWeather],
		"dim_channel":  result.Tables[snapshot.DimChannel],
		"dim_customer": result.Tables[snapshot.DimCustomer],
		"fact_rows":    result.Tables[snapshot.FactSales],
	})

	if p.audit != nil && p.cfg.Output.MetricsFile != "" {
		if err := p.audit.WriteTextfile(p.cfg.Output.MetricsFile); err != nil {
			logger.WithError(err).Warnf("Failed to write metrics file %s", p.cfg.Output.MetricsFile)
		}
	}

	result.Duration = time.Since(start)
	logger.InfoWithFields("Transform completed", map[string]interface{}{
		"duration": result.Duration.String(),
	})
	return result, nil
}

func (p *Pipeline) recordSource(logger *observability.Logger, stats *normalize.Stats) {
	log := logger.WithField("source", stats.Source)
	log.InfoWithFields("Source normalized", map[string]interface{}{
		"read":      stats.Read,
		"kept":      stats.Kept,
		"dropped":   stats.Dropped,
		"malformed": stats.Malformed,
	})

	for _, column := range sortedKeys(stats.DroppedBy) {
		log.InfoWithFields(fmt.Sprintf("Dropped rows with missing %s", column), map[string]interface{}{
			"column": column,
			"count":  stats.DroppedBy[column],
		})
	}
	for _, column := range sortedKeys(stats.Filled) {
		log.WarnWithFields(fmt.Sprintf("Filled missing values in %s", column), map[string]interface{}{
			"column": column,
			"count":  stats.Filled[column],
		})
	}
	for _, column := range sortedKeys(stats.CoercionFailures) {
		log.Debugf("%d values of %s could not be parsed and were treated as missing", stats.CoercionFailures[column], column)
	}
	for _, column := range sortedKeys(stats.LeftMissing) {
		log.WarnWithFields(fmt.Sprintf("Keeping missing values in %s as unknown", column), map[string]interface{}{
			"column": column,
			"count":  stats.LeftMissing[column],
		})
	}

	if p.audit == nil {
		return
	}
	p.audit.RecordRows(stats.Source, "read", stats.Read)
	p.audit.RecordRows(stats.Source, "kept", stats.Kept)
	p.audit.RecordRows(stats.Source, "dropped", stats.Dropped)
	for column, n := range stats.Filled {
		p.audit.RecordFill(stats.Source, column, n)
	}
	for column, n := range stats.CoercionFailures {
		p.audit.RecordCoercionFailure(stats.Source, column, n)
	}
}

func (p *Pipeline) recordJoins(logger *observability.Logger, joins *fact.JoinStats) {
	for _, step := range fact.Steps {
		s := joins.Steps[step]
		if s.Unmatched > 0 {
			logger.WarnWithFields("Join step left foreign keys null", map[string]interface{}{
				"step":      step,
				"matched":   s.Matched,
				"unmatched": s.Unmatched,
			})
		}
		if p.audit != nil {
			p.audit.RecordJoin(step, "matched", s.Matched)
			p.audit.RecordJoin(step, "unmatched", s.Unmatched)
		}
	}
	logger.InfoWithFields("Fact table assembled", map[string]interface{}{
		"tickets": joins.Tickets,
		"facts":   joins.Facts,
	})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
