package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ticketstar"

// Audit collects the per-run counters that describe what the cleaning stage
// kept, dropped and filled. Each run owns its own registry.
type Audit struct {
	registry *prometheus.Registry
	rows     *prometheus.CounterVec
	fills    *prometheus.CounterVec
	coerce   *prometheus.CounterVec
	joins    *prometheus.CounterVec
	tables   *prometheus.GaugeVec
	uploads  *prometheus.CounterVec
}

// NewAudit creates the counters and registers them on a fresh registry.
func NewAudit() *Audit {
	a := &Audit{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Raw rows per source by outcome (read, kept, dropped).",
		}, []string{"source", "outcome"}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Missing values replaced by a fill policy.",
		}, []string{"source", "column"}),
		coerce: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coercion_failures_total",
			Help:      "Values that could not be coerced to their column type.",
		}, []string{"source", "column"}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_total",
			Help:      "Fact join results per step.",
		}, []string{"step", "outcome"}),
		tables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows in each published table.",
		}, []string{"table"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Warehouse loads per table by outcome.",
		}, []string{"table", "outcome"}),
	}

	a.registry.MustRegister(a.rows, a.fills, a.coerce, a.joins, a.tables, a.uploads)
	return a
}

// Registry exposes the underlying registry.
func (a *Audit) Registry() *prometheus.Registry {
	return a.registry
}

func (a *Audit) RecordRows(source, outcome string, n int) {
	a.rows.WithLabelValues(source, outcome).Add(float64(n))
}

func (a *Audit) RecordFill(source, column string, n int) {
	a.fills.WithLabelValues(source, column).Add(float64(n))
}

func (a *Audit) RecordCoercionFailure(source, column string, n int) {
	a.coerce.WithLabelValues(source, column).Add(float64(n))
}

func (a *Audit) RecordJoin(step, outcome string, n int) {
	a.joins.WithLabelValues(step, outcome).Add(float64(n))
}

func (a *Audit) RecordTable(table string, rows int) {
	a.tables.WithLabelValues(table).Set(float64(rows))
}

func (a *Audit) RecordUpload(table, outcome string) {
	a.uploads.WithLabelValues(table, outcome).Inc()
}

// WriteTextfile writes the counters in the node-exporter textfile format.
func (a *Audit) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, a.registry)
}

// Counter returns the rows counter for a source and outcome; used by tests and the summary.
func (a *Audit) Counter(source, outcome string) prometheus.Counter {
	return a.rows.WithLabelValues(source, outcome)
}
