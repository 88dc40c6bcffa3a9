package normalize

import (
	"encoding/csv"
	stderrors "errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"ticketstar/pkg/errors"
	"ticketstar/pkg/models"
)

// Value is one coerced cell. Valid is false when the value is missing.
type Value struct {
	Str   string
	Int   int64
	Float float64
	Time  time.Time
	Valid bool
}

// Record holds the values of one surviving row in spec column order.
type Record []Value

// Stats is the audit trail of one source.
type Stats struct {
	Source  string
	Read    int
	Kept    int
	Dropped int
	// Malformed counts lines the CSV reader could not split.
	Malformed int
	// CoercionFailures counts non-empty values that did not parse or violated a constraint.
	CoercionFailures map[string]int
	// DroppedBy counts dropped rows by the first missing required column.
	DroppedBy map[string]int
	// Filled counts values replaced by ZeroFill or UnknownFill.
	Filled map[string]int
	// LeftMissing counts values kept missing by LeaveMissing.
	LeftMissing map[string]int
}

func newStats(source string) *Stats {
	return &Stats{
		Source:           source,
		CoercionFailures: map[string]int{},
		DroppedBy:        map[string]int{},
		Filled:           map[string]int{},
		LeftMissing:      map[string]int{},
	}
}

var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"#n/a": true,
	"nan":  true,
	"null": true,
	"none": true,
}

// Normalize reads a header-led CSV source and coerces every declared column.
// A declared column absent from the header is a structural error; everything else is recovered row by row and counted in Stats.
func Normalize(r io.Reader, spec Spec) ([]Record, *Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.StructuralError(spec.Source, "source is empty, header row required")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeStructural, spec.Source+": unreadable header").
			WithSeverity(errors.SeverityCritical)
	}

	positions, err := resolveHeader(header, spec)
	if err != nil {
		return nil, nil, err
	}

	stats := newStats(spec.Source)
	var records []Record

	for {
		raw, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if stderrors.As(err, &parseErr) {
				stats.Read++
				stats.Malformed++
				stats.Dropped++
				continue
			}
			return nil, nil, errors.Wrap(err, errors.ErrCodeFileOperation, spec.Source+": read failed")
		}
		stats.Read++

		record, ok := coerceRow(raw, positions, spec, stats)
		if !ok {
			stats.Dropped++
			continue
		}
		stats.Kept++
		records = append(records, record)
	}

	return records, stats, nil
}

// resolveHeader maps every declared column to its position in the raw header.
func resolveHeader(header []string, spec Spec) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	positions := make([]int, len(spec.Columns))
	for i, col := range spec.Columns {
		positions[i] = -1
		for _, name := range append([]string{col.Name}, col.Aliases...) {
			if pos, ok := index[name]; ok {
				positions[i] = pos
				break
			}
		}
		if positions[i] < 0 {
			return nil, errors.MissingColumnError(spec.Source, col.Name)
		}
	}
	return positions, nil
}

func coerceRow(raw []string, positions []int, spec Spec, stats *Stats) (Record, bool) {
	record := make(Record, len(spec.Columns))

	// Coerce every column first so coercion failures are counted even on dropped rows.
	for i, col := range spec.Columns {
		cell := ""
		if pos := positions[i]; pos < len(raw) {
			cell = raw[pos]
		}
		v, failed := coerce(cell, col)
		if failed {
			stats.CoercionFailures[col.Name]++
		}
		record[i] = v
	}

	for i, col := range spec.Columns {
		if !record[i].Valid && col.Policy == DropRow {
			stats.DroppedBy[col.Name]++
			return nil, false
		}
	}

	for i, col := range spec.Columns {
		if record[i].Valid {
			continue
		}
		switch col.Policy {
		case ZeroFill:
			record[i] = Value{Valid: true}
			stats.Filled[col.Name]++
		case UnknownFill:
			record[i] = Value{Str: UnknownValue, Valid: true}
			stats.Filled[col.Name]++
		case LeaveMissing:
			stats.LeftMissing[col.Name]++
		}
	}

	return record, true
}

// coerce parses one cell. failed reports a present value that could not be used.
func coerce(cell string, col Column) (Value, bool) {
	s := strings.TrimSpace(cell)
	if missingTokens[strings.ToLower(s)] {
		return Value{}, false
	}

	switch col.Kind {
	case KindString:
		if col.Lowercase {
			s = strings.ToLower(s)
		}
		return Value{Str: s, Valid: true}, false

	case KindDate:
		for _, layout := range col.DateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Value{Time: models.Day(t), Valid: true}, false
			}
		}
		return Value{}, true

	case KindFloat:
		f, ok := parseNumber(s)
		if !ok || !satisfies(f, col.Constraint) {
			return Value{}, true
		}
		return Value{Float: f, Valid: true}, false

	case KindInt:
		f, ok := parseNumber(s)
		if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 || !satisfies(f, col.Constraint) {
			return Value{}, true
		}
		return Value{Int: int64(f), Valid: true}, false
	}

	return Value{}, true
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func satisfies(f float64, c Constraint) bool {
	switch c {
	case NonNegative:
		return f >= 0
	case Positive:
		return f > 0
	default:
		return true
	}
}
