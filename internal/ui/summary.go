package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"ticketstar/internal/fact"
	"ticketstar/internal/pipeline"
	"ticketstar/internal/snapshot"
	"ticketstar/internal/warehouse"
	"ticketstar/internal/weather"
)

// Summary renders the end-of-run tables printed by the CLI.
type Summary struct {
	useColor bool
}

// NewSummary creates a summary renderer
func NewSummary(useColor bool) *Summary {
	return &Summary{useColor: useColor}
}

// Run renders source, join and table statistics of a transform.
func (s *Summary) Run(report *pipeline.Report, tables map[string]int, duration time.Duration) string {
	var buf strings.Builder

	buf.WriteString(s.title("Sources"))
	table := s.newTable(&buf, []string{"Source", "Read", "Kept", "Dropped", "Malformed", "Filled", "Unparsed"})
	for _, stats := range report.SourceStats() {
		if stats == nil {
			continue
		}
		dropped := strconv.Itoa(stats.Dropped)
		if stats.Dropped > 0 && s.useColor {
			dropped = color.YellowString(dropped)
		}
		table.Append([]string{
			stats.Source,
			strconv.Itoa(stats.Read),
			strconv.Itoa(stats.Kept),
			dropped,
			strconv.Itoa(stats.Malformed),
			countList(stats.Filled),
			countList(stats.CoercionFailures),
		})
	}
	table.Render()

	if report.Joins != nil {
		buf.WriteString(s.title("Joins"))
		buf.WriteString(fmt.Sprintf("%d tickets -> %d facts\n", report.Joins.Tickets, report.Joins.Facts))
		table = s.newTable(&buf, []string{"Step", "Matched", "Unmatched"})
		for _, step := range fact.Steps {
			st := report.Joins.Steps[step]
			if st == nil {
				continue
			}
			unmatched := strconv.Itoa(st.Unmatched)
			if st.Unmatched > 0 && s.useColor {
				unmatched = color.YellowString(unmatched)
			}
			table.Append([]string{step, strconv.Itoa(st.Matched), unmatched})
		}
		table.Render()
	}

	if len(tables) > 0 {
		buf.WriteString(s.title("Tables"))
		table = s.newTable(&buf, []string{"Table", "Rows"})
		for _, name := range snapshot.Tables {
			if rows, ok := tables[name]; ok {
				table.Append([]string{name, strconv.Itoa(rows)})
			}
		}
		table.Render()
	}

	if duration > 0 {
		buf.WriteString(fmt.Sprintf("\nCompleted in %s\n", FormatDuration(duration)))
	}
	return buf.String()
}

// Fetch renders the per-city result of a weather acquisition.
func (s *Summary) Fetch(report *weather.Report) string {
	var buf strings.Builder

	buf.WriteString(s.title("Weather"))
	table := s.newTable(&buf, []string{"City", "Days", "Status"})

	cities := make([]string, 0, len(report.Fetched)+len(report.Skipped))
	for city := range report.Fetched {
		cities = append(cities, city)
	}
	cities = append(cities, report.Skipped...)
	sort.Strings(cities)

	for _, city := range cities {
		days, fetched := report.Fetched[city]
		status := s.status(true, "ok")
		switch {
		case report.Failures[city] != nil:
			status = s.status(false, report.Failures[city].Error())
		case !fetched:
			status = s.warn("no data")
		}
		table.Append([]string{city, strconv.Itoa(days), status})
	}
	table.Render()
	return buf.String()
}

// Upload renders the per-table result of a warehouse load.
func (s *Summary) Upload(report *warehouse.UploadReport) string {
	var buf strings.Builder

	buf.WriteString(s.title("Warehouse"))
	table := s.newTable(&buf, []string{"Table", "Rows", "Status"})
	for _, name := range snapshot.Tables {
		if rows, ok := report.Loaded[name]; ok {
			table.Append([]string{name, strconv.FormatInt(rows, 10), s.status(true, "loaded")})
			continue
		}
		if err, ok := report.Failed[name]; ok {
			table.Append([]string{name, "-", s.status(false, err.Error())})
		}
	}
	table.Render()
	return buf.String()
}

func (s *Summary) newTable(buf *strings.Builder, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func (s *Summary) title(text string) string {
	if s.useColor {
		return "\n" + color.New(color.Bold, color.FgCyan).Sprint(text) + "\n"
	}
	return "\n" + text + "\n"
}

func (s *Summary) status(ok bool, text string) string {
	if !s.useColor {
		return text
	}
	if ok {
		return color.GreenString(text)
	}
	return color.RedString(text)
}

func (s *Summary) warn(text string) string {
	if s.useColor {
		return color.YellowString(text)
	}
	return text
}

// countList renders a per-column counter as "a=1 b=2", sorted by column.
func countList(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
