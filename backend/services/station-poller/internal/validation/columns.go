package validation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"chargewatch/backend/services/station-poller/internal/models"
	"chargewatch/backend/services/station-poller/internal/table"
)

var errTextCompare = errors.New("compared as text")

// timeColumn is a timestamp column coerced for comparison. When a cell cannot be parsed, err is
// set and comparisons fall back to the raw strings.
type timeColumn struct {
	raw    []string
	parsed []time.Time
	err    error
}

func newTimeColumn(values []string) timeColumn {
	col := timeColumn{}
	for _, v := range values {
		if v == "" {
			continue
		}
		col.raw = append(col.raw, v)
		if col.err != nil {
			continue
		}
		ts, err := models.ParseTimestamp(v)
		if err != nil {
			col.err = err
			col.parsed = nil
			continue
		}
		col.parsed = append(col.parsed, ts)
	}
	return col
}

func (c timeColumn) coerced() bool {
	return c.err == nil
}

// coverage returns min, max and, when coerced, the span in hours.
func (c timeColumn) coverage() *TemporalCoverage {
	if len(c.raw) == 0 {
		return &TemporalCoverage{}
	}
	if !c.coerced() {
		sorted := append([]string(nil), c.raw...)
		sort.Strings(sorted)
		return &TemporalCoverage{MinTime: sorted[0], MaxTime: sorted[len(sorted)-1]}
	}
	lo, hi := c.parsed[0], c.parsed[0]
	for _, ts := range c.parsed[1:] {
		if ts.Before(lo) {
			lo = ts
		}
		if ts.After(hi) {
			hi = ts
		}
	}
	span := hi.Sub(lo).Hours()
	return &TemporalCoverage{
		MinTime:   models.FormatTimestamp(lo),
		MaxTime:   models.FormatTimestamp(hi),
		SpanHours: &span,
	}
}

// missingHours lists the hours of day without any observation. Needs a coerced column.
func (c timeColumn) missingHours() []int {
	seen := make(map[int]bool, 24)
	for _, ts := range c.parsed {
		seen[ts.Hour()] = true
	}
	var missing []int
	for h := 0; h < 24; h++ {
		if !seen[h] {
			missing = append(missing, h)
		}
	}
	return missing
}

// identities maps each cell to a comparable identity: the instant when coerced, else the text.
func (c timeColumn) identities() map[string]struct{} {
	out := make(map[string]struct{}, len(c.raw))
	if c.coerced() {
		for _, ts := range c.parsed {
			out[strconv.FormatInt(ts.UnixNano(), 10)] = struct{}{}
		}
		return out
	}
	for _, v := range c.raw {
		out[v] = struct{}{}
	}
	return out
}

func completenessOf(t *table.Table, col string) Completeness {
	missing := 0
	for _, v := range t.Column(col) {
		if v == "" {
			missing++
		}
	}
	c := Completeness{Missing: missing}
	if t.Len() > 0 {
		c.PercentMissing = float64(missing) / float64(t.Len()) * 100
	}
	return c
}

func missingIssue(col string, c Completeness) string {
	return fmt.Sprintf("Column '%s' has %d missing values (%.1f%%)", col, c.Missing, c.PercentMissing)
}

func valueCounts(values []string) map[string]int {
	out := make(map[string]int)
	for _, v := range values {
		out[v]++
	}
	return out
}

func stationCoverage(ids []string) *StationCoverage {
	counts := valueCounts(ids)
	cov := &StationCoverage{UniqueStations: len(counts)}
	if len(counts) == 0 {
		return cov
	}
	first := true
	total := 0
	for _, n := range counts {
		total += n
		if first || n < cov.MinRecords {
			cov.MinRecords = n
		}
		if first || n > cov.MaxRecords {
			cov.MaxRecords = n
		}
		first = false
	}
	cov.AvgRecords = float64(total) / float64(len(counts))
	return cov
}

func uniqueSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func asInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func asFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}
