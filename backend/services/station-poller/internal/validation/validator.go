package validation

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/table"
)

// Issue prefixes per dataset.
const (
	prefixStations    = "Stations data issue: "
	prefixUtilization = "Utilization data issue: "
	prefixHourly      = "Hourly data issue: "
	prefixCross       = "Cross-validation issue: "
)

// Completeness counts empty cells of one column.
type Completeness struct {
	Missing        int     `json:"missing"`
	PercentMissing float64 `json:"percent_missing"`
}

// TemporalCoverage summarizes a timestamp column.
type TemporalCoverage struct {
	MinTime      string   `json:"min_time,omitempty"`
	MaxTime      string   `json:"max_time,omitempty"`
	SpanHours    *float64 `json:"time_range_hours,omitempty"`
	MissingHours []int    `json:"missing_hours,omitempty"`
}

// StationCoverage summarizes how records spread over stations.
type StationCoverage struct {
	UniqueStations int     `json:"unique_stations"`
	MinRecords     int     `json:"min_records_per_station"`
	MaxRecords     int     `json:"max_records_per_station"`
	AvgRecords     float64 `json:"avg_records_per_station"`
}

// DatasetStats holds whatever a dataset check could compute.
type DatasetStats struct {
	Total               int                     `json:"total"`
	StatusCounts        map[string]int          `json:"status_counts,omitempty"`
	ConnectorTypeCounts map[string]int          `json:"connector_type_counts,omitempty"`
	Completeness        map[string]Completeness `json:"completeness,omitempty"`
	Temporal            *TemporalCoverage       `json:"temporal_coverage,omitempty"`
	Stations            *StationCoverage        `json:"station_coverage,omitempty"`
}

// DatasetReport is the outcome for one table.
type DatasetReport struct {
	Valid  bool         `json:"is_valid"`
	Issues []string     `json:"issues"`
	Stats  DatasetStats `json:"stats"`
}

// CrossCoverage relates the station table to the utilization table.
type CrossCoverage struct {
	TotalStations              int `json:"total_stations"`
	StationsWithUtilization    int `json:"stations_with_utilization"`
	StationsMissingUtilization int `json:"stations_missing_utilization"`
	UnknownStationIDs          int `json:"utilization_records_with_unknown_station"`
}

// CrossReport holds checks spanning several tables.
type CrossReport struct {
	Issues          []string       `json:"issues"`
	StationCoverage *CrossCoverage `json:"station_coverage,omitempty"`
}

// Report is the full structured outcome.
type Report struct {
	Stations    DatasetReport  `json:"stations"`
	Utilization DatasetReport  `json:"utilization"`
	Hourly      *DatasetReport `json:"hourly,omitempty"`
	Cross       CrossReport    `json:"cross_validation"`
}

// Result is what Validate returns. Passed is false only when a critical field is absent.
type Result struct {
	Passed bool
	Issues []string
	Report Report
}

// Validator checks the three tables of a run. It never modifies its input.
type Validator struct {
	ExpectFullDay bool
}

// NewValidator returns validator.
func NewValidator(expectFullDay bool) *Validator {
	return &Validator{ExpectFullDay: expectFullDay}
}

// Validate runs every dataset and cross-dataset check. hourly may be nil to skip its checks.
func (v *Validator) Validate(stations, utilization, hourly *table.Table) Result {
	report := Report{
		Stations:    checkStations(stations),
		Utilization: checkUtilization(utilization, v.ExpectFullDay),
	}
	passed := report.Stations.Valid && report.Utilization.Valid

	var issues []string
	issues = appendPrefixed(issues, prefixStations, report.Stations.Issues)
	issues = appendPrefixed(issues, prefixUtilization, report.Utilization.Issues)
	if hourly != nil {
		h := checkHourly(hourly)
		report.Hourly = &h
		passed = passed && h.Valid
		issues = appendPrefixed(issues, prefixHourly, h.Issues)
	}

	report.Cross = crossCheck(stations, utilization, hourly)
	issues = appendPrefixed(issues, prefixCross, report.Cross.Issues)

	return Result{Passed: passed, Issues: issues, Report: report}
}

func appendPrefixed(dst []string, prefix string, issues []string) []string {
	for _, issue := range issues {
		dst = append(dst, prefix+issue)
	}
	return dst
}

// Log writes the outcome: a summary line, dataset counts and one warning per issue.
func Log(logger *zap.Logger, res Result) {
	if logger == nil {
		return
	}
	if res.Passed {
		logger.Info("data validation passed", zap.Int("issues", len(res.Issues)))
	} else {
		logger.Warn("data validation failed", zap.Int("issues", len(res.Issues)))
	}
	st := res.Report.Stations.Stats
	logger.Info("validated stations", zap.Int("total", st.Total), zap.Any("status_counts", st.StatusCounts))
	ut := res.Report.Utilization.Stats
	logger.Info("validated utilization records", zap.Int("total", ut.Total), zap.Any("status_counts", ut.StatusCounts))
	for _, issue := range res.Issues {
		logger.Warn("validation issue", zap.String("issue", issue))
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func missingColumns(t *table.Table, cols []string) []string {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
