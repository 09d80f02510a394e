package validation

import (
	"fmt"
	"strings"

	"chargewatch/backend/services/station-poller/internal/models"
	"chargewatch/backend/services/station-poller/internal/table"
)

var (
	stationRequired     = []string{"id", "name", "status", "latitude", "longitude", "total_connectors"}
	stationCritical     = []string{"id", "status"}
	utilizationRequired = []string{"timestamp", "station_id", "connector_id", "status", "is_occupied", "is_available", "is_out_of_order"}
	utilizationCritical = []string{"timestamp", "station_id", "connector_id", "status"}
	hourlyRequired      = []string{"hourly_timestamp", "station_id", "is_available", "is_occupied", "is_out_of_order", "total_connectors", "occupancy_rate", "availability_rate"}
)

var typedConnectorColumns = []string{"ccs_connectors", "chademo_connectors", "type2_connectors", "other_connectors"}

// checkCritical reports required columns and empty critical cells. It returns false when a critical
// field is absent.
func checkCritical(t *table.Table, required, critical []string, issues *[]string, stats *DatasetStats) bool {
	valid := true
	missing := missingColumns(t, required)
	if len(missing) > 0 {
		*issues = append(*issues, "Missing required columns: "+joinList(missing))
	}
	for _, c := range critical {
		if !t.Has(c) {
			valid = false
		}
	}
	stats.Completeness = make(map[string]Completeness)
	for _, c := range required {
		if !t.Has(c) {
			continue
		}
		comp := completenessOf(t, c)
		stats.Completeness[c] = comp
		if comp.Missing == 0 {
			continue
		}
		*issues = append(*issues, missingIssue(c, comp))
		for _, crit := range critical {
			if crit == c {
				valid = false
			}
		}
	}
	return valid
}

func checkStations(t *table.Table) DatasetReport {
	if t.Empty() {
		return DatasetReport{Valid: false, Issues: []string{"Stations data is empty"}}
	}
	rep := DatasetReport{Stats: DatasetStats{Total: t.Len()}}
	rep.Valid = checkCritical(t, stationRequired, stationCritical, &rep.Issues, &rep.Stats)
	if !t.Has("id") || !t.Has("status") {
		return rep
	}

	if dupes, _ := table.DuplicateKeys(t, models.StationKey); len(dupes) > 0 {
		rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d duplicate station IDs", len(dupes)))
		example := dupes
		if len(example) > 5 {
			example = example[:5]
		}
		rep.Issues = append(rep.Issues, "Example duplicate IDs: "+joinList(example))
	}

	if t.Has("latitude") && t.Has("longitude") {
		var badLat, badLng, missingCoords, unparsable int
		for i := range t.Rows {
			latRaw, lngRaw := t.Value(i, "latitude"), t.Value(i, "longitude")
			if latRaw == "" || lngRaw == "" {
				missingCoords++
			}
			if lat, ok := asFloat(latRaw); ok {
				if lat < -90 || lat > 90 {
					badLat++
				}
			} else if latRaw != "" {
				unparsable++
			}
			if lng, ok := asFloat(lngRaw); ok {
				if lng < -180 || lng > 180 {
					badLng++
				}
			} else if lngRaw != "" {
				unparsable++
			}
		}
		if badLat > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d stations with invalid latitude values", badLat))
		}
		if badLng > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d stations with invalid longitude values", badLng))
		}
		if missingCoords > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d stations missing coordinate values", missingCoords))
		}
		if unparsable > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d non-numeric coordinate values", unparsable))
		}
	}

	rep.Stats.StatusCounts = valueCounts(t.Column("status"))
	if unexpected := unexpectedValues(rep.Stats.StatusCounts, models.ExpectedStationStatuses); len(unexpected) > 0 {
		rep.Issues = append(rep.Issues, "Found unexpected status values: "+joinList(unexpected))
	}

	rep.Stats.ConnectorTypeCounts = make(map[string]int)
	var present []string
	for _, col := range typedConnectorColumns {
		if !t.Has(col) {
			continue
		}
		present = append(present, col)
		sum := 0
		for _, v := range t.Column(col) {
			n, _ := asInt(v)
			sum += n
		}
		rep.Stats.ConnectorTypeCounts[strings.TrimSuffix(col, "_connectors")] = sum
	}
	if t.Has("total_connectors") && len(present) > 0 {
		mismatches := 0
		for i := range t.Rows {
			total, _ := asInt(t.Value(i, "total_connectors"))
			sum := 0
			for _, col := range present {
				n, _ := asInt(t.Value(i, col))
				sum += n
			}
			if sum != total {
				mismatches++
			}
		}
		if mismatches > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf(
				"Found %d stations (%.1f%%) where total_connectors doesn't match sum of specific types. "+
					"This is expected if there are connectors without specific types assigned.",
				mismatches, percent(mismatches, t.Len())))
		}
	}
	return rep
}

func checkUtilization(t *table.Table, expectFullDay bool) DatasetReport {
	if t.Empty() {
		return DatasetReport{Valid: false, Issues: []string{"Utilization data is empty"}}
	}
	rep := DatasetReport{Stats: DatasetStats{Total: t.Len()}}
	rep.Valid = checkCritical(t, utilizationRequired, utilizationCritical, &rep.Issues, &rep.Stats)
	if missing := missingColumns(t, utilizationCritical); len(missing) > 0 {
		return rep
	}

	stamps := newTimeColumn(t.Column("timestamp"))
	if !stamps.coerced() {
		rep.Issues = append(rep.Issues, fmt.Sprintf("Could not convert 'timestamp' column to datetime: %v", stamps.err))
	}
	if t.Has("hourly_timestamp") {
		if hourly := newTimeColumn(t.Column("hourly_timestamp")); !hourly.coerced() {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Could not convert 'hourly_timestamp' column to datetime: %v", hourly.err))
		}
	}

	if _, surplus := table.DuplicateKeys(t, models.UtilizationKey); surplus > 0 {
		rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d duplicate utilization records", surplus))
	}

	rep.Stats.StatusCounts = valueCounts(t.Column("status"))
	if rep.Stats.StatusCounts[models.ConnectorFaulted] > 0 {
		rep.Issues = append(rep.Issues, "Found 'FAULTED' status values")
	}
	if unexpected := unexpectedValues(rep.Stats.StatusCounts, models.ExpectedConnectorStatuses); len(unexpected) > 0 {
		rep.Issues = append(rep.Issues, "Found unexpected status values: "+joinList(unexpected))
	}

	if t.Has("is_occupied") && t.Has("is_available") && t.Has("is_out_of_order") {
		flags := []struct{ column, status string }{
			{"is_occupied", models.ConnectorOccupied},
			{"is_available", models.ConnectorAvailable},
			{"is_out_of_order", models.ConnectorOutOfOrder},
		}
		for _, f := range flags {
			mismatches := 0
			for i := range t.Rows {
				set, _ := asInt(t.Value(i, f.column))
				if (set == 1) != (t.Value(i, "status") == f.status) {
					mismatches++
				}
			}
			if mismatches > 0 {
				rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d records where %s flag doesn't match status", mismatches, f.column))
			}
		}
	}

	rep.Stats.Temporal = stamps.coverage()
	if expectFullDay && stamps.coerced() {
		if missing := stamps.missingHours(); len(missing) > 0 {
			hours := make([]string, len(missing))
			for i, h := range missing {
				hours[i] = fmt.Sprint(h)
			}
			rep.Issues = append(rep.Issues, "Missing data for hours: "+joinList(hours))
			rep.Stats.Temporal.MissingHours = missing
		}
	}
	rep.Stats.Stations = stationCoverage(t.Column("station_id"))
	return rep
}

func checkHourly(t *table.Table) DatasetReport {
	if t.Empty() {
		return DatasetReport{Valid: true, Issues: []string{"Hourly data is empty"}}
	}
	rep := DatasetReport{Valid: true, Stats: DatasetStats{Total: t.Len()}}
	if missing := missingColumns(t, hourlyRequired); len(missing) > 0 {
		rep.Issues = append(rep.Issues, "Missing required columns: "+joinList(missing))
	}

	var stamps timeColumn
	if t.Has("hourly_timestamp") {
		stamps = newTimeColumn(t.Column("hourly_timestamp"))
		if !stamps.coerced() {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Could not convert 'hourly_timestamp' column to datetime: %v", stamps.err))
		}
	}

	if t.Has("hourly_timestamp") && t.Has("station_id") {
		if _, surplus := table.DuplicateKeys(t, models.HourlyKey); surplus > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d duplicate hourly records", surplus))
		}
	}

	for _, col := range []string{"occupancy_rate", "availability_rate"} {
		if !t.Has(col) {
			continue
		}
		invalid := 0
		for _, v := range t.Column(col) {
			rate, ok := asFloat(v)
			if ok && (rate < 0 || rate > 1) {
				invalid++
			}
		}
		if invalid > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d records with invalid %s values", invalid, strings.ReplaceAll(col, "_", " ")))
		}
	}

	if t.Has("total_connectors") && t.Has("is_available") && t.Has("is_occupied") && t.Has("is_out_of_order") {
		mismatches := 0
		for i := range t.Rows {
			a, _ := asInt(t.Value(i, "is_available"))
			o, _ := asInt(t.Value(i, "is_occupied"))
			x, _ := asInt(t.Value(i, "is_out_of_order"))
			total, _ := asInt(t.Value(i, "total_connectors"))
			if a+o+x != total {
				mismatches++
			}
		}
		if mismatches > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf(
				"Found %d records (%.1f%%) where total_connectors doesn't match sum of status counts. "+
					"This may be due to connectors with status values not counted in the standard categories.",
				mismatches, percent(mismatches, t.Len())))
		}
	}

	if t.Has("hourly_timestamp") {
		rep.Stats.Temporal = stamps.coverage()
	}
	if t.Has("station_id") {
		rep.Stats.Stations = stationCoverage(t.Column("station_id"))
	}
	return rep
}

func unexpectedValues(counts map[string]int, expected []string) []string {
	allowed := make(map[string]bool, len(expected))
	for _, e := range expected {
		allowed[e] = true
	}
	set := make(map[string]struct{})
	for v := range counts {
		if v != "" && !allowed[v] {
			set[v] = struct{}{}
		}
	}
	return sortedKeys(set)
}
