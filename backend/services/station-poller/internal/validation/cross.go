package validation

import (
	"fmt"

	"chargewatch/backend/services/station-poller/internal/table"
)

// crossCheck relates the tables to each other. Its findings are advisory.
func crossCheck(stations, utilization, hourly *table.Table) CrossReport {
	rep := CrossReport{}

	var known map[string]struct{}
	if stations.Has("id") {
		known = uniqueSet(stations.Column("id"))
	}

	if known != nil && utilization.Has("station_id") {
		used := uniqueSet(utilization.Column("station_id"))
		unknown := 0
		for id := range used {
			if _, ok := known[id]; !ok {
				unknown++
			}
		}
		if unknown > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d station IDs in utilization data not present in stations data", unknown))
		}
		withoutUtilization := 0
		for id := range known {
			if _, ok := used[id]; !ok {
				withoutUtilization++
			}
		}
		rep.StationCoverage = &CrossCoverage{
			TotalStations:              len(known),
			StationsWithUtilization:    len(used),
			StationsMissingUtilization: withoutUtilization,
			UnknownStationIDs:          unknown,
		}
	}

	if hourly == nil {
		return rep
	}

	if known != nil && hourly.Has("station_id") {
		unknown := 0
		for id := range uniqueSet(hourly.Column("station_id")) {
			if _, ok := known[id]; !ok {
				unknown++
			}
		}
		if unknown > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d station IDs in hourly data not present in stations data", unknown))
		}
	}

	if utilization.Has("hourly_timestamp") && hourly.Has("hourly_timestamp") {
		utilHours := newTimeColumn(utilization.Column("hourly_timestamp"))
		hourlyHours := newTimeColumn(hourly.Column("hourly_timestamp"))
		if !utilHours.coerced() {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Could not convert utilization hourly_timestamp to datetime: %v", utilHours.err))
		}
		if !hourlyHours.coerced() {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Could not convert hourly hourly_timestamp to datetime: %v", hourlyHours.err))
		}
		// both sides must use the same identity, so fall back to text if either failed
		if !utilHours.coerced() || !hourlyHours.coerced() {
			utilHours.err, hourlyHours.err = errTextCompare, errTextCompare
		}
		present := utilHours.identities()
		extra := 0
		for id := range hourlyHours.identities() {
			if _, ok := present[id]; !ok {
				extra++
			}
		}
		if extra > 0 {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Found %d timestamps in hourly data not present in utilization data", extra))
		}
	}

	if utilization.Has("station_id") && hourly.Has("station_id") {
		u := len(uniqueSet(utilization.Column("station_id")))
		h := len(uniqueSet(hourly.Column("station_id")))
		if u != h {
			rep.Issues = append(rep.Issues, fmt.Sprintf("Mismatch in unique station count: %d in utilization vs %d in hourly", u, h))
		}
	}
	return rep
}
