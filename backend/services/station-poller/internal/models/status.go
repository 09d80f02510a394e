package models

import "strings"

// Station status values.
const (
	StationAvailable         = "Available"
	StationOccupied          = "Occupied"
	StationOutOfOrder        = "OutOfOrder"
	StationPlanned           = "Planned"
	StationUnderConstruction = "UnderConstruction"
	StationUnknown           = "Unknown"
)

// Connector status values. Anything upstream sends outside the synonym table is kept verbatim.
const (
	ConnectorAvailable  = "Available"
	ConnectorOccupied   = "Occupied"
	ConnectorOutOfOrder = "OutOfOrder"
	ConnectorFaulted    = "FAULTED"
)

// Connector type buckets counted per station.
const (
	TypeCCS     = "CCS"
	TypeCHAdeMO = "CHAdeMO"
	TypeType2   = "Type2"
	TypeACType2 = "AC Type 2"
)

var stationStatusSynonyms = map[string]string{
	"AVAILABLE":          StationAvailable,
	"OCCUPIED":           StationOccupied,
	"UNAVAILABLE":        StationOutOfOrder,
	"OUT_OF_ORDER":       StationOutOfOrder,
	"PLANNED":            StationPlanned,
	"UNDER_CONSTRUCTION": StationUnderConstruction,
}

var connectorStatusSynonyms = map[string]string{
	"AVAILABLE":    ConnectorAvailable,
	"OCCUPIED":     ConnectorOccupied,
	"UNAVAILABLE":  ConnectorOutOfOrder,
	"OUT_OF_ORDER": ConnectorOutOfOrder,
}

// ExpectedStationStatuses is the persisted station status vocabulary.
var ExpectedStationStatuses = []string{
	StationAvailable, StationOccupied, StationOutOfOrder, StationPlanned, StationUnderConstruction, StationUnknown,
}

// ExpectedConnectorStatuses is the persisted utilization status vocabulary.
var ExpectedConnectorStatuses = []string{
	ConnectorAvailable, ConnectorOccupied, ConnectorOutOfOrder, ConnectorFaulted,
}

// MapStationStatus translates an upstream station status. The bool reports whether the value
// was found in the synonym table; unmapped values are returned unchanged.
func MapStationStatus(raw string) (string, bool) {
	if mapped, ok := stationStatusSynonyms[strings.ToUpper(raw)]; ok {
		return mapped, true
	}
	return raw, false
}

// MapConnectorStatus translates an upstream connector status; unmapped values pass through.
func MapConnectorStatus(raw string) string {
	if mapped, ok := connectorStatusSynonyms[strings.ToUpper(raw)]; ok {
		return mapped
	}
	return raw
}

// StatusFlags returns is_occupied, is_available, is_out_of_order for a normalized connector status.
func StatusFlags(status string) (occupied, available, outOfOrder int) {
	switch status {
	case ConnectorOccupied:
		return 1, 0, 0
	case ConnectorAvailable:
		return 0, 1, 0
	case ConnectorOutOfOrder:
		return 0, 0, 1
	}
	return 0, 0, 0
}
