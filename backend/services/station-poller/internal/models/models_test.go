package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTextDecodesScalars(t *testing.T) {
	var c RawConnector
	err := json.Unmarshal([]byte(`{"id":17,"status":"AVAILABLE","power":null,"effect":50.5,"tariffDefinition":true}`), &c)
	require.NoError(t, err)
	require.Equal(t, Text("17"), c.ID)
	require.Equal(t, "50.5", c.PowerValue())
	require.Equal(t, "true", c.TariffValue())

	err = json.Unmarshal([]byte(`{"id":{"nested":1}}`), &c)
	require.Error(t, err)
}

func TestConnectorGroupsKeepUpstreamOrder(t *testing.T) {
	payload := `{"connectionsTypes":{"Type2":[{"id":"A"}],"CCS":[{"id":"B"},{"id":"C"}]}}`
	var s RawStation
	require.NoError(t, json.Unmarshal([]byte(payload), &s))
	require.NotNil(t, s.ConnectionsTypes)

	flat := ResolveConnectors(s)
	require.Len(t, flat, 3)
	require.Equal(t, Text("A"), flat[0].ID)
	require.Equal(t, Text("Type2"), flat[0].Type)
	require.Equal(t, Text("CCS"), flat[2].Type)

	encoded, err := json.Marshal(s.ConnectionsTypes)
	require.NoError(t, err)
	require.JSONEq(t, `{"Type2":[{"id":"A","type":"","status":"","power":"","effect":"","tariff":"","tariffDefinition":""}],
		"CCS":[{"id":"B","type":"","status":"","power":"","effect":"","tariff":"","tariffDefinition":""},
		{"id":"C","type":"","status":"","power":"","effect":"","tariff":"","tariffDefinition":""}]}`, string(encoded))
}

func TestResolveConnectorsPriority(t *testing.T) {
	groups := ConnectorGroups{{Type: "CCS", Connectors: []RawConnector{{ID: "G"}}}}
	legacy := ConnectorGroups{{Type: "CHAdeMO", Connectors: []RawConnector{{ID: "L"}}}}

	s := RawStation{Connectors: []RawConnector{{ID: "D"}}, ConnectionTypes: &groups, ConnectionsTypes: &legacy}
	require.Equal(t, Text("D"), ResolveConnectors(s)[0].ID)

	s.Connectors = nil
	require.Equal(t, Text("G"), ResolveConnectors(s)[0].ID)

	s.ConnectionTypes = nil
	require.Equal(t, Text("L"), ResolveConnectors(s)[0].ID)

	s.ConnectionsTypes = nil
	require.Empty(t, ResolveConnectors(s))
}

func TestDeclaredTotal(t *testing.T) {
	cases := map[string]struct {
		raw   string
		total int
		ok    bool
	}{
		"absent":   {"", 0, false},
		"number":   {"4", 4, true},
		"zero":     {"0", 0, false},
		"negative": {"-2", -2, true},
		"huge":     {"1e300", math.MaxInt32, true},
		"tiny":     {"-1e300", math.MinInt32, true},
		"string":   {`"3"`, 0, false},
		"null":     {"null", 0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := RawStation{}
			if tc.raw != "" {
				s.TotalConnectors = json.RawMessage(tc.raw)
			}
			total, ok := s.DeclaredTotal()
			if total != tc.total || ok != tc.ok {
				t.Fatalf("expected (%d,%v), got (%d,%v)", tc.total, tc.ok, total, ok)
			}
		})
	}
}

func TestStatusMapping(t *testing.T) {
	got, ok := MapStationStatus("under_construction")
	require.True(t, ok)
	require.Equal(t, StationUnderConstruction, got)

	got, ok = MapStationStatus("Decommissioned")
	require.False(t, ok)
	require.Equal(t, "Decommissioned", got)

	require.Equal(t, ConnectorOutOfOrder, MapConnectorStatus("UNAVAILABLE"))
	require.Equal(t, ConnectorFaulted, MapConnectorStatus("FAULTED"))
}

func TestStatusFlagsExactlyOne(t *testing.T) {
	for _, status := range []string{ConnectorAvailable, ConnectorOccupied, ConnectorOutOfOrder} {
		o, a, x := StatusFlags(status)
		if o+a+x != 1 {
			t.Fatalf("expected exactly one flag for %s, got %d %d %d", status, o, a, x)
		}
	}
	o, a, x := StatusFlags(ConnectorFaulted)
	if o+a+x != 0 {
		t.Fatalf("expected no flags for FAULTED, got %d %d %d", o, a, x)
	}
}

func TestTruncateHourKeepsLocation(t *testing.T) {
	oslo := time.FixedZone("CET", 3600)
	at := time.Date(2024, 5, 1, 13, 47, 12, 999, oslo)
	got := TruncateHour(at)
	require.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 0, oslo), got)
}

func TestStationsRoundTrip(t *testing.T) {
	lat, lng := 60.39299, 5.32415
	in := []Station{
		{ID: "S1", Name: "Bergen sentrum", Operator: "Eviny", Status: StationAvailable, Address: "Strandkaien 2",
			Latitude: &lat, Longitude: &lng, TotalConnectors: 4, CCSConnectors: 2, Type2Connectors: 2,
			Amenities: "Toilet, Cafe"},
		{ID: "S2", Status: StationUnknown},
	}
	out, err := StationsFromTable(StationsTable(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestUtilizationRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 13, 47, 12, 123456789, time.UTC)
	in := []UtilizationRecord{
		{Timestamp: at, HourlyTimestamp: TruncateHour(at), StationID: "S1", ConnectorID: "C1",
			ConnectorType: TypeCCS, Power: "150", Status: ConnectorOccupied, IsOccupied: 1, Tariff: "4.5 kr/kWh"},
		{Timestamp: at, HourlyTimestamp: TruncateHour(at), StationID: "S1", ConnectorID: "C2",
			Status: ConnectorFaulted},
	}
	out, err := UtilizationFromTable(UtilizationTable(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		require.True(t, in[i].Timestamp.Equal(out[i].Timestamp))
		require.True(t, in[i].HourlyTimestamp.Equal(out[i].HourlyTimestamp))
		out[i].Timestamp, out[i].HourlyTimestamp = in[i].Timestamp, in[i].HourlyTimestamp
	}
	require.Equal(t, in, out)
}

func TestHourlyRoundTrip(t *testing.T) {
	hour := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	in := []HourlyAggregate{
		{HourlyTimestamp: hour, StationID: "S1", IsAvailable: 1, IsOccupied: 2, TotalConnectors: 3,
			OccupancyRate: 2.0 / 3.0, AvailabilityRate: 1.0 / 3.0},
	}
	out, err := HourlyFromTable(HourlyTable(in))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, hour.Equal(out[0].HourlyTimestamp))
	out[0].HourlyTimestamp = hour
	require.Equal(t, in, out)
}

func TestFromTableRejectsBadCells(t *testing.T) {
	tbl := HourlyTable([]HourlyAggregate{{HourlyTimestamp: time.Now(), StationID: "S1"}})
	tbl.Rows[0][5] = "many"
	_, err := HourlyFromTable(tbl)
	require.Error(t, err)
}

func TestParseTimestampNaive(t *testing.T) {
	got, err := ParseTimestamp("2024-05-01 13:00:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), got)

	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}
