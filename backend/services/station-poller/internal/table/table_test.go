package table

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeIncomingWinsAndKeepsPosition(t *testing.T) {
	existing := New("id", "status")
	existing.Append([]string{"1", "Available"})

	incoming := New("id", "status")
	incoming.Append([]string{"1", "Occupied"})
	incoming.Append([]string{"2", "Available"})

	merged, err := Merge(existing, incoming, []string{"id"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"1", "Occupied"}, {"2", "Available"}}, merged.Rows)
}

func TestMergeWithoutExistingReturnsIncoming(t *testing.T) {
	incoming := New("id", "status")
	incoming.Append([]string{"1", "Available"})
	incoming.Append([]string{"1", "Occupied"})

	merged, err := Merge(nil, incoming, []string{"id"})
	require.NoError(t, err)
	// verbatim: duplicates inside the incoming rowset are the validator's business
	require.Equal(t, incoming.Rows, merged.Rows)
}

func TestMergeIsIdempotent(t *testing.T) {
	existing := New("timestamp", "connector_id", "status")
	existing.Append([]string{"t1", "c1", "Available"})
	existing.Append([]string{"t1", "c2", "Occupied"})

	incoming := New("timestamp", "connector_id", "status")
	incoming.Append([]string{"t2", "c1", "Occupied"})
	incoming.Append([]string{"t1", "c2", "OutOfOrder"})

	key := []string{"timestamp", "connector_id"}
	once, err := Merge(existing, incoming, key)
	require.NoError(t, err)
	twice, err := Merge(once, incoming, key)
	require.NoError(t, err)

	require.Equal(t, once.Rows, twice.Rows)
	dupes, surplus := DuplicateKeys(twice, key)
	require.Empty(t, dupes)
	require.Zero(t, surplus)
}

func TestMergeUnionsColumns(t *testing.T) {
	existing := New("id", "name")
	existing.Append([]string{"1", "Old"})
	incoming := New("id", "status")
	incoming.Append([]string{"2", "Available"})

	merged, err := Merge(existing, incoming, []string{"id"})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "status"}, merged.Columns)
	require.Equal(t, [][]string{{"1", "Old", ""}, {"2", "", "Available"}}, merged.Rows)
}

func TestMergeFailsOnMissingKeyColumn(t *testing.T) {
	existing := New("name")
	existing.Append([]string{"x"})
	incoming := New("id")
	incoming.Append([]string{"1"})

	_, err := Merge(existing, incoming, []string{"id"})
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestConcatKeepsEveryRow(t *testing.T) {
	existing := New("name")
	existing.Append([]string{"x"})
	existing.Append([]string{"x"})
	incoming := New("id", "name")
	incoming.Append([]string{"1", "x"})

	combined := Concat(existing, incoming)
	require.Equal(t, []string{"name", "id"}, combined.Columns)
	require.Equal(t, [][]string{{"x", ""}, {"x", ""}, {"x", "1"}}, combined.Rows)
	require.Equal(t, incoming.Rows, Concat(nil, incoming).Rows)
}

func TestCSVRoundTrip(t *testing.T) {
	src := New("id", "amenities")
	src.Append([]string{"S1", "Toilet, Cafe"})
	src.Append([]string{"S2", `quote "inside"`})

	var buf bytes.Buffer
	require.NoError(t, src.WriteCSV(&buf))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, src.Columns, got.Columns)
	require.Equal(t, src.Rows, got.Rows)
}

func TestReadCSVRejectsRaggedRows(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("id,status\n1,Available,extra\n"))
	require.Error(t, err)

	_, err = ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestDuplicateKeys(t *testing.T) {
	tbl := New("id")
	for _, id := range []string{"a", "b", "a", "a", "c", "b"} {
		tbl.Append([]string{id})
	}
	dupes, surplus := DuplicateKeys(tbl, []string{"id"})
	require.Equal(t, []string{"a", "b"}, dupes)
	require.Equal(t, 3, surplus)
}
