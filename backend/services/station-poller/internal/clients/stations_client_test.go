package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargewatch/backend/libs/retry"
	"chargewatch/backend/services/station-poller/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxRetries int) (*StationsClient, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	client := NewStationsClient(StationsConfig{
		URL:      srv.URL,
		Timeout:  2 * time.Second,
		Retry:    retry.NoDelay(maxRetries),
		DebugDir: dir,
	}, srv.Client(), zap.NewNop())
	return client, dir
}

func TestExtractRetriesThenReportsNetworkFailure(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 3)

	_, err := client.Extract(context.Background())
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	require.Equal(t, 4, extErr.Attempts)
	require.EqualValues(t, 4, atomic.LoadInt32(&calls))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestExtractRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"S1","connectors":[{"id":"C1","status":"AVAILABLE"}]}]`))
	}, 3)

	got, err := client.Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Attempts)
	require.Len(t, got.Stations, 1)
}

func TestExtractMalformedJSONIsNotRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"chargingStations": [`))
	}, 3)

	_, err := client.Extract(context.Background())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExtractUnexpectedSchemaDumpsPayload(t *testing.T) {
	client, dir := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stations":[{"id":"S1"}]}`))
	}, 0)

	_, err := client.Extract(context.Background())
	if !errors.Is(err, ErrUnexpectedSchema) {
		t.Fatalf("expected ErrUnexpectedSchema, got %v", err)
	}
	dumped, readErr := os.ReadFile(filepath.Join(dir, DebugDumpFile))
	require.NoError(t, readErr)
	require.JSONEq(t, `{"stations":[{"id":"S1"}]}`, string(dumped))
}

func TestExtractAcceptsEnvelopeAndNormalizes(t *testing.T) {
	payload := `{"chargingStations":[
		{"id":"S1","connectionsTypes":{"CCS":[{"id":"C1","status":"UNAVAILABLE"}],"Type2":[{"id":"C2","status":"AVAILABLE","effect":22}]}},
		{"id":"S2","connectors":[{"id":"C3","type":"CHAdeMO"}],"connectionTypes":{"CCS":[{"id":"X"}]}},
		{"id":"S3","location":"north"}
	]}`
	var accept atomic.Value
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		_, _ = w.Write([]byte(payload))
	}, 0)

	got, err := client.Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, "application/json", accept.Load())
	require.Equal(t, 1, got.Skipped)
	require.Len(t, got.Stations, 2)
	require.Equal(t, Fingerprint([]byte(payload)), got.Digest)
	require.Len(t, got.Digest, 64)

	first := got.Stations[0]
	require.Nil(t, first.ConnectionsTypes)
	require.NotNil(t, first.ConnectionTypes)
	require.Len(t, first.Connectors, 2)
	require.Equal(t, models.Text("CCS"), first.Connectors[0].Type)
	require.Equal(t, models.Text("Type2"), first.Connectors[1].Type)
	require.Equal(t, "22", first.Connectors[1].PowerValue())

	second := got.Stations[1]
	require.Len(t, second.Connectors, 1)
	require.Equal(t, models.Text("C3"), second.Connectors[0].ID)
}

func TestExtractStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	client := NewStationsClient(StationsConfig{URL: srv.URL, Retry: retry.Fixed(3, time.Minute)}, srv.Client(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := client.Extract(ctx)
	require.ErrorIs(t, err, ErrNetworkFailure)
	require.Less(t, time.Since(start), 10*time.Second)
}
