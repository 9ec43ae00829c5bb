package loadgen

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
	"github.com/SmitUplenchwar2687/Stall/internal/server"
	"github.com/SmitUplenchwar2687/Stall/internal/store/storetest"
)

func newTestServer(t *testing.T) *Client {
	t.Helper()
	svc, db := newEngine(t)
	srv := server.New("", server.Options{Bench: svc, DB: db, Logger: log.New(io.Discard)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", nil)
}

func TestClient_ReadAndIncrement(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	inc, err := c.Increment(ctx, bench.IncrementRequest{ID: 2, Delta: 5}, 1)
	require.NoError(t, err)
	require.Equal(t, bench.IncrementResult{ID: 2, Count: 105, Delta: 5, SleepMillis: 1}, inc)

	read, err := c.Read(ctx, 2, 0)
	require.NoError(t, err)
	require.Equal(t, bench.ReadResult{ID: 2, Payload: "b", Count: 105}, read)
}

func TestClient_APIErrors(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	_, err := c.Read(ctx, 404, 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 404, apiErr.Status)
	require.Equal(t, "not_found", apiErr.Kind)
	require.NotNil(t, apiErr.ID)
	require.EqualValues(t, 404, *apiErr.ID)
	require.Equal(t, "not_found", ErrorKind(err))

	_, err = c.Increment(ctx, bench.IncrementRequest{ID: 1, Delta: 1}, -1)
	require.Equal(t, "invalid_argument", ErrorKind(err))
}

func TestClient_TransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	_, err := c.Read(context.Background(), 1, 0)
	require.Error(t, err)
	require.Equal(t, string(bench.KindBackend), ErrorKind(err))
}

func TestRunner_OverHTTP(t *testing.T) {
	svc, db := newEngine(t)
	srv := server.New("", server.Options{Bench: svc, DB: db, Logger: log.New(io.Discard)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	plan := txPlan(30, 1, 2)
	plan.Ops = append(plan.Ops, Op{Kind: recorder.OpRead, ID: 2, SleepMs: 1})

	rep, err := NewRunner(NewClient(ts.URL, nil), RunnerConfig{Concurrency: 6, Verify: true}, nil, log.New(io.Discard)).
		Run(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, 31, rep.TotalOK())
	require.Zero(t, rep.LostUpdates())

	cnt, _ := storetest.Count(t, db, 1)
	require.EqualValues(t, 60, cnt)
}
