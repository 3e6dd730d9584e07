package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func ok(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runN(h *Health, name string, n int) {
	for _, c := range h.checks {
		if c.name == name {
			for range n {
				c.run(context.Background())
			}
		}
	}
}

func serve(handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		runs       int
		wantStatus int
		wantBody   string
	}{
		{
			name:       "passing",
			check:      ok,
			runs:       1,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "failing below threshold",
			check:      fail("temporary"),
			runs:       2,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "failing at threshold",
			check:      fail("connection refused"),
			runs:       3,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unhealthy","checks":{"db":"connection refused"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(zaptest.NewLogger(t))
			h.Register(Liveness, "db", time.Second, tt.check)
			runN(h, "db", tt.runs)

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New(nil)
	h.Register(Readiness, "postgres", time.Second, fail("timeout"), WithThresholds(1, 2))
	h.Register(Liveness, "goroutines", time.Second, fail("too many"), WithThresholds(1, 1))

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	assert.True(t, h.IsReady())
	assert.JSONEq(t, `{"status":"ok"}`, serve(h.ReadyEndpoint).Body.String())

	runN(h, "postgres", 1)
	runN(h, "goroutines", 1)
	assert.False(t, h.IsReady())
	w = serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"postgres":"timeout"}}`, w.Body.String(),
		"liveness failures do not leak into readiness")
}

func TestCheck_Recovery(t *testing.T) {
	healthy := false
	fn := func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}

	h := New(nil)
	h.Register(Readiness, "dep", time.Second, fn, WithThresholds(1, 2))
	h.SetReady(true)
	c := h.checks[0]

	assert.True(t, c.run(context.Background()), "first failure flips with threshold 1")
	assert.False(t, h.IsReady())

	healthy = true
	assert.False(t, c.run(context.Background()), "one success is below the threshold")
	assert.False(t, h.IsReady())
	assert.True(t, c.run(context.Background()))
	assert.True(t, h.IsReady())
}

func TestCheck_Timeout(t *testing.T) {
	h := New(nil)
	h.Register(Liveness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithThresholds(1, 1))
	runN(h, "slow", 1)

	failures := h.failures(Liveness)
	require.Contains(t, failures, "slow")
	assert.Contains(t, failures["slow"], "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	calls := make(chan struct{}, 16)
	h.Register(Liveness, "tick", time.Second, func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	for range 2 {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("check did not run")
		}
	}
	h.Stop()
	h.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	require.NoError(t, PingCheck(pinger{})(context.Background()))
	require.ErrorContains(t, PingCheck(pinger{err: errors.New("refused")})(context.Background()), "refused")

	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
