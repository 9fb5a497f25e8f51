package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func runN(s *state, n int) {
	for range n {
		s.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, ok)
	h.AddLivenessCheck("db", time.Second, failing("connection refused"))

	w := get(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	runN(h.checks[1], 2)
	assert.Equal(t, http.StatusOK, get(h.LiveEndpoint).Code, "below failure threshold")

	runN(h.checks[1], 1)
	w = get(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, w.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("store", time.Second, ok)
	h.AddReadinessCheck("cache", time.Second, failing("cache miss"))

	w := get(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, get(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	runN(h.checks[1], 3)
	w = get(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"cache":"cache miss"}}`, w.Body.String())
	assert.False(t, h.IsReady())
}

func TestReadinessIgnoresLivenessChecks(t *testing.T) {
	h := New()
	h.AddLivenessCheck("leak", time.Second, failing("leak"))
	h.SetReady(true)
	runN(h.checks[0], 3)

	assert.True(t, h.IsReady())
	assert.Equal(t, http.StatusServiceUnavailable, get(h.LiveEndpoint).Code)
}

func TestRegister_Thresholds(t *testing.T) {
	fail := true
	h := New()
	h.Register(Check{
		Name:             "flaky",
		Probe:            Readiness,
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Func: func(context.Context) error {
			if fail {
				return errors.New("down")
			}
			return nil
		},
	})
	s := h.checks[0]
	assert.Equal(t, time.Second, s.Timeout)

	runN(s, 1)
	assert.False(t, s.healthy.Load())
	assert.EqualError(t, s.err(), "down")

	fail = false
	runN(s, 1)
	assert.False(t, s.healthy.Load(), "needs two successes")
	runN(s, 1)
	assert.True(t, s.healthy.Load())
	assert.NoError(t, s.err())
}

func TestStartStop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	h := New()
	h.AddLivenessCheck("count", time.Second, func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("err", time.Second, failing("err"))
	h.AddReadinessCheck("ok", time.Second, ok)
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				get(h.LiveEndpoint)
				get(h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error        { return p.err }
func (p pinger) PingContext(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck("postgres", pinger{})(ctx))
	err := PingCheck("postgres", pinger{err: errors.New("refused")})(ctx)
	assert.EqualError(t, err, "ping postgres: refused")

	assert.NoError(t, SQLPingCheck("sqlite", pinger{})(ctx))
	assert.Error(t, SQLPingCheck("sqlite", pinger{err: errors.New("locked")})(ctx))

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")
}
