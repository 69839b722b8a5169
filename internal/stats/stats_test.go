package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expvar registration is process-global, so every subtest shares a single
// updater instance.
func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.Run()
	defer su.Stop()

	su.RegisterMetric(QueueDepth)
	su.RegisterMetric(ActiveSessions)

	t.Run("incr and decr converge", func(t *testing.T) {
		su.Incr(QueueDepth)
		su.Incr(QueueDepth)
		su.Decr(QueueDepth)

		assert.Eventually(t, func() bool {
			v, ok := su.vars.Get(QueueDepth).(*expvar.Int)
			return ok && v.Value() == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("handler serves the map as json", func(t *testing.T) {
		su.Incr(ActiveSessions)
		assert.Eventually(t, func() bool {
			v, ok := su.vars.Get(ActiveSessions).(*expvar.Int)
			return ok && v.Value() == 1
		}, time.Second, 10*time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

		var data map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))
		assert.Equal(t, float64(1), data[ActiveSessions])
		assert.Contains(t, data, "Uptime")
	})
}
