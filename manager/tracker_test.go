package manager

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTracker(t *testing.T) {
	t.Parallel()

	t.Run("Counter", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(prometheus.NewRegistry())
		defer tr.Close()

		var wg sync.WaitGroup
		seen := make(chan int64, 100)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seen <- tr.NextRequest()
			}()
		}
		wg.Wait()
		close(seen)

		unique := map[int64]struct{}{}
		for n := range seen {
			unique[n] = struct{}{}
		}
		assert.Len(t, unique, 100)
		assert.EqualValues(t, 100, tr.Requests())
	})

	t.Run("Upstream", func(t *testing.T) {
		t.Parallel()
		reg := prometheus.NewRegistry()
		tr := NewTracker(reg)
		defer tr.Close()

		done := tr.StartUpstream("parse")
		assert.EqualValues(t, 1, tr.InFlight())
		done(OutcomeInvalidResponse)
		// Extra calls are ignored.
		done(OutcomeOK)
		assert.EqualValues(t, 0, tr.InFlight())

		assert.Equal(t, 1.0, testutil.ToFloat64(tr.upstreamCalls.WithLabelValues("parse", OutcomeInvalidResponse)))
		assert.Equal(t, 0.0, testutil.ToFloat64(tr.upstreamCalls.WithLabelValues("parse", OutcomeOK)))

		count, err := testutil.GatherAndCount(reg, "climate_parser_upstream_call_duration_seconds")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Requests", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(prometheus.NewRegistry())
		defer tr.Close()

		tr.ObserveRequest("/api/parse", "POST", 401)
		tr.ObserveRequest("/api/parse", "POST", 403)
		tr.ObserveRequest("/api/health", "GET", 200)
		assert.Equal(t, 2.0, testutil.ToFloat64(tr.httpRequests.WithLabelValues("/api/parse", "POST", "4xx")))
		assert.Equal(t, 1.0, testutil.ToFloat64(tr.httpRequests.WithLabelValues("/api/health", "GET", "2xx")))
	})

	t.Run("CloseTwice", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(nil)
		tr.Close()
		tr.Close()
	})
}
