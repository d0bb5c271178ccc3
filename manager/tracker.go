package manager

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
)

// Upstream call outcomes recorded by Tracker.StartUpstream.
const (
	OutcomeOK              = "ok"
	OutcomeConfigError     = "config_error"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeInvalidResponse = "invalid_response"
	// OutcomeAborted covers calls that ended without reporting, e.g. on panic.
	OutcomeAborted = "aborted"
)

// Tracker owns the per-process request counter and in-flight upstream accounting.
// It is created and closed with the server; the counter starts at zero on every
// process start and is only used to correlate log lines.
type Tracker struct {
	requests atomic.Int64
	inFlight atomic.Int64
	changed  atomic.Bool

	httpRequests     *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	logInterval time.Duration
	lastLogTime time.Time

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// NewTracker registers the tracker's collectors on reg and starts the monitor that
// logs counts when they change.
func NewTracker(reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		logInterval: time.Second,
		closed:      make(chan struct{}),
		done:        make(chan struct{}),
	}

	factory := promauto.With(reg)
	t.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climate_parser",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, by route, method and status code.",
	}, []string{"route", "method", "code"})
	t.upstreamCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "climate_parser",
		Subsystem: "upstream",
		Name:      "calls_total",
		Help:      "Upstream completion calls, by operation and outcome.",
	}, []string{"operation", "outcome"})
	t.upstreamDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "climate_parser",
		Subsystem: "upstream",
		Name:      "call_duration_seconds",
		Help:      "Latency of upstream completion calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"operation"})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "climate_parser",
		Subsystem: "upstream",
		Name:      "calls_in_flight",
		Help:      "Upstream completion calls currently waiting for a reply.",
	}, func() float64 {
		return float64(t.inFlight.Load())
	})

	go t.monitor()
	return t
}

// NextRequest increments the request counter and returns the new value.
func (t *Tracker) NextRequest() int64 {
	n := t.requests.Inc()
	t.changed.Store(true)
	return n
}

// Requests returns the number of requests seen since the process started.
func (t *Tracker) Requests() int64 { return t.requests.Load() }

// InFlight returns the number of upstream calls currently in progress.
func (t *Tracker) InFlight() int64 { return t.inFlight.Load() }

// ObserveRequest records a finished HTTP request.
func (t *Tracker) ObserveRequest(route, method string, status int) {
	t.httpRequests.WithLabelValues(route, method, statusLabel(status)).Inc()
}

// StartUpstream marks the beginning of an upstream call. Only the first call to the
// returned function counts, so it can also be deferred as a fallback.
func (t *Tracker) StartUpstream(operation string) func(outcome string) {
	start := time.Now()
	t.inFlight.Inc()
	t.changed.Store(true)

	var once sync.Once
	return func(outcome string) {
		once.Do(func() {
			t.inFlight.Dec()
			t.changed.Store(true)
			t.upstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
			t.upstreamCalls.WithLabelValues(operation, outcome).Inc()
		})
	}
}

// monitor logs the counters twice a second at most once per logInterval, and only
// when something changed.
func (t *Tracker) monitor() {
	defer close(t.done)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case now := <-ticker.C:
			if now.Sub(t.lastLogTime) < t.logInterval || !t.changed.CAS(true, false) {
				continue
			}
			log.Infof("Requests: %d | Upstream in flight: %d", t.requests.Load(), t.inFlight.Load())
			t.lastLogTime = now
		}
	}
}

// Close stops the monitor and waits for it to exit.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	<-t.done
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
