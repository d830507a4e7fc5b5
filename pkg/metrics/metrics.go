// Package metrics holds the Prometheus collectors for woodchuckd.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's collectors.
	Registry = prometheus.NewRegistry()

	dispatchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "woodchuck",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Method calls handled, by interface, member and result code.",
		},
		[]string{"interface", "member", "code"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "woodchuck",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time from receiving a method call to producing its reply.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"member"},
	)

	upcallsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "woodchuck",
			Subsystem: "upcall",
			Name:      "published_total",
			Help:      "Feedback upcalls published, by upcall and outcome.",
		},
		[]string{"upcall", "success"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "woodchuck",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		dispatchRequests,
		dispatchDuration,
		upcallsPublished,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveDispatch records one handled method call.
func ObserveDispatch(iface, member, code string, d time.Duration) {
	dispatchRequests.WithLabelValues(iface, member, code).Inc()
	dispatchDuration.WithLabelValues(member).Observe(d.Seconds())
}

// ObserveUpcall records one upcall publication.
func ObserveUpcall(upcall string, err error) {
	upcallsPublished.WithLabelValues(upcall, strconv.FormatBool(err == nil)).Inc()
}

// InstrumentHandler counts requests served by next.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(strings.ToUpper(r.Method), canonicalPath(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath keeps label cardinality bounded.
func canonicalPath(path string) string {
	switch path {
	case "/", "/health", "/ready", "/metrics":
		return path
	}
	return "other"
}
