package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	VotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchroom_votes_total",
		Help: "Total number of recorded votes",
	}, []string{"vote"})
	MatchesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchroom_matches_created_total",
		Help: "Matches created by this instance",
	})
	MatchCreateConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchroom_match_create_conflicts_total",
		Help: "Conditional match creates that lost the race to another writer",
	})
	IndexFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchroom_index_fallbacks_total",
		Help: "Queries served by a full scan because the index was not ready",
	}, []string{"index"})
	CodeCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchroom_code_collisions_total",
		Help: "Room code candidates rejected because they were in use",
	})
	FanoutErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchroom_fanout_publish_errors_total",
		Help: "Match notifications a publisher failed to deliver",
	}, []string{"publisher"})
	PushSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matchroom_push_subscribers",
		Help: "Current number of websocket match subscribers",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		VotesTotal, MatchesCreated, MatchCreateConflicts, IndexFallbacks, CodeCollisions,
		FanoutErrors, PushSubscribers, HttpRequestsTotal, HttpRequestDuration,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency labelled by route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		labels := prometheus.Labels{"method": r.Method, "path": path, "status": strconv.Itoa(rec.status)}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
