package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confsched_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confsched_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confsched_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confsched_loads_total",
		Help: "Event loads by outcome.",
	}, []string{"outcome"})

	eventsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "confsched_events_loaded",
		Help: "Number of normalized events in the catalog.",
	})

	rowsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "confsched_rows_skipped_total",
		Help: "Source rows dropped for missing title or date.",
	})

	rowsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "confsched_rows_merged_total",
		Help: "Source rows merged into an existing event.",
	})

	selectionChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confsched_selection_changes_total",
		Help: "Selection mutations by action.",
	}, []string{"action"})

	agendaConflicts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "confsched_agenda_conflicts",
		Help: "Conflicting events in the most recently built agenda.",
	})
)

// Middleware records request metrics labelled by the matched chi route.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLoad records the outcome of a catalog load.
func ObserveLoad(ok bool, events, skipped, merged int) {
	if !ok {
		loadsTotal.WithLabelValues("failure").Inc()
		eventsLoaded.Set(0)
		return
	}
	loadsTotal.WithLabelValues("success").Inc()
	eventsLoaded.Set(float64(events))
	rowsSkippedTotal.Add(float64(skipped))
	rowsMergedTotal.Add(float64(merged))
}

// ObserveSelection counts one selection mutation.
func ObserveSelection(action string) {
	selectionChangesTotal.WithLabelValues(action).Inc()
}

// ObserveAgenda records the conflict count of a freshly built agenda.
func ObserveAgenda(conflicts int) {
	agendaConflicts.Set(float64(conflicts))
}

// routePattern returns the chi route template so that IDs do not explode
// label cardinality. Unmatched requests share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
