package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cultivator_session_runs_total",
		Help: "Total session runs started",
	})
	SessionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_session_outcomes_total",
		Help: "Session runs by terminal outcome",
	}, []string{"outcome"})
	SessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cultivator_session_duration_seconds",
		Help:    "Session duration seconds",
		Buckets: []float64{1, 10, 60, 120, 300, 600, 1200},
	})
	PolicyDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_policy_denials_total",
		Help: "Policy denials by rule",
	}, []string{"rule"})
	Comments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_comments_total",
		Help: "Comment records appended by status",
	}, []string{"status"})
	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_fetch_errors_total",
		Help: "Candidate fetch failures by subreddit",
	}, []string{"subreddit"})
	ActionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_action_failures_total",
		Help: "Post or vote failures by kind",
	}, []string{"kind"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivator_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(SessionRuns, SessionOutcomes, SessionDuration, PolicyDenials,
		Comments, FetchErrors, ActionFailures, APIRetries, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveSessionDuration records a run duration
func ObserveSessionDuration(start time.Time) {
	SessionDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
