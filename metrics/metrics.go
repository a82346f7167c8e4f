// Package metrics exposes application metrics in Prometheus text format,
// backed by the VictoriaMetrics metrics set.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

const readHeaderTimeout = 5 * time.Second

// Vault counters. Registered eagerly so they report zero instead of being
// absent before first use.
var (
	challengesSubmitted = metrics.NewCounter("mystery_vault_challenges_submitted_total")
	sessionsIssued      = metrics.NewCounter("mystery_vault_sessions_issued_total")
	verifySuccesses     = metrics.NewCounter("mystery_vault_verify_success_total")
	verifyFailures      = metrics.NewCounter("mystery_vault_verify_failure_total")
	rateLimitRejections = metrics.NewCounter("mystery_vault_rate_limited_total")
)

// IncChallengeSubmitted counts an accepted challenge package.
func IncChallengeSubmitted() { challengesSubmitted.Inc() }

// IncSessionIssued counts an authentication session handed out.
func IncSessionIssued() { sessionsIssued.Inc() }

// IncVerifySuccess counts a solution attempt that released a prize.
func IncVerifySuccess() { verifySuccesses.Inc() }

// IncVerifyFailure counts a failed solution attempt.
func IncVerifyFailure() { verifyFailures.Inc() }

// IncRateLimited counts a request rejected by the failure rate limit.
func IncRateLimited() { rateLimitRejections.Inc() }

// MetricsServer serves the accumulated metrics over HTTP.
type MetricsServer struct {
	name string
	srv  *http.Server
}

// New builds a metrics server for the given listen address. The address may
// be empty when metrics serving is disabled; the caller decides whether to
// start the server.
func New(name, addr string) (*MetricsServer, error) {
	if name == "" {
		return nil, errors.New("metrics server needs a name")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "# %s\n", name)
		metrics.WritePrometheus(w, true)
	})

	return &MetricsServer{
		name: name,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// ListenAndServe blocks serving metrics until Shutdown or failure.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
