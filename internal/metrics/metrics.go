// Package metrics exports token lifecycle and downstream call metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AmmannChristian/go-authrelay/httpclient"
	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

const namespace = "authrelay"

// Recorder implements oauth2client.Recorder and httpclient.Observer.
type Recorder struct {
	registry     *prometheus.Registry
	cacheLookups *prometheus.CounterVec
	grants       *prometheus.CounterVec
	outbound     *prometheus.CounterVec
}

var (
	_ oauth2client.Recorder = (*Recorder)(nil)
	_ httpclient.Observer   = (*Recorder)(nil)
)

// NewRecorder creates a Recorder with its own registry, including the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cache_lookups_total",
			Help:      "Token cache lookups by registration and result.",
		}, []string{"registration", "result"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_total",
			Help:      "Client-credentials grants by registration and outcome.",
		}, []string{"registration", "outcome"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_requests_total",
			Help:      "Downstream calls by method and status code; code is 0 when unreachable.",
		}, []string{"method", "code"}),
	}

	r.registry.MustRegister(
		r.cacheLookups,
		r.grants,
		r.outbound,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// CacheLookup counts a cache hit or miss.
func (r *Recorder) CacheLookup(registrationID string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(registrationID, result).Inc()
}

// GrantCompleted counts a grant by the kind of failure, or "success".
func (r *Recorder) GrantCompleted(registrationID string, err error) {
	r.grants.WithLabelValues(registrationID, grantOutcome(err)).Inc()
}

// OutboundCompleted counts a downstream call.
func (r *Recorder) OutboundCompleted(method string, statusCode int, _ error) {
	r.outbound.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for additional collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func grantOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var grantErr *oauth2client.GrantError
	if errors.As(err, &grantErr) {
		return grantErr.Kind.String()
	}
	return "error"
}
