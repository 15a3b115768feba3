package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "callbingo"

// newMetricsRegistry exposes the counters the middleware and caches
// already keep; collectors read them at scrape time.
func (s *Server) newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counter := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help}, fn)
	}
	gauge := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: metricsNamespace, Name: name, Help: help}, fn)
	}

	reg.MustRegister(
		counter("http_requests_total", "Total number of HTTP requests.", func() float64 {
			return float64(s.tracer.GetMetrics().TotalRequests)
		}),
		counter("http_server_errors_total", "Responses with a 5xx status.", func() float64 {
			return float64(s.tracer.GetMetrics().ServerErrors)
		}),
		counter("rate_limit_rejected_total", "Requests refused by the rate limiter.", func() float64 {
			return float64(s.limiter.Rejected())
		}),
		gauge("rate_limit_active_clients", "Currently tracked rate limit clients.", func() float64 {
			return float64(s.limiter.ActiveClients())
		}),
		counter("suspicious_requests_total", "Requests flagged as probing.", func() float64 {
			return float64(s.detector.Suspicious())
		}),
		gauge("uptime_seconds", "Server uptime in seconds.", func() float64 {
			return time.Since(s.startedAt).Seconds()
		}),
	)

	if s.standings != nil {
		reg.MustRegister(
			counter("standings_cache_hits_total", "Standings cache hits.", func() float64 {
				return float64(s.standings.Stats().Hits)
			}),
			counter("standings_cache_misses_total", "Standings cache misses.", func() float64 {
				return float64(s.standings.Stats().Misses)
			}),
			gauge("standings_cache_entries", "Cached standings snapshots.", func() float64 {
				return float64(s.standings.Stats().Size)
			}),
		)
	}
	return reg
}
