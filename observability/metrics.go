package observability

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pegvault/core/events"
	"pegvault/core/types"
)

type httpMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics

	stableOnce sync.Once
	stableReg  *StableMetrics
)

// HTTP returns the lazily-initialised registry for API handlers.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pegvault",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by throttling policies.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			httpRegistry.requests,
			httpRegistry.errors,
			httpRegistry.latency,
			httpRegistry.throttles,
		)
	})
	return httpRegistry
}

// Observe records the outcome of a request. The status code should be the HTTP status
// that was ultimately written to the response writer.
func (m *httpMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied route and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards and
// alerts remain consistent.
func (m *httpMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(route, reason).Inc()
}

// StableMetrics captures quote, batch and limit activity of the mint/redeem engine.
type StableMetrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	violations *prometheus.CounterVec
	remaining  *prometheus.GaugeVec
	paused     prometheus.Gauge
	pegPrice   prometheus.Gauge
	events     *prometheus.CounterVec
	volume     *prometheus.CounterVec
}

// Stable returns the singleton metrics registry for the stable engine.
func Stable() *StableMetrics {
	stableOnce.Do(func() {
		stableReg = &StableMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "operations_total",
				Help:      "Count of quote and batch operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for quote and batch operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "errors_total",
				Help:      "Count of failed operations segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			violations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "period_limit_violations_total",
				Help:      "Count of rejected amounts segmented by limit scope and operation.",
			}, []string{"scope", "operation"}),
			remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "vault_balance",
				Help:      "Collateral held by each vault token account in base units.",
			}, []string{"vault"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "paused",
				Help:      "Indicates whether mint and redeem are halted (1) or not (0).",
			}),
			pegPrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "peg_price_usd",
				Help:      "Configured peg price in USD.",
			}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "events_total",
				Help:      "Committed engine events segmented by type and subject (vault, action or closed record kind).",
			}, []string{"type", "subject"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "stable",
				Name:      "exchanged_amount_total",
				Help:      "Stable units minted or burned by committed exchanges, per vault.",
			}, []string{"operation", "vault"}),
		}
		prometheus.MustRegister(
			stableReg.requests,
			stableReg.latency,
			stableReg.errors,
			stableReg.violations,
			stableReg.remaining,
			stableReg.paused,
			stableReg.pegPrice,
			stableReg.events,
			stableReg.volume,
		)
	})
	return stableReg
}

// Observe records one operation. kind is the error kind and is ignored on success.
func (m *StableMetrics) Observe(operation string, duration time.Duration, kind string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if kind = strings.TrimSpace(kind); kind != "" {
		outcome = "error"
		m.errors.WithLabelValues(op, kind).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordViolation counts an amount rejected by a period limit.
func (m *StableMetrics) RecordViolation(scope, operation string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(labelOr(scope, "unknown"), labelOr(operation, "unknown")).Inc()
}

// RecordVaultBalance updates the balance gauge for a vault.
func (m *StableMetrics) RecordVaultBalance(vault string, balance uint64) {
	if m == nil {
		return
	}
	m.remaining.WithLabelValues(labelOr(vault, "unknown")).Set(float64(balance))
}

// RecordEvent counts a committed event. Mints and redeems also add their stable-side
// amount to the exchanged volume of the vault.
func (m *StableMetrics) RecordEvent(ev types.Event) {
	if m == nil {
		return
	}
	eventType := labelOr(strings.ToLower(ev.Type), "unknown")
	var subject string
	switch eventType {
	case events.TypeStableMinted:
		subject = ev.Attr("vault")
		m.addVolume("mint", subject, ev.Attr("mintAmount"))
	case events.TypeStableRedeemed:
		subject = ev.Attr("vault")
		m.addVolume("redeem", subject, ev.Attr("amountIn"))
	case events.TypeStableManagement:
		subject = ev.Attr("action")
	case events.TypeStableAccountClosed:
		subject = ev.Attr("kind")
	}
	m.events.WithLabelValues(eventType, labelOr(subject, "none")).Inc()
}

func (m *StableMetrics) addVolume(operation, vault, amount string) {
	value, err := strconv.ParseUint(amount, 10, 64)
	if err != nil || value == 0 {
		return
	}
	m.volume.WithLabelValues(operation, labelOr(vault, "unknown")).Add(float64(value))
}

// SetPaused toggles the paused gauge.
func (m *StableMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

// SetPegPrice records the peg, given at 4 decimals.
func (m *StableMetrics) SetPegPrice(scaled uint64) {
	if m == nil {
		return
	}
	m.pegPrice.Set(float64(scaled) / 1e4)
}

func labelOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
