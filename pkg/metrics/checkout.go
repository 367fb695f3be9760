package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records settlement and fulfillment outcomes.
type CheckoutMetrics struct {
	settlementDuration *prometheus.HistogramVec
	settlementSuccess  *prometheus.CounterVec
	settlementFailure  *prometheus.CounterVec
	settlementReplay   *prometheus.CounterVec
	labelSuccess       prometheus.Counter
	labelFailure       prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	settlementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of order settlements in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"rail"})
	settlementSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_success",
		Help: "Settlements that produced a persisted order.",
	}, []string{"rail"})
	settlementFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_failure",
		Help: "Settlements rejected before persistence.",
	}, []string{"rail", "reason"})
	settlementReplay := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_replay",
		Help: "Settlements answered with an already persisted order.",
	}, []string{"rail"})
	labelSuccess := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "label_purchase_success",
		Help: "Shipping labels purchased.",
	})
	labelFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "label_purchase_failure",
		Help: "Shipping label purchases that failed.",
	})
	reg.MustRegister(settlementDuration, settlementSuccess, settlementFailure, settlementReplay, labelSuccess, labelFailure)
	return &CheckoutMetrics{
		settlementDuration: settlementDuration,
		settlementSuccess:  settlementSuccess,
		settlementFailure:  settlementFailure,
		settlementReplay:   settlementReplay,
		labelSuccess:       labelSuccess,
		labelFailure:       labelFailure,
	}
}

// ObserveSettlement records the duration of a settlement attempt for the rail.
func (c *CheckoutMetrics) ObserveSettlement(rail string, duration time.Duration) {
	if c == nil || c.settlementDuration == nil {
		return
	}
	c.settlementDuration.WithLabelValues(normalizeLabel(rail)).Observe(duration.Seconds())
}

// IncSettlementSuccess increments the success counter for the rail.
func (c *CheckoutMetrics) IncSettlementSuccess(rail string) {
	if c == nil || c.settlementSuccess == nil {
		return
	}
	c.settlementSuccess.WithLabelValues(normalizeLabel(rail)).Inc()
}

// IncSettlementFailure increments the failure counter for the rail and reason.
func (c *CheckoutMetrics) IncSettlementFailure(rail, reason string) {
	if c == nil || c.settlementFailure == nil {
		return
	}
	c.settlementFailure.WithLabelValues(normalizeLabel(rail), normalizeLabel(reason)).Inc()
}

// IncSettlementReplay increments the replay counter for the rail.
func (c *CheckoutMetrics) IncSettlementReplay(rail string) {
	if c == nil || c.settlementReplay == nil {
		return
	}
	c.settlementReplay.WithLabelValues(normalizeLabel(rail)).Inc()
}

// IncLabelSuccess increments the purchased-label counter.
func (c *CheckoutMetrics) IncLabelSuccess() {
	if c == nil || c.labelSuccess == nil {
		return
	}
	c.labelSuccess.Inc()
}

// IncLabelFailure increments the failed-label counter.
func (c *CheckoutMetrics) IncLabelFailure() {
	if c == nil || c.labelFailure == nil {
		return
	}
	c.labelFailure.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
