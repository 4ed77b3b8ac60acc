/*
Package metrics exposes Prometheus collectors for the loyalty engine.

PURPOSE:
  Counts purchases, rejections, points moved and HTTP traffic. Metrics
  implements loyalty.Observer, so the engine reports outcomes without
  knowing about Prometheus.

USAGE:
  m := metrics.Default()        // registered on prometheus.DefaultRegisterer
  engine, _ := loyalty.NewEngine(store, loyalty.WithObserver(m))
  router.Use(m.Middleware)

  Tests use metrics.New(prometheus.NewRegistry()) to stay isolated.
*/
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/loyalty-engine/generic"
	"github.com/warp/loyalty-engine/loyalty"
)

const namespace = "loyalty"

type Metrics struct {
	purchases       prometheus.Counter
	redemptions     prometheus.Counter
	rejections      *prometheus.CounterVec
	pointsEarned    prometheus.Counter
	pointsRedeemed  prometheus.Counter
	litersSold      prometheus.Counter
	discountGranted prometheus.Counter
	ruleVersion     prometheus.Gauge
	adjustments     prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var _ loyalty.Observer = (*Metrics)(nil)

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide Metrics registered on the default
// Prometheus registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchases",
			Name:      "recorded_total",
			Help:      "Total fuel purchases recorded.",
		}),
		redemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchases",
			Name:      "redemptions_total",
			Help:      "Total purchases that redeemed a threshold.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchases",
			Name:      "rejected_total",
			Help:      "Total purchases rejected, by reason.",
		}, []string{"reason"}),
		pointsEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "earned_total",
			Help:      "Total points credited by purchases.",
		}),
		pointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "redeemed_total",
			Help:      "Total points debited by redemptions.",
		}),
		litersSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchases",
			Name:      "liters_total",
			Help:      "Total liters of fuel in recorded purchases.",
		}),
		discountGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchases",
			Name:      "discount_total",
			Help:      "Total monetary discount granted through redemptions.",
		}),
		ruleVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "active_version",
			Help:      "Version of the currently active points rule.",
		}),
		adjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "adjustments_total",
			Help:      "Total manual balance adjustments.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		m.purchases,
		m.redemptions,
		m.rejections,
		m.pointsEarned,
		m.pointsRedeemed,
		m.litersSold,
		m.discountGranted,
		m.ruleVersion,
		m.adjustments,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// =============================================================================
// loyalty.Observer
// =============================================================================

func (m *Metrics) PurchaseRecorded(tx loyalty.FuelTransaction) {
	m.purchases.Inc()
	m.pointsEarned.Add(toFloat(tx.PointsEarned))
	m.litersSold.Add(toFloat(tx.Liters))
	if tx.ThresholdID != "" {
		m.redemptions.Inc()
		m.pointsRedeemed.Add(toFloat(tx.PointsRedeemed))
		m.discountGranted.Add(toFloat(tx.Discount))
	}
}

func (m *Metrics) PurchaseRejected(err error) {
	m.rejections.WithLabelValues(loyalty.RejectionReason(err)).Inc()
}

func (m *Metrics) RuleActivated(rule loyalty.PointsRule) {
	m.ruleVersion.Set(float64(rule.Version))
}

func (m *Metrics) BalanceAdjusted(loyalty.ClientAccount, generic.Amount) {
	m.adjustments.Inc()
}

// Counters only go up; a negative amount is a bug upstream and is dropped.
func toFloat(a generic.Amount) float64 {
	f, _ := a.Value.Float64()
	if f < 0 {
		return 0
	}
	return f
}

// =============================================================================
// HTTP
// =============================================================================

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not explode the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
