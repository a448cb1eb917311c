// Package metrics provides Prometheus-based metrics recording for order
// intake and gift delivery.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Order disposition labels.
const (
	OrderAccepted        = "accepted"
	OrderUnknownLot      = "unknown_lot"
	OrderBadQuantity     = "bad_quantity"
	OrderDropped         = "dropped" // Not found, not owned, or no longer open at intake
	OrderIgnoredDisabled = "ignored_disabled"
)

// Delivery outcome labels.
const (
	DeliveryCompleted = "completed"
	DeliveryPartial   = "partial"
	DeliveryAborted   = "aborted" // Failed before any gift was attempted
)

// Recorder records fulfillment metrics to Prometheus.
type Recorder struct {
	ordersTotal         *prometheus.CounterVec
	giftsTotal          *prometheus.CounterVec
	deliveriesTotal     *prometheus.CounterVec
	deliveryDuration    prometheus.Histogram
	activeConversations prometheus.Gauge
}

// NewRecorder registers the fulfillment metrics on the default registry.
func NewRecorder() *Recorder {
	return NewRecorderWith(prometheus.DefaultRegisterer)
}

// NewRecorderWith registers on a caller-supplied registry. Tests use this to
// avoid duplicate-registration panics across cases.
func NewRecorderWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		ordersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfiller_orders_total",
				Help: "Total observed orders by intake disposition",
			},
			[]string{"disposition"},
		),
		giftsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfiller_gifts_total",
				Help: "Total gift send attempts by denomination and status",
			},
			[]string{"denomination", "status"},
		),
		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfiller_deliveries_total",
				Help: "Total delivery runs by outcome",
			},
			[]string{"outcome"},
		),
		deliveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fulfiller_delivery_duration_seconds",
				Help:    "Wall time of a full delivery run including pacing",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		activeConversations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fulfiller_active_conversations",
				Help: "Number of conversations currently awaiting buyer input",
			},
		),
	}
}

// IncOrder counts one observed order with its intake disposition.
func (r *Recorder) IncOrder(disposition string) {
	r.ordersTotal.WithLabelValues(disposition).Inc()
}

// IncGift counts one gift send attempt.
func (r *Recorder) IncGift(denomination int, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.giftsTotal.WithLabelValues(strconv.Itoa(denomination), status).Inc()
}

// ObserveDelivery records one finished delivery run.
func (r *Recorder) ObserveDelivery(outcome string, duration time.Duration) {
	r.deliveriesTotal.WithLabelValues(outcome).Inc()
	r.deliveryDuration.Observe(duration.Seconds())
}

// SetActiveConversations publishes the current conversation count.
func (r *Recorder) SetActiveConversations(n int) {
	r.activeConversations.Set(float64(n))
}
