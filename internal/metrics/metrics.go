// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petshop_orders_created_total",
		Help: "Orders created",
	})

	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petshop_order_transitions_total",
			Help: "Order status transitions by target status",
		},
		[]string{"status"},
	)

	Payments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petshop_payments_total",
			Help: "Payments by instrument type and resulting status",
		},
		[]string{"instrument", "status"},
	)

	Refunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petshop_refunds_total",
			Help: "Refunds by terminal status",
		},
		[]string{"status"},
	)

	RefundQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "petshop_refund_queue_depth",
		Help: "Refunds waiting for the settlement worker",
	})

	CouponRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petshop_coupon_rejections_total",
			Help: "Coupon evaluations rejected, by reason code",
		},
		[]string{"code"},
	)
)
