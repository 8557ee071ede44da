package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reservations_total",
		Help: "Cart mutations that touched the stock ledger, by outcome",
	}, []string{"operation", "outcome"})

	CartReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_reservation_latency_seconds",
		Help:    "Latency of cart mutations including the reservation transaction",
		Buckets: prometheus.DefBuckets,
	})

	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts by payment method and outcome",
	}, []string{"payment_method", "outcome"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlements_total",
		Help: "Gateway notifications by gateway and outcome",
	}, []string{"gateway", "outcome"})

	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_settlement_latency_seconds",
		Help:    "Latency of the settlement transaction",
		Buckets: prometheus.DefBuckets,
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_latency_seconds",
		Help:    "Latency of outbound payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})

	SweeperReleasedUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_sweeper_released_units_total",
		Help: "Reserved units released by the sweeper",
	}, []string{"source"})

	SweeperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_sweeper_runs_total",
		Help: "Sweeper ticks by result",
	}, []string{"result"})

	MarketplacePushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_stock_push_total",
		Help: "Stock pushes to marketplaces by outcome",
	}, []string{"marketplace", "outcome"})

	EventPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_publish_failed_total",
		Help: "Domain events that could not be published",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
