package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BudgetsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "budgets_created_total",
		Help: "Total number of budgets created",
	})

	OrdersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_submitted_total",
		Help: "Total number of sales orders submitted",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order submissions",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"from", "to"})

	IllegalTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_status_transitions_rejected_total",
		Help: "Total number of rejected status transitions",
	})

	ERPSubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "erp_submit_latency_seconds",
		Help:    "Latency of ERP order submissions",
		Buckets: prometheus.DefBuckets,
	})

	ERPSyncAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "erp_sync_attempts_total",
		Help: "Total number of ERP confirmation-code poll attempts",
	})

	ERPSyncFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "erp_sync_fallbacks_total",
		Help: "Total number of orders that fell back to the local code",
	})

	ERPTokenRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "erp_token_refresh_total",
		Help: "Total number of ERP token refreshes",
	})

	WebhookDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_dispatch_total",
		Help: "Total number of webhook dispatches",
	}, []string{"event", "outcome"})

	CEPLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cep_lookups_total",
		Help: "Total number of CEP lookups",
	}, []string{"source"})

	PDFRenderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_pdfs_rendered_total",
		Help: "Total number of proposal PDFs rendered",
	})

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
