// internal/service/inventory/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Reservation attempts by outcome (reserved, insufficient, error).",
	}, []string{"outcome"})

	releasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_releases_total",
		Help: "Reservations released back to available stock.",
	})

	confirmsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_confirms_total",
		Help: "Reservations converted into hard deductions.",
	})

	rollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_order_rollbacks_total",
		Help: "Whole-order rollbacks that released at least one reservation.",
	})

	reaperSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reaper_sweeps_total",
		Help: "Timeout reaper sweep runs.",
	})

	reaperReleasedOrders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reaper_released_orders_total",
		Help: "Abandoned orders whose stock the reaper returned.",
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_cache_lookups_total",
		Help: "Stock cache lookups by result (hit, miss).",
	}, []string{"result"})
)
