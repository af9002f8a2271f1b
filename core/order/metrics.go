package order

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersGenerated *prometheus.CounterVec
	ordersFinished  *prometheus.CounterVec
	ordersPending   prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge) {
	gen := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_orders_generated_total",
			Help: "Number of orders built by the generator",
		},
		[]string{"priority", "source"},
	)
	fin := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_orders_finished_total",
			Help: "Number of orders that reached a terminal status",
		},
		[]string{"status"},
	)
	pend := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agv_orders_pending",
			Help: "Number of orders waiting for a vehicle",
		},
	)
	return gen, fin, pend
}

func init() {
	ordersGenerated, ordersFinished, ordersPending = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers order metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(ordersGenerated, ordersFinished, ordersPending)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	ordersGenerated, ordersFinished, ordersPending = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
