package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignmentsTotal   *prometheus.CounterVec
	assignmentFailures prometheus.Counter
	vehiclesBlocked    prometheus.Counter
	orderWaitSeconds   prometheus.Histogram
	orderTotalSeconds  *prometheus.HistogramVec
)

var secondsBuckets = []float64{5, 15, 30, 60, 120, 300, 600, 1200}

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Histogram, *prometheus.HistogramVec) {
	asg := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agv_assignments_total",
			Help: "Number of orders assigned to vehicles",
		},
		[]string{"strategy", "forced"},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_assignment_failures_total",
			Help: "Number of selected orders left pending for lack of an eligible vehicle",
		},
	)
	blk := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agv_vehicles_blocked_total",
			Help: "Number of times a vehicle halted for lack of charge",
		},
	)
	wait := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agv_order_wait_seconds",
			Help:    "Simulated time between order creation and assignment",
			Buckets: secondsBuckets,
		},
	)
	total := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agv_order_total_seconds",
			Help:    "Simulated time between order creation and its terminal status",
			Buckets: secondsBuckets,
		},
		[]string{"status"},
	)
	return asg, fail, blk, wait, total
}

func init() {
	assignmentsTotal, assignmentFailures, vehiclesBlocked, orderWaitSeconds, orderTotalSeconds = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignmentsTotal, assignmentFailures, vehiclesBlocked, orderWaitSeconds, orderTotalSeconds)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignmentsTotal, assignmentFailures, vehiclesBlocked, orderWaitSeconds, orderTotalSeconds = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
