package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRiskDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "risk",
		Name:      "denials_total",
		Help:      "Pre-trade checks that denied opening a position",
	}, []string{"reason"})

	metricSignalsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "strategy",
		Name:      "signals_total",
		Help:      "Trade signals produced by the analyzer",
	}, []string{"symbol", "side"})

	metricOrdersExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "execution",
		Name:      "orders_total",
		Help:      "Order attempts by final status",
	}, []string{"status"})
)
