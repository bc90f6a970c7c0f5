package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors shared by stores, rosters and the hub.
//
//   - potluck_store_operations_total{op,outcome}
//   - potluck_change_events_total{op}
//   - potluck_roster_reloads_total{outcome}
//   - potluck_roster_entries
//   - potluck_realtime_clients
type Metrics struct {
	StoreOps      *prometheus.CounterVec
	ChangeEvents  *prometheus.CounterVec
	RosterReloads *prometheus.CounterVec
	RosterEntries prometheus.Gauge
	RealtimeConns prometheus.Gauge
}

// NewMetrics registers the collectors once on the default registry.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			StoreOps: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "potluck_store_operations_total",
				Help: "Dish store operations by kind and outcome",
			}, []string{"op", "outcome"}),
			ChangeEvents: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "potluck_change_events_total",
				Help: "Change events published on the feed",
			}, []string{"op"}),
			RosterReloads: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "potluck_roster_reloads_total",
				Help: "Full roster reloads by outcome",
			}, []string{"outcome"}),
			RosterEntries: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "potluck_roster_entries",
				Help: "Entries in the last successfully loaded roster",
			}),
			RealtimeConns: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "potluck_realtime_clients",
				Help: "Connected websocket clients",
			}),
		}
	})
	return globalMetrics
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
