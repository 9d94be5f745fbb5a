// Package metrics holds the Prometheus instrumentation for Beacon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all collectors over a private registry so tests can
// construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	// Session mutations.
	SessionsEnsured prometheus.Counter
	SessionsDeleted prometheus.Counter
	DeviceUpserts   prometheus.Counter
	MessageAppends  prometheus.Counter

	// Fan-out.
	BroadcastsTotal *prometheus.CounterVec

	// Realtime connections.
	WSConnectionsActive prometheus.Gauge
	RoomsActive         prometheus.Gauge
	RoomJoinsTotal      prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsEnsured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_sessions_ensured_total",
			Help: "Total number of session ensure operations",
		}),
		SessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_sessions_deleted_total",
			Help: "Total number of sessions deleted",
		}),
		DeviceUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_device_upserts_total",
			Help: "Total number of device roster upserts",
		}),
		MessageAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_message_appends_total",
			Help: "Total number of messages appended",
		}),

		BroadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_broadcasts_total",
			Help: "Total number of room broadcasts by update kind",
		}, []string{"kind"}),

		WSConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_ws_connections_active",
			Help: "Currently open WebSocket connections",
		}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_rooms_active",
			Help: "Rooms with at least one joined observer",
		}),
		RoomJoinsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_room_joins_total",
			Help: "Total number of room joins",
		}),
	}

	registry.MustRegister(
		m.SessionsEnsured,
		m.SessionsDeleted,
		m.DeviceUpserts,
		m.MessageAppends,
		m.BroadcastsTotal,
		m.WSConnectionsActive,
		m.RoomsActive,
		m.RoomJoinsTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
