package monitoring

import (
	"lockstream/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	nodesConnected   prometheus.Gauge
	connectionsTotal prometheus.Counter

	streamsRegistered   prometheus.Gauge
	streamsCreatedTotal prometheus.Counter

	messagesRelayedTotal prometheus.Counter
	broadcastFanoutSize  prometheus.Histogram

	streamMemberCount *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		nodesConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lockstream_nodes_connected",
			Help: "Number of currently connected nodes",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lockstream_connections_total",
			Help: "Total number of accepted connections",
		}),

		streamsRegistered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lockstream_streams_registered",
			Help: "Number of registered streams (streams are never evicted)",
		}),

		streamsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lockstream_streams_created_total",
			Help: "Total number of streams created",
		}),

		messagesRelayedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lockstream_messages_relayed_total",
			Help: "Total number of log messages fanned out",
		}),

		broadcastFanoutSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lockstream_broadcast_fanout_size",
			Help:    "Number of member connections per broadcast",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		streamMemberCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lockstream_stream_member_count",
			Help: "Number of members per stream",
		}, []string{"stream_id"}),
	}
}

func (p *PrometheusCollector) RecordConnect() {
	p.connectionsTotal.Inc()
	p.nodesConnected.Inc()
}

func (p *PrometheusCollector) RecordDisconnect() {
	p.nodesConnected.Dec()
}

func (p *PrometheusCollector) RecordStreamCreated() {
	p.streamsCreatedTotal.Inc()
	p.streamsRegistered.Inc()
}

func (p *PrometheusCollector) RecordMembership(streamID domain.StreamID, members int) {
	p.streamMemberCount.WithLabelValues(string(streamID)).Set(float64(members))
}

func (p *PrometheusCollector) RecordRelay(fanout int) {
	p.messagesRelayedTotal.Inc()
	p.broadcastFanoutSize.Observe(float64(fanout))
}
