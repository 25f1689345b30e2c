package ports

import "lockstream/internal/core/domain"

// Fanout delivers outbound events to sets of connections. Delivery is
// fire-and-forget and must never block the caller: an unreachable or slow
// member simply misses the event.
type Fanout interface {
	DeliverLog(msg *domain.LogMessage, conns []domain.ConnID)
	DeliverMembership(streamID domain.StreamID, nodes []domain.NodeID, conns []domain.ConnID)
}
