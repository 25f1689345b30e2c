package domain

import "time"

// Node is the identity assigned to one connection for its lifetime. A node
// identifier is generated when the connection is established and is never
// reused for a later connection.
type Node struct {
	ID          NodeID
	ConnID      ConnID
	StreamID    StreamID // empty while the node is in no stream
	ConnectedAt time.Time
}

// InStream reports whether the node currently belongs to a stream.
func (n *Node) InStream() bool {
	return n.StreamID != ""
}
