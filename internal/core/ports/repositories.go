package ports

import (
	"context"

	"lockstream/internal/core/domain"
)

// NodeRepository is the connection registry: it owns the node identity and
// the node<->stream association for every live connection. All mutation goes
// through the session service, which serializes operations.
type NodeRepository interface {
	// Register allocates a fresh node identity for a connection. It never
	// fails; registering the same connection twice returns the existing node.
	Register(ctx context.Context, connID domain.ConnID) (*domain.Node, error)
	Lookup(ctx context.Context, connID domain.ConnID) (*domain.Node, error)
	// SetStream updates the node's stream association. An empty stream id
	// clears it. The caller keeps the stream member set in sync in the same
	// logical step.
	SetStream(ctx context.Context, connID domain.ConnID, streamID domain.StreamID) error
	Unregister(ctx context.Context, connID domain.ConnID) error
}

// StreamRepository is the stream registry: it owns stream descriptors and
// their member sets. Streams are never deleted; an empty member set keeps
// its descriptor registered for the life of the process.
type StreamRepository interface {
	Create(ctx context.Context, name, credentialToken string) (*domain.Stream, error)
	Get(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	// AddMember is idempotent and a no-op for an unknown stream; callers
	// check existence first.
	AddMember(ctx context.Context, id domain.StreamID, connID domain.ConnID) error
	// RemoveMember is idempotent and a no-op if the stream or the
	// membership is absent.
	RemoveMember(ctx context.Context, id domain.StreamID, connID domain.ConnID) error
	// Members returns a snapshot of the stream's member connections.
	Members(ctx context.Context, id domain.StreamID) ([]domain.ConnID, error)
	List(ctx context.Context) ([]*domain.Stream, error)
	MemberCount(ctx context.Context, id domain.StreamID) (int, error)
}
