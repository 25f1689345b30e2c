package ports

import (
	"context"

	"lockstream/internal/core/domain"
)

// SessionService coordinates the node and stream registries. Every method is
// an atomic unit: no other event for the same connection or stream can
// interleave mid-operation.
type SessionService interface {
	// Connect registers a connection and returns its freshly assigned node.
	Connect(ctx context.Context, connID domain.ConnID) (*domain.Node, error)

	// Disconnect removes the connection from its stream (notifying the
	// survivors) and forgets its node. Safe to call more than once.
	Disconnect(ctx context.Context, connID domain.ConnID) error

	// CreateStream registers a new stream. The creator is not joined to it.
	CreateStream(ctx context.Context, connID domain.ConnID, name, credentialToken string) (*domain.Stream, error)

	// JoinStream moves the connection into the stream after verifying the
	// credential token. A connection belongs to at most one stream; joining
	// while a member elsewhere leaves the old stream first.
	JoinStream(ctx context.Context, connID domain.ConnID, streamID domain.StreamID, credentialToken string) (*domain.Stream, error)

	// LeaveStream removes the connection from its stream, if any. Always
	// succeeds so that clients can treat leave as idempotent.
	LeaveStream(ctx context.Context, connID domain.ConnID) error

	// PushLog fans a log message out to every current member of the
	// sender's stream, the sender included.
	PushLog(ctx context.Context, connID domain.ConnID, payload, level string) error

	ListStreams(ctx context.Context) ([]domain.StreamInfo, error)
	GetStream(ctx context.Context, id domain.StreamID) (domain.StreamInfo, error)
}
