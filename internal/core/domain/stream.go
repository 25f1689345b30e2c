package domain

import (
	"time"
)

type StreamID string
type NodeID string
type ConnID string

// Stream is a password-gated broadcast channel. The credential token is an
// opaque value supplied by the creator; the server only ever compares it for
// exact equality and never interprets it.
type Stream struct {
	ID              StreamID
	Name            string
	CredentialToken string
	CreatedAt       time.Time
}

// StreamInfo is the diagnostic view of a stream exposed by listings.
type StreamInfo struct {
	ID          StreamID
	Name        string
	MemberCount int
	CreatedAt   time.Time
}
