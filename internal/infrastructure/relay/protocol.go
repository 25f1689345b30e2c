package relay

import (
	"encoding/json"
	"errors"

	"lockstream/internal/core/domain"
)

// Client and server exchange JSON envelopes over the websocket. Inbound
// payloads stay raw until the dispatch table picks a handler for the type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Inbound event types.
const (
	EventStreamCreate = "stream-create"
	EventStreamJoin   = "stream-join"
	EventStreamLeave  = "stream-leave"
	EventLogPush      = "log-push"
	EventStreamList   = "stream-list"
)

// Outbound event types.
const (
	EventNodeAssigned       = "node-assigned"
	EventStreamCreateResult = "stream-create-result"
	EventStreamJoinResult   = "stream-join-result"
	EventStreamLeaveResult  = "stream-leave-result"
	EventLogPushResult      = "log-push-result"
	EventLogBroadcast       = "log-broadcast"
	EventMembershipList     = "membership-list"
	EventStreamListResult   = "stream-list-result"
	EventError              = "error"
)

type NodeAssignedPayload struct {
	NodeID string `json:"nodeId"`
}

type StreamCreatePayload struct {
	StreamName      string `json:"streamName"`
	CredentialToken string `json:"credentialToken"`
}

type StreamCreateResultPayload struct {
	Success    bool   `json:"success"`
	StreamID   string `json:"streamId,omitempty"`
	StreamName string `json:"streamName,omitempty"`
	Error      string `json:"error,omitempty"`
}

type StreamJoinPayload struct {
	StreamID        string `json:"streamId"`
	CredentialToken string `json:"credentialToken"`
}

type StreamJoinResultPayload struct {
	Success    bool   `json:"success"`
	StreamID   string `json:"streamId,omitempty"`
	StreamName string `json:"streamName,omitempty"`
	Error      string `json:"error,omitempty"`
}

type StreamLeaveResultPayload struct {
	Success bool `json:"success"`
}

type LogPushPayload struct {
	Payload string `json:"payload"`
	Level   string `json:"level,omitempty"`
}

type LogPushResultPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type LogBroadcastPayload struct {
	StreamID  string `json:"streamId"`
	NodeID    string `json:"nodeId"`
	Payload   string `json:"payload"`
	Level     string `json:"level"`
	Timestamp int64  `json:"timestamp"`
}

type MembershipListPayload struct {
	StreamID string   `json:"streamId"`
	Nodes    []string `json:"nodes"`
}

type StreamSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	CreatedAt   int64  `json:"createdAt"`
}

type StreamListResultPayload struct {
	Streams []StreamSummary `json:"streams"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// errorCode maps domain errors onto the wire error identifiers.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrStreamNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNoStream):
		return "no_stream"
	case errors.Is(err, domain.ErrEmptyPayload):
		return "empty_payload"
	default:
		return "internal"
	}
}
