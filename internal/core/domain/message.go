package domain

import "time"

// DefaultLogLevel is stamped on pushed messages that carry no level tag.
// Levels are free-form and never interpreted by the server.
const DefaultLogLevel = "info"

// LogMessage is a single relayed log entry. The payload is opaque ciphertext;
// the message exists only for the duration of one fan-out and is never stored.
type LogMessage struct {
	StreamID  StreamID
	NodeID    NodeID
	Payload   string
	Level     string
	Timestamp time.Time
}
