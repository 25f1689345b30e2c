package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lockstream/internal/core/services"
	"lockstream/internal/infrastructure/repositories/memory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ws := NewWebSocketServer(zap.NewNop().Sugar())
	svc := services.NewSessionService(
		memory.NewMemoryNodeRepository(),
		memory.NewMemoryStreamRepository(),
		ws,
		nil,
		zap.NewNop().Sugar(),
	)
	ws.SetSessionService(svc)

	srv := httptest.NewServer(http.HandlerFunc(ws.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, eventType string, payload interface{}) {
	t.Helper()

	env := outEnvelope{Type: eventType, Payload: payload}
	require.NoError(t, conn.WriteJSON(env))
}

// readEvent reads envelopes until one of the wanted type arrives, skipping
// interleaved notifications (membership updates arrive unordered relative to
// command results).
func readEvent(t *testing.T, conn *websocket.Conn, eventType string) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", eventType)
		if env.Type == eventType {
			return env.Payload
		}
	}
}

func readNodeAssigned(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	var payload NodeAssignedPayload
	raw := readEvent(t, conn, EventNodeAssigned)
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NotEmpty(t, payload.NodeID)
	return payload.NodeID
}

func createStream(t *testing.T, conn *websocket.Conn, name, token string) string {
	t.Helper()

	writeEvent(t, conn, EventStreamCreate, StreamCreatePayload{StreamName: name, CredentialToken: token})
	var result StreamCreateResultPayload
	raw := readEvent(t, conn, EventStreamCreateResult)
	require.NoError(t, json.Unmarshal(raw, &result))
	require.True(t, result.Success)
	require.NotEmpty(t, result.StreamID)
	return result.StreamID
}

func TestWebSocket_AssignsNode(t *testing.T) {
	srv := newTestServer(t)

	connA := dial(t, srv)
	connB := dial(t, srv)

	nodeA := readNodeAssigned(t, connA)
	nodeB := readNodeAssigned(t, connB)
	assert.NotEqual(t, nodeA, nodeB)
}

func TestWebSocket_CreateJoinPush(t *testing.T) {
	srv := newTestServer(t)

	connA := dial(t, srv)
	nodeA := readNodeAssigned(t, connA)
	connB := dial(t, srv)
	nodeB := readNodeAssigned(t, connB)

	streamID := createStream(t, connA, "alpha", "t1")

	writeEvent(t, connA, EventStreamJoin, StreamJoinPayload{StreamID: streamID, CredentialToken: "t1"})
	var joinResult StreamJoinResultPayload
	raw := readEvent(t, connA, EventStreamJoinResult)
	require.NoError(t, json.Unmarshal(raw, &joinResult))
	require.True(t, joinResult.Success)
	assert.Equal(t, streamID, joinResult.StreamID)
	assert.Equal(t, "alpha", joinResult.StreamName)

	writeEvent(t, connB, EventStreamJoin, StreamJoinPayload{StreamID: streamID, CredentialToken: "t1"})
	raw = readEvent(t, connB, EventStreamJoinResult)
	require.NoError(t, json.Unmarshal(raw, &joinResult))
	require.True(t, joinResult.Success)

	// The joiner sees the full membership, itself included.
	var membership MembershipListPayload
	raw = readEvent(t, connB, EventMembershipList)
	require.NoError(t, json.Unmarshal(raw, &membership))
	assert.Equal(t, streamID, membership.StreamID)
	assert.ElementsMatch(t, []string{nodeA, nodeB}, membership.Nodes)

	writeEvent(t, connA, EventLogPush, LogPushPayload{Payload: "p1"})

	// Both members receive the broadcast, the sender included. The sender's
	// broadcast precedes its push result on the wire.
	for _, conn := range []*websocket.Conn{connA, connB} {
		var broadcast LogBroadcastPayload
		raw = readEvent(t, conn, EventLogBroadcast)
		require.NoError(t, json.Unmarshal(raw, &broadcast))
		assert.Equal(t, streamID, broadcast.StreamID)
		assert.Equal(t, nodeA, broadcast.NodeID)
		assert.Equal(t, "p1", broadcast.Payload)
		assert.Equal(t, "info", broadcast.Level)
		assert.NotZero(t, broadcast.Timestamp)
	}

	var pushResult LogPushResultPayload
	raw = readEvent(t, connA, EventLogPushResult)
	require.NoError(t, json.Unmarshal(raw, &pushResult))
	require.True(t, pushResult.Success)
}

func TestWebSocket_JoinWrongToken(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv)
	readNodeAssigned(t, conn)

	streamID := createStream(t, conn, "alpha", "t1")

	writeEvent(t, conn, EventStreamJoin, StreamJoinPayload{StreamID: streamID, CredentialToken: "wrong"})
	var result StreamJoinResultPayload
	raw := readEvent(t, conn, EventStreamJoinResult)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.False(t, result.Success)
	assert.Equal(t, "unauthorized", result.Error)
}

func TestWebSocket_PushWithoutStream(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv)
	readNodeAssigned(t, conn)

	writeEvent(t, conn, EventLogPush, LogPushPayload{Payload: "p1"})
	var result LogPushResultPayload
	raw := readEvent(t, conn, EventLogPushResult)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.False(t, result.Success)
	assert.Equal(t, "no_stream", result.Error)
}

func TestWebSocket_LeaveAlwaysSucceeds(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv)
	readNodeAssigned(t, conn)

	writeEvent(t, conn, EventStreamLeave, nil)
	var result StreamLeaveResultPayload
	raw := readEvent(t, conn, EventStreamLeaveResult)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result.Success)
}

func TestWebSocket_UnknownEventType(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv)
	readNodeAssigned(t, conn)

	writeEvent(t, conn, "bogus", nil)
	var payload ErrorPayload
	raw := readEvent(t, conn, EventError)
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Contains(t, payload.Message, "unknown message type")
}

func TestWebSocket_StreamList(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv)
	readNodeAssigned(t, conn)

	createStream(t, conn, "alpha", "t1")
	createStream(t, conn, "beta", "t2")

	writeEvent(t, conn, EventStreamList, nil)
	var result StreamListResultPayload
	raw := readEvent(t, conn, EventStreamListResult)
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Streams, 2)

	names := []string{result.Streams[0].Name, result.Streams[1].Name}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
	for _, s := range result.Streams {
		assert.Equal(t, 0, s.MemberCount)
		assert.NotZero(t, s.CreatedAt)
	}
}

func TestWebSocket_DisconnectNotifiesSurvivors(t *testing.T) {
	srv := newTestServer(t)

	connA := dial(t, srv)
	readNodeAssigned(t, connA)
	connB := dial(t, srv)
	nodeB := readNodeAssigned(t, connB)

	streamID := createStream(t, connA, "alpha", "t1")

	writeEvent(t, connA, EventStreamJoin, StreamJoinPayload{StreamID: streamID, CredentialToken: "t1"})
	readEvent(t, connA, EventStreamJoinResult)
	writeEvent(t, connB, EventStreamJoin, StreamJoinPayload{StreamID: streamID, CredentialToken: "t1"})
	readEvent(t, connB, EventStreamJoinResult)

	// Abrupt close: the survivor sees the shrunken membership.
	connA.Close()

	for {
		var membership MembershipListPayload
		raw := readEvent(t, connB, EventMembershipList)
		require.NoError(t, json.Unmarshal(raw, &membership))
		if len(membership.Nodes) == 1 {
			assert.Equal(t, []string{nodeB}, membership.Nodes)
			return
		}
	}
}
