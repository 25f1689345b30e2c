package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lockstream/internal/core/domain"
	"lockstream/internal/core/ports"
	"lockstream/pkg/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// client is one attached websocket connection. Outbound events go through a
// buffered queue drained by a single writer goroutine, so fan-out never
// blocks on a slow member: when the queue is full the event is dropped for
// that connection only.
type client struct {
	conn *websocket.Conn
	send chan outEnvelope
}

type WebSocketServer struct {
	sessions ports.SessionService
	handlers map[string]func(ctx context.Context, connID domain.ConnID, payload json.RawMessage) error

	clients map[domain.ConnID]*client
	mu      sync.RWMutex

	pingInterval  time.Duration
	pongTimeout   time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration
	sendQueueSize int
	msgRate       float64 // inbound messages/sec per connection, 0 = unlimited
	msgBurst      int

	logger *zap.SugaredLogger
}

func NewWebSocketServer(logger *zap.SugaredLogger) *WebSocketServer {
	s := &WebSocketServer{
		clients:       make(map[domain.ConnID]*client),
		pingInterval:  30 * time.Second,
		pongTimeout:   60 * time.Second,
		readTimeout:   60 * time.Second,
		writeTimeout:  10 * time.Second,
		sendQueueSize: 64,
		logger:        logger,
	}

	// Explicit dispatch table: event type to handler. Unknown types never
	// reach the registries.
	s.handlers = map[string]func(ctx context.Context, connID domain.ConnID, payload json.RawMessage) error{
		EventStreamCreate: s.handleStreamCreate,
		EventStreamJoin:   s.handleStreamJoin,
		EventStreamLeave:  s.handleStreamLeave,
		EventLogPush:      s.handleLogPush,
		EventStreamList:   s.handleStreamList,
	}
	return s
}

// SetSessionService wires the coordinator in. The server is constructed
// first because it doubles as the coordinator's fan-out sink.
func (s *WebSocketServer) SetSessionService(sessions ports.SessionService) {
	s.sessions = sessions
}

// SetPingInterval sets ping interval for WebSocket connections
func (s *WebSocketServer) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// SetPongTimeout sets pong timeout for WebSocket connections
func (s *WebSocketServer) SetPongTimeout(timeout time.Duration) {
	s.pongTimeout = timeout
	s.readTimeout = timeout
}

// SetSendQueueSize sets the per-connection outbound queue capacity.
func (s *WebSocketServer) SetSendQueueSize(size int) {
	if size > 0 {
		s.sendQueueSize = size
	}
}

// SetMessageRateLimit caps inbound messages per second per connection.
// Zero disables the limit.
func (s *WebSocketServer) SetMessageRateLimit(perSecond float64, burst int) {
	s.msgRate = perSecond
	s.msgBurst = burst
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := domain.ConnID(uuid.NewString())

	c := &client{
		conn: conn,
		send: make(chan outEnvelope, s.sendQueueSize),
	}
	s.mu.Lock()
	s.clients[connID] = c
	s.mu.Unlock()

	writerDone := make(chan struct{})
	go s.writeLoop(c, writerDone)

	node, err := s.sessions.Connect(context.Background(), connID)
	if err != nil {
		s.logger.Errorw("failed to register connection", "error", err)
		s.dropClient(connID)
		<-writerDone
		return
	}

	s.enqueue(connID, outEnvelope{
		Type:    EventNodeAssigned,
		Payload: NodeAssignedPayload{NodeID: string(node.ID)},
	})

	s.logger.Infow("node connected via WebSocket", "node_id", node.ID)

	// Set read/write deadlines
	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan Envelope, 10)
	errorChan := make(chan error, 1)

	// Reader goroutine feeds the select loop, so one connection's commands
	// are processed in the order they were issued.
	go func() {
		for {
			var msg Envelope
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			messageChan <- msg
		}
	}()

	var limiter *rate.Limiter
	if s.msgRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.msgRate), s.msgBurst)
	}

	for {
		select {
		case msg := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.enqueue(connID, outEnvelope{
					Type:    EventError,
					Payload: ErrorPayload{Message: "rate limit exceeded"},
				})
				continue
			}
			if err := s.handleMessage(context.Background(), connID, msg); err != nil {
				s.logger.Infow("error handling message from node", "node_id", node.ID, "error", err)
				s.enqueue(connID, outEnvelope{
					Type:    EventError,
					Payload: ErrorPayload{Message: err.Error()},
				})
			}

		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				s.logger.Infow("error sending ping", "node_id", node.ID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message from node", "node_id", node.ID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.dropClient(connID)
	<-writerDone

	if err := s.sessions.Disconnect(context.Background(), connID); err != nil {
		s.logger.Infow("error cleaning up connection", "node_id", node.ID, "error", err)
	}

	s.logger.Infow("node disconnected", "node_id", node.ID)
}

func (s *WebSocketServer) handleMessage(ctx context.Context, connID domain.ConnID, msg Envelope) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	handler, ok := s.handlers[msg.Type]
	if !ok {
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}

	ctx, span := tracing.TraceSocketEvent(ctx, msg.Type, string(connID))
	defer span.End()

	return handler(ctx, connID, msg.Payload)
}

func (s *WebSocketServer) handleStreamCreate(ctx context.Context, connID domain.ConnID, raw json.RawMessage) error {
	var payload StreamCreatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid stream-create payload: %w", err)
	}

	stream, err := s.sessions.CreateStream(ctx, connID, payload.StreamName, payload.CredentialToken)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.enqueue(connID, outEnvelope{
			Type:    EventStreamCreateResult,
			Payload: StreamCreateResultPayload{Success: false, Error: errorCode(err)},
		})
		return nil
	}

	s.enqueue(connID, outEnvelope{
		Type: EventStreamCreateResult,
		Payload: StreamCreateResultPayload{
			Success:    true,
			StreamID:   string(stream.ID),
			StreamName: stream.Name,
		},
	})
	return nil
}

func (s *WebSocketServer) handleStreamJoin(ctx context.Context, connID domain.ConnID, raw json.RawMessage) error {
	var payload StreamJoinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid stream-join payload: %w", err)
	}

	stream, err := s.sessions.JoinStream(ctx, connID, domain.StreamID(payload.StreamID), payload.CredentialToken)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.enqueue(connID, outEnvelope{
			Type:    EventStreamJoinResult,
			Payload: StreamJoinResultPayload{Success: false, Error: errorCode(err)},
		})
		return nil
	}

	s.enqueue(connID, outEnvelope{
		Type: EventStreamJoinResult,
		Payload: StreamJoinResultPayload{
			Success:    true,
			StreamID:   string(stream.ID),
			StreamName: stream.Name,
		},
	})
	return nil
}

func (s *WebSocketServer) handleStreamLeave(ctx context.Context, connID domain.ConnID, raw json.RawMessage) error {
	if err := s.sessions.LeaveStream(ctx, connID); err != nil {
		s.logger.Warnw("leave failed", "error", err)
	}

	// Leave is acknowledged unconditionally.
	s.enqueue(connID, outEnvelope{
		Type:    EventStreamLeaveResult,
		Payload: StreamLeaveResultPayload{Success: true},
	})
	return nil
}

func (s *WebSocketServer) handleLogPush(ctx context.Context, connID domain.ConnID, raw json.RawMessage) error {
	var payload LogPushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid log-push payload: %w", err)
	}

	if err := s.sessions.PushLog(ctx, connID, payload.Payload, payload.Level); err != nil {
		tracing.RecordError(ctx, err)
		s.enqueue(connID, outEnvelope{
			Type:    EventLogPushResult,
			Payload: LogPushResultPayload{Success: false, Error: errorCode(err)},
		})
		return nil
	}

	s.enqueue(connID, outEnvelope{
		Type:    EventLogPushResult,
		Payload: LogPushResultPayload{Success: true},
	})
	return nil
}

func (s *WebSocketServer) handleStreamList(ctx context.Context, connID domain.ConnID, raw json.RawMessage) error {
	infos, err := s.sessions.ListStreams(ctx)
	if err != nil {
		return fmt.Errorf("failed to list streams: %w", err)
	}

	streams := make([]StreamSummary, 0, len(infos))
	for _, info := range infos {
		streams = append(streams, StreamSummary{
			ID:          string(info.ID),
			Name:        info.Name,
			MemberCount: info.MemberCount,
			CreatedAt:   info.CreatedAt.UnixMilli(),
		})
	}

	s.enqueue(connID, outEnvelope{
		Type:    EventStreamListResult,
		Payload: StreamListResultPayload{Streams: streams},
	})
	return nil
}

// DeliverLog implements ports.Fanout.
func (s *WebSocketServer) DeliverLog(msg *domain.LogMessage, conns []domain.ConnID) {
	env := outEnvelope{
		Type: EventLogBroadcast,
		Payload: LogBroadcastPayload{
			StreamID:  string(msg.StreamID),
			NodeID:    string(msg.NodeID),
			Payload:   msg.Payload,
			Level:     msg.Level,
			Timestamp: msg.Timestamp.UnixMilli(),
		},
	}
	for _, connID := range conns {
		s.enqueue(connID, env)
	}
}

// DeliverMembership implements ports.Fanout.
func (s *WebSocketServer) DeliverMembership(streamID domain.StreamID, nodes []domain.NodeID, conns []domain.ConnID) {
	ids := make([]string, 0, len(nodes))
	for _, id := range nodes {
		ids = append(ids, string(id))
	}
	env := outEnvelope{
		Type:    EventMembershipList,
		Payload: MembershipListPayload{StreamID: string(streamID), Nodes: ids},
	}
	for _, connID := range conns {
		s.enqueue(connID, env)
	}
}

// enqueue hands an event to the connection's writer queue without blocking.
// Holding the read lock for the whole send keeps it ordered before any
// dropClient, which takes the write lock to close the queue.
func (s *WebSocketServer) enqueue(connID domain.ConnID, env outEnvelope) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[connID]
	if !ok {
		return
	}

	select {
	case c.send <- env:
	default:
		s.logger.Warnw("send queue full, dropping event", "conn_id", connID, "type", env.Type)
	}
}

func (s *WebSocketServer) dropClient(connID domain.ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[connID]; ok {
		delete(s.clients, connID)
		close(c.send)
	}
}

func (s *WebSocketServer) writeLoop(c *client, done chan<- struct{}) {
	defer close(done)
	for env := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := c.conn.WriteJSON(env); err != nil {
			// Best effort: the reader side notices the broken transport
			// and triggers cleanup.
			continue
		}
	}
}

// ConnectedCount reports the number of attached connections.
func (s *WebSocketServer) ConnectedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
