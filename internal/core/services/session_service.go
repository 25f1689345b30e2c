package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lockstream/internal/core/domain"
	"lockstream/internal/core/ports"
	"lockstream/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

// sessionService is the single writer for both registries. A single mutex
// turns every operation into one critical section over the registry pair, so
// a join and a concurrent disconnect for the same connection can never
// interleave mid-operation. Nothing inside a critical section blocks: fan-out
// delivery is handed off to the Fanout port, which must not wait on I/O.
type sessionService struct {
	nodes   ports.NodeRepository
	streams ports.StreamRepository
	fanout  ports.Fanout
	metrics *monitoring.PrometheusCollector
	logger  *zap.SugaredLogger

	mu sync.Mutex
}

func NewSessionService(
	nodes ports.NodeRepository,
	streams ports.StreamRepository,
	fanout ports.Fanout,
	metrics *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) ports.SessionService {
	return &sessionService{
		nodes:   nodes,
		streams: streams,
		fanout:  fanout,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *sessionService) Connect(ctx context.Context, connID domain.ConnID) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodes.Register(ctx, connID)
	if err != nil {
		return nil, fmt.Errorf("failed to register connection: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordConnect()
	}
	s.logger.Infow("node connected", "node_id", node.ID)
	return node, nil
}

func (s *sessionService) Disconnect(ctx context.Context, connID domain.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodes.Lookup(ctx, connID)
	if err != nil {
		// Already cleaned up; duplicate disconnect signals are a no-op.
		return nil
	}

	if node.InStream() {
		if err := s.streams.RemoveMember(ctx, node.StreamID, connID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		s.notifyMembership(ctx, node.StreamID)
	}

	if err := s.nodes.Unregister(ctx, connID); err != nil {
		return fmt.Errorf("failed to unregister connection: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordDisconnect()
	}
	s.logger.Infow("node disconnected", "node_id", node.ID, "stream_id", node.StreamID)
	return nil
}

func (s *sessionService) CreateStream(ctx context.Context, connID domain.ConnID, name, credentialToken string) (*domain.Stream, error) {
	if name == "" || credentialToken == "" {
		return nil, domain.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Names are display labels only, so no dedup: every create yields a
	// brand-new stream. The creator joins explicitly, not as a side effect.
	stream, err := s.streams.Create(ctx, name, credentialToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordStreamCreated()
	}
	s.logger.Infow("stream created", "stream_id", stream.ID, "name", stream.Name)
	return stream, nil
}

func (s *sessionService) JoinStream(ctx context.Context, connID domain.ConnID, streamID domain.StreamID, credentialToken string) (*domain.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodes.Lookup(ctx, connID)
	if err != nil {
		return nil, err
	}

	stream, err := s.streams.Get(ctx, streamID)
	if err != nil {
		return nil, err
	}

	// The token is an opaque bearer credential; the only check the server
	// performs is exact equality against the stored value.
	if credentialToken != stream.CredentialToken {
		return nil, domain.ErrUnauthorized
	}

	if node.StreamID != "" && node.StreamID != streamID {
		if err := s.streams.RemoveMember(ctx, node.StreamID, connID); err != nil {
			return nil, fmt.Errorf("failed to leave previous stream: %w", err)
		}
		s.notifyMembership(ctx, node.StreamID)
	}

	if err := s.streams.AddMember(ctx, streamID, connID); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	if err := s.nodes.SetStream(ctx, connID, streamID); err != nil {
		return nil, fmt.Errorf("failed to set stream: %w", err)
	}

	s.notifyMembership(ctx, streamID)
	s.logger.Infow("node joined stream", "node_id", node.ID, "stream_id", streamID)
	return stream, nil
}

func (s *sessionService) LeaveStream(ctx context.Context, connID domain.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodes.Lookup(ctx, connID)
	if err != nil {
		// Leave is always acknowledged, member or not.
		return nil
	}

	if !node.InStream() {
		return nil
	}

	streamID := node.StreamID
	if err := s.streams.RemoveMember(ctx, streamID, connID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if err := s.nodes.SetStream(ctx, connID, ""); err != nil {
		return fmt.Errorf("failed to clear stream: %w", err)
	}

	s.notifyMembership(ctx, streamID)
	s.logger.Infow("node left stream", "node_id", node.ID, "stream_id", streamID)
	return nil
}

func (s *sessionService) PushLog(ctx context.Context, connID domain.ConnID, payload, level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodes.Lookup(ctx, connID)
	if err != nil {
		return domain.ErrNoStream
	}
	if !node.InStream() {
		return domain.ErrNoStream
	}
	if payload == "" {
		return domain.ErrEmptyPayload
	}

	if level == "" {
		level = domain.DefaultLogLevel
	}

	msg := &domain.LogMessage{
		StreamID:  node.StreamID,
		NodeID:    node.ID,
		Payload:   payload,
		Level:     level,
		Timestamp: time.Now(),
	}

	conns := s.liveMembers(ctx, node.StreamID)
	s.fanout.DeliverLog(msg, conns)

	if s.metrics != nil {
		s.metrics.RecordRelay(len(conns))
	}
	return nil
}

func (s *sessionService) ListStreams(ctx context.Context) ([]domain.StreamInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	streams, err := s.streams.List(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]domain.StreamInfo, 0, len(streams))
	for _, stream := range streams {
		count, err := s.streams.MemberCount(ctx, stream.ID)
		if err != nil {
			continue
		}
		infos = append(infos, domain.StreamInfo{
			ID:          stream.ID,
			Name:        stream.Name,
			MemberCount: count,
			CreatedAt:   stream.CreatedAt,
		})
	}
	return infos, nil
}

func (s *sessionService) GetStream(ctx context.Context, id domain.StreamID) (domain.StreamInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, err := s.streams.Get(ctx, id)
	if err != nil {
		return domain.StreamInfo{}, err
	}
	count, err := s.streams.MemberCount(ctx, id)
	if err != nil {
		return domain.StreamInfo{}, err
	}
	return domain.StreamInfo{
		ID:          stream.ID,
		Name:        stream.Name,
		MemberCount: count,
		CreatedAt:   stream.CreatedAt,
	}, nil
}

// notifyMembership broadcasts the stream's current member node ids to the
// members themselves. Called with s.mu held.
func (s *sessionService) notifyMembership(ctx context.Context, streamID domain.StreamID) {
	conns, err := s.streams.Members(ctx, streamID)
	if err != nil {
		return
	}

	// A member set may transiently reference a connection mid-teardown;
	// skip entries the node registry no longer knows.
	nodes := make([]domain.NodeID, 0, len(conns))
	live := make([]domain.ConnID, 0, len(conns))
	for _, connID := range conns {
		node, err := s.nodes.Lookup(ctx, connID)
		if err != nil {
			continue
		}
		nodes = append(nodes, node.ID)
		live = append(live, connID)
	}

	s.fanout.DeliverMembership(streamID, nodes, live)

	if s.metrics != nil {
		s.metrics.RecordMembership(streamID, len(live))
	}
}

// liveMembers returns member connections that still have a registered node.
// Called with s.mu held.
func (s *sessionService) liveMembers(ctx context.Context, streamID domain.StreamID) []domain.ConnID {
	conns, err := s.streams.Members(ctx, streamID)
	if err != nil {
		return nil
	}

	live := make([]domain.ConnID, 0, len(conns))
	for _, connID := range conns {
		if _, err := s.nodes.Lookup(ctx, connID); err == nil {
			live = append(live, connID)
		}
	}
	return live
}
