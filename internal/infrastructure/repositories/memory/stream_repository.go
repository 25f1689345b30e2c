package memory

import (
	"context"
	"sync"
	"time"

	"lockstream/internal/core/domain"
	"lockstream/internal/core/ports"

	"github.com/google/uuid"
)

type MemoryStreamRepository struct {
	streams map[domain.StreamID]*domain.Stream
	members map[domain.StreamID]map[domain.ConnID]struct{}
	mu      sync.RWMutex
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		streams: make(map[domain.StreamID]*domain.Stream),
		members: make(map[domain.StreamID]map[domain.ConnID]struct{}),
	}
}

func (r *MemoryStreamRepository) Create(ctx context.Context, name, credentialToken string) (*domain.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream := &domain.Stream{
		ID:              domain.StreamID(uuid.NewString()),
		Name:            name,
		CredentialToken: credentialToken,
		CreatedAt:       time.Now(),
	}
	r.streams[stream.ID] = stream
	r.members[stream.ID] = make(map[domain.ConnID]struct{})

	s := *stream
	return &s, nil
}

func (r *MemoryStreamRepository) Get(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	s := *stream
	return &s, nil
}

func (r *MemoryStreamRepository) AddMember(ctx context.Context, id domain.StreamID, connID domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.members[id]
	if !exists {
		// Unknown stream: callers verify existence first.
		return nil
	}

	set[connID] = struct{}{}
	return nil
}

func (r *MemoryStreamRepository) RemoveMember(ctx context.Context, id domain.StreamID, connID domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.members[id]
	if !exists {
		return nil
	}

	delete(set, connID)
	return nil
}

func (r *MemoryStreamRepository) Members(ctx context.Context, id domain.StreamID) ([]domain.ConnID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, exists := r.members[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	conns := make([]domain.ConnID, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns, nil
}

func (r *MemoryStreamRepository) List(ctx context.Context) ([]*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	streams := make([]*domain.Stream, 0, len(r.streams))
	for _, stream := range r.streams {
		s := *stream
		streams = append(streams, &s)
	}
	return streams, nil
}

func (r *MemoryStreamRepository) MemberCount(ctx context.Context, id domain.StreamID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, exists := r.members[id]
	if !exists {
		return 0, domain.ErrStreamNotFound
	}
	return len(set), nil
}
