package memory

import (
	"context"
	"sync"
	"time"

	"lockstream/internal/core/domain"
	"lockstream/internal/core/ports"

	"github.com/google/uuid"
)

type MemoryNodeRepository struct {
	nodes map[domain.ConnID]*domain.Node
	mu    sync.RWMutex
}

func NewMemoryNodeRepository() ports.NodeRepository {
	return &MemoryNodeRepository{
		nodes: make(map[domain.ConnID]*domain.Node),
	}
}

func (r *MemoryNodeRepository) Register(ctx context.Context, connID domain.ConnID) (*domain.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node, exists := r.nodes[connID]; exists {
		n := *node
		return &n, nil
	}

	node := &domain.Node{
		ID:          domain.NodeID(uuid.NewString()),
		ConnID:      connID,
		ConnectedAt: time.Now(),
	}
	r.nodes[connID] = node

	n := *node
	return &n, nil
}

func (r *MemoryNodeRepository) Lookup(ctx context.Context, connID domain.ConnID) (*domain.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[connID]
	if !exists {
		return nil, domain.ErrNodeNotFound
	}

	n := *node
	return &n, nil
}

func (r *MemoryNodeRepository) SetStream(ctx context.Context, connID domain.ConnID, streamID domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[connID]
	if !exists {
		return domain.ErrNodeNotFound
	}

	node.StreamID = streamID
	return nil
}

func (r *MemoryNodeRepository) Unregister(ctx context.Context, connID domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.nodes, connID)
	return nil
}
