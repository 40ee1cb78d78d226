package broker

import (
	"context"
	"sync"
)

// MemoryRegistry keeps pending requests in process memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	pending map[RequestID]PendingRequest
	retired map[RequestID]struct{}
	lastSeq uint64
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		pending: make(map[RequestID]PendingRequest),
		retired: make(map[RequestID]struct{}),
	}
}

func (r *MemoryRegistry) Begin(ctx context.Context) (RegistryTx, error) {
	return &memoryTx{
		registry: r,
		inserts:  make(map[RequestID]PendingRequest),
		takes:    make(map[RequestID]struct{}),
	}, nil
}

func (r *MemoryRegistry) Get(ctx context.Context, id RequestID) (PendingRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.pending[id]
	if !ok {
		return PendingRequest{}, ErrUnknownRequest
	}
	return req, nil
}

func (r *MemoryRegistry) Pending(ctx context.Context) ([]PendingRequest, error) {
	r.mu.RLock()
	out := make([]PendingRequest, 0, len(r.pending))
	for _, req := range r.pending {
		out = append(out, req)
	}
	r.mu.RUnlock()

	SortBySeq(out)
	return out, nil
}

func (r *MemoryRegistry) LastSeq(ctx context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSeq, nil
}

func (r *MemoryRegistry) issued(id RequestID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.pending[id]; ok {
		return true
	}
	_, ok := r.retired[id]
	return ok
}

type memoryTx struct {
	registry *MemoryRegistry
	inserts  map[RequestID]PendingRequest
	maxSeq   uint64
	// takes holds committed ids taken by this tx, plus ids inserted and taken within it.
	takes map[RequestID]struct{}
	done  bool
}

func (tx *memoryTx) Insert(ctx context.Context, req PendingRequest) error {
	if tx.done {
		return ErrTxDone
	}
	if _, ok := tx.inserts[req.ID]; ok {
		return ErrDuplicateRequest
	}
	if _, ok := tx.takes[req.ID]; ok {
		return ErrDuplicateRequest
	}
	if tx.registry.issued(req.ID) {
		return ErrDuplicateRequest
	}

	tx.inserts[req.ID] = req
	tx.maxSeq = max(tx.maxSeq, req.Seq)
	return nil
}

func (tx *memoryTx) Take(ctx context.Context, id RequestID) (PendingRequest, error) {
	if tx.done {
		return PendingRequest{}, ErrTxDone
	}
	if _, ok := tx.takes[id]; ok {
		return PendingRequest{}, ErrUnknownRequest
	}

	if req, ok := tx.inserts[id]; ok {
		delete(tx.inserts, id)
		tx.takes[id] = struct{}{}
		return req, nil
	}

	req, err := tx.registry.Get(ctx, id)
	if err != nil {
		return PendingRequest{}, err
	}
	tx.takes[id] = struct{}{}
	return req, nil
}

// Commit validates the staged changes against the committed state before applying any.
func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	r := tx.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range tx.inserts {
		if _, ok := r.pending[id]; ok {
			return ErrDuplicateRequest
		}
		if _, ok := r.retired[id]; ok {
			return ErrDuplicateRequest
		}
	}
	for id := range tx.takes {
		if _, ok := r.retired[id]; ok {
			return ErrUnknownRequest
		}
	}

	for id, req := range tx.inserts {
		r.pending[id] = req
	}
	for id := range tx.takes {
		delete(r.pending, id)
		r.retired[id] = struct{}{}
	}
	r.lastSeq = max(r.lastSeq, tx.maxSeq)
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	tx.done = true
	return nil
}
