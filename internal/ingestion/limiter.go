package ingestion

import (
	"context"
	"sync"
)

// ConcurrencyLimiter bounds the number of in-flight runs per dataset_id, so
// that the bounded worker pool hosting runs never hammers a single upstream
// with unbounded concurrent requests. Datasets not yet seen get an
// unbounded-looking but lazily-created gate of size maxPerDataset.
type ConcurrencyLimiter struct {
	maxPerDataset int

	mu    sync.Mutex
	gates map[string]chan struct{}
}

// NewConcurrencyLimiter returns a limiter allowing up to maxPerDataset
// concurrent Acquire holders per dataset_id. maxPerDataset <= 0 means
// unlimited.
func NewConcurrencyLimiter(maxPerDataset int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{
		maxPerDataset: maxPerDataset,
		gates:         make(map[string]chan struct{}),
	}
}

// Acquire blocks until a slot for datasetID is free or ctx is done. The
// returned release function must be called exactly once to free the slot.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context, datasetID string) (func(), error) {
	if l.maxPerDataset <= 0 {
		return func() {}, nil
	}

	gate := l.gateFor(datasetID)

	select {
	case gate <- struct{}{}:
		return func() { <-gate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *ConcurrencyLimiter) gateFor(datasetID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	gate, ok := l.gates[datasetID]
	if !ok {
		gate = make(chan struct{}, l.maxPerDataset)
		l.gates[datasetID] = gate
	}

	return gate
}
