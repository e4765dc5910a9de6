package render

import "context"

// Pool is a bounded slot pool around the shared engine. Size 1 in production:
// the model is a single instance and concurrent calls would only queue inside
// the engine.
type Pool struct {
	sem chan struct{}
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is safe to defer; releasing exactly once is on the caller, so failures
// mid-render still free the slot.
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
