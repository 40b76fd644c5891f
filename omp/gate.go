package omp

import (
	"context"
	"sync/atomic"
)

// exchangeGate admits one request/response exchange on the connection at a
// time. Callers that find it busy wait until it frees up or their context
// ends.
type exchangeGate struct {
	slot    chan struct{}
	waiting atomic.Int32
}

func newExchangeGate() *exchangeGate {
	return &exchangeGate{slot: make(chan struct{}, 1)}
}

// acquire blocks until the gate is free. It must be paired with release.
func (g *exchangeGate) acquire(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		return nil
	default:
	}

	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *exchangeGate) release() {
	select {
	case <-g.slot:
	default:
	}
}

// queued returns the number of callers waiting in acquire.
func (g *exchangeGate) queued() int {
	return int(g.waiting.Load())
}
