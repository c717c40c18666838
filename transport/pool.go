// Package transport provides a pool of reusable invoker connections to
// a single backing address.
//
// Pool design: uses a buffered channel as a natural FIFO queue.
// Buffered channels are concurrency-safe, and blocking on empty is
// built-in.
package transport

import (
	"fmt"
	"sync"

	"github.com/vladaeloaiei/byteremote/invoker"
)

// InvokerPool manages a pool of reusable invokers targeting a single
// address, each wrapping its own TCP channel so they can be borrowed
// exclusively for the duration of one call.
type InvokerPool struct {
	mu      sync.Mutex
	items   chan *PoolInvoker
	addr    string
	maxSize int
	curSize int
	factory func() (*invoker.Invoker, error)
}

// PoolInvoker wraps an *invoker.Invoker with pool metadata.
type PoolInvoker struct {
	*invoker.Invoker
	pool     *InvokerPool
	unusable bool // set true when the invoker's channel errors
}

// NewInvokerPool creates a pool with the given max size. Invokers are
// created lazily — the pool starts empty and grows on demand.
func NewInvokerPool(addr string, maxSize int, factory func() (*invoker.Invoker, error)) *InvokerPool {
	return &InvokerPool{
		items:   make(chan *PoolInvoker, maxSize),
		addr:    addr,
		maxSize: maxSize,
		factory: factory,
	}
}

// Get retrieves an invoker from the pool.
// Strategy:
//  1. Try to get an existing invoker from the channel (non-blocking select)
//  2. If pool is empty but under limit, create a new invoker
//  3. If pool is empty and at limit, block until one is returned
func (p *InvokerPool) Get() (*PoolInvoker, error) {
	select {
	case pi := <-p.items:
		if pi.unusable {
			return p.createNew()
		}
		return pi, nil
	default:
		if p.curSize < p.maxSize {
			return p.createNew()
		}
		pi := <-p.items
		return pi, nil
	}
}

// Put returns an invoker to the pool. If it's marked unusable, it's
// discarded instead.
func (p *InvokerPool) Put(pi *PoolInvoker) {
	if pi.unusable {
		p.mu.Lock()
		p.curSize--
		p.mu.Unlock()
		return
	}
	p.items <- pi
}

// MarkUnusable flags pi so the next Put discards it instead of
// returning it to the pool, for callers that hit a channel error.
func (pi *PoolInvoker) MarkUnusable() {
	pi.unusable = true
}

// Close shuts down the pool and discards all pooled invokers.
func (p *InvokerPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.items)
	for range p.items {
		p.curSize--
	}
	return nil
}

// createNew builds a new invoker via the factory. Protected by mutex
// to prevent exceeding maxSize under concurrent access.
func (p *InvokerPool) createNew() (*PoolInvoker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curSize >= p.maxSize {
		return nil, fmt.Errorf("transport: invoker pool for %s exhausted", p.addr)
	}

	inv, err := p.factory()
	if err != nil {
		return nil, err
	}

	p.curSize++
	return &PoolInvoker{Invoker: inv, pool: p}, nil
}
