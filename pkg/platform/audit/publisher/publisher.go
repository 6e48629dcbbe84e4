// Package publisher connects domain-emitted audit events to a Store, either
// synchronously or through a buffered background goroutine.
package publisher

import (
	"context"
	"sync"

	"agritrust/pkg/domain"
	audit "agritrust/pkg/platform/audit"
)

// Publisher writes audit events to a store. In sync mode Emit persists
// before returning; with an async buffer Emit enqueues and a background
// goroutine drains.
type Publisher struct {
	store audit.Store

	inbox  chan audit.Event
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// channel capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// NewPublisher constructs a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. In async mode the write happens later; a
// closed publisher drops the event rather than blocking the caller.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns the stored events for a subject principal.
func (p *Publisher) List(ctx context.Context, subject domain.Principal) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close stops the background goroutine after flushing buffered events. The
// inbox channel is never closed, so a racing Emit cannot panic; at worst its
// event is dropped.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		close(p.done)
		if p.inbox != nil {
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.inbox:
			// Best effort: an audit sink failure must not fail the operation
			// that already committed.
			_ = p.store.Append(context.Background(), event)
		case <-p.done:
			for {
				select {
				case event := <-p.inbox:
					_ = p.store.Append(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}
