package worker

import (
	"context"

	audit "agritrust/pkg/platform/audit"
)

// Worker consumes audit events from an inbox channel and forwards them to a
// sink (typically the Kafka publisher). It decouples slow external sinks from
// the request path: services write to the inbox, the worker runs in the
// process errgroup.
type Worker struct {
	sink  audit.Emitter
	inbox <-chan audit.Event
}

func NewWorker(sink audit.Emitter, inbox <-chan audit.Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Emit(ctx, event); err != nil {
				return err
			}
		}
	}
}

// InboxEmitter adapts a channel into an Emitter. Emit drops the event when
// the inbox is full so a stalled sink never blocks a committed operation.
type InboxEmitter chan<- audit.Event

func (c InboxEmitter) Emit(_ context.Context, event audit.Event) error {
	select {
	case c <- event:
	default:
	}
	return nil
}
