package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/flame/internal/ir"
)

// Journal persists intent and outcome records. *store.Store implements it.
type Journal interface {
	WriteIntent(ctx context.Context, rec ir.IntentRecord) error
	WriteOutcome(ctx context.Context, rec ir.OutcomeRecord) error
}

// recorder is the single writer between handler goroutines and the
// journal. Records are written in enqueue order; write failures are logged
// and never reach the handler.
type recorder struct {
	journal Journal
	queue   *eventQueue
	logger  *zap.Logger
	done    chan struct{}
}

func newRecorder(j Journal, logger *zap.Logger) *recorder {
	r := &recorder{
		journal: j,
		queue:   newEventQueue(),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *recorder) record(e journalEvent) {
	if !r.queue.Enqueue(e) {
		r.logger.Warn("journal closed, record dropped")
	}
}

// flush blocks until every record enqueued before the call is written.
func (r *recorder) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !r.queue.Enqueue(journalEvent{flushed: barrier}) {
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queue and stops the writer.
func (r *recorder) close() {
	r.queue.Close()
	<-r.done
}

func (r *recorder) run() {
	defer close(r.done)
	for {
		e, ok := r.queue.TryDequeue()
		if ok {
			r.write(e)
			continue
		}
		if _, open := <-r.queue.Wait(); !open {
			// Closed: drain whatever raced in before the close.
			for {
				e, ok := r.queue.TryDequeue()
				if !ok {
					return
				}
				r.write(e)
			}
		}
	}
}

func (r *recorder) write(e journalEvent) {
	// Writes use a fresh context: a record for a cancelled task must still
	// land in the journal.
	ctx := context.Background()
	switch {
	case e.flushed != nil:
		close(e.flushed)
	case e.Intent != nil:
		if err := r.journal.WriteIntent(ctx, *e.Intent); err != nil {
			r.logger.Warn("journal write failed",
				zap.String("intent_id", e.Intent.ID),
				zap.String("op", string(e.Intent.Op)),
				zap.Error(err),
			)
		}
	case e.Outcome != nil:
		if err := r.journal.WriteOutcome(ctx, *e.Outcome); err != nil {
			r.logger.Warn("journal write failed",
				zap.String("intent_id", e.Outcome.IntentID),
				zap.String("status", string(e.Outcome.Status)),
				zap.Error(err),
			)
		}
	}
}
