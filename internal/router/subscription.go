package router

import (
	"context"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/commitlog"
	"github.com/hyperrixel/logos/internal/wire"
	"github.com/hyperrixel/logos/pkg/cursor"
	"github.com/hyperrixel/logos/pkg/log"
)

// Subscription is one live consumer of the commit stream. Serve must be
// called exactly once; it backfills from the cursor, splices into the
// live queue without gaps or duplicates, and streams until the context
// ends, the subscriber falls behind, or Unsubscribe is called.
type Subscription struct {
	ID        uint64
	Principal string

	router *Router
	ctx    context.Context
	filter *compiledFilter
	queue  chan Delivery
	cursor uint64
	// err is the terminal cause, set before the queue closes.
	err error
}

// Cursor reports the last delivered seq in opaque resume form. Read it
// after Serve returns.
func (sub *Subscription) Cursor() cursor.Cursor { return cursor.FromSeq(sub.cursor) }

// Close cancels the subscription.
func (sub *Subscription) Close() { sub.router.Unsubscribe(sub.ID) }

// Serve streams the subscription into the sink: history first, then
// live deliveries. Returns nil after a clean unsubscribe, the context
// error on cancellation, ErrSubscriptionOverflow when the queue
// overflowed, or the sink's own send error.
func (sub *Subscription) Serve(sink Sink) error {
	r := sub.router
	defer sub.Close()

	lastSent := sub.cursor

	// Backfill: walk the log from the resume point. A zero cursor with
	// a FromMs filter anchors at the first commit inside the window.
	start := lastSent + 1
	if lastSent == 0 && sub.filter.f.FromMs > 0 {
		start = r.log.StartSeqAtTime(sub.filter.f.FromMs)
	}
	for {
		if err := sink.Context().Err(); err != nil {
			return err
		}
		items, next := r.log.ReadRange(commitlog.ReadOptions{FromSeq: start, Limit: backfillBatch})
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			e, err := wire.DecodeStored(it.Payload)
			if err != nil {
				r.logger.Warn("skipping undecodable entry",
					log.Uint64("seq", it.Seq), log.Err(err))
				continue
			}
			if !sub.filter.Match(e) {
				continue
			}
			if !r.eng.Authorize(sub.Principal, access.ActionRead, e.Tags).Allowed {
				continue
			}
			if err := sink.Send(Delivery{Seq: it.Seq, Entry: e}); err != nil {
				return err
			}
			r.met.IncDelivered()
			lastSent = it.Seq
			sub.cursor = it.Seq
		}
		if next == 0 {
			break
		}
		start = next
	}
	if err := sink.Flush(); err != nil {
		return err
	}

	// Live: drain the queue, dropping seqs the backfill already sent.
	for {
		select {
		case <-sub.ctx.Done():
			return sub.ctx.Err()
		case <-sink.Context().Done():
			return sink.Context().Err()
		case d, ok := <-sub.queue:
			if !ok {
				return sub.err
			}
			if d.Seq <= lastSent {
				continue
			}
			if err := sink.Send(d); err != nil {
				return err
			}
			r.met.IncDelivered()
			lastSent = d.Seq
			sub.cursor = d.Seq
			if err := sink.Flush(); err != nil {
				return err
			}
		}
	}
}
