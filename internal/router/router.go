package router

import (
	"context"
	"errors"
	"sync"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/commitlog"
	"github.com/hyperrixel/logos/internal/entry"
	"github.com/hyperrixel/logos/internal/metrics"
	"github.com/hyperrixel/logos/pkg/cursor"
	"github.com/hyperrixel/logos/pkg/log"
)

// ErrSubscriptionOverflow cancels a subscriber whose queue filled up.
// The client resynchronizes by subscribing again from its cursor.
var ErrSubscriptionOverflow = errors.New("subscription overflow")

// Sink is implemented by transports to receive ordered deliveries.
type Sink interface {
	Send(Delivery) error
	Context() context.Context
	Flush() error
}

// Delivery is one committed entry handed to a subscriber.
type Delivery struct {
	Seq   uint64
	Entry *entry.Entry
}

// Cursor returns the resume cursor a client should hold after this
// delivery.
func (d Delivery) Cursor() cursor.Cursor { return cursor.FromSeq(d.Seq) }

// defaultQueueLen bounds each subscriber's live buffer.
const defaultQueueLen = 256

// backfillBatch limits one backfill read pass.
const backfillBatch = 256

// Options wires a router. Log and Engine are required.
type Options struct {
	Log      *commitlog.Log
	Engine   *access.Engine
	Presence *access.Presence
	Metrics  *metrics.Metrics
	Logger   log.Logger
	// QueueLen overrides the per-subscriber live buffer length.
	QueueLen int
}

// Router delivers committed entries to live subscriptions. Principal
// existence is the transport's concern: an unknown principal simply
// never passes the delivery-time read check.
type Router struct {
	log      *commitlog.Log
	eng      *access.Engine
	pres     *access.Presence
	met      *metrics.Metrics
	logger   log.Logger
	queueLen int

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	nextSeq uint64
	pending map[uint64]*entry.Entry
}

// New builds a router over the log's current position.
func New(opts Options) *Router {
	r := &Router{
		log:      opts.Log,
		eng:      opts.Engine,
		pres:     opts.Presence,
		met:      opts.Metrics,
		logger:   opts.Logger,
		queueLen: opts.QueueLen,
		subs:     make(map[uint64]*Subscription),
		nextSeq:  opts.Log.LastSeq() + 1,
		pending:  make(map[uint64]*entry.Entry),
	}
	if r.met == nil {
		r.met = metrics.NewMetrics()
	}
	if r.logger == nil {
		r.logger = log.NewLogger()
	}
	r.logger = r.logger.With(log.Component("router"))
	if r.queueLen <= 0 {
		r.queueLen = defaultQueueLen
	}
	return r
}

// Subscribe registers a live subscription for the principal, resuming
// after the supplied cursor (zero cursor = from the beginning, or from
// the filter's FromMs anchor when set). The subscription starts
// buffering matching commits immediately; call Serve to stream.
func (r *Router) Subscribe(ctx context.Context, principalID string, f Filter, from cursor.Cursor) (*Subscription, error) {
	cf, err := compileFilter(f)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{
		Principal: principalID,
		router:    r,
		ctx:       ctx,
		filter:    cf,
		queue:     make(chan Delivery, r.queueLen),
		cursor:    from.Seq(),
	}
	r.mu.Lock()
	r.nextID++
	sub.ID = r.nextID
	r.subs[sub.ID] = sub
	r.mu.Unlock()

	if r.pres != nil {
		r.pres.Attach(principalID)
	}
	r.met.IncActiveSubscriptions()
	r.logger.Debug("subscribed",
		log.Uint64("sub", sub.ID),
		log.Str("principal", principalID),
		log.Uint64("cursor", sub.cursor))
	return sub, nil
}

// Unsubscribe removes a subscription. Nothing committed after the call
// is enqueued; entries already queued still flush through Serve.
// Idempotent.
func (r *Router) Unsubscribe(id uint64) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
		close(sub.queue)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if r.pres != nil {
		r.pres.Detach(sub.Principal)
	}
	r.met.DecActiveSubscriptions()
	r.logger.Debug("unsubscribed", log.Uint64("sub", id))
}

// Dispatch accepts one committed entry from the pipeline. Calls may
// arrive out of order when submissions race; the router holds early
// arrivals until the gap fills, which the gap-free sequence guarantees
// will happen, and fans out strictly in commit order.
func (r *Router) Dispatch(seq uint64, e *entry.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq < r.nextSeq {
		return
	}
	r.pending[seq] = e
	for {
		next, ok := r.pending[r.nextSeq]
		if !ok {
			return
		}
		delete(r.pending, r.nextSeq)
		r.fanoutLocked(r.nextSeq, next)
		r.nextSeq++
	}
}

// fanoutLocked offers one entry to every subscription. Caller holds
// r.mu, so enqueue order equals commit order for every subscriber. The
// enqueue never blocks: a full queue cancels that subscriber instead.
func (r *Router) fanoutLocked(seq uint64, e *entry.Entry) {
	for id, sub := range r.subs {
		if !sub.filter.Match(e) {
			continue
		}
		if !r.eng.Authorize(sub.Principal, access.ActionRead, e.Tags).Allowed {
			continue
		}
		select {
		case sub.queue <- Delivery{Seq: seq, Entry: e}:
		default:
			delete(r.subs, id)
			sub.err = ErrSubscriptionOverflow
			close(sub.queue)
			r.met.IncOverflows()
			r.met.DecActiveSubscriptions()
			if r.pres != nil {
				r.pres.Detach(sub.Principal)
			}
			r.logger.Warn("subscriber overflow",
				log.Uint64("sub", id),
				log.Str("principal", sub.Principal),
				log.Uint64("seq", seq))
		}
	}
}

// active reports the number of live subscriptions.
func (r *Router) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
