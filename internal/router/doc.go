// Package router fans committed entries out to live subscriptions in
// commit order.
//
// The ingest pipeline calls Dispatch once per committed entry; the
// router restores commit order across racing pipeline goroutines, then
// offers the entry to every subscription whose filter matches and whose
// principal may read it at that moment. Denied entries are skipped
// silently.
//
// Each subscription owns a bounded queue drained by Serve into a
// transport Sink. A subscriber that cannot keep up overflows its queue
// and is cancelled with ErrSubscriptionOverflow; it resynchronizes by
// subscribing again from its cursor. Entries are shared across
// subscribers and must be treated as read-only.
package router
