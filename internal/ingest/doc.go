// Package ingest runs each submission through the ordering pipeline:
// validate the draft against the entry model, authorize the author's
// write (plus link, attach, new-tag and revision gates), then commit
// through the log's single gate. The terminal outcome is a Receipt.
//
// Validation and authorization run concurrently across submissions;
// only the commit gate serializes. Producer timestamps never influence
// order — the commit sequence is the only authority.
//
// Link and revision targets must be committed and readable by the
// author. A missing target and an unreadable one raise the same
// ErrDanglingLink, so a writer cannot probe for entries outside their
// clearance.
package ingest
