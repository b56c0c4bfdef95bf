// Package entry defines the canonical log record and its construction
// rules.
//
// # Model
//
// An Entry is authored by a principal, carries an open set of tags, an
// ordered list of typed attributes, optional links to earlier entries and
// optional attachment references. The commit sequence (Seq) and commit
// timestamp are assigned exactly once by the ingest pipeline; author and
// creation timestamp are fixed at construction. Edits never mutate a
// committed entry: Revise produces a new entry whose RevisionOf points at
// the prior one, so history is preserved for audit and analysis.
//
// # Attribute types
//
// Attribute values are validated against a pluggable set of named types.
// The built-ins are string, int, float, bool and time (milliseconds since
// the Unix epoch). RegisterType extends the set without touching the core
// entity, which keeps the vocabulary open for new producer kinds.
//
// The package is transport-free; the wire package maps entries to and from
// payload formats.
package entry
