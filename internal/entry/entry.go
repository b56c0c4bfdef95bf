package entry

import (
	"errors"
	"fmt"
	"strings"
)

// Attachment references externally stored content by opaque blob id.
type Attachment struct {
	BlobID      string
	ContentType string
	Size        int64
}

// Entry is the canonical log record. Seq and CommittedAtMs are zero until
// the ingest pipeline stamps them; after that they never change.
type Entry struct {
	Seq           uint64
	Author        string
	CreatedAtMs   int64
	CommittedAtMs int64
	Tags          []string
	Attributes    []Attribute
	Links         []uint64
	Attachments   []Attachment
	RevisionOf    uint64
}

// Draft carries the producer-supplied fields of an entry.
type Draft struct {
	Author      string
	CreatedAtMs int64
	Tags        []string
	Attributes  []Attribute
	Links       []uint64
	Attachments []Attachment
	RevisionOf  uint64
}

// ErrAlreadyCommitted reports a second commit stamp on the same entry.
var ErrAlreadyCommitted = errors.New("entry already committed")

// New validates a draft and constructs an uncommitted entry. It rejects
// empty authors, absent creation timestamps, empty tags or tag segments,
// empty or duplicate attribute keys, unregisterable attribute values,
// zero link targets and attachments without a blob id. Attribute values
// are stored in canonical form.
func New(d Draft) (*Entry, error) {
	if d.Author == "" {
		return nil, errors.New("entry author is required")
	}
	if d.CreatedAtMs <= 0 {
		return nil, errors.New("entry creation timestamp is required")
	}
	tags := make([]string, 0, len(d.Tags))
	seenTags := make(map[string]struct{}, len(d.Tags))
	for _, tag := range d.Tags {
		if err := checkTag(tag); err != nil {
			return nil, err
		}
		if _, dup := seenTags[tag]; dup {
			return nil, fmt.Errorf("duplicate tag %q", tag)
		}
		seenTags[tag] = struct{}{}
		tags = append(tags, tag)
	}
	attrs := make([]Attribute, 0, len(d.Attributes))
	seen := make(map[string]struct{}, len(d.Attributes))
	for _, a := range d.Attributes {
		if a.Key == "" {
			return nil, errors.New("attribute key is required")
		}
		if _, dup := seen[a.Key]; dup {
			return nil, fmt.Errorf("duplicate attribute key %q", a.Key)
		}
		seen[a.Key] = struct{}{}
		value, err := CanonicalValue(a.Type, a.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Key, err)
		}
		attrs = append(attrs, Attribute{Key: a.Key, Type: a.Type, Value: value})
	}
	links := make([]uint64, 0, len(d.Links))
	for _, l := range d.Links {
		if l == 0 {
			return nil, errors.New("link target must be a committed identifier")
		}
		links = append(links, l)
	}
	atts := make([]Attachment, 0, len(d.Attachments))
	for _, att := range d.Attachments {
		if att.BlobID == "" {
			return nil, errors.New("attachment blob id is required")
		}
		if att.Size < 0 {
			return nil, fmt.Errorf("attachment %q has negative size", att.BlobID)
		}
		atts = append(atts, att)
	}
	return &Entry{
		Author:      d.Author,
		CreatedAtMs: d.CreatedAtMs,
		Tags:        tags,
		Attributes:  attrs,
		Links:       links,
		Attachments: atts,
		RevisionOf:  d.RevisionOf,
	}, nil
}

// checkTag rejects empty tags and empty hierarchy segments ("a//b").
func checkTag(tag string) error {
	if tag == "" {
		return errors.New("empty tag")
	}
	for _, seg := range strings.Split(tag, "/") {
		if seg == "" {
			return fmt.Errorf("tag %q has an empty segment", tag)
		}
	}
	return nil
}

// Commit stamps the identifier and commit timestamp. The ingest pipeline
// calls it exactly once inside the commit gate; a second stamp is a
// programming error surfaced as ErrAlreadyCommitted.
func (e *Entry) Commit(seq uint64, committedAtMs int64) error {
	if e.Seq != 0 || e.CommittedAtMs != 0 {
		return ErrAlreadyCommitted
	}
	if seq == 0 || committedAtMs <= 0 {
		return errors.New("commit stamp requires a sequence and timestamp")
	}
	e.Seq = seq
	e.CommittedAtMs = committedAtMs
	return nil
}

// Committed reports whether the entry holds a commit stamp.
func (e *Entry) Committed() bool { return e.Seq != 0 }

// Equal reports whether two entries denote the same committed record.
// Uncommitted entries are equal only to themselves.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Seq == 0 || other.Seq == 0 {
		return e == other
	}
	return e.Seq == other.Seq
}

// Compare orders entries by commit timestamp, then identifier, reporting
// -1, 0 or 1. Uncommitted entries carry zero stamps and so sort before
// every committed entry.
func (e *Entry) Compare(other *Entry) int {
	switch {
	case e.CommittedAtMs < other.CommittedAtMs:
		return -1
	case e.CommittedAtMs > other.CommittedAtMs:
		return 1
	}
	switch {
	case e.Seq < other.Seq:
		return -1
	case e.Seq > other.Seq:
		return 1
	}
	return 0
}

// HasTag reports whether the entry carries the exact tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Tags = append([]string(nil), e.Tags...)
	out.Attributes = append([]Attribute(nil), e.Attributes...)
	out.Links = append([]uint64(nil), e.Links...)
	out.Attachments = append([]Attachment(nil), e.Attachments...)
	return &out
}

// Draft returns the producer-supplied fields, without the commit stamp.
// Useful for re-validating a decoded payload before ingest.
func (e *Entry) Draft() Draft {
	return Draft{
		Author:      e.Author,
		CreatedAtMs: e.CreatedAtMs,
		Tags:        append([]string(nil), e.Tags...),
		Attributes:  append([]Attribute(nil), e.Attributes...),
		Links:       append([]uint64(nil), e.Links...),
		Attachments: append([]Attachment(nil), e.Attachments...),
		RevisionOf:  e.RevisionOf,
	}
}

// Revise builds a new uncommitted entry that supersedes e. The revision
// carries its own author and content; RevisionOf points at e, so the chain
// back to the original stays intact. e must already be committed.
func (e *Entry) Revise(d Draft) (*Entry, error) {
	if !e.Committed() {
		return nil, errors.New("cannot revise an uncommitted entry")
	}
	d.RevisionOf = e.Seq
	return New(d)
}
