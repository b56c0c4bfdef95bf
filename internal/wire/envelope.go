package wire

import (
	"fmt"

	"github.com/hyperrixel/logos/internal/entry"
)

// Version is the wire schema version this gateway speaks.
const Version = 1

// Envelope is the canonical, format-agnostic payload shape shared by all
// codecs.
type Envelope struct {
	V           int          `json:"v,omitempty" cbor:"v,omitempty"`
	ID          uint64       `json:"id,omitempty" cbor:"id,omitempty"`
	Author      string       `json:"author" cbor:"author"`
	CreatedAt   int64        `json:"createdAt" cbor:"createdAt"`
	CommitAt    int64        `json:"commitAt,omitempty" cbor:"commitAt,omitempty"`
	Tags        []string     `json:"tags,omitempty" cbor:"tags,omitempty"`
	Attributes  []Attribute  `json:"attributes,omitempty" cbor:"attributes,omitempty"`
	Links       []uint64     `json:"links,omitempty" cbor:"links,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" cbor:"attachments,omitempty"`
	RevisionOf  uint64       `json:"revisionOf,omitempty" cbor:"revisionOf,omitempty"`
}

// Attribute is the envelope form of one typed key/value pair.
type Attribute struct {
	Key   string      `json:"key" cbor:"key"`
	Value interface{} `json:"value" cbor:"value"`
	Type  string      `json:"type" cbor:"type"`
}

// Attachment is the envelope form of an attachment reference.
type Attachment struct {
	BlobID      string `json:"blobId" cbor:"blobId"`
	ContentType string `json:"contentType,omitempty" cbor:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty" cbor:"size,omitempty"`
}

// FromEntry maps an entry onto the canonical envelope.
func FromEntry(e *entry.Entry) Envelope {
	env := Envelope{
		V:          Version,
		ID:         e.Seq,
		Author:     e.Author,
		CreatedAt:  e.CreatedAtMs,
		CommitAt:   e.CommittedAtMs,
		Tags:       e.Tags,
		Links:      e.Links,
		RevisionOf: e.RevisionOf,
	}
	if len(e.Attributes) > 0 {
		env.Attributes = make([]Attribute, len(e.Attributes))
		for i, a := range e.Attributes {
			env.Attributes[i] = Attribute{Key: a.Key, Value: a.Value, Type: a.Type}
		}
	}
	if len(e.Attachments) > 0 {
		env.Attachments = make([]Attachment, len(e.Attachments))
		for i, att := range e.Attachments {
			env.Attachments[i] = Attachment{
				BlobID:      att.BlobID,
				ContentType: att.ContentType,
				Size:        att.Size,
			}
		}
	}
	return env
}

// ToEntry maps a decoded envelope back to an entry, canonicalizing
// attribute values. It checks the schema version and the attribute type
// set; structural validation beyond that belongs to the ingest pipeline.
func (env Envelope) ToEntry() (*entry.Entry, error) {
	switch env.V {
	case 0, Version:
		// absent version reads as current
	default:
		return nil, fmt.Errorf("%w: payload declares v%d, gateway speaks v%d",
			ErrSchemaVersionMismatch, env.V, Version)
	}
	e := &entry.Entry{
		Seq:           env.ID,
		Author:        env.Author,
		CreatedAtMs:   env.CreatedAt,
		CommittedAtMs: env.CommitAt,
		Tags:          env.Tags,
		Links:         env.Links,
		RevisionOf:    env.RevisionOf,
	}
	if len(env.Attributes) > 0 {
		e.Attributes = make([]entry.Attribute, len(env.Attributes))
		for i, a := range env.Attributes {
			value, err := entry.CanonicalValue(a.Type, a.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: attribute %q: %v", ErrUnsupportedField, a.Key, err)
			}
			e.Attributes[i] = entry.Attribute{Key: a.Key, Type: a.Type, Value: value}
		}
	}
	if len(env.Attachments) > 0 {
		e.Attachments = make([]entry.Attachment, len(env.Attachments))
		for i, att := range env.Attachments {
			e.Attachments[i] = entry.Attachment{
				BlobID:      att.BlobID,
				ContentType: att.ContentType,
				Size:        att.Size,
			}
		}
	}
	return e, nil
}
