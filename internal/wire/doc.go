// Package wire converts between canonical entries and client payload
// formats.
//
// # Canonical envelope
//
// Every format carries the same field set:
//
//	{v, id, author, createdAt, commitAt, tags, attributes:[{key,value,type}],
//	 links, attachments:[{blobId,contentType,size}], revisionOf}
//
// so round-tripping through any format loses no semantic information. Two
// codecs are built in: json for human and web clients, and cbor (RFC 8949
// Core Deterministic Encoding) for bandwidth-constrained sensor links. The
// deterministic CBOR form is also the at-rest representation inside the
// commit log.
//
// # Errors
//
// Decode distinguishes three failure classes: ErrMalformedPayload for
// structurally invalid input, ErrUnsupportedField for attribute types or
// value shapes outside the registered set, and ErrSchemaVersionMismatch for
// payloads declaring a version the gateway cannot map. A payload without a
// version is read as the current version. Encode never fails for a
// well-formed entry.
package wire
