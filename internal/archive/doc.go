// Package archive exports commit-log extracts for post-mission analysis.
//
// An archive is a zstd-compressed stream of length-prefixed commit-log
// records: the canonical CBOR payloads with their commit stamps and
// checksums, byte-identical to the store. Export produces one from a
// live log; Reader and Verify consume one offline, checking every
// record on the way through.
package archive
