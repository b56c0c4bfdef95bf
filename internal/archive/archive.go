package archive

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/hyperrixel/logos/internal/commitlog"
)

// Stream layout, inside one zstd frame:
//
//	magic "LOGOSAR1" | records...
//	record: uvarint seq | uvarint recordLen | commit-log record bytes
//
// The record bytes are exactly what the commit log stores: framed header,
// canonical CBOR payload and trailing crc32c. Archives therefore carry
// the same integrity check as the store itself.

// magic identifies an archive stream. The trailing digit is the layout
// version.
const magic = "LOGOSAR1"

var (
	// ErrBadMagic reports a stream that is not a logos archive, or one
	// written by a newer layout.
	ErrBadMagic = errors.New("not a logos archive")

	// ErrTruncated reports a stream that ends mid-record.
	ErrTruncated = errors.New("archive truncated")

	// ErrCorrupt reports a record whose checksum does not match.
	ErrCorrupt = errors.New("archive record corrupt")
)

// Summary describes an archive's contents.
type Summary struct {
	Entries  int    `json:"entries"`
	FirstSeq uint64 `json:"firstSeq,omitempty"`
	LastSeq  uint64 `json:"lastSeq,omitempty"`
}

// Record is one archived entry: the commit stamp and the canonical CBOR
// payload, exactly as stored.
type Record struct {
	Seq           uint64
	CommittedAtMs int64
	Payload       []byte
}

// Writer produces an archive stream. Appends must be in ascending seq
// order, matching the commit order of any log extract. Close finishes
// the zstd frame; the underlying writer is not closed.
type Writer struct {
	zw      *zstd.Encoder
	bw      *bufio.Writer
	summary Summary
	closed  bool
}

// NewWriter starts an archive stream on w.
func NewWriter(w io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("archive: zstd writer: %w", err)
	}
	bw := bufio.NewWriter(zw)
	if _, err := bw.WriteString(magic); err != nil {
		return nil, err
	}
	return &Writer{zw: zw, bw: bw}, nil
}

// Append writes one commit-log record under its seq.
func (w *Writer) Append(seq uint64, record []byte) error {
	if w.closed {
		return errors.New("archive: writer closed")
	}
	if seq == 0 {
		return errors.New("archive: zero seq")
	}
	if seq <= w.summary.LastSeq {
		return fmt.Errorf("archive: seq %d not ascending after %d", seq, w.summary.LastSeq)
	}
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], seq)
	if _, err := w.bw.Write(tmp[:n]); err != nil {
		return err
	}
	n = binary.PutUvarint(tmp[:], uint64(len(record)))
	if _, err := w.bw.Write(tmp[:n]); err != nil {
		return err
	}
	if _, err := w.bw.Write(record); err != nil {
		return err
	}
	if w.summary.FirstSeq == 0 {
		w.summary.FirstSeq = seq
	}
	w.summary.LastSeq = seq
	w.summary.Entries++
	return nil
}

// Close flushes buffered records and finishes the zstd frame. The
// summary covers everything appended.
func (w *Writer) Close() (Summary, error) {
	if w.closed {
		return w.summary, nil
	}
	w.closed = true
	if err := w.bw.Flush(); err != nil {
		return w.summary, err
	}
	if err := w.zw.Close(); err != nil {
		return w.summary, fmt.Errorf("archive: close zstd frame: %w", err)
	}
	return w.summary, nil
}

// Reader iterates an archive stream.
type Reader struct {
	zr *zstd.Decoder
	br *bufio.Reader
}

// NewReader opens an archive stream and checks the magic.
func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: zstd reader: %w", err)
	}
	br := bufio.NewReader(zr)
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil {
		zr.Close()
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if string(head) != magic {
		zr.Close()
		return nil, fmt.Errorf("%w: header %q", ErrBadMagic, head)
	}
	return &Reader{zr: zr, br: br}, nil
}

// Next returns the following record, verifying its checksum. io.EOF
// signals a clean end of the archive.
func (r *Reader) Next() (Record, error) {
	seq, err := binary.ReadUvarint(r.br)
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: seq: %v", ErrTruncated, err)
	}
	recLen, err := binary.ReadUvarint(r.br)
	if err != nil {
		return Record{}, fmt.Errorf("%w: seq %d: %v", ErrTruncated, seq, err)
	}
	raw := make([]byte, recLen)
	if _, err := io.ReadFull(r.br, raw); err != nil {
		return Record{}, fmt.Errorf("%w: seq %d: %v", ErrTruncated, seq, err)
	}
	dec, ok := commitlog.DecodeRecord(raw)
	if !ok {
		return Record{}, fmt.Errorf("%w: seq %d", ErrCorrupt, seq)
	}
	ts, ok := commitlog.HeaderTimestamp(dec.Header)
	if !ok {
		return Record{}, fmt.Errorf("%w: seq %d: short header", ErrCorrupt, seq)
	}
	return Record{Seq: seq, CommittedAtMs: ts, Payload: dec.Payload}, nil
}

// Close releases the decompressor.
func (r *Reader) Close() { r.zr.Close() }

// Verify walks a whole archive, checking every record, and reports what
// it holds.
func Verify(r io.Reader) (Summary, error) {
	ar, err := NewReader(r)
	if err != nil {
		return Summary{}, err
	}
	defer ar.Close()
	var s Summary
	for {
		rec, err := ar.Next()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		if s.FirstSeq == 0 {
			s.FirstSeq = rec.Seq
		}
		s.LastSeq = rec.Seq
		s.Entries++
	}
}
