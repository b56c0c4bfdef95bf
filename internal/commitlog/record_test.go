package commitlog

import "testing"

func TestRecordRoundtrip(t *testing.T) {
	header := EncodeHeader(1_700_000_000_000)
	payload := []byte("payload")
	rec := EncodeRecord(header, payload)
	dec, ok := DecodeRecord(rec)
	if !ok {
		t.Fatalf("decode failed")
	}
	ts, ok := HeaderTimestamp(dec.Header)
	if !ok || ts != 1_700_000_000_000 {
		t.Fatalf("header timestamp = %d %v", ts, ok)
	}
	if string(dec.Payload) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestRecordCRCFail(t *testing.T) {
	rec := EncodeRecord(EncodeHeader(1), []byte("y"))
	rec[len(rec)-1] ^= 0xFF // corrupt one byte
	if _, ok := DecodeRecord(rec); ok {
		t.Fatalf("expected crc failure")
	}
}

func TestRecordTruncated(t *testing.T) {
	rec := EncodeRecord(EncodeHeader(1), []byte("payload"))
	for _, cut := range []int{0, 1, 4, len(rec) - 1} {
		if _, ok := DecodeRecord(rec[:cut]); ok {
			t.Fatalf("decode succeeded on %d-byte prefix", cut)
		}
	}
}

func TestHeaderTimestampShort(t *testing.T) {
	if _, ok := HeaderTimestamp([]byte{1, 2, 3}); ok {
		t.Fatalf("short header accepted")
	}
}
