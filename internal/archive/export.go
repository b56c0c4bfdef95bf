package archive

import (
	"io"

	"github.com/hyperrixel/logos/internal/commitlog"
)

// exportBatch limits one range read pass during export.
const exportBatch = 256

// ExportOptions selects the extract. Zero values mean the whole log;
// FromMs anchors the start at the first commit at or after that time
// and applies only when FromSeq is zero.
type ExportOptions struct {
	FromSeq uint64
	ToSeq   uint64
	FromMs  int64
}

// Export streams a log extract into w as one archive. Records go out
// byte-identical to their stored form. The summary reports what was
// written; on error the stream is unusable and should be discarded.
func Export(w io.Writer, log *commitlog.Log, opts ExportOptions) (Summary, error) {
	aw, err := NewWriter(w)
	if err != nil {
		return Summary{}, err
	}
	defer aw.Close()

	start := opts.FromSeq
	if start == 0 {
		start = 1
		if opts.FromMs > 0 {
			start = log.StartSeqAtTime(opts.FromMs)
		}
	}
	for start != 0 {
		items, next := log.ReadRange(commitlog.ReadOptions{
			FromSeq: start,
			ToSeq:   opts.ToSeq,
			Limit:   exportBatch,
		})
		for _, it := range items {
			rec := commitlog.EncodeRecord(commitlog.EncodeHeader(it.CommittedAtMs), it.Payload)
			if err := aw.Append(it.Seq, rec); err != nil {
				return aw.summary, err
			}
		}
		start = next
	}
	return aw.Close()
}
