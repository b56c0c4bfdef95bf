package commitlog

import "sort"

// HasTag reports whether the tag has appeared on any committed entry. The
// catalog backs new-tag admission decisions.
func (l *Log) HasTag(tag string) bool {
	l.tagMu.RLock()
	defer l.tagMu.RUnlock()
	_, ok := l.tags[tag]
	return ok
}

// Tags returns the catalog of committed tags, sorted.
func (l *Log) Tags() []string {
	l.tagMu.RLock()
	defer l.tagMu.RUnlock()
	out := make([]string, 0, len(l.tags))
	for tag := range l.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TagFirstSeq returns the sequence that introduced a tag.
func (l *Log) TagFirstSeq(tag string) (uint64, bool) {
	l.tagMu.RLock()
	defer l.tagMu.RUnlock()
	seq, ok := l.tags[tag]
	return seq, ok
}
