package wire

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperrixel/logos/internal/entry"
)

// Codec converts between entries and one payload format.
type Codec interface {
	// Name is the format hint clients use, e.g. "json".
	Name() string
	// ContentType is the MIME type transports negotiate with.
	ContentType() string
	Encode(e *entry.Entry) ([]byte, error)
	Decode(data []byte) (*entry.Entry, error)
}

var codecs = struct {
	sync.RWMutex
	byName        map[string]Codec
	byContentType map[string]Codec
}{
	byName:        map[string]Codec{},
	byContentType: map[string]Codec{},
}

// Register adds a codec under its name and content type, replacing any
// previous registration.
func Register(c Codec) {
	codecs.Lock()
	defer codecs.Unlock()
	codecs.byName[c.Name()] = c
	codecs.byContentType[c.ContentType()] = c
}

// Lookup resolves a format hint. The empty hint resolves to json.
func Lookup(name string) (Codec, error) {
	if name == "" {
		name = "json"
	}
	codecs.RLock()
	defer codecs.RUnlock()
	c, ok := codecs.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, name)
	}
	return c, nil
}

// LookupContentType resolves a MIME content type, ignoring parameters such
// as charset. The empty type resolves to json.
func LookupContentType(contentType string) (Codec, error) {
	ct := strings.TrimSpace(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		ct = "application/json"
	}
	codecs.RLock()
	defer codecs.RUnlock()
	c, ok := codecs.byContentType[strings.ToLower(ct)]
	if !ok {
		return nil, fmt.Errorf("%w: content type %q", ErrUnknownFormat, contentType)
	}
	return c, nil
}

// Names returns the registered format hints, sorted.
func Names() []string {
	codecs.RLock()
	defer codecs.RUnlock()
	names := make([]string, 0, len(codecs.byName))
	for name := range codecs.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
