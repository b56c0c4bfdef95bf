package wire

import (
	"encoding/json"
	"fmt"

	"github.com/hyperrixel/logos/internal/entry"
)

func init() {
	Register(jsonCodec{})
}

// jsonCodec speaks the canonical envelope as JSON. Unknown top-level fields
// are ignored for forward compatibility.
type jsonCodec struct{}

func (jsonCodec) Name() string        { return "json" }
func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Encode(e *entry.Entry) ([]byte, error) {
	return json.Marshal(FromEntry(e))
}

func (jsonCodec) Decode(data []byte) (*entry.Entry, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return env.ToEntry()
}
