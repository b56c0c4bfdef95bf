package wire

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/hyperrixel/logos/internal/entry"
)

// encMode is the CBOR encoder configured with Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. The same entry always produces identical bytes,
// which is what lets the commit log store payloads verbatim.
var encMode cbor.EncMode

// decMode accepts standard CBOR. Unknown fields are silently ignored for
// forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// Attribute values decode into interface{} targets; the CBOR
		// default map type for those is map[interface{}]interface{},
		// which the attribute type registry and encoding/json cannot
		// work with. Envelope map keys are always strings.
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}

	Register(cborCodec{})
}

// cborCodec speaks the canonical envelope as deterministic CBOR, the
// compact format for bandwidth-constrained producers.
type cborCodec struct{}

func (cborCodec) Name() string        { return "cbor" }
func (cborCodec) ContentType() string { return "application/cbor" }

func (cborCodec) Encode(e *entry.Entry) ([]byte, error) {
	return encMode.Marshal(FromEntry(e))
}

func (cborCodec) Decode(data []byte) (*entry.Entry, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return env.ToEntry()
}

// EncodeStored renders the at-rest form of an entry: the canonical CBOR
// envelope. The commit log persists exactly these bytes.
func EncodeStored(e *entry.Entry) ([]byte, error) {
	return cborCodec{}.Encode(e)
}

// DecodeStored parses the at-rest form written by EncodeStored.
func DecodeStored(data []byte) (*entry.Entry, error) {
	return cborCodec{}.Decode(data)
}
