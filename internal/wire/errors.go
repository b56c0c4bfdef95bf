package wire

import "errors"

var (
	// ErrMalformedPayload reports structurally invalid input.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupportedField reports an attribute outside the extensible
	// schema's registered types, or a value of the wrong shape.
	ErrUnsupportedField = errors.New("unsupported field")
	// ErrSchemaVersionMismatch reports a payload version the gateway
	// cannot map.
	ErrSchemaVersionMismatch = errors.New("schema version mismatch")
	// ErrUnknownFormat reports a format hint with no registered codec.
	ErrUnknownFormat = errors.New("unknown wire format")
)
