package entry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Attribute is one typed key/value pair on an entry. Value holds the
// canonical Go form for its Type (see RegisterType).
type Attribute struct {
	Key   string
	Type  string
	Value interface{}
}

// ErrUnknownType reports an attribute type outside the registered set.
var ErrUnknownType = errors.New("unknown attribute type")

// TypeFunc validates a raw value for one attribute type and returns its
// canonical form. Raw values arrive in whatever shape the wire decoder
// produced (JSON numbers as float64, CBOR integers as uint64/int64, ...).
type TypeFunc func(v interface{}) (interface{}, error)

var typeRegistry = struct {
	sync.RWMutex
	m map[string]TypeFunc
}{m: map[string]TypeFunc{}}

// RegisterType adds or replaces an attribute type. Safe for concurrent use;
// typically called from init or during startup wiring.
func RegisterType(name string, fn TypeFunc) {
	if name == "" || fn == nil {
		panic("entry: RegisterType with empty name or nil func")
	}
	typeRegistry.Lock()
	defer typeRegistry.Unlock()
	typeRegistry.m[name] = fn
}

// CanonicalValue validates v against the named type and returns the
// canonical form. Unknown types yield an error wrapping ErrUnknownType.
func CanonicalValue(typ string, v interface{}) (interface{}, error) {
	typeRegistry.RLock()
	fn, ok := typeRegistry.m[typ]
	typeRegistry.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, typ)
	}
	return fn(v)
}

// Types returns the registered type names, sorted.
func Types() []string {
	typeRegistry.RLock()
	defer typeRegistry.RUnlock()
	names := make([]string, 0, len(typeRegistry.m))
	for name := range typeRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterType("string", func(v interface{}) (interface{}, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("string attribute holds %T", v)
		}
		return s, nil
	})
	RegisterType("int", canonicalInt)
	RegisterType("float", func(v interface{}) (interface{}, error) {
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case uint64:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("float attribute holds %T", v)
		}
	})
	RegisterType("bool", func(v interface{}) (interface{}, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("bool attribute holds %T", v)
		}
		return b, nil
	})
	RegisterType("time", canonicalTime)
}

// canonicalInt folds the integer shapes decoders produce into int64.
// Floats are accepted only when integral (JSON has no integer type).
func canonicalInt(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		if n > 1<<63-1 {
			return nil, fmt.Errorf("int attribute overflows int64: %d", n)
		}
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("int attribute holds non-integral %v", n)
		}
		return int64(n), nil
	default:
		return nil, fmt.Errorf("int attribute holds %T", v)
	}
}

// canonicalTime folds timestamps into milliseconds since the Unix epoch.
// Numeric values are taken as ms; strings are parsed as RFC 3339 for human
// clients.
func canonicalTime(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("time attribute: %v", err)
		}
		return parsed.UnixMilli(), nil
	default:
		ms, err := canonicalInt(v)
		if err != nil {
			return nil, fmt.Errorf("time attribute holds %T", v)
		}
		return ms, nil
	}
}

// Convenience constructors for the built-in attribute types.

func Str(key, value string) Attribute {
	return Attribute{Key: key, Type: "string", Value: value}
}

func Int(key string, value int64) Attribute {
	return Attribute{Key: key, Type: "int", Value: value}
}

func Float(key string, value float64) Attribute {
	return Attribute{Key: key, Type: "float", Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Type: "bool", Value: value}
}

func Time(key string, ms int64) Attribute {
	return Attribute{Key: key, Type: "time", Value: ms}
}
