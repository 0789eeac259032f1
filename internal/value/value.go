package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the active variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
	KindBoolean
)

// String returns the lower-case variant name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a sealed interface over every scalar the engine can bind or return.
// Only Null, Integer, Float, Text, Blob, and Boolean implement it.
type Value interface {
	Kind() Kind
	sealed()
}

// Null is the absent value.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) sealed()    {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Integer is a 64-bit signed integer.
type Integer int64

func (Integer) Kind() Kind { return KindInteger }
func (Integer) sealed()    {}

// Float is a 64-bit IEEE float.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) sealed()    {}

// MarshalJSON implements json.Marshaler for Float.
// JSON has no encoding for NaN or infinities, so those marshal as null.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// Text is a UTF-8 string.
type Text string

func (Text) Kind() Kind { return KindText }
func (Text) sealed()    {}

// Blob is an opaque byte sequence.
type Blob []byte

func (Blob) Kind() Kind { return KindBlob }
func (Blob) sealed()    {}

// MarshalJSON implements json.Marshaler for Blob.
// JSON has no binary type; blobs are emitted as standard base64 text.
func (b Blob) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b))
}

// Boolean is a truth value. The engine stores it as 0 or 1.
type Boolean bool

func (Boolean) Kind() Kind { return KindBoolean }
func (Boolean) sealed()    {}

// Interface returns the plain Go representation of v:
// nil, int64, float64, string, []byte or bool.
func Interface(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Integer:
		return int64(val)
	case Float:
		return float64(val)
	case Text:
		return string(val)
	case Blob:
		return []byte(val)
	case Boolean:
		return bool(val)
	default:
		return nil
	}
}

// Equal reports whether a and b hold the same variant and payload.
// Floats compare by bit pattern so NaN equals NaN.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Integer:
		return av == b.(Integer)
	case Float:
		return math.Float64bits(float64(av)) == math.Float64bits(float64(b.(Float)))
	case Text:
		return av == b.(Text)
	case Blob:
		return string(av) == string(b.(Blob))
	case Boolean:
		return av == b.(Boolean)
	default:
		return false
	}
}

// String renders v for human-facing output such as CLI tables.
func String(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "NULL"
	case Integer:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Text:
		return string(val)
	case Blob:
		return base64.StdEncoding.EncodeToString(val)
	case Boolean:
		return strconv.FormatBool(bool(val))
	default:
		return fmt.Sprintf("%v", v)
	}
}
