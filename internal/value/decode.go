package value

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// MaxSafeInteger is the largest integer a float64 holds exactly (2^53 - 1).
// JSON consumers commonly parse every number as a double, so decoded integers
// beyond this magnitude are downgraded to Float.
const MaxSafeInteger = 1<<53 - 1

// MinSafeInteger is the negative counterpart of MaxSafeInteger.
const MinSafeInteger = -MaxSafeInteger

// TimestampLayout is the text form for a time.Time handed back by the driver.
// Result sets are normally read by storage class, so this only applies to
// statements that cannot be reread that way, such as RETURNING clauses.
const TimestampLayout = "2006-01-02 15:04:05.999999999-07:00"

// IsSafeInteger reports whether i survives a round trip through float64.
func IsSafeInteger(i int64) bool {
	return i >= MinSafeInteger && i <= MaxSafeInteger
}

// Decoder converts engine column values into Values.
type Decoder struct {
	// BlobsAsBase64 decodes BLOB columns as base64 Text, for destinations
	// without a binary type.
	BlobsAsBase64 bool
}

// Decode converts a column value with the default Decoder.
func Decode(col any) Value {
	return Decoder{}.Decode(col)
}

// Decode converts a column value as returned by database/sql into a Value.
// It never fails: non-finite floats become Null, out-of-range integers become
// Float, and invalid UTF-8 in text is replaced with U+FFFD.
func (d Decoder) Decode(col any) Value {
	switch val := col.(type) {
	case nil:
		return Null{}
	case int64:
		if !IsSafeInteger(val) {
			return Float(float64(val))
		}
		return Integer(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return Null{}
		}
		return Float(val)
	case string:
		return Text(sanitizeUTF8(val))
	case []byte:
		if d.BlobsAsBase64 {
			return Text(base64.StdEncoding.EncodeToString(val))
		}
		return Blob(bytes.Clone(val))
	case bool:
		return Boolean(val)
	case time.Time:
		return Text(val.Format(TimestampLayout))
	case Value:
		return val
	default:
		return Text(sanitizeUTF8(fmt.Sprint(val)))
	}
}

// sanitizeUTF8 replaces every invalid UTF-8 sequence with U+FFFD.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := unicode.UTF8.NewDecoder().String(s)
	if err != nil {
		return string(bytes.ToValidUTF8([]byte(s), []byte("�")))
	}
	return out
}
