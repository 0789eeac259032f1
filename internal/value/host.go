package value

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// int64 bounds as exact float64 values. 2^63 itself is not representable as
// an int64, so the upper bound is exclusive.
const (
	minInt64Float = -9223372036854775808.0
	maxInt64Float = 9223372036854775808.0
)

// FromHost converts an arbitrary Go value into a Value. It never fails.
//
// Numbers become Integer when they are whole and fit in int64, Float
// otherwise. Byte slices become Blob. time.Time becomes Float milliseconds
// since the Unix epoch. Slices, arrays, maps and structs have no native column
// type and become Text holding their JSON encoding.
func FromHost(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case bool:
		return Boolean(val)
	case int:
		return Integer(val)
	case int8:
		return Integer(val)
	case int16:
		return Integer(val)
	case int32:
		return Integer(val)
	case int64:
		return Integer(val)
	case uint:
		return fromUint64(uint64(val))
	case uint8:
		return Integer(val)
	case uint16:
		return Integer(val)
	case uint32:
		return Integer(val)
	case uint64:
		return fromUint64(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		return fromJSONNumber(val)
	case string:
		return Text(val)
	case []byte:
		if val == nil {
			return Null{}
		}
		return Blob(bytes.Clone(val))
	case json.RawMessage:
		return Text(string(val))
	case time.Time:
		return Float(timestampMillis(val))
	case *time.Time:
		if val == nil {
			return Null{}
		}
		return Float(timestampMillis(*val))
	case driver.Valuer:
		return fromValuer(val)
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromUint64(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Integer(int64(u))
}

func fromFloat(f float64) Value {
	if isWhole(f) {
		return Integer(int64(f))
	}
	return Float(f)
}

// isWhole reports whether f has no fractional part and fits in int64.
func isWhole(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == math.Trunc(f) && f >= minInt64Float && f < maxInt64Float
}

func fromJSONNumber(n json.Number) Value {
	if i, err := n.Int64(); err == nil {
		return Integer(i)
	}
	f, err := n.Float64()
	if err != nil {
		// Out-of-range literals still parse to ±Inf; anything else was never
		// a number and is kept verbatim.
		if math.IsInf(f, 0) {
			return Float(f)
		}
		return Text(n.String())
	}
	return fromFloat(f)
}

func fromValuer(val driver.Valuer) Value {
	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Null{}
	}
	dv, err := val.Value()
	if err != nil {
		return Text(fmt.Sprint(val))
	}
	if inner, ok := dv.(driver.Valuer); ok && reflect.TypeOf(inner) == reflect.TypeOf(val) {
		return Text(fmt.Sprint(dv))
	}
	return FromHost(dv)
}

// timestampMillis matches the numeric value of a JavaScript Date.
func timestampMillis(t time.Time) float64 {
	return float64(t.UnixMilli()) + float64(t.Nanosecond()%int(time.Millisecond))/1e6
}

// fromReflect handles named scalar types (type Celsius float64) and composites.
func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Invalid:
		return Null{}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}
		}
		return FromHost(rv.Elem().Interface())
	case reflect.Bool:
		return Boolean(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fromUint64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float())
	case reflect.String:
		return Text(rv.String())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.IsNil() {
				return Null{}
			}
			return Blob(bytes.Clone(rv.Bytes()))
		}
	}
	return Text(encodeComposite(rv.Interface()))
}

// encodeComposite renders v as compact JSON with HTML escaping disabled.
// encoding/json sorts map keys and keeps slice and struct field order, which
// makes the text deterministic for identical inputs.
func encodeComposite(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSuffix(buf.String(), "\n")
}
