package value

import (
	"database/sql"
	"reflect"
	"slices"
	"strings"
)

// Sigils accepted in front of a named parameter.
const (
	SigilDollar = "$"
	SigilColon  = ":"
	SigilAt     = "@"
)

// Bundle is the set of values bound for one statement execution.
// A bundle is either strictly Positional or strictly Named.
type Bundle interface {
	// Args returns the bundle as driver arguments.
	Args() []any
	// Len returns the number of bound values.
	Len() int
	bundle()
}

// Positional binds values by ordinal (?, ?NNN).
type Positional []Value

func (Positional) bundle() {}

// Len returns the number of values.
func (p Positional) Len() int { return len(p) }

// Args returns the engine-native form of every value, in order.
func (p Positional) Args() []any {
	args := make([]any, len(p))
	for i, v := range p {
		args[i] = Encode(v)
	}
	return args
}

// Named binds values by parameter name. Keys always carry a sigil.
type Named map[string]Value

func (Named) bundle() {}

// Len returns the number of values.
func (n Named) Len() int { return len(n) }

// Keys returns the normalized keys in sorted order.
func (n Named) Keys() []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Args returns sql.Named arguments with the sigil stripped. The driver
// resolves the ':', '@' and '$' spellings of a name to the same parameter,
// so the sigil a caller used does not need to match the SQL text.
func (n Named) Args() []any {
	args := make([]any, 0, len(n))
	for _, k := range n.Keys() {
		args = append(args, sql.Named(StripSigil(k), Encode(n[k])))
	}
	return args
}

// NormalizeKey gives a parameter name one of the accepted sigils.
// Unprefixed names get '$'.
func NormalizeKey(key string) string {
	if HasSigil(key) {
		return key
	}
	return SigilDollar + key
}

// HasSigil reports whether key starts with '$', ':' or '@'.
func HasSigil(key string) bool {
	return strings.HasPrefix(key, SigilDollar) ||
		strings.HasPrefix(key, SigilColon) ||
		strings.HasPrefix(key, SigilAt)
}

// StripSigil removes a leading sigil, if present.
func StripSigil(key string) string {
	if HasSigil(key) {
		return key[1:]
	}
	return key
}

// NewNamed builds a Named bundle from host values, normalizing every key.
func NewNamed(m map[string]any) Named {
	named := make(Named, len(m))
	for k, v := range m {
		named[NormalizeKey(k)] = FromHost(v)
	}
	return named
}

// NewPositional builds a Positional bundle from host values.
func NewPositional(vals ...any) Positional {
	pos := make(Positional, len(vals))
	for i, v := range vals {
		pos[i] = FromHost(v)
	}
	return pos
}

// Classify turns a caller-supplied parameter argument into a Bundle.
// It never fails and never looks at the SQL text.
//
//   - nil                        → empty Positional
//   - Bundle                     → unchanged
//   - []byte                     → Positional{Blob}
//   - any other slice or array   → Positional, element by element
//   - map with string keys       → Named, keys normalized
//   - anything else              → Positional with one element
//
// A malformed binding (wrong count, unknown name) is reported by the engine
// when the statement executes.
func Classify(params any) Bundle {
	switch p := params.(type) {
	case nil:
		return Positional{}
	case Bundle:
		return p
	case []byte:
		return Positional{FromHost(p)}
	case []any:
		return NewPositional(p...)
	case []Value:
		return Positional(slices.Clone(p))
	case map[string]any:
		return NewNamed(p)
	case map[string]Value:
		named := make(Named, len(p))
		for k, v := range p {
			named[NormalizeKey(k)] = v
		}
		return named
	case Value:
		return Positional{p}
	}

	rv := reflect.ValueOf(params)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Positional{}
		}
		return Classify(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Positional{FromHost(params)}
		}
		pos := make(Positional, rv.Len())
		for i := range pos {
			pos[i] = FromHost(rv.Index(i).Interface())
		}
		return pos
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		named := make(Named, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			named[NormalizeKey(iter.Key().String())] = FromHost(iter.Value().Interface())
		}
		return named
	}
	return Positional{FromHost(params)}
}

// Encode returns the engine-native representation of v for binding.
// Booleans stay bool; the driver stores them as 0 or 1.
func Encode(v Value) any {
	return Interface(v)
}
