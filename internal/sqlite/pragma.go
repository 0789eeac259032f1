package sqlite

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/sqlbridge/internal/value"
)

// Pragma names are plain identifiers, optionally schema-qualified.
var pragmaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Pragma reads a pragma and returns the first column of every row it
// produces. Most pragmas produce exactly one value; an empty slice means the
// pragma returned nothing.
func (db *DB) Pragma(ctx context.Context, name string) ([]value.Value, error) {
	if !pragmaNameRe.MatchString(name) {
		return nil, invalidUsage("pragma", "invalid pragma name %q", name)
	}
	var out []value.Value
	err := db.do("pragma", func() error {
		var err error
		out, err = db.pragmaLocked(ctx, name)
		return err
	})
	return out, err
}

// SetPragma assigns a pragma and returns its value afterwards. Only Integer
// and Text values are accepted; Text is sent as a string literal.
func (db *DB) SetPragma(ctx context.Context, name string, v value.Value) ([]value.Value, error) {
	if !pragmaNameRe.MatchString(name) {
		return nil, invalidUsage("pragma", "invalid pragma name %q", name)
	}
	var literal string
	switch val := v.(type) {
	case value.Integer:
		literal = strconv.FormatInt(int64(val), 10)
	case value.Text:
		literal = "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	default:
		return nil, invalidUsage("pragma", "Invalid pragma value type")
	}

	var out []value.Value
	err := db.do("pragma", func() error {
		if _, err := db.conn.ExecContext(ctx, "PRAGMA "+name+" = "+literal); err != nil {
			return engineError("pragma", err)
		}
		var err error
		out, err = db.pragmaLocked(ctx, name)
		return err
	})
	return out, err
}

func (db *DB) pragmaLocked(ctx context.Context, name string) ([]value.Value, error) {
	set, err := db.queryLocked(ctx, "PRAGMA "+name, nil)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, 0, len(set.raw))
	for _, r := range set.raw {
		if len(r) > 0 {
			out = append(out, db.decoder.Decode(r[0]))
		}
	}
	return out, nil
}
