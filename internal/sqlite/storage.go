package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// The driver rewrites values of columns declared with these types: integers
// and text become time.Time, integers become bool. The rewrite loses the
// stored value, so such result sets are read again through storageQuery.
var convertedDeclTypes = map[string]bool{
	"date":      true,
	"datetime":  true,
	"timestamp": true,
	"boolean":   true,
}

// hasConvertedColumns reports whether any result column carries a declared
// type the driver converts.
func hasConvertedColumns(types []*sql.ColumnType) bool {
	for _, t := range types {
		if convertedDeclTypes[strings.ToLower(t.DatabaseTypeName())] {
			return true
		}
	}
	return false
}

// storageQuery wraps a SELECT, VALUES or WITH statement so that every result
// column is an expression. Expressions have no declared type, so the driver
// hands back each value in its storage class. Unary plus is a no-op on every
// storage class. ok is false for statements that cannot be wrapped.
func storageQuery(query string, ncols int) (string, bool) {
	switch leadingKeyword(query) {
	case "select", "values", "with":
	default:
		return "", false
	}
	body := strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")

	names := make([]string, ncols)
	exprs := make([]string, ncols)
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i)
		exprs[i] = "+" + names[i]
	}
	return fmt.Sprintf("WITH sqlbridge_rows(%s) AS (\n%s\n) SELECT %s FROM sqlbridge_rows",
		strings.Join(names, ", "), body, strings.Join(exprs, ", ")), true
}

// leadingKeyword returns the first keyword of query in lower case, skipping
// whitespace, comments and opening parentheses.
func leadingKeyword(query string) string {
	s := query
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = s[i+4:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				end = len(s)
			}
			return strings.ToLower(s[:end])
		}
	}
}
