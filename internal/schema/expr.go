package schema

import (
	"regexp"
	"strings"
)

var (
	functionCallRe = regexp.MustCompile(`^[a-z_]+\s*\(`)
	parenExprRe    = regexp.MustCompile(`^\(`)
)

// Keywords that are valid DEFAULT values without quoting.
var keywords = []string{
	"CURRENT_TIMESTAMP",
	"CURRENT_DATE",
	"CURRENT_TIME",
	"NULL",
	"TRUE",
	"FALSE",
}

// Expression kinds reported by CheckExpression.
const (
	ExprParenthesized = "parenthesized_expression"
	ExprFunctionCall  = "function_call"
	ExprKeyword       = "keyword"
)

// ExpressionCheck describes whether a DEFAULT value is a SQL expression.
type ExpressionCheck struct {
	IsExpression bool   `json:"is_expression"`
	Kind         string `json:"kind,omitempty"`
}

// IsExpression reports whether value should be emitted unquoted, e.g.
// datetime('now'), CURRENT_TIMESTAMP or (strftime('%s', 'now')).
func IsExpression(value string) bool {
	return CheckExpression(value).IsExpression
}

// CheckExpression classifies value. Function names are matched in lower case
// only, so "Hello(" style prose is not mistaken for a call.
func CheckExpression(value string) ExpressionCheck {
	trimmed := strings.TrimSpace(value)
	if parenExprRe.MatchString(trimmed) {
		return ExpressionCheck{IsExpression: true, Kind: ExprParenthesized}
	}
	if functionCallRe.MatchString(trimmed) {
		return ExpressionCheck{IsExpression: true, Kind: ExprFunctionCall}
	}
	upper := strings.ToUpper(trimmed)
	for _, kw := range keywords {
		if upper == kw {
			return ExpressionCheck{IsExpression: true, Kind: ExprKeyword}
		}
	}
	return ExpressionCheck{}
}

// Functions returns the built-in SQLite function names that commonly appear
// in DEFAULT clauses and computed values.
func Functions() []string {
	return []string{
		// date and time
		"date", "time", "datetime", "julianday", "strftime",
		// string
		"length", "lower", "upper", "trim", "ltrim", "rtrim", "substr",
		"replace", "instr", "printf", "quote", "glob", "like",
		// numeric
		"abs", "round", "random", "randomblob", "zeroblob",
		// conversion
		"cast", "typeof", "coalesce", "ifnull", "nullif",
		// aggregate
		"count", "sum", "avg", "total", "group_concat",
		// json
		"json", "json_array", "json_object", "json_extract", "json_valid",
		"hex", "unicode", "char",
	}
}
