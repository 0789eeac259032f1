package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExpression(t *testing.T) {
	expressions := []string{
		"datetime('now')",
		"date('now')",
		"strftime('%s', 'now')",
		"julianday('now')",
		"  datetime ('now')  ",
		"CURRENT_TIMESTAMP",
		"current_timestamp",
		"CURRENT_DATE",
		"CURRENT_TIME",
		"null",
		"TRUE",
		"FALSE",
		"(strftime('%s', 'now'))",
		"(1 + 1)",
		"(SELECT MAX(id) FROM users)",
	}
	for _, e := range expressions {
		assert.True(t, IsExpression(e), e)
	}

	literals := []string{"hello world", "some text", "123", "", "Hello(world)"}
	for _, l := range literals {
		assert.False(t, IsExpression(l), l)
	}
}

func TestCheckExpression(t *testing.T) {
	assert.Equal(t, ExpressionCheck{IsExpression: true, Kind: ExprFunctionCall}, CheckExpression("datetime('now')"))
	assert.Equal(t, ExpressionCheck{IsExpression: true, Kind: ExprKeyword}, CheckExpression("CURRENT_TIMESTAMP"))
	assert.Equal(t, ExpressionCheck{IsExpression: true, Kind: ExprParenthesized}, CheckExpression("(1 + 1)"))
	assert.Equal(t, ExpressionCheck{}, CheckExpression("plain"))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want ColumnType
	}{
		{"INTEGER", TypeInteger},
		{"integer", TypeInteger},
		{"Integer", TypeInteger},
		{"INT", TypeInteger},
		{"TINYINT", TypeInteger},
		{"SMALLINT", TypeInteger},
		{"BIGINT", TypeInteger},
		{"unsigned big int", TypeInteger},
		{"REAL", TypeReal},
		{"DOUBLE", TypeReal},
		{"FLOAT", TypeReal},
		{"NUMERIC", TypeReal},
		{"TEXT", TypeText},
		{"VARCHAR", TypeText},
		{"CHARACTER", TypeText},
		{"CLOB", TypeText},
		{"BLOB", TypeBlob},
		{"NONE", TypeBlob},
		{"NULL", TypeNull},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseType(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ParseType("INVALID")
	assert.False(t, ok)
	_, ok = ParseType("")
	assert.False(t, ok)
}

func TestSupportedTypes(t *testing.T) {
	for _, name := range SupportedTypes() {
		got, ok := ParseType(name)
		assert.True(t, ok)
		assert.Equal(t, name, got.String())
	}
	assert.True(t, IsValidType("int"))
	assert.False(t, IsValidType("INVALID"))
}

func TestFromTypeName(t *testing.T) {
	tests := []struct {
		in   string
		want TypeMapping
	}{
		{"String", TypeMapping{"TEXT", true}},
		{"uuid", TypeMapping{"TEXT", true}},
		{"Number", TypeMapping{"INTEGER", true}},
		{"Boolean", TypeMapping{"INTEGER", true}},
		{"Date", TypeMapping{"INTEGER", true}},
		{"Buffer", TypeMapping{"BLOB", true}},
		{"double", TypeMapping{"REAL", true}},
		{"varchar", TypeMapping{"VARCHAR", true}},
		{"Widget", TypeMapping{"TEXT", false}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FromTypeName(tt.in))
		})
	}
}

func TestFunctions(t *testing.T) {
	funcs := Functions()
	for _, f := range []string{"datetime", "date", "strftime", "json", "json_object"} {
		assert.Contains(t, funcs, f)
	}
}

func TestValidateColumn(t *testing.T) {
	assert.True(t, ValidateColumn(Column{Name: "id", Type: "INTEGER", PrimaryKey: true, NotNull: true}).Valid)

	res := ValidateColumn(Column{Name: "", Type: "INTEGER"})
	assert.False(t, res.Valid)
	assert.True(t, containsSubstring(res.Issues, "empty"))

	res = ValidateColumn(Column{Name: "my column", Type: "INTEGER"})
	assert.False(t, res.Valid)
	assert.True(t, containsSubstring(res.Issues, "spaces"))

	res = ValidateColumn(Column{Name: "col", Type: "NOT_A_TYPE"})
	assert.False(t, res.Valid)
	assert.True(t, containsSubstring(res.Issues, "Unknown SQLite type"))

	now := "datetime('now')"
	res = ValidateColumn(Column{Name: "created", Type: "INTEGER", Default: &now})
	assert.False(t, res.Valid)
	assert.True(t, containsSubstring(res.Issues, "Expression default"))

	assert.True(t, ValidateColumn(Column{Name: "created", Type: "text", Default: &now}).Valid)
}

func TestAutoincrement(t *testing.T) {
	info := Autoincrement("INTEGER", true)
	assert.True(t, info.CanUse)
	assert.Contains(t, info.Explanation, "sequential IDs")

	assert.False(t, Autoincrement("TEXT", true).CanUse)
	assert.False(t, Autoincrement("INTEGER", false).CanUse)
	assert.True(t, Autoincrement("int", true).CanUse)
}

func TestValidateCreateTable(t *testing.T) {
	res := ValidateCreateTable("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)

	res = ValidateCreateTable("SELECT * FROM users")
	assert.False(t, res.Valid)

	res = ValidateCreateTable("CREATE TABLE users (id INTEGER, name TEXT)")
	assert.True(t, res.Valid)
	assert.True(t, containsSubstring(res.Warnings, "PRIMARY KEY"))

	res = ValidateCreateTable("CREATE TABLE users (id TEXT PRIMARY KEY AUTOINCREMENT)")
	assert.False(t, res.Valid)

	res = ValidateCreateTable("create table ")
	assert.False(t, res.Valid)
	assert.Contains(t, res.Issues, "Missing table name")

	res = ValidateCreateTable("CREATE TABLE c (id INTEGER PRIMARY KEY, p INTEGER, FOREIGN KEY (p) REFERENCES p(id))")
	assert.True(t, containsSubstring(res.Warnings, "ON DELETE"))
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
