// Package schema holds pure helpers for building and checking SQLite DDL:
// column type parsing, host type-name mapping, SQL expression detection and
// lightweight validation of column definitions and CREATE TABLE statements.
//
// Nothing here touches a connection. The sqlite package calls
// ValidateCreateTable before running CREATE TABLE statements so that
// questionable DDL is logged, and the CLI exposes it as "sqlbridge lint".
package schema

import "strings"

// ColumnType is one of SQLite's storage classes.
type ColumnType int

const (
	TypeNull ColumnType = iota
	TypeInteger
	TypeReal
	TypeText
	TypeBlob
)

// String returns the SQLite type name.
func (t ColumnType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// SupportedTypes lists the canonical type names.
func SupportedTypes() []string {
	return []string{"NULL", "INTEGER", "REAL", "TEXT", "BLOB"}
}

// ParseType maps a declared column type (or one of its common aliases) to a
// storage class. Matching is case-insensitive.
func ParseType(name string) (ColumnType, bool) {
	switch strings.ToUpper(name) {
	case "NULL":
		return TypeNull, true
	case "INTEGER", "INT", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT", "UNSIGNED BIG INT":
		return TypeInteger, true
	case "REAL", "DOUBLE", "FLOAT", "NUMERIC", "DECIMAL":
		return TypeReal, true
	case "TEXT", "CHARACTER", "VARCHAR", "VARYING CHARACTER", "NCHAR", "NATIVE CHARACTER", "NVARCHAR", "CLOB":
		return TypeText, true
	case "BLOB", "NONE":
		return TypeBlob, true
	}
	return 0, false
}

// IsValidType reports whether name parses as a SQLite type.
func IsValidType(name string) bool {
	_, ok := ParseType(name)
	return ok
}

// TypeMapping is the result of FromTypeName.
type TypeMapping struct {
	SQLiteType string `json:"sqlite_type"`
	Valid      bool   `json:"valid"`
}

// FromTypeName maps an application-level type name ("string", "Date",
// "uuid", ...) or a native SQLite type to the column type to declare.
// Unknown names map to TEXT with Valid false.
func FromTypeName(name string) TypeMapping {
	switch name {
	case "String", "string", "UUID", "uuid":
		return TypeMapping{SQLiteType: "TEXT", Valid: true}
	case "Number", "number", "Int", "int":
		return TypeMapping{SQLiteType: "INTEGER", Valid: true}
	case "Boolean", "boolean", "Bool", "bool":
		return TypeMapping{SQLiteType: "INTEGER", Valid: true}
	case "Date", "date":
		// stored as a unix timestamp
		return TypeMapping{SQLiteType: "INTEGER", Valid: true}
	case "Buffer", "buffer", "Uint8Array", "bytes":
		return TypeMapping{SQLiteType: "BLOB", Valid: true}
	case "Float", "float", "Double", "double":
		return TypeMapping{SQLiteType: "REAL", Valid: true}
	}
	if IsValidType(name) {
		return TypeMapping{SQLiteType: strings.ToUpper(name), Valid: true}
	}
	return TypeMapping{SQLiteType: "TEXT", Valid: false}
}
