package schema

import (
	"fmt"
	"strings"
)

// Column describes a column definition for ValidateColumn.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Default    *string
}

// Validation collects problems found in a definition. Issues make the
// definition invalid; warnings do not.
type Validation struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

func newValidation(issues, warnings []string) Validation {
	if issues == nil {
		issues = []string{}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return Validation{Valid: len(issues) == 0, Issues: issues, Warnings: warnings}
}

// ValidateColumn checks a single column definition.
func ValidateColumn(col Column) Validation {
	var issues []string

	if col.Name == "" {
		issues = append(issues, "Column name cannot be empty")
	}
	if strings.Contains(col.Name, " ") {
		issues = append(issues, "Column name should not contain spaces")
	}
	if !IsValidType(col.Type) {
		issues = append(issues, fmt.Sprintf("Unknown SQLite type: %s", col.Type))
	}
	if col.Default != nil && IsExpression(*col.Default) && !strings.EqualFold(col.Type, "TEXT") {
		issues = append(issues, fmt.Sprintf("Expression default for %s type column: %s", col.Type, *col.Default))
	}

	return newValidation(issues, nil)
}

// AutoincrementInfo explains whether AUTOINCREMENT is usable on a column.
type AutoincrementInfo struct {
	RequiresIntegerPrimaryKey bool   `json:"requires_integer_primary_key"`
	CanUse                    bool   `json:"can_use"`
	Explanation               string `json:"explanation"`
}

// Autoincrement reports AUTOINCREMENT eligibility. Only INTEGER PRIMARY KEY
// columns qualify.
func Autoincrement(columnType string, primaryKey bool) AutoincrementInfo {
	upper := strings.ToUpper(columnType)
	isInteger := upper == "INTEGER" || upper == "INT"

	info := AutoincrementInfo{
		RequiresIntegerPrimaryKey: true,
		CanUse:                    isInteger && primaryKey,
	}
	switch {
	case !primaryKey:
		info.Explanation = "AUTOINCREMENT can only be used on PRIMARY KEY columns"
	case !isInteger:
		info.Explanation = "AUTOINCREMENT only works with INTEGER type (not TEXT, REAL, or BLOB)"
	default:
		info.Explanation = "INTEGER PRIMARY KEY AUTOINCREMENT will generate sequential IDs"
	}
	return info
}

// ValidateCreateTable runs keyword-level checks over a CREATE TABLE
// statement. It is not a parser; it catches the mistakes that are easy to
// make by hand.
func ValidateCreateTable(sql string) Validation {
	var issues, warnings []string
	lower := strings.ToLower(sql)

	pos := strings.Index(lower, "create table")
	if pos < 0 {
		issues = append(issues, "SQL does not appear to be a CREATE TABLE statement")
		return newValidation(issues, warnings)
	}
	if strings.TrimSpace(lower[pos+len("create table"):]) == "" {
		issues = append(issues, "Missing table name")
	}

	if !strings.Contains(lower, "primary key") {
		warnings = append(warnings, "Table has no PRIMARY KEY defined")
	}
	if strings.Contains(lower, "foreign key") && !strings.Contains(lower, "on delete") {
		warnings = append(warnings, "FOREIGN KEY defined without ON DELETE clause")
	}
	if strings.Contains(lower, "autoincrement") && !strings.Contains(lower, "integer") {
		issues = append(issues, "AUTOINCREMENT used but column type is not INTEGER")
	}

	return newValidation(issues, warnings)
}
