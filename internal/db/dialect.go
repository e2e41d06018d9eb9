package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// JSONArrayValuesSubquery returns a subquery (including parentheses) that
// flattens a JSON string-array column into one row per element, exposed
// under the given alias.
func JSONArrayValuesSubquery(conn *gorm.DB, table, column, alias string) string {
	if IsSQLite(conn) {
		return fmt.Sprintf("(SELECT j.value AS %s FROM %s, json_each(%s.%s) AS j)", alias, table, table, column)
	}
	return fmt.Sprintf("(SELECT jsonb_array_elements_text(%s.%s) AS %s FROM %s)", table, column, alias, table)
}

// MonthBucketExpr returns a SQL expression producing a YYYY-MM label for a
// timestamp column.
func MonthBucketExpr(conn *gorm.DB, column string) string {
	if IsSQLite(conn) {
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
	}
	return fmt.Sprintf("to_char(%s, 'YYYY-MM')", column)
}
