// Package sqlutil holds small helpers for building and reading SQLite
// queries.
package sqlutil

import (
	"database/sql"
	"strings"
)

// MaxVariables is the bound-parameter budget for one statement. SQLite
// builds before 3.32 cap it at 999.
const MaxVariables = 999

// InClause returns "?, ?, ?" for the items and the matching args.
// No items yields "NULL", so `IN (NULL)` matches nothing.
func InClause[T any](items []T) (placeholders string, args []any) {
	if len(items) == 0 {
		return "NULL", nil
	}
	args = make([]any, len(items))
	for i, item := range items {
		args[i] = item
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", "), args
}

// Chunks splits items into consecutive slices of at most size elements.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxVariables
	}
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// ScanAll reads every row with scan and closes rows.
func ScanAll[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
