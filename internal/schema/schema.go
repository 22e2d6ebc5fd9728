// Package schema extracts table descriptions from a live relational database.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrTableNotFound = errors.New("table not found")

type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// Description is an immutable snapshot of one table at extraction time.
type Description struct {
	TableName  string     `json:"table_name"`
	Columns    []Column   `json:"columns"`
	SampleRows [][]string `json:"sample_rows,omitempty"`
	Summary    string     `json:"summary"`
}

func (d Description) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, column := range d.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Document is the text embedded for similarity search.
func (d Description) Document() string {
	if strings.TrimSpace(d.Summary) != "" {
		return d.Summary
	}
	return Summarize(d)
}

// Summarize renders the table name, typed columns and sample data as plain text.
func Summarize(d Description) string {
	parts := make([]string, 0, len(d.Columns))
	for _, column := range d.Columns {
		attrs := []string{}
		if column.Type != "" {
			attrs = append(attrs, column.Type)
		}
		if column.PrimaryKey {
			attrs = append(attrs, "primary key")
		}
		if !column.Nullable {
			attrs = append(attrs, "not null")
		}
		if len(attrs) == 0 {
			parts = append(parts, column.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", column.Name, strings.Join(attrs, ", ")))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Table '%s' with columns: %s.", d.TableName, strings.Join(parts, ", "))
	if len(d.SampleRows) > 0 {
		names := d.ColumnNames()
		rows := make([]string, 0, len(d.SampleRows))
		for _, row := range d.SampleRows {
			fields := make([]string, 0, len(row))
			for i, value := range row {
				name := fmt.Sprintf("col%d", i+1)
				if i < len(names) {
					name = names[i]
				}
				fields = append(fields, name+"="+value)
			}
			rows = append(rows, "{"+strings.Join(fields, ", ")+"}")
		}
		fmt.Fprintf(&b, " Sample data: %s", strings.Join(rows, "; "))
	}
	return b.String()
}

type ColumnDiff struct {
	Missing []string `json:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

func (d ColumnDiff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Changed) == 0
}

// CompareColumns reports columns present in live but not indexed (Missing),
// present in indexed but not live (Extra) and columns whose type differs.
func CompareColumns(indexed, live Description) ColumnDiff {
	indexedByName := make(map[string]Column, len(indexed.Columns))
	for _, column := range indexed.Columns {
		indexedByName[column.Name] = column
	}
	liveByName := make(map[string]Column, len(live.Columns))
	for _, column := range live.Columns {
		liveByName[column.Name] = column
	}

	var diff ColumnDiff
	for name, column := range liveByName {
		previous, ok := indexedByName[name]
		if !ok {
			diff.Missing = append(diff.Missing, name)
			continue
		}
		if !strings.EqualFold(previous.Type, column.Type) {
			diff.Changed = append(diff.Changed, name)
		}
	}
	for name := range indexedByName {
		if _, ok := liveByName[name]; !ok {
			diff.Extra = append(diff.Extra, name)
		}
	}
	sort.Strings(diff.Missing)
	sort.Strings(diff.Extra)
	sort.Strings(diff.Changed)
	return diff
}

// ExtractionError reports that the live schema could not be read.
type ExtractionError struct {
	Table string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("schema extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("schema extraction failed for table %q: %v", e.Table, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
