package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrEmptySQL    = errors.New("sql is required")
	ErrNotReadOnly = errors.New("only read-only SELECT statements may be executed")
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// ExecutionError carries the statement the database rejected alongside the
// driver's message.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

var (
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
	commentPattern       = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)
	leadingWordPattern   = regexp.MustCompile(`^\s*\(*\s*([A-Za-z]+)`)
	writeKeywordPattern  = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE|DROP|ALTER|CREATE|TRUNCATE|REPLACE|ATTACH|DETACH|PRAGMA|GRANT|REVOKE|COPY|VACUUM)\b(\s*\()?`)
)

// CheckReadOnly rejects anything other than a single SELECT or WITH query.
func CheckReadOnly(sqlText string) error {
	stripped := StripTrailingSemicolons(sqlText)
	if stripped == "" {
		return ErrEmptySQL
	}
	code := commentPattern.ReplaceAllString(stringLiteralPattern.ReplaceAllString(stripped, "''"), " ")
	if strings.Contains(code, ";") {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	match := leadingWordPattern.FindStringSubmatch(code)
	if match == nil {
		return ErrNotReadOnly
	}
	switch strings.ToUpper(match[1]) {
	case "SELECT":
	case "WITH":
		if keyword := writeKeyword(code); keyword != "" {
			return fmt.Errorf("%w: %s inside WITH", ErrNotReadOnly, keyword)
		}
	default:
		return fmt.Errorf("%w: %s", ErrNotReadOnly, strings.ToUpper(match[1]))
	}
	return nil
}

// writeKeyword returns the first data-modifying keyword in code. Words
// followed by an opening parenthesis are function calls such as replace().
func writeKeyword(code string) string {
	for _, match := range writeKeywordPattern.FindAllStringSubmatch(code, -1) {
		if match[2] != "" {
			continue
		}
		return strings.ToUpper(match[1])
	}
	return ""
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
