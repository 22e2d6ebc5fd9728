package nl2sql

import (
	"regexp"
	"strings"
)

var (
	fencePattern     = regexp.MustCompile("(?s)```(.*?)```")
	fenceTagPattern  = regexp.MustCompile(`^([A-Za-z0-9_-]+)(?:[ \t]*\n|[ \t]+|$)`)
	statementStart   = regexp.MustCompile(`(?im)^\s*(SELECT\b|WITH\s+(RECURSIVE\s+)?\w+\s*(\([^)]*\))?\s*AS\s*\(|INSERT\b|UPDATE\b|DELETE\b|CREATE\b|ALTER\b|DROP\b|PRAGMA\b|EXPLAIN\b)`)
	blankLinePattern = regexp.MustCompile(`\n[ \t]*\n`)
)

var statementKeywords = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "INSERT": {}, "UPDATE": {}, "DELETE": {}, "CREATE": {},
	"ALTER": {}, "DROP": {}, "PRAGMA": {}, "EXPLAIN": {}, "VALUES": {},
}

// ExtractSQL pulls one SQL statement out of a model response: the first
// fenced code block if present, otherwise the text from the first statement
// keyword up to the first terminating semicolon.
func ExtractSQL(text string) string {
	body := strings.TrimSpace(text)
	fenced := false
	if match := fencePattern.FindStringSubmatch(body); match != nil {
		body = stripFenceTag(match[1])
		fenced = true
	} else if strings.HasPrefix(body, "```") {
		body = stripFenceTag(strings.TrimPrefix(body, "```"))
		fenced = true
	}

	if loc := statementStart.FindStringIndex(body); loc != nil {
		body = body[loc[0]:]
	}
	if end := statementEnd(body); end >= 0 {
		body = body[:end]
	} else if !fenced {
		// Unfenced prose after the statement is separated by a blank line.
		if loc := blankLinePattern.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
		}
	}
	return strings.TrimSpace(body)
}

// stripFenceTag drops the language tag that may follow an opening fence.
// A leading SQL keyword is part of the statement, not a tag.
func stripFenceTag(body string) string {
	loc := fenceTagPattern.FindStringSubmatchIndex(body)
	if loc == nil {
		return body
	}
	if _, keyword := statementKeywords[strings.ToUpper(body[loc[2]:loc[3]])]; keyword {
		return body
	}
	return body[loc[1]:]
}

// statementEnd returns the index of the first semicolon outside quotes, or -1.
func statementEnd(sql string) int {
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			return i
		}
	}
	return -1
}
