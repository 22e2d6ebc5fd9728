package sqlcompat

import "strings"

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokQuotedIdent
	tokBacktickIdent
	tokSpace
	tokComment
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// lex splits SQL into tokens. Literals, quoted identifiers and comments are
// kept as single opaque tokens so rewrites never reach inside them.
func lex(sql string) []token {
	var tokens []token
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := quotedEnd(sql, i, c)
			kind := tokString
			if c == '"' {
				kind = tokQuotedIdent
			} else if c == '`' {
				kind = tokBacktickIdent
			}
			tokens = append(tokens, token{kind: kind, text: sql[i:end]})
			i = end
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql)
			} else {
				end += i
			}
			tokens = append(tokens, token{kind: tokComment, text: sql[i:end]})
			i = end
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 4
			}
			tokens = append(tokens, token{kind: tokComment, text: sql[i:end]})
			i = end
		case isSpace(c):
			j := i
			for j < len(sql) && isSpace(sql[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokSpace, text: sql[i:j]})
			i = j
		case isWordStart(c):
			j := i
			for j < len(sql) && isWordPart(sql[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokWord, text: sql[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(sql) && (sql[j] >= '0' && sql[j] <= '9' || sql[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokNumber, text: sql[i:j]})
			i = j
		default:
			tokens = append(tokens, token{kind: tokPunct, text: sql[i : i+1]})
			i++
		}
	}
	return tokens
}

// quotedEnd returns the index just past the closing quote, treating a
// doubled quote as an escape. Unterminated quotes run to the end.
func quotedEnd(sql string, start int, quote byte) int {
	for i := start + 1; i < len(sql); i++ {
		if sql[i] != quote {
			continue
		}
		if i+1 < len(sql) && sql[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(sql)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isWordStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || c >= '0' && c <= '9' || c == '$'
}
