// Package sqlcompat rewrites generated SQL into the dialect of the target engine.
package sqlcompat

import "strings"

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectDuckDB   = "duckdb"
)

// funcRule rewrites a call given its already-normalized, trimmed arguments.
// Returning false leaves the call as written.
type funcRule func(args []string) (string, bool)

type ruleSet struct {
	functions map[string]funcRule
	// keywords replaces bare words that are not followed by a call.
	keywords map[string]string
	// backticks converts `ident` to "ident".
	backticks bool
}

// Normalize applies the fixed substitution table for dialect. Text inside
// string literals, quoted identifiers and comments is never altered, and
// constructs without a rule pass through unchanged. Unknown dialects return
// raw as is.
func Normalize(raw, dialect string) string {
	rules, ok := dialects[dialect]
	if !ok {
		return raw
	}
	return rules.render(lex(raw))
}

// Dialects lists the supported dialect names.
func Dialects() []string {
	return []string{DialectDuckDB, DialectPostgres, DialectSQLite}
}

func (r ruleSet) render(tokens []token) string {
	var b strings.Builder
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch t.kind {
		case tokBacktickIdent:
			if r.backticks {
				b.WriteString(backtickToDouble(t.text))
				continue
			}
			b.WriteString(t.text)
		case tokWord:
			upper := strings.ToUpper(t.text)
			open := nextNonSpace(tokens, i+1)
			if open < len(tokens) && tokens[open].text == "(" && tokens[open].kind == tokPunct {
				if closing := matchParen(tokens, open); closing > 0 {
					inner := tokens[open+1 : closing]
					if rule, ok := r.functions[upper]; ok {
						if out, ok := rule(r.args(inner)); ok {
							b.WriteString(out)
							i = closing
							continue
						}
					}
					b.WriteString(t.text)
					for _, between := range tokens[i+1 : open] {
						b.WriteString(between.text)
					}
					b.WriteString("(")
					b.WriteString(r.render(inner))
					b.WriteString(")")
					i = closing
					continue
				}
			}
			if replacement, ok := r.keywords[upper]; ok && !isQualified(tokens, i) {
				b.WriteString(replacement)
				continue
			}
			b.WriteString(t.text)
		default:
			b.WriteString(t.text)
		}
	}
	return b.String()
}

// args splits call arguments on top-level commas and normalizes each one.
func (r ruleSet) args(inner []token) []string {
	var (
		out   []string
		start int
		depth int
	)
	for i, t := range inner {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth == 0 {
				out = append(out, strings.TrimSpace(r.render(inner[start:i])))
				start = i + 1
			}
		}
	}
	last := strings.TrimSpace(r.render(inner[start:]))
	if last == "" && len(out) == 0 {
		return nil
	}
	return append(out, last)
}

func nextNonSpace(tokens []token, from int) int {
	for from < len(tokens) && tokens[from].kind == tokSpace {
		from++
	}
	return from
}

func matchParen(tokens []token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		if tokens[i].kind != tokPunct {
			continue
		}
		switch tokens[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// isQualified reports whether the word at i is preceded by a dot, as in t.current_date.
func isQualified(tokens []token, i int) bool {
	return i > 0 && tokens[i-1].kind == tokPunct && tokens[i-1].text == "."
}

func backtickToDouble(ident string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(ident, "`"), "`")
	inner = strings.ReplaceAll(inner, "``", "`")
	return `"` + strings.ReplaceAll(inner, `"`, `""`) + `"`
}
