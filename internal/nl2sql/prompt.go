package nl2sql

import (
	"fmt"
	"strings"
)

type Prompt struct {
	Question string
	System   string
	User     string
}

// Combined renders the prompt as one text block for backends without roles.
func (p Prompt) Combined() string {
	return p.System + "\n\n" + p.User
}

var dialectHints = map[string]string{
	"sqlite": "The database is SQLite. Use strftime('%Y', col) or date('now') for dates; " +
		"there is no EXTRACT, NOW(), YEAR() or DATE_FORMAT.",
	"postgres": "The database is PostgreSQL. Use EXTRACT, date_trunc and CURRENT_DATE for dates.",
	"duckdb":   "The database is DuckDB, which uses PostgreSQL-like SQL syntax.",
}

func BuildPrompt(req Request) Prompt {
	dialect := req.Dialect
	if dialect == "" {
		dialect = "sqlite"
	}
	system := "You convert natural language questions into a single SQL query. " +
		dialectHints[dialect] +
		" Return ONLY SQL. No markdown, no explanation."

	var b strings.Builder
	b.WriteString("Relevant tables:\n")
	if len(req.Tables) == 0 {
		b.WriteString("(none)\n")
	}
	for _, table := range req.Tables {
		fmt.Fprintf(&b, "- %s\n", table.Document())
	}
	fmt.Fprintf(&b, "\nQuestion:\n%s\n", strings.TrimSpace(req.Question))
	b.WriteString("\nRules:\n- Use only the listed tables and columns.\n- Output a single SQL query only.")

	return Prompt{Question: strings.TrimSpace(req.Question), System: system, User: b.String()}
}
