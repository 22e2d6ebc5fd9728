package sqlcompat

import (
	"fmt"
	"regexp"
	"strings"
)

var extractPattern = regexp.MustCompile(`(?is)^(\w+)\s+FROM\s+(.+)$`)

var strftimeParts = map[string]string{
	"YEAR":   "%Y",
	"MONTH":  "%m",
	"DAY":    "%d",
	"HOUR":   "%H",
	"MINUTE": "%M",
	"SECOND": "%S",
}

var truncFormats = map[string]string{
	"year":   "%Y-01-01",
	"month":  "%Y-%m-01",
	"day":    "%Y-%m-%d",
	"hour":   "%Y-%m-%d %H:00:00",
	"minute": "%Y-%m-%d %H:%M:00",
}

// MySQL DATE_FORMAT specifiers that differ from strftime.
var mysqlToStrftime = strings.NewReplacer("%i", "%M", "%s", "%S")

var strftimeToPostgres = strings.NewReplacer(
	"%Y", "YYYY",
	"%m", "MM",
	"%d", "DD",
	"%H", "HH24",
	"%M", "MI",
	"%S", "SS",
)

var mysqlToPostgres = strings.NewReplacer(
	"%Y", "YYYY",
	"%m", "MM",
	"%d", "DD",
	"%H", "HH24",
	"%i", "MI",
	"%s", "SS",
)

var dialects = map[string]ruleSet{
	DialectSQLite: {
		functions: map[string]funcRule{
			"EXTRACT":     sqliteExtract,
			"YEAR":        sqlitePart("YEAR"),
			"MONTH":       sqlitePart("MONTH"),
			"DAY":         sqlitePart("DAY"),
			"HOUR":        sqlitePart("HOUR"),
			"MINUTE":      sqlitePart("MINUTE"),
			"DATE_FORMAT": sqliteDateFormat,
			"DATE_TRUNC":  sqliteDateTrunc,
			"NOW":         constant("datetime('now')"),
		},
		keywords: map[string]string{
			"CURRENT_DATE":      "date('now')",
			"CURRENT_TIMESTAMP": "datetime('now')",
			"ILIKE":             "LIKE",
		},
		backticks: true,
	},
	DialectPostgres: {
		functions: map[string]funcRule{
			"YEAR":        extractPart("YEAR"),
			"MONTH":       extractPart("MONTH"),
			"DAY":         extractPart("DAY"),
			"HOUR":        extractPart("HOUR"),
			"MINUTE":      extractPart("MINUTE"),
			"IFNULL":      rename("COALESCE"),
			"DATE":        nowLiteral("CURRENT_DATE"),
			"DATETIME":    nowLiteral("NOW()"),
			"STRFTIME":    postgresStrftime,
			"DATE_FORMAT": postgresDateFormat,
		},
		backticks: true,
	},
	DialectDuckDB: {
		functions: map[string]funcRule{
			"DATE":        nowLiteral("CURRENT_DATE"),
			"DATETIME":    nowLiteral("NOW()"),
			"STRFTIME":    duckdbStrftime,
			"DATE_FORMAT": duckdbDateFormat,
		},
		backticks: true,
	},
}

func constant(out string) funcRule {
	return func(args []string) (string, bool) {
		if len(args) != 0 {
			return "", false
		}
		return out, true
	}
}

func rename(name string) funcRule {
	return func(args []string) (string, bool) {
		if len(args) == 0 {
			return "", false
		}
		return name + "(" + strings.Join(args, ", ") + ")", true
	}
}

// nowLiteral rewrites date('now') style calls; any other argument is left alone.
func nowLiteral(out string) funcRule {
	return func(args []string) (string, bool) {
		if len(args) != 1 || !strings.EqualFold(args[0], "'now'") {
			return "", false
		}
		return out, true
	}
}

func sqliteExtract(args []string) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	match := extractPattern.FindStringSubmatch(args[0])
	if match == nil {
		return "", false
	}
	format, ok := strftimeParts[strings.ToUpper(match[1])]
	if !ok {
		return "", false
	}
	return castStrftime(format, strings.TrimSpace(match[2])), true
}

func sqlitePart(part string) funcRule {
	format := strftimeParts[part]
	return func(args []string) (string, bool) {
		if len(args) != 1 {
			return "", false
		}
		return castStrftime(format, args[0]), true
	}
}

func castStrftime(format, expr string) string {
	return fmt.Sprintf("CAST(strftime('%s', %s) AS INTEGER)", format, expr)
}

func sqliteDateFormat(args []string) (string, bool) {
	format, ok := formatArg(args)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("strftime(%s, %s)", mysqlToStrftime.Replace(format), args[0]), true
}

func sqliteDateTrunc(args []string) (string, bool) {
	if len(args) != 2 || !isStringLiteral(args[0]) {
		return "", false
	}
	format, ok := truncFormats[strings.ToLower(unquote(args[0]))]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("strftime('%s', %s)", format, args[1]), true
}

func extractPart(part string) funcRule {
	return func(args []string) (string, bool) {
		if len(args) != 1 {
			return "", false
		}
		return fmt.Sprintf("EXTRACT(%s FROM %s)", part, args[0]), true
	}
}

// postgresStrftime handles the SQLite argument order strftime('%Y', expr).
func postgresStrftime(args []string) (string, bool) {
	if len(args) != 2 || !isStrftimeFormat(args[0]) {
		return "", false
	}
	return fmt.Sprintf("to_char(%s, %s)", args[1], strftimeToPostgres.Replace(args[0])), true
}

func postgresDateFormat(args []string) (string, bool) {
	format, ok := formatArg(args)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("to_char(%s, %s)", args[0], mysqlToPostgres.Replace(format)), true
}

// duckdbStrftime swaps the SQLite argument order into strftime(expr, format).
func duckdbStrftime(args []string) (string, bool) {
	if len(args) != 2 || !isStrftimeFormat(args[0]) {
		return "", false
	}
	return fmt.Sprintf("strftime(%s, %s)", args[1], args[0]), true
}

func duckdbDateFormat(args []string) (string, bool) {
	format, ok := formatArg(args)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("strftime(%s, %s)", args[0], mysqlToStrftime.Replace(format)), true
}

// formatArg returns the format literal of a DATE_FORMAT(expr, 'fmt') call.
func formatArg(args []string) (string, bool) {
	if len(args) != 2 || !isStringLiteral(args[1]) {
		return "", false
	}
	return args[1], true
}

func isStringLiteral(arg string) bool {
	return len(arg) >= 2 && arg[0] == '\'' && arg[len(arg)-1] == '\''
}

func isStrftimeFormat(arg string) bool {
	return isStringLiteral(arg) && strings.Contains(arg, "%")
}

func unquote(literal string) string {
	return strings.ReplaceAll(literal[1:len(literal)-1], "''", "'")
}
