package catalog

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the statement text contains more than
	// one SQL statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrNotReadOnly indicates the statement is not a plain SELECT.
	ErrNotReadOnly = errors.New("only SELECT statements are permitted")
)

// normalizeStatement strips trailing semicolons and whitespace, then checks
// the result is a single read-only statement.
func normalizeStatement(statement string) (string, error) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return "", errors.New("empty statement")
	}

	normalized := stripTrailingSemicolon(statement)

	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}

	if !strings.HasPrefix(strings.ToUpper(normalized), "SELECT") {
		return "", ErrNotReadOnly
	}

	return normalized, nil
}

// hasSemicolonOutsideStrings returns true if the statement contains any
// semicolon outside of string literals. Since the trailing semicolon is
// already stripped, any remaining one means multiple statements.
func hasSemicolonOutsideStrings(statement string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range statement {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// SQL standard doubled quote ('') exits and immediately
			// re-enters on the next quote, which keeps us in the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

func stripTrailingSemicolon(statement string) string {
	statement = strings.TrimRight(statement, " \t\n\r")
	if strings.HasSuffix(statement, ";") {
		statement = strings.TrimSuffix(statement, ";")
		statement = strings.TrimRight(statement, " \t\n\r")
	}
	return statement
}
