package validation

import (
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
)

// dangerousPatterns enumerates tokens that indicate mutation or script
// injection. This scan is defense-in-depth only: the allow-listed query
// catalog is the primary safeguard, and parameters are always bound. The
// list is deliberately not the last line of defense.
var dangerousPatterns = []string{
	"DROP ",
	"DELETE ",
	"TRUNCATE ",
	"UPDATE ",
	"INSERT ",
	"ALTER ",
	"CREATE ",
	"GRANT ",
	"REVOKE ",
	"EXEC ",
	"EXECUTE ",
	"UNION SELECT",
	"XP_",
	"SP_",
	"<SCRIPT",
	"JAVASCRIPT:",
	"ONERROR=",
	"ONLOAD=",
}

// blockCommentPattern matches SQL block comments. Comment-obfuscated
// injection (DR/**/OP) is neutralized by stripping comments before the
// keyword scan.
var blockCommentPattern = regexp.MustCompile(`/\*.*?\*/`)

// lineCommentPattern matches SQL line comments through end of input/line.
var lineCommentPattern = regexp.MustCompile(`--[^\n]*`)

// ScanDangerousPatterns checks input against the dangerous-pattern set and
// returns a dangerous_pattern error naming the exact blocked token. The
// context string tells the caller which field was rejected.
func ScanDangerousPatterns(input, context string) *apperrors.Error {
	stripped := blockCommentPattern.ReplaceAllString(input, " ")
	stripped = lineCommentPattern.ReplaceAllString(stripped, " ")
	upper := strings.ToUpper(stripped)

	for _, pattern := range dangerousPatterns {
		if strings.Contains(upper, pattern) {
			return apperrors.DangerousPattern(strings.TrimSpace(pattern), context)
		}
	}

	// Stripping comments changed the input: the comments themselves were
	// hiding something, or the value has no business containing SQL comments.
	if stripped != input && strings.Contains(input, "/*") {
		return apperrors.DangerousPattern("/**/", context)
	}

	return nil
}

// CheckSQLi runs libinjection over a value as a secondary check for
// injection payloads the keyword list cannot enumerate.
func CheckSQLi(value, context string) *apperrors.Error {
	if value == "" {
		return nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return apperrors.DangerousPattern(string(fingerprint), context)
	}
	return nil
}

// hasControlChars reports whether s contains ASCII control characters.
func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
