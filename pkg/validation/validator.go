// Package validation checks connection descriptors before any network use.
// Validation returns distinct wrapper types; the connection managers only
// accept those, so an unvalidated descriptor cannot reach a socket.
package validation

import (
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
)

// Supported database dialects.
const (
	DialectPostgres  = "postgres"
	DialectSQLServer = "sqlserver"
)

// Validator validates and sanitizes connection descriptors.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a validator. A nil logger is replaced with a no-op.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger.Named("validation")}
}

// ValidateAPI checks an API descriptor and returns its validated form.
func (v *Validator) ValidateAPI(d APIDescriptor) (ValidatedAPI, error) {
	if d.BaseURL == "" {
		return ValidatedAPI{}, apperrors.Validation("api base URL is required")
	}
	if d.Username == "" {
		return ValidatedAPI{}, apperrors.Validation("api username is required")
	}

	normalized, err := v.validateBaseURL(d.BaseURL, d.AllowInsecure)
	if err != nil {
		return ValidatedAPI{}, err
	}
	d.BaseURL = normalized

	if err := ScanDangerousPatterns(d.Username, "api username"); err != nil {
		v.logger.Warn("blocked dangerous pattern in api descriptor",
			zap.String("pattern", err.Pattern))
		return ValidatedAPI{}, err
	}
	if err := CheckSQLi(d.Username, "api username"); err != nil {
		return ValidatedAPI{}, err
	}

	if d.Version == "" {
		d.Version = "v2"
	}
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	if d.MaxRetries < 0 {
		d.MaxRetries = 0
	}

	score := CredentialStrength(d.Credential)
	if score <= 2 {
		v.logger.Warn("weak api credential", zap.Int("score", score))
	}

	return ValidatedAPI{d: d, credentialScore: score}, nil
}

// ValidateDB checks a database descriptor and returns its validated form.
func (v *Validator) ValidateDB(d DBDescriptor) (ValidatedDB, error) {
	switch d.Dialect {
	case DialectPostgres, DialectSQLServer:
	case "":
		return ValidatedDB{}, apperrors.Validation("database dialect is required")
	default:
		return ValidatedDB{}, apperrors.Validation("unsupported database dialect %q", d.Dialect)
	}

	if d.Host == "" {
		return ValidatedDB{}, apperrors.Validation("database host is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return ValidatedDB{}, apperrors.Validation("database port %d out of range", d.Port)
	}
	if d.Database == "" {
		return ValidatedDB{}, apperrors.Validation("database name is required")
	}
	if d.Username == "" {
		return ValidatedDB{}, apperrors.Validation("database username is required")
	}

	for field, value := range map[string]string{
		"database host": d.Host,
		"database name": d.Database,
		"database user": d.Username,
	} {
		if hasControlChars(value) {
			return ValidatedDB{}, apperrors.Validation("%s contains control characters", field)
		}
		if strings.ContainsAny(value, ";") {
			return ValidatedDB{}, apperrors.Validation("%s contains a statement terminator", field)
		}
		if err := ScanDangerousPatterns(value, field); err != nil {
			v.logger.Warn("blocked dangerous pattern in db descriptor",
				zap.String("field", field),
				zap.String("pattern", err.Pattern))
			return ValidatedDB{}, err
		}
		if err := CheckSQLi(value, field); err != nil {
			return ValidatedDB{}, err
		}
	}

	if d.PoolSize <= 0 {
		d.PoolSize = 10
	}
	if d.MaxOverflow < 0 {
		d.MaxOverflow = 0
	}
	if d.StatementTimeout <= 0 {
		d.StatementTimeout = 30 * time.Second
	}
	if d.SSLMode == "" {
		d.SSLMode = "require"
	}

	score := CredentialStrength(d.Credential)
	if score <= 2 {
		v.logger.Warn("weak database credential", zap.Int("score", score))
	}

	return ValidatedDB{d: d, credentialScore: score}, nil
}

// validateBaseURL enforces https (unless explicitly overridden), rejects
// script markers, strips unsafe characters, and normalizes the trailing
// slash.
func (v *Validator) validateBaseURL(raw string, allowInsecure bool) (string, error) {
	cleaned := stripUnsafeURLChars(strings.TrimSpace(raw))

	if err := ScanDangerousPatterns(cleaned, "api base URL"); err != nil {
		return "", err
	}

	u, err := url.Parse(cleaned)
	if err != nil {
		return "", apperrors.Validation("invalid api base URL: %v", err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !allowInsecure {
			return "", apperrors.Validation("api base URL must use https (set allow_insecure to override)")
		}
	default:
		return "", apperrors.Validation("unsupported URL scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", apperrors.Validation("api base URL has no host")
	}
	if u.User != nil {
		return "", apperrors.Validation("api base URL must not embed credentials")
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String(), nil
}

// stripUnsafeURLChars removes control characters and whitespace that have
// no place in a URL.
func stripUnsafeURLChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '<', '>', '"', '\'', '`', '{', '}', '\\':
			return -1
		}
		return r
	}, s)
}

// CredentialStrength scores a credential 1-5 from length and character
// class diversity. Advisory only: a weak credential is logged, not blocked.
func CredentialStrength(credential string) int {
	if credential == "" {
		return 1
	}

	score := 1
	if len(credential) >= 8 {
		score++
	}
	if len(credential) >= 16 {
		score++
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range credential {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	classes := 0
	for _, has := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if has {
			classes++
		}
	}
	if classes >= 3 {
		score++
	}
	if classes == 4 {
		score++
	}

	if score > 5 {
		score = 5
	}
	return score
}
