package validation

import (
	"fmt"
	"net/url"
	"time"
)

// APIDescriptor describes the REST channel before validation. Connection
// managers never accept a raw descriptor; they take the Validated form.
type APIDescriptor struct {
	BaseURL       string
	Username      string
	Credential    string
	Version       string
	Timeout       time.Duration
	MaxRetries    int
	TLSVerify     bool
	AllowInsecure bool
}

// DBDescriptor describes the direct database channel before validation.
type DBDescriptor struct {
	Dialect          string
	Host             string
	Port             int
	Database         string
	Username         string
	Credential       string
	PoolSize         int
	MaxOverflow      int
	StatementTimeout time.Duration
	SSLMode          string
}

// ValidatedAPI is an APIDescriptor that passed validation. The descriptor
// lives in an unexported field, so the only way to mint one is through the
// Validator.
type ValidatedAPI struct {
	d               APIDescriptor
	credentialScore int
}

func (v ValidatedAPI) BaseURL() string        { return v.d.BaseURL }
func (v ValidatedAPI) Username() string       { return v.d.Username }
func (v ValidatedAPI) Credential() string     { return v.d.Credential }
func (v ValidatedAPI) Version() string        { return v.d.Version }
func (v ValidatedAPI) Timeout() time.Duration { return v.d.Timeout }
func (v ValidatedAPI) MaxRetries() int        { return v.d.MaxRetries }
func (v ValidatedAPI) TLSVerify() bool        { return v.d.TLSVerify }

// CredentialScore is the advisory strength score (1-5). Weak credentials
// are reported, never blocked.
func (v ValidatedAPI) CredentialScore() int { return v.credentialScore }

// ValidatedDB is a DBDescriptor that passed validation.
type ValidatedDB struct {
	d               DBDescriptor
	credentialScore int
}

func (v ValidatedDB) Dialect() string                 { return v.d.Dialect }
func (v ValidatedDB) Host() string                    { return v.d.Host }
func (v ValidatedDB) Port() int                       { return v.d.Port }
func (v ValidatedDB) Database() string                { return v.d.Database }
func (v ValidatedDB) Username() string                { return v.d.Username }
func (v ValidatedDB) PoolSize() int                   { return v.d.PoolSize }
func (v ValidatedDB) MaxOverflow() int                { return v.d.MaxOverflow }
func (v ValidatedDB) StatementTimeout() time.Duration { return v.d.StatementTimeout }
func (v ValidatedDB) CredentialScore() int            { return v.credentialScore }

// ConnString builds a driver URL with all user-supplied fields escaped, so
// special characters in credentials cannot break parsing or smuggle
// parameters.
func (v ValidatedDB) ConnString() string {
	scheme := "postgresql"
	query := "sslmode=" + url.QueryEscape(v.d.SSLMode)
	if v.d.Dialect == DialectSQLServer {
		scheme = "sqlserver"
		query = "database=" + url.QueryEscape(v.d.Database)
	}

	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(v.d.Username, v.d.Credential),
		Host:     fmt.Sprintf("%s:%d", v.d.Host, v.d.Port),
		RawQuery: query,
	}
	if v.d.Dialect != DialectSQLServer {
		u.Path = "/" + v.d.Database
	}
	return u.String()
}
