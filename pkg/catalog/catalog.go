// Package catalog holds the fixed set of queries the engine may run
// against the database channel. The design is deny-unless-cataloged: the
// catalog is the source of truth for what can execute, and the
// dangerous-pattern scan is a secondary check layered on top.
package catalog

import (
	_ "embed"
	"fmt"
	"regexp"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
	"github.com/AshishGautamKarn/sn-introspect/pkg/validation"
)

//go:embed catalog.yaml
var catalogYAML []byte

// tableAllowList matches known system-table naming patterns for the target
// domain. Anything else is rejected before it can reach a driver.
var tableAllowList = []*regexp.Regexp{
	regexp.MustCompile(`^sys[a-z0-9_]*$`),
	regexp.MustCompile(`^sn_[a-z0-9_]+$`),
	regexp.MustCompile(`^v_[a-z0-9_]+$`),
}

// Key identifies one catalog entry.
type Key struct {
	Kind    entity.Kind
	Purpose string
}

func (k Key) String() string { return string(k.Kind) + "/" + k.Purpose }

// Query is a screened catalog entry. Statement text per dialect is fixed at
// load; parameters are bound at execution, never interpolated.
type Query struct {
	Key        Key
	Table      string
	ParamCount int

	statements map[string]string
}

// StatementFor returns the statement text for a dialect.
func (q Query) StatementFor(dialect string) (string, error) {
	stmt, ok := q.statements[dialect]
	if !ok {
		return "", apperrors.QueryRejected(
			fmt.Sprintf("catalog entry %s has no statement for dialect %q", q.Key, dialect), nil)
	}
	return stmt, nil
}

// Catalog is the loaded, validated query set.
type Catalog struct {
	queries map[Key]Query
	logger  *zap.Logger
}

type catalogFile struct {
	Queries []struct {
		Kind      string            `yaml:"kind"`
		Purpose   string            `yaml:"purpose"`
		Table     string            `yaml:"table"`
		Params    int               `yaml:"params"`
		Statement map[string]string `yaml:"statement"`
	} `yaml:"queries"`
}

// Load parses the embedded catalog and screens every entry. A screening
// failure here is a defect in the catalog itself, so Load fails loudly
// instead of dropping the entry.
func Load(logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("catalog")

	var file catalogFile
	if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		queries: make(map[Key]Query, len(file.Queries)),
		logger:  logger,
	}

	for _, raw := range file.Queries {
		key := Key{Kind: entity.Kind(raw.Kind), Purpose: raw.Purpose}

		if err := CheckTable(raw.Table); err != nil {
			return nil, fmt.Errorf("catalog entry %s: %w", key, err)
		}

		screened := make(map[string]string, len(raw.Statement))
		for dialect, stmt := range raw.Statement {
			normalized, err := screenStatement(stmt)
			if err != nil {
				logger.Error("catalog statement rejected",
					zap.String("entry", key.String()),
					zap.String("dialect", dialect),
					zap.Error(err))
				return nil, fmt.Errorf("catalog entry %s (%s): %w", key, dialect, err)
			}
			screened[dialect] = normalized
		}

		c.queries[key] = Query{
			Key:        key,
			Table:      raw.Table,
			ParamCount: raw.Params,
			statements: screened,
		}
	}

	return c, nil
}

// Lookup returns the catalog entry for a key. Uncataloged keys are an
// error: there is no path to running a statement that is not in the file.
func (c *Catalog) Lookup(kind entity.Kind, purpose string) (Query, error) {
	key := Key{Kind: kind, Purpose: purpose}
	q, ok := c.queries[key]
	if !ok {
		return Query{}, apperrors.QueryRejected(fmt.Sprintf("no catalog entry for %s", key), nil)
	}
	return q, nil
}

// ValidateParams checks the bound-parameter count against the entry.
func (c *Catalog) ValidateParams(q Query, params []any) error {
	if len(params) != q.ParamCount {
		return apperrors.QueryRejected(
			fmt.Sprintf("catalog entry %s expects %d parameters, got %d", q.Key, q.ParamCount, len(params)), nil)
	}
	for i, p := range params {
		if s, ok := p.(string); ok {
			if err := validation.CheckSQLi(s, fmt.Sprintf("parameter %d of %s", i+1, q.Key)); err != nil {
				c.logSecurityEvent(q, err)
				return err
			}
		}
	}
	return nil
}

// CheckTable validates a table name against the allow-list.
func CheckTable(name string) error {
	if name == "" {
		return apperrors.UnknownTable(name)
	}
	for _, pattern := range tableAllowList {
		if pattern.MatchString(name) {
			return nil
		}
	}
	return apperrors.UnknownTable(name)
}

// screenStatement normalizes a statement and runs the secondary
// dangerous-pattern scan over it.
func screenStatement(stmt string) (string, error) {
	normalized, err := normalizeStatement(stmt)
	if err != nil {
		return "", apperrors.QueryRejected("statement failed screening", err)
	}
	if perr := validation.ScanDangerousPatterns(normalized, "catalog statement"); perr != nil {
		return "", perr
	}
	return normalized, nil
}

// logSecurityEvent records a blocked execution attempt. These are never
// executed; logging is the only side effect.
func (c *Catalog) logSecurityEvent(q Query, err *apperrors.Error) {
	c.logger.Warn("security event: parameter rejected",
		zap.String("entry", q.Key.String()),
		zap.String("table", q.Table),
		zap.String("pattern", err.Pattern))
}
