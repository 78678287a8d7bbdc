package sndb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver for database/sql
	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/catalog"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
	"github.com/AshishGautamKarn/sn-introspect/pkg/logging"
	"github.com/AshishGautamKarn/sn-introspect/pkg/ratelimit"
	"github.com/AshishGautamKarn/sn-introspect/pkg/retry"
	"github.com/AshishGautamKarn/sn-introspect/pkg/validation"
)

// positionalParamPattern matches PostgreSQL-style placeholders so catalog
// statements can be written once and converted per dialect.
var positionalParamPattern = regexp.MustCompile(`\$(\d+)`)

// sqlserverPool backs the Pool interface with database/sql + go-mssqldb.
type sqlserverPool struct {
	db        *sql.DB
	catalog   *catalog.Catalog
	limiter   *ratelimit.SourceLimiter
	logger    *zap.Logger
	stmtLimit func(context.Context) (context.Context, context.CancelFunc)
}

func openSQLServer(ctx context.Context, v validation.ValidatedDB, cat *catalog.Catalog, limiter *ratelimit.SourceLimiter, logger *zap.Logger) (Pool, error) {
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*sql.DB, error) {
		d, err := sql.Open("sqlserver", v.ConnString())
		if err != nil {
			return nil, err
		}
		if err := d.PingContext(ctx); err != nil {
			d.Close()
			return nil, err
		}
		return d, nil
	})
	if err != nil {
		logger.Error("failed to open sqlserver pool",
			zap.String("host", v.Host()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, classifyError(err, "open sqlserver pool")
	}

	db.SetMaxOpenConns(v.PoolSize() + v.MaxOverflow())
	db.SetMaxIdleConns(v.PoolSize())

	logger.Info("opened sqlserver pool",
		zap.String("host", v.Host()),
		zap.String("database", v.Database()),
		zap.Int("max_open_conns", v.PoolSize()+v.MaxOverflow()))

	timeout := v.StatementTimeout()
	return &sqlserverPool{
		db:      db,
		catalog: cat,
		limiter: limiter,
		logger:  logger,
		// SQL Server has no per-connection statement_timeout runtime
		// parameter; the bound is enforced through the query context.
		stmtLimit: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, timeout)
		},
	}, nil
}

// convertParams rewrites $1, $2, ... to @p1, @p2, ... for go-mssqldb,
// which binds ordinal arguments to @pN placeholders.
func convertParams(statement string) string {
	return positionalParamPattern.ReplaceAllString(statement, "@p$1")
}

func (p *sqlserverPool) Query(ctx context.Context, kind entity.Kind, purpose string, params ...any) ([]Row, error) {
	q, err := p.catalog.Lookup(kind, purpose)
	if err != nil {
		return nil, err
	}
	if err := p.catalog.ValidateParams(q, params); err != nil {
		return nil, err
	}
	statement, err := q.StatementFor(validation.DialectSQLServer)
	if err != nil {
		return nil, err
	}
	statement = convertParams(statement)

	if err := p.limiter.Acquire(ctx, ratelimit.SourceDatabase); err != nil {
		return nil, err
	}

	var result []Row
	err = retry.DoIfRetryable(ctx, queryRetryConfig(), func() error {
		queryCtx, cancel := p.stmtLimit(ctx)
		defer cancel()

		rows, err := p.db.QueryContext(queryCtx, statement, params...)
		if err != nil {
			return classifyError(err, fmt.Sprintf("query %s", q.Key))
		}
		defer rows.Close()

		collected, err := scanRows(rows)
		if err != nil {
			return classifyError(err, fmt.Sprintf("scan %s", q.Key))
		}

		result = collected
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("catalog query complete",
		zap.String("entry", q.Key.String()),
		zap.Int("rows", len(result)))
	return result, nil
}

// scanRows collects database/sql rows into maps, converting []byte text
// values to strings.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	collected := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return collected, nil
}

func (p *sqlserverPool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return classifyError(err, "ping")
	}
	return nil
}

func (p *sqlserverPool) InstanceInfo(ctx context.Context) (string, string) {
	var version string
	if err := p.db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version); err != nil {
		p.logger.Debug("instance info unavailable via db",
			zap.String("error", logging.SanitizeError(err)))
		return validation.DialectSQLServer, ""
	}
	return validation.DialectSQLServer, version
}

func (p *sqlserverPool) Close() error {
	return p.db.Close()
}
