package sndb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/catalog"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
	"github.com/AshishGautamKarn/sn-introspect/pkg/logging"
	"github.com/AshishGautamKarn/sn-introspect/pkg/ratelimit"
	"github.com/AshishGautamKarn/sn-introspect/pkg/retry"
	"github.com/AshishGautamKarn/sn-introspect/pkg/validation"
)

// postgresPool backs the Pool interface with pgxpool. Lease/return of
// connections is handled by pgxpool on every call, including panic paths.
type postgresPool struct {
	pool    *pgxpool.Pool
	catalog *catalog.Catalog
	limiter *ratelimit.SourceLimiter
	logger  *zap.Logger
}

func openPostgres(ctx context.Context, v validation.ValidatedDB, cat *catalog.Catalog, limiter *ratelimit.SourceLimiter, logger *zap.Logger) (Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(v.ConnString())
	if err != nil {
		return nil, apperrors.Validation("parse connection string: %v", err)
	}

	poolConfig.MaxConns = int32(v.PoolSize() + v.MaxOverflow())
	poolConfig.MinConns = 1
	// Server-side statement timeout, applied to every pooled connection.
	poolConfig.ConnConfig.RuntimeParams["statement_timeout"] =
		strconv.FormatInt(v.StatementTimeout().Milliseconds(), 10)

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		logger.Error("failed to open postgres pool",
			zap.String("host", v.Host()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, classifyError(err, "open postgres pool")
	}

	logger.Info("opened postgres pool",
		zap.String("host", v.Host()),
		zap.String("database", v.Database()),
		zap.Int32("max_conns", poolConfig.MaxConns))

	return &postgresPool{pool: pool, catalog: cat, limiter: limiter, logger: logger}, nil
}

func (p *postgresPool) Query(ctx context.Context, kind entity.Kind, purpose string, params ...any) ([]Row, error) {
	q, err := p.catalog.Lookup(kind, purpose)
	if err != nil {
		return nil, err
	}
	if err := p.catalog.ValidateParams(q, params); err != nil {
		return nil, err
	}
	statement, err := q.StatementFor(validation.DialectPostgres)
	if err != nil {
		return nil, err
	}

	if err := p.limiter.Acquire(ctx, ratelimit.SourceDatabase); err != nil {
		return nil, err
	}

	var result []Row
	err = retry.DoIfRetryable(ctx, queryRetryConfig(), func() error {
		rows, err := p.pool.Query(ctx, statement, params...)
		if err != nil {
			return classifyError(err, fmt.Sprintf("query %s", q.Key))
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		columns := make([]string, len(fields))
		for i, f := range fields {
			columns[i] = f.Name
		}

		collected := make([]Row, 0)
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return classifyError(err, fmt.Sprintf("scan %s", q.Key))
			}
			row := make(Row, len(columns))
			for i, col := range columns {
				row[col] = values[i]
			}
			collected = append(collected, row)
		}
		if err := rows.Err(); err != nil {
			return classifyError(err, fmt.Sprintf("iterate %s", q.Key))
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

func (p *postgresPool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return classifyError(err, "ping")
	}
	return nil
}

// InstanceInfo reports the server version. The statement is fixed text
// owned by the manager, not caller input.
func (p *postgresPool) InstanceInfo(ctx context.Context) (string, string) {
	var version string
	if err := p.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		p.logger.Debug("instance info unavailable via db",
			zap.String("error", logging.SanitizeError(err)))
		return validation.DialectPostgres, ""
	}
	return validation.DialectPostgres, version
}

func (p *postgresPool) Close() error {
	p.pool.Close()
	return nil
}
