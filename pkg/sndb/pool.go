// Package sndb is the direct read-only channel to the instance's backing
// database. Every statement comes from the query catalog; there is no path
// for free-form SQL. Only a validated descriptor can open a pool.
package sndb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/catalog"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
	"github.com/AshishGautamKarn/sn-introspect/pkg/ratelimit"
	"github.com/AshishGautamKarn/sn-introspect/pkg/retry"
	"github.com/AshishGautamKarn/sn-introspect/pkg/validation"
)

// Row is one result row, column name to value. NULLs arrive as nil and are
// mapped to the entity absent marker by the extractors.
type Row = map[string]any

// Pool is an open database channel. Connections are leased and returned
// internally per query; callers never hold one across calls.
type Pool interface {
	// Query runs a catalog entry with bound parameters.
	Query(ctx context.Context, kind entity.Kind, purpose string, params ...any) ([]Row, error)

	// Ping verifies the channel is alive.
	Ping(ctx context.Context) error

	// InstanceInfo reports the server type/version string, best effort.
	InstanceInfo(ctx context.Context) (dbType, version string)

	// Close releases all pooled connections.
	Close() error
}

// Open dials the database for the descriptor's dialect. Pool creation is
// retried for transient failures; an auth failure surfaces immediately.
func Open(ctx context.Context, v validation.ValidatedDB, cat *catalog.Catalog, limiter *ratelimit.SourceLimiter, logger *zap.Logger) (Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sndb")

	switch v.Dialect() {
	case validation.DialectPostgres:
		return openPostgres(ctx, v, cat, limiter, logger)
	case validation.DialectSQLServer:
		return openSQLServer(ctx, v, cat, limiter, logger)
	default:
		// Unreachable for validated descriptors; kept as a guard.
		return nil, apperrors.Validation("unsupported dialect %q", v.Dialect())
	}
}

// queryRetryConfig retries connection-level failures once, per the
// propagation policy. Permission and catalog errors never retry.
func queryRetryConfig() *retry.Config {
	return retry.DefaultConfig().WithMaxRetries(1)
}

// classifyError maps driver errors onto the engine taxonomy so callers can
// react per kind: permission errors are terminal, connection errors retry.
func classifyError(err error, op string) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout(op+" deadline exceeded", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501": // insufficient_privilege
			return apperrors.PermissionDenied(
				fmt.Sprintf("%s: insufficient privilege", op),
				"grant SELECT on the system tables to the read-only extraction account",
				err)
		case "57014": // query_canceled (statement_timeout)
			return apperrors.Timeout(op+" statement timeout", err)
		}
		return apperrors.ConnectionFailed(op, err)
	}

	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Number {
		case 229, 230, 300: // SELECT/object/execute permission denied
			return apperrors.PermissionDenied(
				fmt.Sprintf("%s: insufficient privilege", op),
				"grant SELECT on the system tables to the read-only extraction account",
				err)
		}
		return apperrors.ConnectionFailed(op, err)
	}

	return apperrors.ConnectionFailed(op, err)
}
