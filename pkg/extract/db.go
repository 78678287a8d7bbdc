package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
	"github.com/AshishGautamKarn/sn-introspect/pkg/sndb"
)

// DBExtractor pulls one kind through the database channel using the
// kind's cataloged list query.
type DBExtractor struct {
	pool   sndb.Pool
	spec   kindSpec
	logger *zap.Logger
}

// NewDBExtractor builds the database-channel extractor for a kind.
func NewDBExtractor(kind entity.Kind, pool sndb.Pool, logger *zap.Logger) *DBExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBExtractor{
		pool:   pool,
		spec:   kindSpecs[kind],
		logger: logger.Named("extract.db"),
	}
}

func (x *DBExtractor) Kind() entity.Kind     { return x.spec.kind }
func (x *DBExtractor) Source() entity.Source { return entity.SourceDatabase }

// Extract runs the catalog query for the kind and maps rows to entities.
// NULL columns map to the absent marker, not an error.
func (x *DBExtractor) Extract(ctx context.Context) *entity.ExtractionResult {
	result := entity.NewResult(x.spec.kind, entity.SourceDatabase)

	rows, err := x.pool.Query(ctx, x.spec.kind, "list")
	if err != nil {
		result.Err = err
		x.logger.Warn("db extraction failed",
			zap.String("kind", string(x.spec.kind)),
			zap.Error(err))
		return result
	}

	for _, row := range rows {
		if e, ok := recordToEntity(x.spec, entity.SourceDatabase, row); ok {
			result.Add(e)
		}
	}

	x.logger.Debug("db extraction complete",
		zap.String("kind", string(x.spec.kind)),
		zap.Int("entities", len(result.Entities)))
	return result
}
