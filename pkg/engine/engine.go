// Package engine orchestrates a correlation run: validate both
// descriptors, open both channels concurrently, extract every entity kind
// through both, correlate, and aggregate into one report. Partial failure
// of a source degrades the report; it never aborts the run.
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/catalog"
	"github.com/AshishGautamKarn/sn-introspect/pkg/config"
	"github.com/AshishGautamKarn/sn-introspect/pkg/correlate"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
	"github.com/AshishGautamKarn/sn-introspect/pkg/extract"
	"github.com/AshishGautamKarn/sn-introspect/pkg/logging"
	"github.com/AshishGautamKarn/sn-introspect/pkg/ratelimit"
	"github.com/AshishGautamKarn/sn-introspect/pkg/report"
	"github.com/AshishGautamKarn/sn-introspect/pkg/sncapi"
	"github.com/AshishGautamKarn/sn-introspect/pkg/sndb"
	"github.com/AshishGautamKarn/sn-introspect/pkg/validation"
)

// Engine runs hybrid extraction and correlation. All collaborators are
// injected at construction; there is no hidden global state.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates an engine. A nil logger is replaced with a no-op.
func New(cfg *config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger.Named("engine")}
}

// kindOutcome carries one kind's finished pair through the worker fan-in.
type kindOutcome struct {
	kind entity.Kind
	api  *entity.ExtractionResult
	db   *entity.ExtractionResult
}

// Run executes one correlation run. The only fatal path is both
// descriptors failing validation; everything else degrades into the
// report's error list.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	if e.cfg.Extraction.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Extraction.RunTimeout)
		defer cancel()
	}

	agg := report.NewAggregator()

	validator := validation.NewValidator(e.logger)
	apiValidated, apiErr := validator.ValidateAPI(validation.APIDescriptor{
		BaseURL:       e.cfg.API.BaseURL,
		Username:      e.cfg.API.Username,
		Credential:    e.cfg.API.Password,
		Version:       e.cfg.API.Version,
		Timeout:       e.cfg.API.Timeout,
		MaxRetries:    e.cfg.API.MaxRetries,
		TLSVerify:     e.cfg.API.TLSVerify,
		AllowInsecure: e.cfg.API.AllowInsecure,
	})
	dbValidated, dbErr := validator.ValidateDB(validation.DBDescriptor{
		Dialect:          e.cfg.Database.Dialect,
		Host:             e.cfg.Database.Host,
		Port:             e.cfg.Database.Port,
		Database:         e.cfg.Database.Database,
		Username:         e.cfg.Database.Username,
		Credential:       e.cfg.Database.Password,
		PoolSize:         e.cfg.Database.PoolSize,
		MaxOverflow:      e.cfg.Database.MaxOverflow,
		StatementTimeout: e.cfg.Database.StatementTimeout,
		SSLMode:          e.cfg.Database.SSLMode,
	})

	if apiErr != nil && dbErr != nil {
		// Nothing useful can be attempted.
		return nil, apperrors.Validation("both connection descriptors failed validation: api: %v; database: %v", apiErr, dbErr)
	}
	if apiErr != nil {
		agg.RecordError("", string(entity.SourceAPI), apiErr)
	}
	if dbErr != nil {
		agg.RecordError("", string(entity.SourceDatabase), dbErr)
	}

	cat, err := catalog.Load(e.logger)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(map[ratelimit.Source]ratelimit.Config{
		ratelimit.SourceAPI:      {Requests: e.cfg.RateLimit.APIRequests, Window: e.cfg.RateLimit.APIWindow},
		ratelimit.SourceDatabase: {Requests: e.cfg.RateLimit.DBRequests, Window: e.cfg.RateLimit.DBWindow},
	})

	session, pool := e.openChannels(ctx, apiErr == nil, dbErr == nil, apiValidated, dbValidated, cat, limiter, agg)
	if session != nil {
		defer session.Close()
	}
	if pool != nil {
		defer pool.Close()
	}

	outcomes := e.extractAll(ctx, session, pool)

	var tableEntities []entity.Entity
	for _, outcome := range outcomes {
		corr := correlate.Correlate(outcome.api, outcome.db, correlate.Options{})
		agg.AddKind(outcome.kind, outcome.api, outcome.db, corr)

		if outcome.kind == entity.KindTable {
			tableEntities = append(tableEntities, outcome.db.Entities...)
			if len(tableEntities) == 0 {
				tableEntities = append(tableEntities, outcome.api.Entities...)
			}
		}
	}

	e.detectInstance(ctx, session, pool, tableEntities, agg)

	rep := agg.Finalize()
	e.logger.Info("run complete",
		zap.String("run_id", rep.RunID),
		zap.Int("total_entities", rep.Summary.TotalEntities),
		zap.Int("total_errors", rep.Summary.TotalErrors),
		zap.Float64("overall_score", rep.Summary.OverallScore))
	return rep, nil
}

// openChannels opens the API session and database pool in parallel.
// Open failures are recorded, not fatal: the run proceeds with whatever
// channels are usable.
func (e *Engine) openChannels(
	ctx context.Context,
	apiOK, dbOK bool,
	apiValidated validation.ValidatedAPI,
	dbValidated validation.ValidatedDB,
	cat *catalog.Catalog,
	limiter *ratelimit.SourceLimiter,
	agg *report.Aggregator,
) (*sncapi.Session, sndb.Pool) {
	var (
		session *sncapi.Session
		pool    sndb.Pool
		wg      sync.WaitGroup
	)

	if apiOK {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := sncapi.Open(apiValidated, limiter, e.logger)
			if err := s.TestConnection(ctx); err != nil {
				e.logger.Warn("api channel unavailable",
					zap.String("error", logging.SanitizeError(err)))
				agg.RecordError("", string(entity.SourceAPI), err)
				s.Close()
				return
			}
			session = s
		}()
	}

	if dbOK {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := sndb.Open(ctx, dbValidated, cat, limiter, e.logger)
			if err != nil {
				e.logger.Warn("database channel unavailable",
					zap.String("error", logging.SanitizeError(err)))
				agg.RecordError("", string(entity.SourceDatabase), err)
				return
			}
			pool = p
		}()
	}

	wg.Wait()
	return session, pool
}

// extractAll runs both extractors for every kind, bounded by the worker
// cap. Within a kind the API and DB sides run concurrently and never block
// on each other; kinds only share the rate limiters.
func (e *Engine) extractAll(ctx context.Context, session *sncapi.Session, pool sndb.Pool) []kindOutcome {
	kinds := entity.Kinds()
	workers := e.cfg.Extraction.Workers
	if workers <= 0 {
		workers = len(kinds)
	}

	sem := make(chan struct{}, workers)
	results := make([]kindOutcome, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind entity.Kind) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.extractKind(ctx, kind, session, pool)
		}(i, kind)
	}
	wg.Wait()

	return results
}

// extractKind runs one kind's two extractors concurrently and returns the
// pair once both finish, success or not.
func (e *Engine) extractKind(ctx context.Context, kind entity.Kind, session *sncapi.Session, pool sndb.Pool) kindOutcome {
	var (
		apiResult *entity.ExtractionResult
		dbResult  *entity.ExtractionResult
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if session == nil {
			apiResult = entity.NewResult(kind, entity.SourceAPI)
			return
		}
		extractor := extract.NewAPIExtractor(kind, session, e.cfg.Extraction.PageSize, e.cfg.Extraction.PageCap, e.logger)
		apiResult = extractor.Extract(ctx)
	}()
	go func() {
		defer wg.Done()
		if pool == nil {
			dbResult = entity.NewResult(kind, entity.SourceDatabase)
			return
		}
		extractor := extract.NewDBExtractor(kind, pool, e.logger)
		dbResult = extractor.Extract(ctx)
	}()
	wg.Wait()

	return kindOutcome{kind: kind, api: apiResult, db: dbResult}
}

// detectInstance fills instance metadata, preferring the database channel
// and falling back to API properties.
func (e *Engine) detectInstance(ctx context.Context, session *sncapi.Session, pool sndb.Pool, tables []entity.Entity, agg *report.Aggregator) {
	class := correlate.ClassifyInstance(tables)

	if pool != nil {
		dbType, version := pool.InstanceInfo(ctx)
		if dbType != "" {
			agg.SetInstanceInfo(dbType, version, class)
			return
		}
	}
	if session != nil {
		dbType, version := session.InstanceInfo(ctx)
		agg.SetInstanceInfo(dbType, version, class)
		return
	}
	agg.SetInstanceInfo("", "", class)
}
