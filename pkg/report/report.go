// Package report assembles the final correlation report. The aggregator
// exclusively owns the report value; extractors and the correlator hand it
// immutable results and are done.
package report

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/correlate"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
)

// InstanceInfo is detected remote-system metadata, best effort.
type InstanceInfo struct {
	DBType  string                  `json:"db_type"`
	Version *string                 `json:"version"`
	Class   correlate.InstanceClass `json:"class,omitempty"`
}

// KindEntities holds both channels' entity sets for one kind.
type KindEntities struct {
	API      []entity.Entity `json:"api"`
	Database []entity.Entity `json:"database"`
}

// KindCorrelation is the per-kind correlation summary in wire form.
type KindCorrelation struct {
	Matched      int     `json:"matched"`
	APIOnly      int     `json:"api_only"`
	DatabaseOnly int     `json:"database_only"`
	Score        float64 `json:"score"`
}

// ReportError is one recorded failure with enough context to react.
type ReportError struct {
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
}

// Summary holds the run-level counters.
type Summary struct {
	TotalEntities int     `json:"total_entities"`
	TotalErrors   int     `json:"total_errors"`
	OverallScore  float64 `json:"overall_score"`
}

// Report is the single output value of a run. It always returns, even
// under total failure of one source.
type Report struct {
	RunID        string                          `json:"run_id"`
	StartedAt    time.Time                       `json:"started_at"`
	DurationMS   int64                           `json:"duration_ms"`
	InstanceInfo InstanceInfo                    `json:"instance_info"`
	Entities     map[entity.Kind]KindEntities    `json:"entities"`
	Correlation  map[entity.Kind]KindCorrelation `json:"correlation"`
	Errors       []ReportError                   `json:"errors"`
	Summary      Summary                         `json:"summary"`
}

// Aggregator accumulates per-kind results into a report.
type Aggregator struct {
	mu      sync.Mutex
	report  *Report
	scores  []float64
	started time.Time
}

// NewAggregator starts an empty report for a new run.
func NewAggregator() *Aggregator {
	now := time.Now().UTC()
	return &Aggregator{
		report: &Report{
			RunID:       uuid.NewString(),
			StartedAt:   now,
			Entities:    make(map[entity.Kind]KindEntities),
			Correlation: make(map[entity.Kind]KindCorrelation),
			Errors:      []ReportError{},
		},
		started: now,
	}
}

// AddKind records both extraction results and the correlation for a kind.
// Extraction errors ride along into the global error list; a failed source
// never aborts the aggregation.
func (a *Aggregator) AddKind(kind entity.Kind, apiResult, dbResult *entity.ExtractionResult, corr correlate.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.report.Entities[kind] = KindEntities{
		API:      nonNil(apiResult.Entities),
		Database: nonNil(dbResult.Entities),
	}
	a.report.Correlation[kind] = KindCorrelation{
		Matched:      len(corr.Matched),
		APIOnly:      len(corr.APIOnly),
		DatabaseOnly: len(corr.DBOnly),
		Score:        corr.Score,
	}

	a.recordErrorLocked(string(kind), string(entity.SourceAPI), apiResult.Err)
	a.recordErrorLocked(string(kind), string(entity.SourceDatabase), dbResult.Err)

	// Kinds empty on both sides carry a vacuous 1.0 and are excluded from
	// the overall mean.
	if len(apiResult.Entities) > 0 || len(dbResult.Entities) > 0 {
		a.scores = append(a.scores, corr.Score)
	}
}

// RecordError adds a failure not tied to one kind's extraction, e.g. a
// channel that failed to open.
func (a *Aggregator) RecordError(kind, source string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordErrorLocked(kind, source, err)
}

func (a *Aggregator) recordErrorLocked(kind, source string, err error) {
	if err == nil {
		return
	}

	entry := ReportError{
		Kind:      kind,
		Source:    source,
		ErrorKind: "error",
		Message:   err.Error(),
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		entry.ErrorKind = string(appErr.Kind)
		entry.Hint = appErr.Hint
	}

	a.report.Errors = append(a.report.Errors, entry)
}

// SetInstanceInfo records detected instance metadata. An empty version is
// rendered as JSON null rather than an empty string.
func (a *Aggregator) SetInstanceInfo(dbType, version string, class correlate.InstanceClass) {
	a.mu.Lock()
	defer a.mu.Unlock()

	info := InstanceInfo{DBType: dbType, Class: class}
	if version != "" {
		info.Version = &version
	}
	a.report.InstanceInfo = info
}

// Finalize computes the summary counters and returns the finished report.
// The aggregator must not be reused afterward.
func (a *Aggregator) Finalize() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0
	for _, kindEntities := range a.report.Entities {
		total += len(kindEntities.API) + len(kindEntities.Database)
	}

	overall := 0.0
	if len(a.scores) > 0 {
		sum := 0.0
		for _, s := range a.scores {
			sum += s
		}
		overall = sum / float64(len(a.scores))
	} else if len(a.report.Correlation) > 0 {
		// Every kind was empty on both sides: vacuous agreement.
		overall = 1.0
	}

	a.report.Summary = Summary{
		TotalEntities: total,
		TotalErrors:   len(a.report.Errors),
		OverallScore:  overall,
	}
	a.report.DurationMS = time.Since(a.started).Milliseconds()

	return a.report
}

func nonNil(entities []entity.Entity) []entity.Entity {
	if entities == nil {
		return []entity.Entity{}
	}
	return entities
}
