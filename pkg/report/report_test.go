package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
	"github.com/AshishGautamKarn/sn-introspect/pkg/correlate"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
)

func resultWithKeys(kind entity.Kind, source entity.Source, keys ...string) *entity.ExtractionResult {
	r := entity.NewResult(kind, source)
	for _, key := range keys {
		r.Add(entity.New(kind, key, source))
	}
	return r
}

func TestAddKindRecordsEntitiesAndCorrelation(t *testing.T) {
	agg := NewAggregator()

	api := resultWithKeys(entity.KindRole, entity.SourceAPI, "admin", "itil")
	db := resultWithKeys(entity.KindRole, entity.SourceDatabase, "admin")
	corr := correlate.Correlate(api, db, correlate.Options{})

	agg.AddKind(entity.KindRole, api, db, corr)
	rep := agg.Finalize()

	require.Contains(t, rep.Entities, entity.KindRole)
	assert.Len(t, rep.Entities[entity.KindRole].API, 2)
	assert.Len(t, rep.Entities[entity.KindRole].Database, 1)

	kc := rep.Correlation[entity.KindRole]
	assert.Equal(t, 1, kc.Matched)
	assert.Equal(t, 1, kc.APIOnly)
	assert.Equal(t, 0, kc.DatabaseOnly)
	assert.Equal(t, 0.5, kc.Score)

	assert.Equal(t, 3, rep.Summary.TotalEntities)
	assert.Equal(t, 0.5, rep.Summary.OverallScore)
	assert.NotEmpty(t, rep.RunID)
}

func TestAddKindCarriesExtractionErrors(t *testing.T) {
	agg := NewAggregator()

	api := resultWithKeys(entity.KindTable, entity.SourceAPI, "incident")
	db := entity.NewResult(entity.KindTable, entity.SourceDatabase)
	db.Err = apperrors.PermissionDenied("select denied", "grant SELECT on the system tables", nil)

	agg.AddKind(entity.KindTable, api, db, correlate.Correlate(api, db, correlate.Options{}))
	rep := agg.Finalize()

	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "table", rep.Errors[0].Kind)
	assert.Equal(t, "database", rep.Errors[0].Source)
	assert.Equal(t, "permission_denied", rep.Errors[0].ErrorKind)
	assert.Contains(t, rep.Errors[0].Hint, "grant SELECT")
	assert.Equal(t, 1, rep.Summary.TotalErrors)
}

func TestOverallScoreAveragesNonEmptyKinds(t *testing.T) {
	agg := NewAggregator()

	// Perfect agreement.
	api1 := resultWithKeys(entity.KindRole, entity.SourceAPI, "admin")
	db1 := resultWithKeys(entity.KindRole, entity.SourceDatabase, "admin")
	agg.AddKind(entity.KindRole, api1, db1, correlate.Correlate(api1, db1, correlate.Options{}))

	// Total disagreement.
	api2 := resultWithKeys(entity.KindTable, entity.SourceAPI, "incident")
	db2 := resultWithKeys(entity.KindTable, entity.SourceDatabase, "problem")
	agg.AddKind(entity.KindTable, api2, db2, correlate.Correlate(api2, db2, correlate.Options{}))

	// Empty on both sides: vacuous, excluded from the mean.
	api3 := entity.NewResult(entity.KindScheduledJob, entity.SourceAPI)
	db3 := entity.NewResult(entity.KindScheduledJob, entity.SourceDatabase)
	agg.AddKind(entity.KindScheduledJob, api3, db3, correlate.Correlate(api3, db3, correlate.Options{}))

	rep := agg.Finalize()
	assert.Equal(t, 0.5, rep.Summary.OverallScore)
}

func TestOverallScoreAllEmptyIsVacuouslyPerfect(t *testing.T) {
	agg := NewAggregator()

	for _, kind := range entity.Kinds() {
		api := entity.NewResult(kind, entity.SourceAPI)
		db := entity.NewResult(kind, entity.SourceDatabase)
		agg.AddKind(kind, api, db, correlate.Correlate(api, db, correlate.Options{}))
	}

	rep := agg.Finalize()
	assert.Equal(t, 1.0, rep.Summary.OverallScore)
	assert.Equal(t, 0, rep.Summary.TotalEntities)
}

func TestRecordErrorWithForeignError(t *testing.T) {
	agg := NewAggregator()
	agg.RecordError("", "api", assert.AnError)
	agg.RecordError("role", "database", nil) // nil is a no-op

	rep := agg.Finalize()
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "error", rep.Errors[0].ErrorKind)
	assert.Empty(t, rep.Errors[0].Hint)
}

func TestSetInstanceInfoVersionNull(t *testing.T) {
	agg := NewAggregator()
	agg.SetInstanceInfo("PostgreSQL 16.2", "", correlate.ClassTargetInstance)

	rep := agg.Finalize()
	raw, err := json.Marshal(rep.InstanceInfo)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "PostgreSQL 16.2", decoded["db_type"])

	version, present := decoded["version"]
	assert.True(t, present)
	assert.Nil(t, version)
	assert.Equal(t, "target_instance", decoded["class"])
}

func TestFinalizedReportMarshals(t *testing.T) {
	agg := NewAggregator()
	api := resultWithKeys(entity.KindModule, entity.SourceAPI, "incident_overview")
	db := resultWithKeys(entity.KindModule, entity.SourceDatabase, "incident_overview")
	agg.AddKind(entity.KindModule, api, db, correlate.Correlate(api, db, correlate.Options{}))
	agg.SetInstanceInfo("PostgreSQL 16.2", "10.0.2", correlate.ClassTargetInstance)

	rep := agg.Finalize()
	raw, err := json.Marshal(rep)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, field := range []string{"run_id", "started_at", "duration_ms", "instance_info", "entities", "correlation", "errors", "summary"} {
		assert.Contains(t, decoded, field)
	}

	// Errors is a JSON array even when empty, never null.
	assert.NotNil(t, decoded["errors"])
}
