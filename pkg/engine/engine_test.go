package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishGautamKarn/sn-introspect/pkg/config"
	"github.com/AshishGautamKarn/sn-introspect/pkg/correlate"
	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
)

// newAPIServer serves the Table API shape for a fixed record set per table.
func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	tables := map[string][]map[string]any{
		"sys_app_module": {
			{"name": "incident_overview", "title": "Incident Overview", "active": "true"},
			{"name": "change_board", "title": "Change Board", "active": "false"},
		},
		"sys_user_role": {
			{"name": "admin", "description": "Full control"},
		},
		"sys_db_object": {
			{"name": "sys_user", "label": "User"},
			{"name": "incident", "label": "Incident"},
			{"name": "task", "label": "Task"},
		},
		"sys_properties": {
			{"name": "glide.buildname", "value": "Washington DC"},
			{"name": "glide.war", "value": "10.0.2"},
		},
		"sysauto_script": {
			{"name": "LDAP Refresh", "active": "true"},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		table := parts[len(parts)-1]
		_ = json.NewEncoder(w).Encode(map[string]any{"result": tables[table]})
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(apiBaseURL string) *config.Config {
	return &config.Config{
		Env: "local",
		API: config.APIConfig{
			BaseURL:       apiBaseURL,
			Username:      "svc_extract",
			Password:      "test-credential",
			AllowInsecure: true,
		},
		Database: config.DatabaseConfig{
			Dialect:  "postgres",
			Host:     "db.internal",
			Port:     5432,
			Database: "sn_backing",
			Username: "readonly",
		},
		Extraction: config.ExtractionConfig{
			Workers:  2,
			PageSize: 100,
			PageCap:  1,
		},
	}
}

func TestRunFailsWhenBothDescriptorsInvalid(t *testing.T) {
	cfg := testConfig("")
	cfg.Database.Dialect = "oracle"

	rep, err := New(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, rep)
}

func TestRunDegradedWithInvalidDatabaseDescriptor(t *testing.T) {
	server := newAPIServer(t)

	cfg := testConfig(server.URL)
	cfg.Database.Dialect = "oracle" // fails validation; API side carries the run

	rep, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep)

	// All five kinds extracted through the API channel.
	require.Len(t, rep.Entities, len(entity.Kinds()))
	assert.Len(t, rep.Entities[entity.KindModule].API, 2)
	assert.Len(t, rep.Entities[entity.KindTable].API, 3)
	assert.Empty(t, rep.Entities[entity.KindModule].Database)

	// Every API-side entity is api_only against an empty database side.
	corr := rep.Correlation[entity.KindModule]
	assert.Equal(t, 0, corr.Matched)
	assert.Equal(t, 2, corr.APIOnly)
	assert.Equal(t, 0.0, corr.Score)

	// The descriptor failure is in the error list with the database source.
	require.NotEmpty(t, rep.Errors)
	found := false
	for _, e := range rep.Errors {
		if e.Source == "database" && e.ErrorKind == "validation" {
			found = true
		}
	}
	assert.True(t, found, "missing database validation error: %+v", rep.Errors)

	// Instance metadata falls back to the API properties.
	assert.Equal(t, "Washington DC", rep.InstanceInfo.DBType)
	require.NotNil(t, rep.InstanceInfo.Version)
	assert.Equal(t, "10.0.2", *rep.InstanceInfo.Version)
	assert.Equal(t, correlate.ClassHostApplication, rep.InstanceInfo.Class)
}

func TestRunDegradedWhenAPIUnreachable(t *testing.T) {
	server := newAPIServer(t)
	server.Close() // refuse all connections

	cfg := testConfig(server.URL)
	cfg.Database.Host = "" // DB descriptor invalid instead of dialing a real host

	// Both channels are now unusable, but only one failed validation, so the
	// run still completes with an empty report.
	rep, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, 0, rep.Summary.TotalEntities)
	assert.GreaterOrEqual(t, rep.Summary.TotalErrors, 2)
}

func TestRunPreservesCompletedWorkOnCancellation(t *testing.T) {
	server := newAPIServer(t)
	cfg := testConfig(server.URL)
	cfg.Database.Dialect = "oracle"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := New(cfg, nil).Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, rep)

	// Nothing was extracted, but the report is intact and explains why.
	assert.Equal(t, 0, rep.Summary.TotalEntities)
	assert.NotEmpty(t, rep.Errors)
	assert.NotEmpty(t, rep.RunID)
}

func TestRunWorkerCapRespected(t *testing.T) {
	server := newAPIServer(t)
	cfg := testConfig(server.URL)
	cfg.Database.Dialect = "oracle"
	cfg.Extraction.Workers = 1 // serialize all kinds; the run must still finish

	rep, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Entities, len(entity.Kinds()))
}
