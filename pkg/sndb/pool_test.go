package sndb

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperrors.Kind
	}{
		{"nil", nil, ""},
		{"context canceled", context.Canceled, apperrors.KindTimeout},
		{"context deadline", context.DeadlineExceeded, apperrors.KindTimeout},
		{"pg insufficient privilege", &pgconn.PgError{Code: "42501"}, apperrors.KindPermissionDenied},
		{"pg statement timeout", &pgconn.PgError{Code: "57014"}, apperrors.KindTimeout},
		{"pg other", &pgconn.PgError{Code: "42P01"}, apperrors.KindConnectionFailed},
		{"mssql select denied", mssql.Error{Number: 229}, apperrors.KindPermissionDenied},
		{"mssql object denied", mssql.Error{Number: 230}, apperrors.KindPermissionDenied},
		{"mssql execute denied", mssql.Error{Number: 300}, apperrors.KindPermissionDenied},
		{"mssql other", mssql.Error{Number: 4060}, apperrors.KindConnectionFailed},
		{"plain network error", errors.New("connection reset by peer"), apperrors.KindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err, "query role/list")
			if tt.kind == "" {
				assert.NoError(t, got)
				return
			}
			require.Error(t, got)
			assert.Equal(t, tt.kind, apperrors.KindOf(got))
		})
	}
}

func TestClassifyErrorPassesThroughTaxonomy(t *testing.T) {
	original := apperrors.QueryRejected("no catalog entry", nil)
	got := classifyError(original, "query")

	assert.Same(t, error(original), got)
}

func TestClassifyErrorPermissionHint(t *testing.T) {
	got := classifyError(&pgconn.PgError{Code: "42501"}, "query table/list")

	var appErr *apperrors.Error
	require.ErrorAs(t, got, &appErr)
	assert.Contains(t, appErr.Hint, "read-only extraction account")
	assert.False(t, appErr.IsRetryable())
}
