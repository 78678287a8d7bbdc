// Package testhelpers provides the shared PostgreSQL test container for
// integration tests. The container is seeded with a miniature copy of the
// system tables the extractors read.
package testhelpers

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestImage is the stock PostgreSQL image used for integration tests.
const TestImage = "postgres:16-alpine"

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// seedSchema creates and populates the system tables the cataloged queries
// read. Names and columns mirror what a real instance exposes; rows are
// deliberately few so assertions can enumerate them.
const seedSchema = `
CREATE TABLE sys_app_module (
    sys_id      varchar(32) PRIMARY KEY,
    name        varchar(255),
    title       varchar(255),
    application varchar(32),
    active      boolean,
    "order"     integer
);
CREATE TABLE sys_user_role (
    sys_id      varchar(32) PRIMARY KEY,
    name        varchar(255),
    description text,
    suffix      varchar(255),
    elevated_privilege boolean
);
CREATE TABLE sys_db_object (
    sys_id      varchar(32) PRIMARY KEY,
    name        varchar(255),
    label       varchar(255),
    super_class varchar(32),
    sys_package varchar(32)
);
CREATE TABLE sys_properties (
    sys_id      varchar(32) PRIMARY KEY,
    name        varchar(255),
    value       text,
    type        varchar(40),
    description text
);
CREATE TABLE sysauto_script (
    sys_id      varchar(32) PRIMARY KEY,
    name        varchar(255),
    active      boolean,
    run_type    varchar(40),
    run_period  varchar(40)
);

INSERT INTO sys_app_module VALUES
  ('m1', 'incident_overview', 'Incident Overview', 'app1', true,  100),
  ('m2', 'change_board',      'Change Board',      'app1', false, 200);
INSERT INTO sys_user_role VALUES
  ('r1', 'admin',    'Full control', NULL,       true),
  ('r2', 'itil',     'Fulfiller',    'fulfill',  false),
  ('r3', 'approver', NULL,           NULL,       false);
INSERT INTO sys_db_object VALUES
  ('t1', 'sys_user',  'User',     NULL, 'global'),
  ('t2', 'incident',  'Incident', 't3', 'global'),
  ('t3', 'task',      'Task',     NULL, 'global');
INSERT INTO sys_properties VALUES
  ('p1', 'glide.buildname', 'Washington DC', 'string', NULL),
  ('p2', 'glide.war',       '10.0.2',        'string', NULL);
INSERT INTO sysauto_script VALUES
  ('j1', 'LDAP Refresh', true, 'periodically', '3600');
`

// GetTestDB returns a shared seeded PostgreSQL container. The container is
// created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        TestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "sn_backing",
			"POSTGRES_USER":     "introspect",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://introspect:test_password@%s/sn_backing?sslmode=disable",
		net.JoinHostPort(host, port.Port()))

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// The readiness log can beat the final restart; retry the first ping.
	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("test database never became reachable: %w", err)
	}

	if _, err := pool.Exec(ctx, seedSchema); err != nil {
		return nil, fmt.Errorf("failed to seed system tables: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Int(),
	}, nil
}
