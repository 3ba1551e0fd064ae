package sqlstore

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	tcdolt "github.com/testcontainers/testcontainers-go/modules/dolt"
)

// TestStore_ServerModeAgainstContainer starts a real dolt sql-server via
// testcontainers-go and applies the schema against it over the MySQL
// wire protocol, exercising the server-mode path described in the
// package doc comment — a federated deployment without CGO. Skipped
// unless REPLAY_DOLT_CONTAINER_TESTS is set, since it needs Docker.
func TestStore_ServerModeAgainstContainer(t *testing.T) {
	if os.Getenv("REPLAY_DOLT_CONTAINER_TESTS") == "" {
		t.Skip("set REPLAY_DOLT_CONTAINER_TESTS=1 to run against a real dolt sql-server container")
	}

	ctx := context.Background()
	container, err := tcdolt.Run(ctx, "dolthub/dolt-sql-server:latest", tcdolt.WithDatabase("replay"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := sql.Open("mysql", connStr)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, schema)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO tracked_elements (kind, id, local_state, status)
		VALUES ('node', 1, 'conflicting', 'unresolved')`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracked_elements`).Scan(&count))
	require.Equal(t, 1, count)
}
