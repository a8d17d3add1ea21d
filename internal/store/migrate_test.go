package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	body := "-- header\nCREATE TABLE a (id INT);\n\nCREATE INDEX i ON a (id);\n-- trailing comment\n"
	stmts := splitStatements(body)
	require.Len(t, stmts, 2)
	assert.Equal(t, "-- header\nCREATE TABLE a (id INT)", stmts[0])
	assert.Equal(t, "CREATE INDEX i ON a (id)", stmts[1])
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	for _, name := range []string{"migrations/0001_init.sql", "migrations/0002_attendance.sql"} {
		body, err := migrationFiles.ReadFile(name)
		require.NoError(t, err)
		stmts := splitStatements(string(body))
		assert.NotEmpty(t, stmts, name)
		for _, s := range stmts {
			assert.NotContains(t, s, ";\n", name)
		}
	}
}
