package roster

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSQLiteRoster(t *testing.T, docs ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE patients (position INTEGER PRIMARY KEY, doc TEXT NOT NULL)`)
	require.NoError(t, err)
	// Inserted in reverse to check ORDER BY position.
	for i := len(docs) - 1; i >= 0; i-- {
		_, err = db.Exec(`INSERT INTO patients (position, doc) VALUES (?, ?)`, i+1, docs[i])
		require.NoError(t, err)
	}
	return path
}

func TestSQLiteSource_Load(t *testing.T) {
	path := writeSQLiteRoster(t,
		`{"id":"s1","name":"First"}`,
		`{"id":"s2","name":"Second","riskLevel":"high"}`,
	)

	roster, err := SQLiteSource{Path: path, Table: "patients"}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "s1", roster[0].ID)
	assert.Equal(t, "s2", roster[1].ID)

	risk, ok := roster[1].Attribute("riskLevel")
	require.True(t, ok)
	assert.JSONEq(t, `"high"`, string(risk))
}

func TestSQLiteSource_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")

	_, err := SQLiteSource{Path: path, Table: "patients"}.Load(context.Background())
	assert.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestSQLiteSource_MissingTable(t *testing.T) {
	path := writeSQLiteRoster(t)

	_, err := SQLiteSource{Path: path, Table: "nope"}.Load(context.Background())
	assert.ErrorContains(t, err, "query nope")
}

func TestSQLiteSource_BadDocument(t *testing.T) {
	path := writeSQLiteRoster(t, `{"id":"ok"}`, `{"name":"no id"}`)

	_, err := SQLiteSource{Path: path, Table: "patients"}.Load(context.Background())
	assert.ErrorContains(t, err, "row 2")
}
