package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
)

// SQLiteSource reads a roster file laid out like the Postgres table: a
// "position" column and a "doc" column holding one JSON document per row.
type SQLiteSource struct {
	Path  string
	Table string
}

func (s SQLiteSource) Name() string { return KindSQLite + ":" + s.Path }

func (s SQLiteSource) Load(ctx context.Context) ([]*patient.Patient, error) {
	// The driver creates missing files, which would hide a typo in the path.
	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("open sqlite roster: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+s.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite roster: %w", err)
	}
	defer func() { _ = db.Close() }()

	query := fmt.Sprintf("SELECT doc FROM %s ORDER BY position", pgx.Identifier{s.Table}.Sanitize())
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var roster []*patient.Patient
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.Table, err)
		}
		p := &patient.Patient{}
		if err := json.Unmarshal(doc, p); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", s.Table, len(roster)+1, err)
		}
		roster = append(roster, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.Table, err)
	}
	return roster, nil
}
