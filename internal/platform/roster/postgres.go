package roster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
)

// Querier is the subset of *pgxpool.Pool the Postgres source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads one patient document per row. The table must have a
// jsonb "doc" column and an orderable "position" column, as created by the
// db migrations.
type PostgresSource struct {
	db    Querier
	table string
}

func NewPostgresSource(db Querier, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (s *PostgresSource) Name() string { return KindPostgres + ":" + s.table }

func (s *PostgresSource) Load(ctx context.Context) ([]*patient.Patient, error) {
	query := fmt.Sprintf("SELECT doc FROM %s ORDER BY position", pgx.Identifier{s.table}.Sanitize())
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var roster []*patient.Patient
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.table, err)
		}
		p := &patient.Patient{}
		if err := json.Unmarshal(doc, p); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", s.table, len(roster)+1, err)
		}
		roster = append(roster, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return roster, nil
}

// TxBeginner is the subset of *pgxpool.Pool Seed needs.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Seed replaces the contents of table with roster, keeping roster order in
// the position column. The table is left untouched if any insert fails.
func Seed(ctx context.Context, db TxBeginner, table string, roster []*patient.Patient) (int, error) {
	ident := pgx.Identifier{table}.Sanitize()

	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+ident); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	insert := "INSERT INTO " + ident + " (position, doc) VALUES ($1, $2)"
	for i, p := range roster {
		doc, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("encode patient %s: %w", p.ID, err)
		}
		if _, err := tx.Exec(ctx, insert, i+1, doc); err != nil {
			return 0, fmt.Errorf("insert patient %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", table, err)
	}
	return len(roster), nil
}
