// Package roster loads the patient roster handed to the selection store.
// Parsing happens here, once, before the store is built.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
)

// Source kinds accepted by FromConfig.
const (
	KindEmbedded = "embedded"
	KindFile     = "file"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindS3       = "s3"
)

var ErrUnknownSource = errors.New("unknown roster source")

// Source produces an already parsed roster.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]*patient.Patient, error)
}

// Decode reads a JSON array of patient documents.
func Decode(r io.Reader) ([]*patient.Patient, error) {
	var docs []json.RawMessage
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	roster := make([]*patient.Patient, 0, len(docs))
	for i, doc := range docs {
		p := &patient.Patient{}
		if err := json.Unmarshal(doc, p); err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}
		roster = append(roster, p)
	}
	return roster, nil
}

// Report summarises a loaded roster.
type Report struct {
	Source     string   `json:"source"`
	Count      int      `json:"count"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// Inspect counts the roster and lists ids that occur more than once, in
// order of first repetition.
func Inspect(name string, roster []*patient.Patient) Report {
	seen := make(map[string]int, len(roster))
	rep := Report{Source: name, Count: len(roster)}
	for _, p := range roster {
		seen[p.ID]++
		if seen[p.ID] == 2 {
			rep.Duplicates = append(rep.Duplicates, p.ID)
		}
	}
	return rep
}

// Load runs src and logs what it produced. Duplicate ids are kept; lookups
// resolve to the first occurrence.
func Load(ctx context.Context, src Source, logger zerolog.Logger) ([]*patient.Patient, Report, error) {
	roster, err := src.Load(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("load roster from %s: %w", src.Name(), err)
	}
	rep := Inspect(src.Name(), roster)
	if len(rep.Duplicates) > 0 {
		logger.Warn().
			Str("source", rep.Source).
			Strs("ids", rep.Duplicates).
			Msg("roster has duplicate patient ids, first occurrence wins")
	}
	logger.Info().Str("source", rep.Source).Int("patients", rep.Count).Msg("roster loaded")
	return roster, rep, nil
}
