package roster

import (
	"fmt"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/config"
)

// Deps carries the clients a source may need. Only the one matching the
// configured source has to be set.
type Deps struct {
	DB Querier
	S3 ObjectGetter
}

// FromConfig picks the source named by cfg.RosterSource.
func FromConfig(cfg *config.Config, deps Deps) (Source, error) {
	switch cfg.RosterSource {
	case KindEmbedded, "":
		return EmbeddedSource{}, nil
	case KindFile:
		return FileSource{Path: cfg.RosterPath}, nil
	case KindSQLite:
		return SQLiteSource{Path: cfg.RosterPath, Table: cfg.RosterTable}, nil
	case KindS3:
		if deps.S3 == nil {
			return nil, fmt.Errorf("s3 roster source needs an s3 client")
		}
		bucket, key, err := ParseS3URL(cfg.RosterPath)
		if err != nil {
			return nil, err
		}
		return NewS3Source(deps.S3, bucket, key), nil
	case KindPostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres roster source needs a database connection")
		}
		return NewPostgresSource(deps.DB, cfg.RosterTable), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.RosterSource)
	}
}
