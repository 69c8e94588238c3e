package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/config"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
)

func TestDecode(t *testing.T) {
	roster, err := Decode(strings.NewReader(`[{"id":"p1","age":40},{"id":"p2"}]`))
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "p1", roster[0].ID)
	assert.Equal(t, "40", string(roster[0].Attributes["age"]))
}

func TestDecode_MissingID(t *testing.T) {
	_, err := Decode(strings.NewReader(`[{"id":"p1"},{"name":"anonymous"}]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, patient.ErrMissingID)
	assert.Contains(t, err.Error(), "entry 1")
}

func TestDecode_NotAnArray(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"id":"p1"}`))
	assert.Error(t, err)
}

func TestInspect_Duplicates(t *testing.T) {
	roster, err := Decode(strings.NewReader(`[{"id":"a"},{"id":"b"},{"id":"a"},{"id":"a"},{"id":"b"}]`))
	require.NoError(t, err)

	rep := Inspect("test", roster)
	assert.Equal(t, 5, rep.Count)
	assert.Equal(t, []string{"a", "b"}, rep.Duplicates)
}

func TestEmbeddedSource(t *testing.T) {
	roster, err := EmbeddedSource{}.Load(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, roster)

	rep := Inspect(KindEmbedded, roster)
	assert.Empty(t, rep.Duplicates, "bundled roster ids must be unique")
	for _, p := range roster {
		assert.NotEmpty(t, p.ID)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"f1","name":"From File"}]`), 0o600))

	src := FileSource{Path: path}
	roster, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "f1", roster[0].ID)
	assert.Equal(t, "file:"+path, src.Name())
}

func TestFileSource_Missing(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "absent.json")}.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Load(context.Context) ([]*patient.Patient, error) {
	return nil, errors.New("boom")
}

func TestLoad_WrapsSourceError(t *testing.T) {
	_, _, err := Load(context.Background(), failingSource{}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
}

func TestLoad_Report(t *testing.T) {
	roster, rep, err := Load(context.Background(), EmbeddedSource{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, len(roster), rep.Count)
	assert.Equal(t, KindEmbedded, rep.Source)
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(&config.Config{RosterSource: KindEmbedded}, Deps{})
	require.NoError(t, err)
	assert.IsType(t, EmbeddedSource{}, src)

	src, err = FromConfig(&config.Config{RosterSource: KindFile, RosterPath: "/tmp/x.json"}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "/tmp/x.json"}, src)

	src, err = FromConfig(&config.Config{RosterSource: KindSQLite, RosterPath: "/tmp/x.db", RosterTable: "patients"}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, SQLiteSource{Path: "/tmp/x.db", Table: "patients"}, src)

	_, err = FromConfig(&config.Config{RosterSource: KindPostgres, RosterTable: "patients"}, Deps{})
	assert.Error(t, err)

	src, err = FromConfig(&config.Config{RosterSource: KindPostgres, RosterTable: "patients"}, Deps{DB: &fakeQuerier{}})
	require.NoError(t, err)
	assert.Equal(t, "postgres:patients", src.Name())

	s3cfg := &config.Config{RosterSource: KindS3, RosterPath: "s3://clinic/patients.json"}
	_, err = FromConfig(s3cfg, Deps{})
	assert.Error(t, err)

	src, err = FromConfig(s3cfg, Deps{S3: &fakeObjects{}})
	require.NoError(t, err)
	assert.Equal(t, "s3://clinic/patients.json", src.Name())

	_, err = FromConfig(&config.Config{RosterSource: KindS3, RosterPath: "clinic/patients.json"}, Deps{S3: &fakeObjects{}})
	assert.Error(t, err)

	_, err = FromConfig(&config.Config{RosterSource: "mongo"}, Deps{})
	assert.ErrorIs(t, err, ErrUnknownSource)
}
