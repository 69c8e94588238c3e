package roster

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
)

//go:embed assets/patients.json
var bundledPatients []byte

// EmbeddedSource serves the roster bundled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return KindEmbedded }

func (EmbeddedSource) Load(_ context.Context) ([]*patient.Patient, error) {
	return Decode(bytes.NewReader(bundledPatients))
}

// FileSource reads a JSON array of patients from Path.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return KindFile + ":" + s.Path }

func (s FileSource) Load(_ context.Context) ([]*patient.Patient, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open roster file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
