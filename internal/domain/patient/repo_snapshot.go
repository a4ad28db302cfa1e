package patient

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cardicare/cardicare/internal/platform/codec"
	"github.com/cardicare/cardicare/internal/platform/fhir"
)

// SnapshotRepository serves records from a static JSON database: a list of
// per-patient entry lists, each holding one Patient resource and its
// clinical resources.
type SnapshotRepository struct {
	ids     []string
	records map[string]*Record
}

// NewSnapshotRepository indexes the given records. The first record wins
// when two share an id.
func NewSnapshotRepository(records ...*Record) *SnapshotRepository {
	repo := &SnapshotRepository{records: make(map[string]*Record, len(records))}
	for _, r := range records {
		if _, dup := repo.records[r.ID()]; dup {
			continue
		}
		repo.ids = append(repo.ids, r.ID())
		repo.records[r.ID()] = r
	}
	return repo
}

// LoadSnapshot reads a JSON database from disk.
func LoadSnapshot(path string) (*SnapshotRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// ReadSnapshot decodes a JSON database.
func ReadSnapshot(r io.Reader) (*SnapshotRepository, error) {
	var bundles [][]fhir.BundleEntry
	if err := codec.DecodeReader(r, &bundles); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	records := make([]*Record, 0, len(bundles))
	for i, b := range bundles {
		rec, err := NewRecord(b)
		if err != nil {
			return nil, fmt.Errorf("snapshot patient %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return NewSnapshotRepository(records...), nil
}

func (s *SnapshotRepository) ListIDs(_ context.Context) ([]string, error) {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out, nil
}

func (s *SnapshotRepository) Get(_ context.Context, id string) (*Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}
