package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("backup record not found")

// Store is the persistence contract for the backup mirror.
//
// Upsert applies the merge-don't-clobber reconciliation policy (see Merge);
// ReplaceAll swaps the whole set wholesale and is reserved for explicit user
// action (import/restore). Readers always observe either the pre- or
// post-update state, never a partial write.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Upsert(ctx context.Context, rec Record) (*Record, error)
	ReplaceAll(ctx context.Context, recs []Record) error
}

// FileStore keeps the mirror in a single JSON file holding an array of
// records. Writes go to a temp file in the same directory followed by a
// rename, so a crash mid-write leaves the previous file intact. Safe for a
// single process only; multi-instance deployments use PGStore.
type FileStore struct {
	path string
	mu   sync.RWMutex

	now func() time.Time
}

// NewFileStore creates a file-backed store at path. The file is created on
// first write; a missing file reads as an empty set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Get returns the record stored under key, or ErrNotFound.
func (s *FileStore) Get(ctx context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].Key() == key {
			rec := recs[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// List returns all records, ordered by document number within tax id.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key() < recs[j].Key() })
	return recs, nil
}

// Upsert merges rec into the stored set under its composite key and returns
// the merged record. A record that does not exist yet is stored as-is.
func (s *FileStore) Upsert(ctx context.Context, rec Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}

	merged := rec
	found := false
	for i := range recs {
		if recs[i].Key() == rec.Key() {
			merged = Merge(recs[i], rec)
			merged.UpdatedAt = s.now().UTC()
			recs[i] = merged
			found = true
			break
		}
	}
	if !found {
		merged.UpdatedAt = s.now().UTC()
		recs = append(recs, merged)
	}

	if err := s.save(recs); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ReplaceAll replaces the stored set wholesale.
func (s *FileStore) ReplaceAll(ctx context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	out := make([]Record, len(recs))
	for i, rec := range recs {
		rec.UpdatedAt = now
		out[i] = rec
	}
	return s.save(out)
}

func (s *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup file %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("backup file %s is corrupt: %w", s.path, err)
	}
	return recs, nil
}

// save writes the full record set atomically: marshal, write to a temp file
// in the same directory, fsync, rename over the target.
func (s *FileStore) save(recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup records: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp backup file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp backup file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp backup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp backup file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace backup file: %w", err)
	}
	return nil
}
