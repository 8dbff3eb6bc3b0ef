package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/models"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

// RecordSet holds subject record collections keyed by kind.
type RecordSet map[models.SubjectKind][]models.Record

// Find returns the index and record with id inside kind's collection.
func (s RecordSet) Find(kind models.SubjectKind, id string) (int, models.Record, bool) {
	for i, record := range s[kind] {
		if record.ID() == id {
			return i, record, true
		}
	}
	return -1, nil, false
}

// Remove drops the record with id and reports whether it existed.
func (s RecordSet) Remove(kind models.SubjectKind, id string) bool {
	idx, _, ok := s.Find(kind, id)
	if !ok {
		return false
	}
	records := s[kind]
	s[kind] = append(records[:idx:idx], records[idx+1:]...)
	return true
}

// RecordStore keeps subject record collections in the local cache and mirrors them to the
// remote store. Local writes are atomic across kinds; remote writes are best effort and
// retried through Flush.
type RecordStore struct {
	local  AtomicKVStore
	remote KVStore
	keys   KeySpace
	logger *zap.Logger

	mu      sync.Mutex
	version map[models.SubjectKind]uint64
	dirty   map[models.SubjectKind]uint64
}

// NewRecordStore constructs the store.
func NewRecordStore(local AtomicKVStore, remote KVStore, keys KeySpace, logger *zap.Logger) *RecordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{
		local:   local,
		remote:  remote,
		keys:    keys,
		logger:  logger,
		version: make(map[models.SubjectKind]uint64),
		dirty:   make(map[models.SubjectKind]uint64),
	}
}

// Load returns the kind's records from the local cache.
func (s *RecordStore) Load(ctx context.Context, kind models.SubjectKind) ([]models.Record, error) {
	raw, err := s.local.Get(ctx, s.keys.Records(kind))
	if err != nil {
		if errors.Is(err, appErrors.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s records: %w", kind, err)
	}
	records, err := models.DecodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s records: %w", kind, err)
	}
	return records, nil
}

// Mutate loads the given kinds, lets fn change them and writes every kind back in one local
// transaction before mirroring them remotely.
func (s *RecordStore) Mutate(ctx context.Context, kinds []models.SubjectKind, fn func(RecordSet) error) error {
	s.mu.Lock()
	set := make(RecordSet, len(kinds))
	for _, kind := range kinds {
		records, err := s.Load(ctx, kind)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		set[kind] = records
	}

	if err := fn(set); err != nil {
		s.mu.Unlock()
		return err
	}

	entries := make(map[string]json.RawMessage, len(kinds))
	for _, kind := range kinds {
		records := set[kind]
		if records == nil {
			records = []models.Record{}
		}
		payload, err := json.Marshal(records)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("encode %s records: %w", kind, err)
		}
		entries[s.keys.Records(kind)] = payload
	}
	if err := s.local.SetMany(ctx, entries); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist records: %w", err)
	}
	for _, kind := range kinds {
		s.version[kind]++
		s.dirty[kind] = s.version[kind]
	}
	s.mu.Unlock()

	for _, kind := range kinds {
		if err := s.Push(ctx, kind); err != nil {
			s.logger.Warn("record push deferred", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	return nil
}

// Replace overwrites a whole collection.
func (s *RecordStore) Replace(ctx context.Context, kind models.SubjectKind, records []models.Record) error {
	return s.Mutate(ctx, []models.SubjectKind{kind}, func(set RecordSet) error {
		set[kind] = records
		return nil
	})
}

// Push mirrors the local collection to the remote store and clears the dirty mark if no
// newer local write happened meanwhile.
func (s *RecordStore) Push(ctx context.Context, kind models.SubjectKind) error {
	if s.remote == nil {
		return nil
	}
	s.mu.Lock()
	version := s.version[kind]
	raw, err := s.local.Get(ctx, s.keys.Records(kind))
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, appErrors.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read %s records: %w", kind, err)
	}

	if err := s.remote.Set(ctx, s.keys.Records(kind), raw); err != nil {
		return fmt.Errorf("push %s records: %w", kind, err)
	}

	s.mu.Lock()
	if s.dirty[kind] == version {
		delete(s.dirty, kind)
	}
	s.mu.Unlock()
	return nil
}

// Pull refreshes the local copy from the remote store unless this client holds unpushed writes.
func (s *RecordStore) Pull(ctx context.Context, kind models.SubjectKind) error {
	if s.remote == nil {
		return nil
	}
	s.mu.Lock()
	_, dirty := s.dirty[kind]
	version := s.version[kind]
	s.mu.Unlock()
	if dirty {
		return s.Push(ctx, kind)
	}

	raw, err := s.remote.Get(ctx, s.keys.Records(kind))
	if err != nil {
		if errors.Is(err, appErrors.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("pull %s records: %w", kind, err)
	}
	if _, err := models.DecodeRecords(raw); err != nil {
		return fmt.Errorf("decode remote %s records: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version[kind] != version {
		return nil
	}
	if err := s.local.Set(ctx, s.keys.Records(kind), raw); err != nil {
		return fmt.Errorf("cache %s records: %w", kind, err)
	}
	return nil
}

// Dirty lists kinds with local writes not yet mirrored remotely.
func (s *RecordStore) Dirty() []models.SubjectKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]models.SubjectKind, 0, len(s.dirty))
	for _, kind := range models.SubjectKinds {
		if _, ok := s.dirty[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Flush retries every pending remote write.
func (s *RecordStore) Flush(ctx context.Context) error {
	var errs []error
	for _, kind := range s.Dirty() {
		if err := s.Push(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
