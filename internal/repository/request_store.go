package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/models"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

// DefaultTombstoneRetention is how long the id of a removed request keeps filtering stale copies.
const DefaultTombstoneRetention = 30 * 24 * time.Hour

// RemoteCollection is a change request collection as read from the remote store, together
// with the ids of requests removed by any client.
type RemoteCollection struct {
	Raw           json.RawMessage
	Requests      []models.ChangeRequest
	TombstonesRaw json.RawMessage
	Tombstones    map[string]time.Time
	Found         bool
}

// RequestStore owns the in-memory view of every change request collection and persists it
// to the local cache. Request collections are never read from or written to the remote store
// while a kind is locked; Update callbacks may still write subject records.
type RequestStore struct {
	local  AtomicKVStore
	remote KVStore
	keys   KeySpace
	logger *zap.Logger
	now    func() time.Time

	retention time.Duration

	mu    sync.Mutex
	kinds map[models.SubjectKind]*kindState
}

type kindState struct {
	mu         sync.Mutex
	loaded     bool
	requests   []models.ChangeRequest
	tombstones map[string]time.Time
}

// RequestStoreOption configures the store.
type RequestStoreOption func(*RequestStore)

// WithRequestStoreClock overrides the time source used to stamp tombstones.
func WithRequestStoreClock(now func() time.Time) RequestStoreOption {
	return func(s *RequestStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTombstoneRetention overrides DefaultTombstoneRetention.
func WithTombstoneRetention(retention time.Duration) RequestStoreOption {
	return func(s *RequestStore) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// NewRequestStore constructs the store.
func NewRequestStore(local AtomicKVStore, remote KVStore, keys KeySpace, logger *zap.Logger, opts ...RequestStoreOption) *RequestStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RequestStore{
		local:     local,
		remote:    remote,
		keys:      keys,
		logger:    logger,
		now:       time.Now,
		retention: DefaultTombstoneRetention,
		kinds:     make(map[models.SubjectKind]*kindState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TombstoneRetention reports how long removed ids are kept.
func (s *RequestStore) TombstoneRetention() time.Duration {
	return s.retention
}

func (s *RequestStore) state(kind models.SubjectKind) *kindState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.kinds[kind]
	if !ok {
		st = &kindState{tombstones: make(map[string]time.Time)}
		s.kinds[kind] = st
	}
	return st
}

// ensureLoaded reads the local cache once per kind. Caller holds st.mu.
func (s *RequestStore) ensureLoaded(ctx context.Context, kind models.SubjectKind, st *kindState) error {
	if st.loaded {
		return nil
	}

	raw, err := s.local.Get(ctx, s.keys.ChangeRequests(kind))
	switch {
	case errors.Is(err, appErrors.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("load local %s requests: %w", kind, err)
	default:
		requests, err := models.DecodeChangeRequests(raw)
		if err != nil {
			return fmt.Errorf("decode local %s requests: %w", kind, err)
		}
		st.requests = requests
	}

	raw, err = s.local.Get(ctx, s.keys.Tombstones(kind))
	switch {
	case errors.Is(err, appErrors.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("load %s tombstones: %w", kind, err)
	default:
		tombstones, err := decodeTombstones(raw, s.now().UTC())
		if err != nil {
			return fmt.Errorf("decode %s tombstones: %w", kind, err)
		}
		st.tombstones = tombstones
	}

	st.loaded = true
	return nil
}

// List returns a copy of the kind's collection.
func (s *RequestStore) List(ctx context.Context, kind models.SubjectKind) ([]models.ChangeRequest, error) {
	st := s.state(kind)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := s.ensureLoaded(ctx, kind, st); err != nil {
		return nil, err
	}
	return models.CloneChangeRequests(st.requests), nil
}

// Find looks a request up by id across every kind.
func (s *RequestStore) Find(ctx context.Context, id string) (models.ChangeRequest, bool, error) {
	for _, kind := range models.SubjectKinds {
		requests, err := s.List(ctx, kind)
		if err != nil {
			return models.ChangeRequest{}, false, err
		}
		for _, r := range requests {
			if r.ID == id {
				return r, true, nil
			}
		}
	}
	return models.ChangeRequest{}, false, nil
}

// Update runs fn against the kind's collection while holding its lock and persists the result
// to the local cache. Nothing changes when fn returns an error.
func (s *RequestStore) Update(ctx context.Context, kind models.SubjectKind, fn func(*Collection) error) ([]models.ChangeRequest, error) {
	st := s.state(kind)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := s.ensureLoaded(ctx, kind, st); err != nil {
		return nil, err
	}

	col := &Collection{
		Kind:       kind,
		Requests:   models.CloneChangeRequests(st.requests),
		tombstones: copyTombstones(st.tombstones),
		now:        s.now().UTC(),
	}

	if err := fn(col); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, kind, col); err != nil {
		return nil, err
	}

	st.requests = col.Requests
	st.tombstones = col.tombstones
	return models.CloneChangeRequests(st.requests), nil
}

func (s *RequestStore) persist(ctx context.Context, kind models.SubjectKind, col *Collection) error {
	requests := col.Requests
	if requests == nil {
		requests = []models.ChangeRequest{}
	}
	payload, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("encode %s requests: %w", kind, err)
	}
	tombstones, err := json.Marshal(col.Tombstones())
	if err != nil {
		return fmt.Errorf("encode %s tombstones: %w", kind, err)
	}
	if err := s.local.SetMany(ctx, map[string]json.RawMessage{
		s.keys.ChangeRequests(kind): payload,
		s.keys.Tombstones(kind):     tombstones,
	}); err != nil {
		return fmt.Errorf("persist %s requests: %w", kind, err)
	}
	return nil
}

// FetchRemote reads the kind's collection and tombstones from the remote store. Missing keys
// are not an error.
func (s *RequestStore) FetchRemote(ctx context.Context, kind models.SubjectKind) (RemoteCollection, error) {
	if s.remote == nil {
		return RemoteCollection{}, fmt.Errorf("fetch remote %s requests: remote store not configured", kind)
	}
	var collection RemoteCollection
	raw, err := s.remote.Get(ctx, s.keys.ChangeRequests(kind))
	switch {
	case errors.Is(err, appErrors.ErrKeyNotFound):
	case err != nil:
		return RemoteCollection{}, fmt.Errorf("fetch remote %s requests: %w", kind, err)
	default:
		requests, err := models.DecodeChangeRequests(raw)
		if err != nil {
			return RemoteCollection{}, fmt.Errorf("decode remote %s requests: %w", kind, err)
		}
		collection.Raw = raw
		collection.Requests = requests
		collection.Found = true
	}

	raw, err = s.remote.Get(ctx, s.keys.Tombstones(kind))
	switch {
	case errors.Is(err, appErrors.ErrKeyNotFound):
	case err != nil:
		return RemoteCollection{}, fmt.Errorf("fetch remote %s tombstones: %w", kind, err)
	default:
		tombstones, err := decodeTombstones(raw, s.now().UTC())
		if err != nil {
			return RemoteCollection{}, fmt.Errorf("decode remote %s tombstones: %w", kind, err)
		}
		collection.TombstonesRaw = raw
		collection.Tombstones = tombstones
	}
	return collection, nil
}

// PushRemote writes the current collection and its tombstones to the remote store, replacing
// whatever it holds. Tombstones are written first so a reader that sees the shorter collection
// also sees why it shrank. It returns what was written.
func (s *RequestStore) PushRemote(ctx context.Context, kind models.SubjectKind) (RemoteCollection, error) {
	if s.remote == nil {
		return RemoteCollection{}, fmt.Errorf("push %s requests: remote store not configured", kind)
	}

	st := s.state(kind)
	st.mu.Lock()
	if err := s.ensureLoaded(ctx, kind, st); err != nil {
		st.mu.Unlock()
		return RemoteCollection{}, err
	}
	requests := models.CloneChangeRequests(st.requests)
	tombstones := copyTombstones(st.tombstones)
	st.mu.Unlock()

	if requests == nil {
		requests = []models.ChangeRequest{}
	}
	payload, err := json.Marshal(requests)
	if err != nil {
		return RemoteCollection{}, fmt.Errorf("encode %s requests: %w", kind, err)
	}
	buried, err := json.Marshal(tombstones)
	if err != nil {
		return RemoteCollection{}, fmt.Errorf("encode %s tombstones: %w", kind, err)
	}
	if err := s.remote.Set(ctx, s.keys.Tombstones(kind), buried); err != nil {
		return RemoteCollection{}, fmt.Errorf("push %s tombstones: %w", kind, err)
	}
	if err := s.remote.Set(ctx, s.keys.ChangeRequests(kind), payload); err != nil {
		return RemoteCollection{}, fmt.Errorf("push %s requests: %w", kind, err)
	}
	return RemoteCollection{
		Raw:           payload,
		Requests:      requests,
		TombstonesRaw: buried,
		Tombstones:    tombstones,
		Found:         true,
	}, nil
}

// Collection is the mutable view handed to Update callbacks.
type Collection struct {
	Kind       models.SubjectKind
	Requests   []models.ChangeRequest
	tombstones map[string]time.Time
	now        time.Time
}

// Index returns the position of the request with id, or -1.
func (c *Collection) Index(id string) int {
	for i := range c.Requests {
		if c.Requests[i].ID == id {
			return i
		}
	}
	return -1
}

// Append adds a request.
func (c *Collection) Append(r models.ChangeRequest) {
	c.Requests = append(c.Requests, r)
}

// RemoveWhere drops matching requests and buries their ids so no stale copy, local or remote,
// brings them back.
func (c *Collection) RemoveWhere(match func(models.ChangeRequest) bool) []models.ChangeRequest {
	kept := c.Requests[:0]
	var removed []models.ChangeRequest
	for _, r := range c.Requests {
		if match(r) {
			removed = append(removed, r)
			if _, ok := c.tombstones[r.ID]; !ok {
				c.tombstones[r.ID] = c.now
			}
			continue
		}
		kept = append(kept, r)
	}
	c.Requests = kept
	return removed
}

// Buried reports whether id was removed on this or another client.
func (c *Collection) Buried(id string) bool {
	_, ok := c.tombstones[id]
	return ok
}

// Bury adopts tombstones written by other clients, keeping the earliest time per id, and
// drops the matching requests. It returns the dropped requests.
func (c *Collection) Bury(tombstones map[string]time.Time) []models.ChangeRequest {
	for id, at := range tombstones {
		if known, ok := c.tombstones[id]; !ok || at.Before(known) {
			c.tombstones[id] = at
		}
	}
	return c.RemoveWhere(func(r models.ChangeRequest) bool { return c.Buried(r.ID) })
}

// PruneTombstones forgets ids for which keep returns false.
func (c *Collection) PruneTombstones(keep func(id string, buriedAt time.Time) bool) {
	for id, at := range c.tombstones {
		if !keep(id, at) {
			delete(c.tombstones, id)
		}
	}
}

// Now is the time the collection was opened.
func (c *Collection) Now() time.Time {
	return c.now
}

// Tombstones returns a copy of the buried ids and when they were removed.
func (c *Collection) Tombstones() map[string]time.Time {
	return copyTombstones(c.tombstones)
}

func copyTombstones(in map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(in))
	for id, at := range in {
		out[id] = at
	}
	return out
}

// decodeTombstones reads the id to removal time map. A bare id array is accepted as well and
// stamped with now.
func decodeTombstones(raw json.RawMessage, now time.Time) (map[string]time.Time, error) {
	tombstones := make(map[string]time.Time)
	if len(raw) == 0 || string(raw) == "null" {
		return tombstones, nil
	}
	if err := json.Unmarshal(raw, &tombstones); err == nil {
		return tombstones, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		tombstones[id] = now
	}
	return tombstones, nil
}
