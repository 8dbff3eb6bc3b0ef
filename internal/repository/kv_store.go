package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

// KVStore is the get/set-by-key contract shared by the remote store and the local cache.
// Get returns appErrors.ErrKeyNotFound when the key holds no value.
type KVStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// AtomicKVStore can write several keys as one unit.
type AtomicKVStore interface {
	KVStore
	SetMany(ctx context.Context, entries map[string]json.RawMessage) error
}

// KeySpace derives store keys for change request collections, tombstones and subject records.
type KeySpace struct {
	Prefix string
}

// NewKeySpace trims trailing separators from prefix.
func NewKeySpace(prefix string) KeySpace {
	return KeySpace{Prefix: strings.TrimRight(strings.TrimSpace(prefix), ":")}
}

// ChangeRequests is the key holding the full request array for a kind.
func (k KeySpace) ChangeRequests(kind models.SubjectKind) string {
	return k.join("change-requests", string(kind))
}

// Tombstones is the key mapping removed request ids to their removal time. It is kept in the
// local cache and replicated to the remote store next to the collection.
func (k KeySpace) Tombstones(kind models.SubjectKind) string {
	return k.join("tombstones", string(kind))
}

// Records is the key holding a subject record collection.
func (k KeySpace) Records(kind models.SubjectKind) string {
	return k.join("records", string(kind))
}

func (k KeySpace) join(parts ...string) string {
	if k.Prefix == "" {
		return strings.Join(parts, ":")
	}
	return k.Prefix + ":" + strings.Join(parts, ":")
}

func sortedKeys(entries map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
