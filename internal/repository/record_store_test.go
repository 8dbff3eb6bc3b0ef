package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

func newTestRecordStore() (*RecordStore, *memoryKV, *memoryKV) {
	local, remote := newMemoryKV(), newMemoryKV()
	return NewRecordStore(local, remote, NewKeySpace("apotikme"), nil), local, remote
}

func TestRecordStoreMutateWritesAllKindsAndMirrors(t *testing.T) {
	store, local, remote := newTestRecordStore()
	ctx := context.Background()

	err := store.Mutate(ctx, []models.SubjectKind{models.SubjectKindProduct, models.SubjectKindStockAdjustment}, func(set RecordSet) error {
		set[models.SubjectKindProduct] = []models.Record{{"id": "prd-1", "openingStock": 10}}
		set[models.SubjectKindStockAdjustment] = []models.Record{{"id": "adj-1", "productId": "prd-1"}}
		return nil
	})
	require.NoError(t, err)

	assert.JSONEq(t, `[{"id":"prd-1","openingStock":10}]`, local.raw("apotikme:records:product"))
	assert.JSONEq(t, `[{"id":"adj-1","productId":"prd-1"}]`, remote.raw("apotikme:records:stock_adjustment"))
	assert.Empty(t, store.Dirty())
}

func TestRecordStoreMutateFailureWritesNothing(t *testing.T) {
	store, local, _ := newTestRecordStore()

	err := store.Mutate(context.Background(), []models.SubjectKind{models.SubjectKindProduct}, func(set RecordSet) error {
		set[models.SubjectKindProduct] = []models.Record{{"id": "prd-1"}}
		return errors.New("invalid")
	})
	require.Error(t, err)
	assert.Zero(t, local.sets)
}

func TestRecordStoreRemoteFailureMarksDirtyUntilFlush(t *testing.T) {
	store, _, remote := newTestRecordStore()
	remote.failSet = true
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, models.SubjectKindUnit, []models.Record{{"id": "unit-1"}}))
	assert.Equal(t, []models.SubjectKind{models.SubjectKindUnit}, store.Dirty())

	// a dirty kind is pushed rather than overwritten by the remote copy
	remote.failSet = false
	remote.data["apotikme:records:unit"] = json.RawMessage(`[]`)
	require.NoError(t, store.Pull(ctx, models.SubjectKindUnit))
	assert.JSONEq(t, `[{"id":"unit-1"}]`, remote.raw("apotikme:records:unit"))
	assert.Empty(t, store.Dirty())
	require.NoError(t, store.Flush(ctx))
}

func TestRecordStorePullRefreshesCleanKind(t *testing.T) {
	store, local, remote := newTestRecordStore()
	remote.data["apotikme:records:product"] = json.RawMessage(`{"id":"prd-1","openingStock":4}`)

	require.NoError(t, store.Pull(context.Background(), models.SubjectKindProduct))

	records, err := store.Load(context.Background(), models.SubjectKindProduct)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].StockAt("loc-1"))
	assert.NotEmpty(t, local.raw("apotikme:records:product"))
}

func TestRecordSetFindAndRemove(t *testing.T) {
	set := RecordSet{models.SubjectKindUnit: {{"id": "a"}, {"id": "b"}, {"id": "c"}}}

	idx, record, ok := set.Find(models.SubjectKindUnit, "b")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "b", record.ID())

	assert.True(t, set.Remove(models.SubjectKindUnit, "b"))
	assert.False(t, set.Remove(models.SubjectKindUnit, "b"))
	assert.Len(t, set[models.SubjectKindUnit], 2)
	assert.Equal(t, "c", set[models.SubjectKindUnit][1].ID())
}
