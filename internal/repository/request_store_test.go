package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

var storeTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestRequestStore(opts ...RequestStoreOption) (*RequestStore, *memoryKV, *memoryKV) {
	local, remote := newMemoryKV(), newMemoryKV()
	opts = append([]RequestStoreOption{WithRequestStoreClock(func() time.Time { return storeTime })}, opts...)
	return NewRequestStore(local, remote, NewKeySpace("apotikme:"), nil, opts...), local, remote
}

func pendingRequest(id string, kind models.SubjectKind, subjectID string) models.ChangeRequest {
	return models.ChangeRequest{
		ID:          id,
		SubjectKind: kind,
		SubjectID:   subjectID,
		Action:      models.ChangeActionEdit,
		Reason:      "fix price",
		Status:      models.ChangeRequestStatusPending,
		IsNew:       true,
		CreatedAt:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestKeySpace(t *testing.T) {
	keys := NewKeySpace("apotikme:")
	assert.Equal(t, "apotikme:change-requests:product", keys.ChangeRequests(models.SubjectKindProduct))
	assert.Equal(t, "apotikme:tombstones:unit", keys.Tombstones(models.SubjectKindUnit))
	assert.Equal(t, "apotikme:records:stock_adjustment", keys.Records(models.SubjectKindStockAdjustment))
	assert.Equal(t, "records:unit", NewKeySpace("").Records(models.SubjectKindUnit))
}

func TestRequestStoreUpdatePersistsLocally(t *testing.T) {
	store, local, remote := newTestRequestStore()
	ctx := context.Background()

	_, err := store.Update(ctx, models.SubjectKindProduct, func(c *Collection) error {
		c.Append(pendingRequest("cr-1", models.SubjectKindProduct, "prd-1"))
		return nil
	})
	require.NoError(t, err)

	stored, err := models.DecodeChangeRequests([]byte(local.raw("apotikme:change-requests:product")))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "cr-1", stored[0].ID)
	assert.Equal(t, `{}`, local.raw("apotikme:tombstones:product"))
	assert.Empty(t, remote.raw("apotikme:change-requests:product"))
}

func TestRequestStoreUpdateErrorLeavesStateUntouched(t *testing.T) {
	store, local, _ := newTestRequestStore()
	ctx := context.Background()

	_, err := store.Update(ctx, models.SubjectKindUnit, func(c *Collection) error {
		c.Append(pendingRequest("cr-1", models.SubjectKindUnit, "unit-1"))
		return errors.New("boom")
	})
	require.Error(t, err)

	requests, err := store.List(ctx, models.SubjectKindUnit)
	require.NoError(t, err)
	assert.Empty(t, requests)
	assert.Zero(t, local.sets)
}

func TestRequestStoreLocalWriteFailureKeepsMemoryView(t *testing.T) {
	store, local, _ := newTestRequestStore()
	local.failSet = true

	_, err := store.Update(context.Background(), models.SubjectKindUnit, func(c *Collection) error {
		c.Append(pendingRequest("cr-1", models.SubjectKindUnit, "unit-1"))
		return nil
	})
	require.Error(t, err)

	local.failSet = false
	requests, err := store.List(context.Background(), models.SubjectKindUnit)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestRequestStoreLoadsFromLocalCache(t *testing.T) {
	store, local, _ := newTestRequestStore()
	payload, err := json.Marshal([]models.ChangeRequest{pendingRequest("cr-9", models.SubjectKindSupplier, "sup-1")})
	require.NoError(t, err)
	local.data["apotikme:change-requests:supplier"] = payload
	local.data["apotikme:tombstones:supplier"] = json.RawMessage(`["cr-gone"]`)

	found, ok, err := store.Find(context.Background(), "cr-9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.SubjectKindSupplier, found.SubjectKind)

	_, err = store.Update(context.Background(), models.SubjectKindSupplier, func(c *Collection) error {
		assert.True(t, c.Buried("cr-gone"))
		return nil
	})
	require.NoError(t, err)
}

func TestRequestStoreRemoveWhereRecordsTombstones(t *testing.T) {
	store, local, _ := newTestRequestStore()
	ctx := context.Background()

	_, err := store.Update(ctx, models.SubjectKindCategory, func(c *Collection) error {
		c.Append(pendingRequest("cr-1", models.SubjectKindCategory, "cat-1"))
		c.Append(pendingRequest("cr-2", models.SubjectKindCategory, "cat-2"))
		return nil
	})
	require.NoError(t, err)

	requests, err := store.Update(ctx, models.SubjectKindCategory, func(c *Collection) error {
		removed := c.RemoveWhere(func(r models.ChangeRequest) bool { return r.SubjectID == "cat-1" })
		assert.Len(t, removed, 1)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "cr-2", requests[0].ID)
	assert.JSONEq(t, `{"cr-1":"2024-05-01T08:00:00Z"}`, local.raw("apotikme:tombstones:category"))
}

func TestRequestStorePushAndFetchRemote(t *testing.T) {
	store, _, remote := newTestRequestStore()
	ctx := context.Background()

	missing, err := store.FetchRemote(ctx, models.SubjectKindCustomer)
	require.NoError(t, err)
	assert.False(t, missing.Found)

	_, err = store.Update(ctx, models.SubjectKindCustomer, func(c *Collection) error {
		c.Append(pendingRequest("cr-1", models.SubjectKindCustomer, "cus-1"))
		return nil
	})
	require.NoError(t, err)

	pushed, err := store.PushRemote(ctx, models.SubjectKindCustomer)
	require.NoError(t, err)
	assert.Equal(t, string(pushed.Raw), remote.raw("apotikme:change-requests:customer"))
	assert.Equal(t, `{}`, remote.raw("apotikme:tombstones:customer"))

	fetched, err := store.FetchRemote(ctx, models.SubjectKindCustomer)
	require.NoError(t, err)
	require.True(t, fetched.Found)
	require.Len(t, fetched.Requests, 1)
	assert.Equal(t, "cr-1", fetched.Requests[0].ID)
}

func TestRequestStoreFetchRemoteAcceptsSingleObject(t *testing.T) {
	store, _, remote := newTestRequestStore()
	remote.data["apotikme:change-requests:stock_adjustment"] = json.RawMessage(`{"id":"cr-1","subjectKind":"stock_adjustment","status":"PENDING"}`)

	fetched, err := store.FetchRemote(context.Background(), models.SubjectKindStockAdjustment)
	require.NoError(t, err)
	require.Len(t, fetched.Requests, 1)
	assert.Equal(t, "cr-1", fetched.Requests[0].ID)
}

func TestRequestStoreFetchRemoteUnavailable(t *testing.T) {
	store, _, remote := newTestRequestStore()
	remote.failGet = true

	_, err := store.FetchRemote(context.Background(), models.SubjectKindUnit)
	assert.ErrorIs(t, err, errStubUnavailable)
}

func TestRequestStoreReplicatesTombstones(t *testing.T) {
	store, _, remote := newTestRequestStore()
	ctx := context.Background()

	_, err := store.Update(ctx, models.SubjectKindUnit, func(c *Collection) error {
		c.Append(pendingRequest("cr-1", models.SubjectKindUnit, "unit-1"))
		c.Append(pendingRequest("cr-2", models.SubjectKindUnit, "unit-2"))
		return nil
	})
	require.NoError(t, err)
	_, err = store.Update(ctx, models.SubjectKindUnit, func(c *Collection) error {
		c.RemoveWhere(func(r models.ChangeRequest) bool { return r.ID == "cr-1" })
		return nil
	})
	require.NoError(t, err)

	pushed, err := store.PushRemote(ctx, models.SubjectKindUnit)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cr-1":"2024-05-01T08:00:00Z"}`, remote.raw("apotikme:tombstones:unit"))

	other := NewRequestStore(newMemoryKV(), remote, NewKeySpace("apotikme:"), nil)
	fetched, err := other.FetchRemote(ctx, models.SubjectKindUnit)
	require.NoError(t, err)
	assert.Equal(t, pushed.Tombstones, fetched.Tombstones)
	assert.Equal(t, string(pushed.TombstonesRaw), string(fetched.TombstonesRaw))
}

func TestCollectionBuryDropsRequestsAndKeepsEarliestTime(t *testing.T) {
	store, _, _ := newTestRequestStore()
	earlier := storeTime.Add(-time.Hour)

	requests, err := store.Update(context.Background(), models.SubjectKindSupplier, func(c *Collection) error {
		c.Append(pendingRequest("cr-1", models.SubjectKindSupplier, "sup-1"))
		c.Append(pendingRequest("cr-2", models.SubjectKindSupplier, "sup-2"))
		dropped := c.Bury(map[string]time.Time{"cr-1": earlier, "cr-9": storeTime})
		require.Len(t, dropped, 1)
		assert.Equal(t, "cr-1", dropped[0].ID)
		assert.True(t, c.Buried("cr-9"))
		assert.Equal(t, earlier, c.Tombstones()["cr-1"])

		c.PruneTombstones(func(id string, buriedAt time.Time) bool { return buriedAt.Equal(storeTime) })
		assert.False(t, c.Buried("cr-1"))
		assert.True(t, c.Buried("cr-9"))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "cr-2", requests[0].ID)
}
