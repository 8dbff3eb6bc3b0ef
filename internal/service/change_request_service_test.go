package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasukras-star/apotikme-api/internal/dto"
	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/internal/repository"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

func editProduct(id, reason, proposed string) dto.SubmitChangeRequest {
	return dto.SubmitChangeRequest{
		SubjectKind:  models.SubjectKindProduct,
		SubjectID:    id,
		Action:       models.ChangeActionEdit,
		Reason:       reason,
		ProposedData: json.RawMessage(proposed),
	}
}

func deleteProduct(id, reason string) dto.SubmitChangeRequest {
	return dto.SubmitChangeRequest{
		SubjectKind: models.SubjectKindProduct,
		SubjectID:   id,
		Action:      models.ChangeActionDelete,
		Reason:      reason,
	}
}

func newProductClient(t *testing.T, opts ...ChangeRequestServiceOption) *engineClient {
	t.Helper()
	remote, _ := newSharedRemote(t)
	client := newEngineClient(t, "kasir-1", remote, newTestClock(), opts...)
	client.seed(t, models.SubjectKindProduct,
		productRecord("P1", "Paracetamol 500mg", 80, 10),
		productRecord("P2", "Amoxicillin", 120, 4),
	)
	return client
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func TestChangeRequestServiceSubmitValidation(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	cases := map[string]dto.SubmitChangeRequest{
		"empty reason":        editProduct("P1", "  ", `{"price":100}`),
		"edit without data":   editProduct("P1", "harga baru", ""),
		"edit with null data": editProduct("P1", "harga baru", "null"),
		"unknown kind": {
			SubjectKind: "vitamin", SubjectID: "P1", Action: models.ChangeActionDelete, Reason: "x",
		},
		"global outside stock adjustment": {
			SubjectKind: models.SubjectKindProduct, SubjectID: "P1", Action: models.ChangeActionDelete, Reason: "x", IsGlobal: true,
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.svc.Submit(ctx, req, "op-1")
			assertCode(t, err, appErrors.ErrValidation.Code)
		})
	}

	requests, err := client.svc.ListByKind(ctx, models.SubjectKindProduct)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestChangeRequestServiceSubmitUnknownSubject(t *testing.T) {
	client := newProductClient(t)

	_, err := client.svc.Submit(context.Background(), editProduct("P404", "harga baru", `{"price":1}`), "op-1")

	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestChangeRequestServiceEditApprovalAppliesProposedData(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestStatusPending, submitted.Status)
	assert.True(t, submitted.IsNew)
	assert.Equal(t, baseTime, submitted.CreatedAt)
	assert.JSONEq(t, `{"id":"P1","name":"Paracetamol 500mg","price":80,"openingStock":10}`, string(submitted.CurrentSnapshot))

	approved, err := client.svc.Approve(ctx, submitted.ID, "apv-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestStatusApproved, approved.Status)
	assert.False(t, approved.IsNew)
	require.NotNil(t, approved.DecidedAt)
	assert.Equal(t, "apv-1", approved.DecidedBy)

	product := client.record(t, models.SubjectKindProduct, "P1")
	price, ok := product.Int("price")
	require.True(t, ok)
	assert.Equal(t, 100, price)
	assert.Equal(t, "Paracetamol 500mg", product.String("name"))

	assert.Equal(t, []string{models.AuditActionChangeRequestSubmit, models.AuditActionChangeRequestApprove}, client.audit.actions())
	assert.Contains(t, client.loop.DirtyKinds(), models.SubjectKindProduct)
}

func TestChangeRequestServiceApproveTwiceLeavesSubjectUnchanged(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	_, err = client.svc.Approve(ctx, submitted.ID, "apv-1")
	require.NoError(t, err)

	_, err = client.svc.Approve(ctx, submitted.ID, "apv-1")
	assertCode(t, err, appErrors.ErrNotFound.Code)

	price, _ := client.record(t, models.SubjectKindProduct, "P1").Int("price")
	assert.Equal(t, 100, price)
}

func TestChangeRequestServiceApplyFailureKeepsPending(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	client.seed(t, models.SubjectKindProduct, productRecord("P2", "Amoxicillin", 120, 4))

	_, err = client.svc.Approve(ctx, submitted.ID, "apv-1")
	assertCode(t, err, appErrors.ErrApply.Code)

	current, ok, err := client.requests.Find(ctx, submitted.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ChangeRequestStatusPending, current.Status)
	assert.Nil(t, current.DecidedAt)
}

// rejectingStore runs reject once, right after the first lookup, so it lands between
// Approve's status check and its update.
type rejectingStore struct {
	changeRequestStore
	fired  atomic.Bool
	reject func()
}

func (s *rejectingStore) Find(ctx context.Context, id string) (models.ChangeRequest, bool, error) {
	request, ok, err := s.changeRequestStore.Find(ctx, id)
	if s.fired.CompareAndSwap(false, true) {
		s.reject()
	}
	return request, ok, err
}

func TestChangeRequestServiceApproveLosingToRejectLeavesSubjectUntouched(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)

	client.svc.store = &rejectingStore{
		changeRequestStore: client.requests,
		reject: func() {
			_, err := client.svc.Reject(ctx, submitted.ID, dto.RejectChangeRequest{Reason: "harga salah"}, "apv-2")
			require.NoError(t, err)
		},
	}

	_, err = client.svc.Approve(ctx, submitted.ID, "apv-1")
	assertCode(t, err, appErrors.ErrNotFound.Code)

	current, ok, err := client.requests.Find(ctx, submitted.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ChangeRequestStatusRejected, current.Status)

	price, _ := client.record(t, models.SubjectKindProduct, "P1").Int("price")
	assert.Equal(t, 80, price)
	assert.Equal(t, []string{models.AuditActionChangeRequestSubmit, models.AuditActionChangeRequestReject}, client.audit.actions())
}

func TestChangeRequestServiceConcurrentApproveAndReject(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	price := 80
	for i := 0; i < 10; i++ {
		proposed := 100 + i
		submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", fmt.Sprintf(`{"price":%d}`, proposed)), "op-1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = client.svc.Approve(ctx, submitted.ID, "apv-1")
		}()
		go func() {
			defer wg.Done()
			_, _ = client.svc.Reject(ctx, submitted.ID, dto.RejectChangeRequest{Reason: "harga salah"}, "apv-2")
		}()
		wg.Wait()

		current, ok, err := client.requests.Find(ctx, submitted.ID)
		require.NoError(t, err)
		require.True(t, ok)
		if current.Status == models.ChangeRequestStatusApproved {
			price = proposed
		} else {
			require.Equal(t, models.ChangeRequestStatusRejected, current.Status)
		}
		got, _ := client.record(t, models.SubjectKindProduct, "P1").Int("price")
		require.Equal(t, price, got, "round %d ended %s", i, current.Status)
	}
}

func TestChangeRequestServiceReject(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)

	_, err = client.svc.Reject(ctx, submitted.ID, dto.RejectChangeRequest{Reason: " "}, "apv-1")
	assertCode(t, err, appErrors.ErrValidation.Code)

	rejected, err := client.svc.Reject(ctx, submitted.ID, dto.RejectChangeRequest{Reason: "invalid"}, "apv-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestStatusRejected, rejected.Status)
	assert.Equal(t, "invalid", rejected.RejectionReason)
	assert.False(t, rejected.IsNew)
	require.NotNil(t, rejected.DecidedAt)

	price, _ := client.record(t, models.SubjectKindProduct, "P1").Int("price")
	assert.Equal(t, 80, price)

	_, err = client.svc.Reject(ctx, submitted.ID, dto.RejectChangeRequest{Reason: "again"}, "apv-1")
	assertCode(t, err, appErrors.ErrNotFound.Code)

	// a rejected subject can be proposed again
	_, err = client.svc.Submit(ctx, editProduct("P1", "harga koreksi", `{"price":90}`), "op-1")
	require.NoError(t, err)
}

func TestChangeRequestServiceStatusGraph(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)

	_, err = client.svc.Complete(ctx, submitted.ID, "op-1")
	assertCode(t, err, appErrors.ErrConflict.Code)
	current, _, err := client.requests.Find(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestStatusPending, current.Status)

	_, err = client.svc.Approve(ctx, submitted.ID, "apv-1")
	require.NoError(t, err)
	completed, err := client.svc.Complete(ctx, submitted.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	_, err = client.svc.Complete(ctx, submitted.ID, "op-1")
	assertCode(t, err, appErrors.ErrConflict.Code)
	err = client.svc.Cancel(ctx, submitted.ID, "op-1")
	assertCode(t, err, appErrors.ErrConflict.Code)
	_, err = client.svc.Approve(ctx, submitted.ID, "apv-1")
	assertCode(t, err, appErrors.ErrNotFound.Code)

	_, err = client.svc.Approve(ctx, "missing", "apv-1")
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestChangeRequestServiceDeleteWaitsForComplete(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	earlier, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	_, err = client.svc.Reject(ctx, earlier.ID, dto.RejectChangeRequest{Reason: "salah"}, "apv-1")
	require.NoError(t, err)
	other, err := client.svc.Submit(ctx, editProduct("P2", "harga baru", `{"price":130}`), "op-1")
	require.NoError(t, err)

	client.clock.Advance(time.Minute)
	deletion, err := client.svc.Submit(ctx, deleteProduct("P1", "produk ditarik"), "op-1")
	require.NoError(t, err)
	_, err = client.svc.Approve(ctx, deletion.ID, "apv-1")
	require.NoError(t, err)
	client.record(t, models.SubjectKindProduct, "P1")

	completed, err := client.svc.Complete(ctx, deletion.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeRequestStatusCompleted, completed.Status)

	products, err := client.records.Load(ctx, models.SubjectKindProduct)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "P2", products[0].ID())

	requests, err := client.svc.ListByKind(ctx, models.SubjectKindProduct)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID, deletion.ID}, ids(requests))
}

func TestChangeRequestServiceUniquePendingPerSubject(t *testing.T) {
	ctx := context.Background()

	client := newProductClient(t)
	_, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	_, err = client.svc.Submit(ctx, deleteProduct("P1", "produk ditarik"), "op-2")
	assertCode(t, err, appErrors.ErrConflict.Code)

	permissive := newProductClient(t, WithUniquePending(false))
	_, err = permissive.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	_, err = permissive.svc.Submit(ctx, deleteProduct("P1", "produk ditarik"), "op-2")
	require.NoError(t, err)
}

func TestChangeRequestServiceCancel(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	pending, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)

	err = client.svc.Cancel(ctx, pending.ID, "op-2")
	assertCode(t, err, appErrors.ErrForbidden.Code)

	require.NoError(t, client.svc.Cancel(ctx, pending.ID, "op-1"))
	_, ok, err := client.requests.Find(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	approved, err := client.svc.Submit(ctx, editProduct("P2", "harga baru", `{"price":130}`), "op-1")
	require.NoError(t, err)
	_, err = client.svc.Approve(ctx, approved.ID, "apv-1")
	require.NoError(t, err)
	require.NoError(t, client.svc.Cancel(ctx, approved.ID, "op-2"))

	err = client.svc.Cancel(ctx, approved.ID, "op-2")
	assertCode(t, err, appErrors.ErrNotFound.Code)
	assert.Contains(t, client.audit.actions(), models.AuditActionChangeRequestCancel)
}

func TestChangeRequestServiceUnreadCountWindow(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()
	now := client.clock.Now()

	seed := func(kind models.SubjectKind, requests ...models.ChangeRequest) {
		_, err := client.requests.Update(ctx, kind, func(col *repository.Collection) error {
			for _, r := range requests {
				r.SubjectKind = kind
				col.Append(r)
			}
			return nil
		})
		require.NoError(t, err)
	}
	inside := crAt("inside", models.ChangeRequestStatusPending, now.Add(-(4*time.Minute + 59*time.Second)))
	outside := crAt("outside", models.ChangeRequestStatusPending, now.Add(-(5*time.Minute + time.Second)))
	unacked := crAt("unacked", models.ChangeRequestStatusPending, now.Add(-time.Hour))
	unacked.IsNew = true
	decided := crAt("decided", models.ChangeRequestStatusRejected, now)
	decided.IsNew = true
	seed(models.SubjectKindProduct, inside, outside, unacked, decided)
	seed(models.SubjectKindSupplier, crAt("supplier", models.ChangeRequestStatusPending, now.Add(-time.Minute)))

	count, err := client.svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	updated, err := client.svc.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.ElementsMatch(t, []models.SubjectKind{models.SubjectKindProduct}, client.loop.DirtyKinds())

	count, err = client.svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	client.clock.Advance(10 * time.Minute)
	count, err = client.svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChangeRequestServiceRoundTripToSecondClient(t *testing.T) {
	ctx := context.Background()
	remote, _ := newSharedRemote(t)
	clock := newTestClock()
	first := newEngineClient(t, "kasir-1", remote, clock)
	first.seed(t, models.SubjectKindProduct, productRecord("P1", "Paracetamol 500mg", 80, 10))

	submitted, err := first.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100,"unit":"strip"}`), "op-1")
	require.NoError(t, err)
	require.NoError(t, first.loop.Flush(ctx))
	assert.Empty(t, first.loop.DirtyKinds())

	second := newEngineClient(t, "kasir-2", remote, clock)
	require.NoError(t, second.loop.Pull(ctx, models.SubjectKindProduct))

	requests, err := second.svc.ListByKind(ctx, models.SubjectKindProduct)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, submitted.ID, requests[0].ID)
	assert.Equal(t, submitted.Reason, requests[0].Reason)
	assert.JSONEq(t, string(submitted.ProposedData), string(requests[0].ProposedData))

	// the second client decides; its decision and the edited record reach the first
	_, err = second.svc.Approve(ctx, submitted.ID, "apv-1")
	require.NoError(t, err)
	require.NoError(t, second.loop.Flush(ctx))

	require.NoError(t, first.loop.Pull(ctx, models.SubjectKindProduct))
	seen, ok, err := first.requests.Find(ctx, submitted.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ChangeRequestStatusApproved, seen.Status)
	price, _ := first.record(t, models.SubjectKindProduct, "P1").Int("price")
	assert.Equal(t, 100, price)
}

func TestChangeRequestServiceStaleRemoteDoesNotRevertRejection(t *testing.T) {
	ctx := context.Background()
	client := newProductClient(t)

	submitted, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	require.NoError(t, client.loop.Flush(ctx))

	_, err = client.svc.Reject(ctx, submitted.ID, dto.RejectChangeRequest{Reason: "invalid"}, "apv-1")
	require.NoError(t, err)

	// remote still holds the pending copy
	require.NoError(t, client.loop.Pull(ctx, models.SubjectKindProduct))

	current, ok, err := client.requests.Find(ctx, submitted.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ChangeRequestStatusRejected, current.Status)
	assert.Equal(t, "invalid", current.RejectionReason)

	status, err := client.loop.Status(ctx, time.Minute)
	require.NoError(t, err)
	for _, ks := range status.Kinds {
		if ks.Kind == models.SubjectKindProduct {
			assert.Equal(t, 1, ks.ConflictsTotal)
			assert.True(t, ks.Dirty)
		}
	}
	assert.Equal(t, uint64(1), status.Metrics.ConflictsSkipped)
}

func TestChangeRequestServiceGlobalStockAdjustment(t *testing.T) {
	ctx := context.Background()
	client := newProductClient(t)
	client.seed(t, models.SubjectKindProduct,
		productRecord("P1", "Paracetamol 500mg", 80, 10),
		productRecord("P2", "Amoxicillin", 120, 10),
		productRecord("P3", "Vitamin C", 30, 10),
	)
	client.seed(t, models.SubjectKindStockAdjustment,
		adjustmentRecord("ADJ-1", "VCH-001", "P1", "gudang"),
		adjustmentRecord("ADJ-2", "VCH-001", "P2", "gudang"),
		adjustmentRecord("ADJ-3", "VCH-001", "P3", "etalase"),
		adjustmentRecord("ADJ-4", "VCH-002", "P1", "etalase"),
	)

	submitted, err := client.svc.Submit(ctx, dto.SubmitChangeRequest{
		SubjectKind:  models.SubjectKindStockAdjustment,
		SubjectID:    "ADJ-1",
		Action:       models.ChangeActionEdit,
		Reason:       "stok opname",
		ProposedData: json.RawMessage(`{"delta":5}`),
		IsGlobal:     true,
	}, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "VCH-001", submitted.VoucherNo)
	require.Len(t, submitted.BatchMembers, 3)

	approved, err := client.svc.Approve(ctx, submitted.ID, "apv-1")
	require.NoError(t, err)
	for _, member := range approved.BatchMembers {
		require.NotNil(t, member.AppliedDelta)
		assert.Equal(t, 5, *member.AppliedDelta)
		assert.Equal(t, 10, member.BeforeQty)
	}

	stockAt := func(productID, location string) int {
		return client.record(t, models.SubjectKindProduct, productID).StockAt(location)
	}
	assert.Equal(t, 15, stockAt("P1", "gudang"))
	assert.Equal(t, 15, stockAt("P2", "gudang"))
	assert.Equal(t, 15, stockAt("P3", "etalase"))
	assert.Equal(t, 10, stockAt("P1", "etalase"))

	// a repeated apply of the same request must not count the delta again
	applier, ok := client.svc.registry.Lookup(models.SubjectKindStockAdjustment)
	require.True(t, ok)
	again := approved.Clone()
	require.NoError(t, applier.ApplyEdit(ctx, &again))
	stale := submitted.Clone()
	require.NoError(t, applier.ApplyEdit(ctx, &stale))
	assert.Equal(t, 15, stockAt("P1", "gudang"))
	assert.Equal(t, 15, stockAt("P2", "gudang"))
	assert.Equal(t, 15, stockAt("P3", "etalase"))

	adjustment := client.record(t, models.SubjectKindStockAdjustment, "ADJ-2")
	after, _ := adjustment.Int(models.FieldAfterQty)
	assert.Equal(t, 15, after)

	deletion, err := client.svc.Submit(ctx, dto.SubmitChangeRequest{
		SubjectKind: models.SubjectKindStockAdjustment,
		SubjectID:   "ADJ-1",
		Action:      models.ChangeActionDelete,
		Reason:      "voucher batal",
		IsGlobal:    true,
		VoucherNo:   "VCH-001",
	}, "op-1")
	require.NoError(t, err)
	_, err = client.svc.Approve(ctx, deletion.ID, "apv-1")
	require.NoError(t, err)
	assert.Equal(t, 15, stockAt("P1", "gudang"))

	_, err = client.svc.Complete(ctx, deletion.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stockAt("P1", "gudang"))
	assert.Equal(t, 10, stockAt("P2", "gudang"))
	assert.Equal(t, 10, stockAt("P3", "etalase"))

	remaining, err := client.records.Load(ctx, models.SubjectKindStockAdjustment)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "ADJ-4", remaining[0].ID())

	requests, err := client.svc.ListByKind(ctx, models.SubjectKindStockAdjustment)
	require.NoError(t, err)
	assert.Equal(t, []string{deletion.ID}, ids(requests))
}

func TestChangeRequestServiceGetDescribesRequest(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	submitted, err := client.svc.Submit(ctx, deleteProduct("P1", "produk ditarik"), "op-1")
	require.NoError(t, err)

	detail, err := client.svc.Get(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hapus Data", detail.ActionLabel)
	assert.Equal(t, `Hapus Data Produk "Paracetamol 500mg" (P1) dengan alasan: produk ditarik`, detail.Confirmation)

	_, err = client.svc.Get(ctx, "missing")
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestDescribeGlobalStockAdjustment(t *testing.T) {
	r := models.ChangeRequest{
		SubjectKind:  models.SubjectKindStockAdjustment,
		SubjectID:    "ADJ-1",
		Action:       models.ChangeActionEdit,
		Reason:       "stok opname",
		IsGlobal:     true,
		VoucherNo:    "VCH-001",
		BatchMembers: make([]models.BatchMember, 3),
	}

	assert.Equal(t, "Edit Transaksi Penyesuaian Stok voucher VCH-001 (3 item) dengan alasan: stok opname", Describe(r))
}

func TestChangeRequestServiceListFiltersByStatus(t *testing.T) {
	client := newProductClient(t)
	ctx := context.Background()

	first, err := client.svc.Submit(ctx, editProduct("P1", "harga baru", `{"price":100}`), "op-1")
	require.NoError(t, err)
	client.clock.Advance(time.Second)
	second, err := client.svc.Submit(ctx, editProduct("P2", "harga baru", `{"price":130}`), "op-1")
	require.NoError(t, err)
	_, err = client.svc.Reject(ctx, first.ID, dto.RejectChangeRequest{Reason: "salah"}, "apv-1")
	require.NoError(t, err)

	pending, err := client.svc.ListByKind(ctx, models.SubjectKindProduct, models.ChangeRequestStatusPending)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids(pending))

	all, err := client.svc.List(ctx, dto.ChangeRequestQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids(all))

	_, err = client.svc.ListByKind(ctx, "vitamin")
	assertCode(t, err, appErrors.ErrValidation.Code)
}
