package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/internal/repository"
	"github.com/kasukras-star/apotikme-api/pkg/database"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: baseTime}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// engineClient is one back-office process: its own SQLite cache, sharing the remote store.
type engineClient struct {
	requests *repository.RequestStore
	records  *repository.RecordStore
	loop     *SyncLoop
	svc      *ChangeRequestService
	metrics  *MetricsService
	audit    *auditStub
	clock    *testClock
}

type auditStub struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, *log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, log := range a.logs {
		out[i] = log.Action
	}
	return out
}

func newSharedRemote(t *testing.T) (*repository.RedisKVRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewRedisKVRepository(client, zap.NewNop()), mr
}

func newEngineClient(t *testing.T, name string, remote repository.KVStore, clock *testClock, opts ...ChangeRequestServiceOption) *engineClient {
	t.Helper()
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), name+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	local := repository.NewSQLKVRepository(db)
	keys := repository.NewKeySpace("apotikme")
	requests := repository.NewRequestStore(local, remote, keys, zap.NewNop(), repository.WithRequestStoreClock(clock.Now))
	records := repository.NewRecordStore(local, remote, keys, zap.NewNop())
	metrics := NewMetricsService()
	loop := NewSyncLoop(requests, SyncConfig{ClientID: name, Interval: time.Hour, Timeout: time.Second}, zap.NewNop(),
		WithSyncRecords(records),
		WithSyncClock(clock.Now),
		WithSyncMetrics(metrics),
	)
	audit := &auditStub{}
	base := []ChangeRequestServiceOption{
		WithChangeRequestClock(clock.Now),
		WithPushScheduler(loop),
		WithChangeRequestMetrics(metrics),
		WithChangeRequestAudit(audit, name),
	}
	svc := NewChangeRequestService(requests, NewDefaultSubjectRegistry(records), nil, zap.NewNop(), append(base, opts...)...)
	return &engineClient{
		requests: requests,
		records:  records,
		loop:     loop,
		svc:      svc,
		metrics:  metrics,
		audit:    audit,
		clock:    clock,
	}
}

func (c *engineClient) seed(t *testing.T, kind models.SubjectKind, records ...models.Record) {
	t.Helper()
	require.NoError(t, c.records.Replace(context.Background(), kind, records))
}

func (c *engineClient) record(t *testing.T, kind models.SubjectKind, id string) models.Record {
	t.Helper()
	records, err := c.records.Load(context.Background(), kind)
	require.NoError(t, err)
	_, record, ok := repository.RecordSet{kind: records}.Find(kind, id)
	require.True(t, ok, "record %s/%s missing", kind, id)
	return record
}

func productRecord(id, name string, price, opening int) models.Record {
	return models.Record{"id": id, "name": name, "price": price, models.FieldOpeningStock: opening}
}

func adjustmentRecord(id, voucher, productID, location string) models.Record {
	return models.Record{
		"id":                   id,
		models.FieldVoucherNo:  voucher,
		models.FieldProductID:  productID,
		models.FieldLocationID: location,
	}
}
