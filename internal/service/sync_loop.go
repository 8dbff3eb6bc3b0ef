package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/internal/repository"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
	"github.com/kasukras-star/apotikme-api/pkg/jobs"
)

type requestRepository interface {
	List(ctx context.Context, kind models.SubjectKind) ([]models.ChangeRequest, error)
	Update(ctx context.Context, kind models.SubjectKind, fn func(*repository.Collection) error) ([]models.ChangeRequest, error)
	FetchRemote(ctx context.Context, kind models.SubjectKind) (repository.RemoteCollection, error)
	PushRemote(ctx context.Context, kind models.SubjectKind) (repository.RemoteCollection, error)
	TombstoneRetention() time.Duration
}

type recordSyncer interface {
	Pull(ctx context.Context, kind models.SubjectKind) error
	Flush(ctx context.Context) error
	Dirty() []models.SubjectKind
}

// SyncConfig tunes the loop.
type SyncConfig struct {
	ClientID    string
	Interval    time.Duration
	Timeout     time.Duration
	PushWorkers int
	PushRetries int
	RetryDelay  time.Duration
}

// SyncLoop keeps the local request collections and the remote store converging. It pulls
// every kind on a fixed interval and on demand, and pushes a kind's full collection after
// each local change through a keyed job queue.
type SyncLoop struct {
	store   requestRepository
	records recordSyncer
	kinds   []models.SubjectKind
	cfg     SyncConfig
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	window  time.Duration
	queue   *jobs.Queue

	mu       sync.Mutex
	hashes   map[models.SubjectKind]string
	dirty    map[models.SubjectKind]uint64
	gen      map[models.SubjectKind]uint64
	kindInfo map[models.SubjectKind]*kindSyncInfo
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

type kindSyncInfo struct {
	lastPull  *time.Time
	lastPush  *time.Time
	lastError string
	conflicts int
}

// SyncLoopOption configures the loop.
type SyncLoopOption func(*SyncLoop)

// WithSyncRecords makes every pull refresh the subject records as well.
func WithSyncRecords(records recordSyncer) SyncLoopOption {
	return func(l *SyncLoop) {
		l.records = records
	}
}

// WithSyncMetrics wires Prometheus counters.
func WithSyncMetrics(metrics *MetricsService) SyncLoopOption {
	return func(l *SyncLoop) {
		l.metrics = metrics
	}
}

// WithSyncClock overrides the time source.
func WithSyncClock(now func() time.Time) SyncLoopOption {
	return func(l *SyncLoop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSyncRecencyWindow sets the window used to refresh the unread gauge after pulls.
func WithSyncRecencyWindow(window time.Duration) SyncLoopOption {
	return func(l *SyncLoop) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithSyncKinds restricts the kinds the loop manages.
func WithSyncKinds(kinds []models.SubjectKind) SyncLoopOption {
	return func(l *SyncLoop) {
		if len(kinds) > 0 {
			l.kinds = append([]models.SubjectKind(nil), kinds...)
		}
	}
}

// NewSyncLoop constructs the loop; call Start to begin ticking.
func NewSyncLoop(store requestRepository, cfg SyncConfig, logger *zap.Logger, opts ...SyncLoopOption) *SyncLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	l := &SyncLoop{
		store:    store,
		kinds:    append([]models.SubjectKind(nil), models.SubjectKinds...),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		window:   defaultRecencyWindow,
		hashes:   make(map[models.SubjectKind]string),
		dirty:    make(map[models.SubjectKind]uint64),
		gen:      make(map[models.SubjectKind]uint64),
		kindInfo: make(map[models.SubjectKind]*kindSyncInfo),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.queue = jobs.NewQueue("sync-push", l.handlePush, jobs.QueueConfig{
		Workers:    cfg.PushWorkers,
		MaxRetries: cfg.PushRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, err error) {
			l.logger.Sugar().Warnw("push left for next tick", "kind", job.Key, "error", err)
		},
	})
	return l
}

// Kinds lists the kinds the loop manages.
func (l *SyncLoop) Kinds() []models.SubjectKind {
	return append([]models.SubjectKind(nil), l.kinds...)
}

// Start runs the initial pull and then ticks until Stop or ctx cancellation. The initial pull
// never fails the start: an unreachable remote leaves the local cache in charge and a missing
// remote collection is seeded from it.
func (l *SyncLoop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true
	l.mu.Unlock()

	l.queue.Start(loopCtx)
	if err := l.PullAll(loopCtx); err != nil {
		l.logger.Sugar().Warnw("initial pull incomplete, serving local cache", "error", err)
	}
	l.flushDirty(loopCtx)

	ticker := time.NewTicker(l.cfg.Interval)
	go func() {
		defer close(l.done)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				l.tick(loopCtx)
			}
		}
	}()
	l.logger.Sugar().Infow("sync loop started", "interval", l.cfg.Interval.String(), "kinds", len(l.kinds))
}

// Stop halts ticking and push workers, then makes one last attempt to push unsent changes.
func (l *SyncLoop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
	l.queue.Stop()

	ctx, stop := context.WithTimeout(context.Background(), l.cfg.Timeout)
	defer stop()
	if err := l.Flush(ctx); err != nil {
		l.logger.Sugar().Warnw("unsent changes remain after stop", "error", err)
	}
	l.logger.Sugar().Infow("sync loop stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (l *SyncLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *SyncLoop) tick(ctx context.Context) {
	if err := l.PullAll(ctx); err != nil {
		l.logger.Sugar().Debugw("pull tick incomplete", "error", err)
	}
	l.flushDirty(ctx)
}

// flushDirty re-queues pushes for kinds whose last push failed.
func (l *SyncLoop) flushDirty(ctx context.Context) {
	for _, kind := range l.DirtyKinds() {
		l.enqueuePush(kind)
	}
	if l.records != nil {
		recordCtx, cancel := l.withTimeout(ctx)
		defer cancel()
		if err := l.records.Flush(recordCtx); err != nil {
			l.logger.Sugar().Debugw("record push deferred", "error", err)
		}
	}
}

// PullAll pulls every kind and then refreshes the unread gauge; failures of individual kinds
// are joined.
func (l *SyncLoop) PullAll(ctx context.Context) error {
	var errs []error
	for _, kind := range l.kinds {
		if _, err := l.pull(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}
	l.refreshUnread(ctx)
	return errors.Join(errs...)
}

// Pull fetches the remote collection for kind and merges it into the local one. The merge is
// skipped when the remote payload is byte-identical to the last one seen and this client
// has nothing unpushed for the kind.
func (l *SyncLoop) Pull(ctx context.Context, kind models.SubjectKind) error {
	merged, err := l.pull(ctx, kind)
	if merged {
		l.refreshUnread(ctx)
	}
	return err
}

func (l *SyncLoop) pull(ctx context.Context, kind models.SubjectKind) (bool, error) {
	start := l.now()
	remoteCtx, cancel := l.withTimeout(ctx)
	remote, err := l.store.FetchRemote(remoteCtx, kind)
	cancel()
	if err != nil {
		l.recordError(kind, err)
		l.metrics.RecordPull(kind, syncResultError, l.now().Sub(start))
		l.logger.Sugar().Warnw("pull failed", "kind", kind, "error", err)
		return false, appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "pull "+string(kind)+" failed")
	}

	hash := remoteHash(remote)
	l.mu.Lock()
	_, dirty := l.dirty[kind]
	unchanged := remote.Found && l.hashes[kind] == hash && !dirty
	l.mu.Unlock()

	if l.records != nil {
		recordCtx, cancel := l.withTimeout(ctx)
		if err := l.records.Pull(recordCtx, kind); err != nil {
			l.logger.Sugar().Warnw("record pull failed", "kind", kind, "error", err)
		}
		cancel()
	}

	if unchanged {
		l.markPulled(kind, 0)
		l.metrics.RecordPull(kind, syncResultSkipped, l.now().Sub(start))
		return false, nil
	}

	var (
		result     ReconcileResult
		buried     []models.ChangeRequest
		tombstones map[string]time.Time
	)
	retention := l.store.TombstoneRetention()
	merged, err := l.store.Update(ctx, kind, func(col *repository.Collection) error {
		buried = col.Bury(remote.Tombstones)

		fresh := make([]models.ChangeRequest, 0, len(remote.Requests))
		onRemote := make(map[string]struct{}, len(remote.Requests))
		for _, r := range remote.Requests {
			onRemote[r.ID] = struct{}{}
			if col.Buried(r.ID) {
				continue
			}
			fresh = append(fresh, r)
		}
		col.PruneTombstones(func(id string, buriedAt time.Time) bool {
			_, listed := onRemote[id]
			return listed || col.Now().Sub(buriedAt) < retention
		})
		result = Reconcile(col.Requests, fresh)
		col.Requests = result.Requests
		tombstones = col.Tombstones()
		return nil
	})
	if err != nil {
		l.recordError(kind, err)
		l.metrics.RecordPull(kind, syncResultError, l.now().Sub(start))
		return false, err
	}

	if len(buried) > 0 {
		l.logger.Info("dropped requests removed on another client",
			zap.String("kind", string(kind)),
			zap.Int("count", len(buried)),
		)
	}
	for _, conflict := range result.Conflicts {
		l.logger.Debug("remote copy skipped for decided request",
			zap.String("kind", string(conflict.Kind)),
			zap.String("request_id", conflict.RequestID),
			zap.String("local_status", string(conflict.LocalStatus)),
			zap.String("remote_status", string(conflict.RemoteStatus)),
		)
	}
	l.metrics.RecordConflicts(kind, len(result.Conflicts))

	l.mu.Lock()
	l.hashes[kind] = hash
	l.mu.Unlock()
	l.markPulled(kind, len(result.Conflicts))
	l.metrics.RecordPull(kind, syncResultOK, l.now().Sub(start))

	if !sameCollection(merged, remote.Requests) || !sameTombstones(tombstones, remote.Tombstones) {
		l.SchedulePush(kind)
	}
	return true, nil
}

// refreshUnread recomputes the notification badge over the loop's kinds.
func (l *SyncLoop) refreshUnread(ctx context.Context) {
	if l.metrics == nil {
		return
	}
	now := l.now()
	count := 0
	for _, kind := range l.kinds {
		requests, err := l.store.List(ctx, kind)
		if err != nil {
			l.logger.Sugar().Debugw("unread refresh skipped", "kind", kind, "error", err)
			return
		}
		for _, r := range requests {
			if r.IsUnread(now, l.window) {
				count++
			}
		}
	}
	l.metrics.SetUnread(count)
}

// SchedulePush marks kind as changed locally and queues a push of its full collection.
// Without a running loop the kind stays dirty until Flush or the next Start.
func (l *SyncLoop) SchedulePush(kind models.SubjectKind) {
	l.mu.Lock()
	l.gen[kind]++
	l.dirty[kind] = l.gen[kind]
	running := l.running
	dirtyCount := len(l.dirty)
	l.mu.Unlock()
	l.metrics.SetDirtyKinds(dirtyCount)

	if running {
		l.enqueuePush(kind)
	}
}

func (l *SyncLoop) enqueuePush(kind models.SubjectKind) {
	queued, err := l.queue.Enqueue(jobs.Job{Type: "push", Key: string(kind)})
	if err != nil {
		l.logger.Sugar().Debugw("push not queued", "kind", kind, "error", err)
		return
	}
	if !queued {
		l.metrics.RecordPush(kind, syncResultCoalesced, 0)
	}
}

func (l *SyncLoop) handlePush(ctx context.Context, job jobs.Job) error {
	return l.Push(ctx, models.SubjectKind(job.Key))
}

// Push writes the current local collection of kind to the remote store.
func (l *SyncLoop) Push(ctx context.Context, kind models.SubjectKind) error {
	start := l.now()
	l.mu.Lock()
	gen := l.gen[kind]
	l.mu.Unlock()

	remoteCtx, cancel := l.withTimeout(ctx)
	pushed, err := l.store.PushRemote(remoteCtx, kind)
	cancel()
	if err != nil {
		l.mu.Lock()
		if _, ok := l.dirty[kind]; !ok {
			l.dirty[kind] = gen
		}
		dirtyCount := len(l.dirty)
		l.mu.Unlock()
		l.metrics.SetDirtyKinds(dirtyCount)
		l.recordError(kind, err)
		l.metrics.RecordPush(kind, syncResultError, l.now().Sub(start))
		return appErrors.Wrap(err, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "push "+string(kind)+" failed")
	}

	pushedAt := l.now().UTC()
	l.mu.Lock()
	if l.gen[kind] == gen {
		delete(l.dirty, kind)
	}
	l.hashes[kind] = remoteHash(pushed)
	info := l.info(kind)
	info.lastPush = &pushedAt
	info.lastError = ""
	dirtyCount := len(l.dirty)
	l.mu.Unlock()
	l.metrics.SetDirtyKinds(dirtyCount)
	l.metrics.RecordPush(kind, syncResultOK, l.now().Sub(start))
	return nil
}

// Flush synchronously pushes every dirty kind.
func (l *SyncLoop) Flush(ctx context.Context) error {
	var errs []error
	for _, kind := range l.DirtyKinds() {
		if err := l.Push(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}
	if l.records != nil {
		recordCtx, cancel := l.withTimeout(ctx)
		defer cancel()
		if err := l.records.Flush(recordCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DirtyKinds lists kinds with local changes the remote store has not acknowledged.
func (l *SyncLoop) DirtyKinds() []models.SubjectKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]models.SubjectKind, 0, len(l.dirty))
	for _, kind := range l.kinds {
		if _, ok := l.dirty[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Status summarises every kind for operators.
func (l *SyncLoop) Status(ctx context.Context, window time.Duration) (models.SyncStatus, error) {
	now := l.now()
	status := models.SyncStatus{
		ClientID:    l.cfg.ClientID,
		Running:     l.Running(),
		Interval:    l.cfg.Interval,
		GeneratedAt: now.UTC(),
	}
	recordsDirty := make(map[models.SubjectKind]bool)
	if l.records != nil {
		for _, kind := range l.records.Dirty() {
			recordsDirty[kind] = true
		}
	}
	for _, kind := range l.kinds {
		requests, err := l.store.List(ctx, kind)
		if err != nil {
			return models.SyncStatus{}, err
		}
		ks := models.SyncKindStatus{Kind: kind, Requests: len(requests), RecordsDirty: recordsDirty[kind]}
		for _, r := range requests {
			if r.Status == models.ChangeRequestStatusPending {
				ks.Pending++
			}
			if r.IsUnread(now, window) {
				status.UnreadCount++
			}
		}
		l.mu.Lock()
		_, ks.Dirty = l.dirty[kind]
		ks.RemoteHash = l.hashes[kind]
		if info, ok := l.kindInfo[kind]; ok {
			ks.LastPullAt = info.lastPull
			ks.LastPushAt = info.lastPush
			ks.LastError = info.lastError
			ks.ConflictsTotal = info.conflicts
		}
		l.mu.Unlock()
		status.Kinds = append(status.Kinds, ks)
	}
	if l.metrics != nil {
		snapshot := l.metrics.Snapshot()
		status.Metrics = &snapshot
	}
	return status, nil
}

func (l *SyncLoop) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.cfg.Timeout)
}

// info returns the mutable info for kind. Caller holds l.mu.
func (l *SyncLoop) info(kind models.SubjectKind) *kindSyncInfo {
	info, ok := l.kindInfo[kind]
	if !ok {
		info = &kindSyncInfo{}
		l.kindInfo[kind] = info
	}
	return info
}

func (l *SyncLoop) markPulled(kind models.SubjectKind, conflicts int) {
	pulledAt := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	info := l.info(kind)
	info.lastPull = &pulledAt
	info.lastError = ""
	info.conflicts += conflicts
}

func (l *SyncLoop) recordError(kind models.SubjectKind, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info(kind).lastError = err.Error()
}

// remoteHash digests both remote keys of a kind. A missing collection hashes to "".
func remoteHash(c repository.RemoteCollection) string {
	if len(c.Raw) == 0 {
		return ""
	}
	h := sha256.New()
	h.Write(c.Raw)
	h.Write([]byte{0})
	h.Write(c.TombstonesRaw)
	return hex.EncodeToString(h.Sum(nil))
}

func sameTombstones(a, b map[string]time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for id, at := range a {
		other, ok := b[id]
		if !ok || !other.Equal(at) {
			return false
		}
	}
	return true
}

func sameCollection(a, b []models.ChangeRequest) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(left) == string(right)
}
