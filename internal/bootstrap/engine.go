package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kasukras-star/apotikme-api/internal/repository"
	"github.com/kasukras-star/apotikme-api/internal/service"
	"github.com/kasukras-star/apotikme-api/pkg/cache"
	"github.com/kasukras-star/apotikme-api/pkg/config"
	"github.com/kasukras-star/apotikme-api/pkg/database"
)

// Engine holds every wired component of one back-office client process.
type Engine struct {
	Config   *config.Config
	Logger   *zap.Logger
	ClientID string

	Requests       *repository.RequestStore
	Records        *repository.RecordStore
	Audit          *repository.AuditRepository
	Metrics        *service.MetricsService
	Loop           *service.SyncLoop
	ChangeRequests *service.ChangeRequestService
	Exports        *service.ChangeRequestExportService
	Tokens         *service.TokenService

	local   *sqlx.DB
	redis   *redis.Client
	pg      *sqlx.DB
	closers []func() error
}

// New opens the local cache and the remote store and wires the workflow services.
// An unreachable Redis remote does not fail construction; the client reconnects lazily.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{Config: cfg, Logger: logger, ClientID: clientID(cfg.Sync.ClientID)}

	if dir := filepath.Dir(cfg.LocalCache.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create local cache dir: %w", err)
		}
	}
	local, err := database.NewSQLite(cfg.LocalCache.Path)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	e.local = local
	e.closers = append(e.closers, local.Close)

	remote, err := e.openRemote(ctx)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	if cfg.Audit.Enabled {
		pg, err := e.postgres(ctx)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		e.Audit = repository.NewAuditRepository(pg)
	}

	keys := repository.NewKeySpace(cfg.RemoteStore.KeyPrefix)
	localKV := repository.NewSQLKVRepository(local)
	e.Requests = repository.NewRequestStore(localKV, remote, keys, logger,
		repository.WithTombstoneRetention(cfg.Sync.TombstoneRetention),
	)
	e.Records = repository.NewRecordStore(localKV, remote, keys, logger)
	e.Metrics = service.NewMetricsService()

	registry := service.NewDefaultSubjectRegistry(e.Records)
	e.Loop = service.NewSyncLoop(e.Requests, service.SyncConfig{
		ClientID:    e.ClientID,
		Interval:    cfg.Sync.Interval,
		Timeout:     cfg.Sync.Timeout,
		PushWorkers: cfg.Sync.PushWorkers,
		PushRetries: cfg.Sync.PushRetries,
		RetryDelay:  cfg.Sync.RetryDelay,
	}, logger,
		service.WithSyncRecords(e.Records),
		service.WithSyncMetrics(e.Metrics),
		service.WithSyncKinds(registry.Kinds()),
		service.WithSyncRecencyWindow(cfg.ChangeRequests.RecencyWindow),
	)

	opts := []service.ChangeRequestServiceOption{
		service.WithUniquePending(cfg.ChangeRequests.UniquePending),
		service.WithRecencyWindow(cfg.ChangeRequests.RecencyWindow),
		service.WithPushScheduler(e.Loop),
		service.WithChangeRequestMetrics(e.Metrics),
	}
	if e.Audit != nil {
		opts = append(opts, service.WithChangeRequestAudit(e.Audit, e.ClientID))
	}
	e.ChangeRequests = service.NewChangeRequestService(e.Requests, registry, validator.New(), logger, opts...)
	e.Exports = service.NewChangeRequestExportService(e.ChangeRequests, cfg.ChangeRequests.ExportMaxRows, logger, nil, nil)
	e.Tokens = service.NewTokenService(cfg.JWT.Secret)

	return e, nil
}

func (e *Engine) openRemote(ctx context.Context) (repository.KVStore, error) {
	switch e.Config.RemoteStore.Driver {
	case config.RemoteDriverPostgres:
		pg, err := e.postgres(ctx)
		if err != nil {
			return nil, fmt.Errorf("open remote store: %w", err)
		}
		return repository.NewSQLKVRepository(pg), nil
	default:
		client, err := cache.NewRedis(e.Config.Redis, e.Config.Sync.Timeout)
		if err != nil {
			e.Logger.Sugar().Warnw("remote store unreachable, serving local cache", "error", err)
			client = cache.NewRedisClient(e.Config.Redis, e.Config.Sync.Timeout)
		}
		e.redis = client
		e.closers = append(e.closers, client.Close)
		return repository.NewRedisKVRepository(client, e.Logger), nil
	}
}

func (e *Engine) postgres(ctx context.Context) (*sqlx.DB, error) {
	if e.pg != nil {
		return e.pg, nil
	}
	db, err := database.NewPostgres(e.Config.Database)
	if err != nil {
		return nil, err
	}
	if err := database.MigratePostgres(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	e.pg = db
	e.closers = append(e.closers, db.Close)
	return db, nil
}

// PingLocal checks the SQLite cache.
func (e *Engine) PingLocal(ctx context.Context) error {
	return e.local.PingContext(ctx)
}

// PingRemote checks the shared store.
func (e *Engine) PingRemote(ctx context.Context) error {
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	if e.pg != nil {
		return e.pg.PingContext(ctx)
	}
	return errors.New("remote store not configured")
}

// Close releases connections in reverse order of opening.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func clientID(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "apotikme"
}
