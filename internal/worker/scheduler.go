package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgersync/internal/amqp"
	"ledgersync/internal/core"
	"ledgersync/internal/services"
	"ledgersync/internal/storage"
)

// SchedulerConfig holds configuration for the sync scheduler
type SchedulerConfig struct {
	// Interval is how often every linked account is synced (default: 1h)
	Interval time.Duration

	// MaxConcurrent caps how many accounts sync at once. Runs for the
	// same account are always serialized regardless of this value.
	MaxConcurrent int
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      1 * time.Hour,
		MaxConcurrent: 4,
	}
}

// Invalidator is anything whose cached state goes stale after a sync.
type Invalidator interface {
	Clear()
}

// Scheduler periodically syncs every linked account and serves on-demand
// sync requests. It enforces the single-writer-per-account rule with a
// per-account mutex.
type Scheduler struct {
	sync        *services.SyncService
	storage     *storage.SQLiteRepository
	events      *amqp.Client // optional; nil skips publishing
	caches      []Invalidator
	accessToken string
	config      SchedulerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lockMu       sync.Mutex
	accountLocks map[string]*sync.Mutex
}

func NewScheduler(
	syncService *services.SyncService,
	repo *storage.SQLiteRepository,
	events *amqp.Client,
	accessToken string,
	config SchedulerConfig,
	caches ...Invalidator,
) *Scheduler {
	return &Scheduler{
		sync:         syncService,
		storage:      repo,
		events:       events,
		caches:       caches,
		accessToken:  accessToken,
		config:       config,
		accountLocks: make(map[string]*sync.Mutex),
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Sync scheduler started",
		"interval", s.config.Interval,
		"max_concurrent", s.config.MaxConcurrent)

	return nil
}

// Stop gracefully stops the scheduler and waits for completion.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		slog.InfoContext(ctx, "Sync scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Sync immediately on startup
	s.syncAll(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncAll(ctx)
		}
	}
}

// syncAll fans out over every linked account. Different accounts may run
// concurrently; a failing account does not stop the others.
func (s *Scheduler) syncAll(ctx context.Context) {
	accounts, err := s.storage.ListAccounts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list accounts for sync", "error", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for _, account := range accounts {
		accountID := account.ID
		g.Go(func() error {
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			if err := s.SyncAccount(gctx, accountID); err != nil {
				// Logged and classified in SyncAccount; one failure must
				// not cancel the sibling accounts.
				return nil
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SyncAccount runs one sync for one account, serialized against any other
// run for the same account. Also invoked by the AMQP request consumer.
func (s *Scheduler) SyncAccount(ctx context.Context, accountID string) error {
	lock := s.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.sync.Sync(ctx, core.AccountContext{
		AccessToken: s.accessToken,
		AccountID:   accountID,
	})

	s.publishOutcome(ctx, accountID, result, err)

	if err != nil {
		switch {
		case errors.Is(err, core.ErrReauthRequired):
			slog.ErrorContext(ctx, "Account requires re-authentication, skipping until relinked",
				"account_id", accountID)
		case errors.Is(err, core.ErrRateLimited):
			slog.WarnContext(ctx, "Upstream rate limited, will retry next tick",
				"account_id", accountID)
		case errors.Is(err, core.ErrPaginationConflict):
			slog.WarnContext(ctx, "Pagination conflict persisted past retries, will retry next tick",
				"account_id", accountID)
		default:
			slog.ErrorContext(ctx, "Sync failed",
				"account_id", accountID, "error", err)
		}
		return err
	}

	for _, c := range s.caches {
		c.Clear()
	}

	slog.InfoContext(ctx, "Account synced",
		"account_id", accountID,
		"added", result.Added,
		"modified", result.Modified,
		"removed", result.Removed,
		"pages", result.Pages)

	return nil
}

func (s *Scheduler) publishOutcome(ctx context.Context, accountID string, result core.SyncResult, runErr error) {
	if s.events == nil {
		return
	}
	msg := &amqp.SyncCompletedMessage{
		AccountID: accountID,
		Added:     result.Added,
		Modified:  result.Modified,
		Removed:   result.Removed,
		Pages:     result.Pages,
		Timestamp: time.Now(),
	}
	if runErr != nil {
		msg.Error = runErr.Error()
	}
	if err := s.events.PublishSyncCompleted(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish sync completed event",
			"account_id", accountID, "error", err)
	}
}

func (s *Scheduler) lockFor(accountID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.accountLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.accountLocks[accountID] = lock
	}
	return lock
}
