package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgersync/internal/core"
	"ledgersync/internal/storage"
	"ledgersync/internal/upstream"
)

// SyncConfig bounds one sync run.
type SyncConfig struct {
	// PageSize is the max records requested per page (upstream caps at 500).
	PageSize int

	// MaxPages caps pages per run. Exceeding it fails the run with
	// ErrTooManyPages; it guards against upstream pagination bugs, not
	// backlog size.
	MaxPages int

	// PageDelay is the blocking pause between page requests.
	PageDelay time.Duration

	// ConflictRetries is how many times a run is restarted from the last
	// committed cursor after a pagination-mutation conflict.
	ConflictRetries int
}

// DefaultSyncConfig returns sensible defaults
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PageSize:        upstream.MaxPageSize,
		MaxPages:        4,
		PageDelay:       250 * time.Millisecond,
		ConflictRetries: 3,
	}
}

// SyncService drives the paginated pull loop against the upstream
// aggregator and applies each page to the ledger. Callers must serialize
// runs per account; the service holds no internal lock.
type SyncService struct {
	storage  *storage.SQLiteRepository
	upstream upstream.Client
	config   SyncConfig
}

func NewSyncService(storage *storage.SQLiteRepository, upstreamClient upstream.Client, config SyncConfig) *SyncService {
	return &SyncService{
		storage:  storage,
		upstream: upstreamClient,
		config:   config,
	}
}

// syncState makes the pull loop an auditable state machine rather than a
// while-true with ad hoc breaks.
type syncState int

const (
	stateFetching syncState = iota
	stateApplying
	stateCommitting
	stateDone
	stateFailed
)

// Sync pulls all pending changes for one account and commits the new
// cursor once every page is durably applied. A pagination-mutation
// conflict restarts the whole run from the last committed cursor, a
// bounded number of times.
func (s *SyncService) Sync(ctx context.Context, acct core.AccountContext) (core.SyncResult, error) {
	if err := s.upstream.CheckItem(ctx, acct.AccessToken); err != nil {
		return core.SyncResult{}, fmt.Errorf("sync %s: %w", acct.AccountID, err)
	}

	committed, found, err := s.storage.GetCursor(ctx, acct.AccountID)
	if err != nil {
		return core.SyncResult{}, fmt.Errorf("sync %s: %w", acct.AccountID, err)
	}
	if !found {
		slog.InfoContext(ctx, "No committed cursor, starting from the beginning",
			"account_id", acct.AccountID)
	}

	for attempt := 0; ; attempt++ {
		result, err := s.runOnce(ctx, acct, committed)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, core.ErrPaginationConflict) && attempt < s.config.ConflictRetries {
			slog.WarnContext(ctx, "Pagination invalidated by upstream mutation, restarting run",
				"account_id", acct.AccountID,
				"attempt", attempt+1,
				"cursor", committed)
			continue
		}
		return core.SyncResult{}, err
	}
}

// runOnce executes a single pull loop from startCursor. Every page is
// applied in its own ledger transaction; the cursor commit happens once,
// after the last page, so a crash mid-run resumes from startCursor
// without double-counting (page application is idempotent).
func (s *SyncService) runOnce(ctx context.Context, acct core.AccountContext, startCursor string) (core.SyncResult, error) {
	var (
		result  core.SyncResult
		page    core.ChangeSet
		cursor  = startCursor
		state   = stateFetching
		loopErr error
	)

	for {
		switch state {
		case stateFetching:
			if result.Pages >= s.config.MaxPages {
				loopErr = fmt.Errorf("sync %s after %d pages: %w",
					acct.AccountID, result.Pages, core.ErrTooManyPages)
				state = stateFailed
				continue
			}
			if result.Pages > 0 {
				if err := s.pause(ctx); err != nil {
					loopErr = fmt.Errorf("sync %s: %w", acct.AccountID, err)
					state = stateFailed
					continue
				}
			}
			fetched, err := s.upstream.SyncTransactions(ctx, acct.AccessToken, cursor, s.config.PageSize)
			if err != nil {
				loopErr = fmt.Errorf("sync %s: %w", acct.AccountID, err)
				state = stateFailed
				continue
			}
			page = fetched
			state = stateApplying

		case stateApplying:
			applied, err := s.storage.ApplyChangeSet(ctx, page)
			if err != nil {
				loopErr = fmt.Errorf("sync %s: %w", acct.AccountID, err)
				state = stateFailed
				continue
			}
			result.Added += applied.Added
			result.Modified += applied.Modified
			result.Removed += applied.Removed
			result.Pages++
			cursor = page.NextCursor

			slog.DebugContext(ctx, "Applied change-set page",
				"account_id", acct.AccountID,
				"page", result.Pages,
				"added", applied.Added,
				"modified", applied.Modified,
				"removed", applied.Removed,
				"has_more", page.HasMore)

			if page.HasMore {
				state = stateFetching
			} else {
				state = stateCommitting
			}

		case stateCommitting:
			if err := s.storage.CommitCursor(ctx, acct.AccountID, cursor); err != nil {
				loopErr = fmt.Errorf("sync %s: %w", acct.AccountID, err)
				state = stateFailed
				continue
			}
			if err := s.storage.TouchAccountSynced(ctx, acct.AccountID, time.Now()); err != nil {
				// The run itself succeeded; the timestamp is advisory.
				slog.WarnContext(ctx, "Failed to record sync time",
					"account_id", acct.AccountID, "error", err)
			}
			result.NextCursor = cursor
			state = stateDone

		case stateDone:
			slog.InfoContext(ctx, "Sync run completed",
				"account_id", acct.AccountID,
				"pages", result.Pages,
				"added", result.Added,
				"modified", result.Modified,
				"removed", result.Removed)
			return result, nil

		case stateFailed:
			return core.SyncResult{}, loopErr
		}
	}
}

func (s *SyncService) pause(ctx context.Context) error {
	if s.config.PageDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.config.PageDelay):
		return nil
	}
}

// RegisterAccounts pulls the account list reachable with a credential and
// upserts it into the ledger. The link handshake that produced the
// credential happens outside this system.
func (s *SyncService) RegisterAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	accounts, err := s.upstream.GetAccounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("register accounts: %w", err)
	}
	for _, a := range accounts {
		if err := s.storage.UpsertAccount(ctx, a); err != nil {
			return nil, fmt.Errorf("register accounts: %w", err)
		}
	}
	slog.InfoContext(ctx, "Registered accounts", "count", len(accounts))
	return accounts, nil
}
