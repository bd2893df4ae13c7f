// Package memory is a scripted in-memory upstream used by tests and the
// dev backend. Pages are served in order; cursors are synthetic tokens
// that index into the script.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"ledgersync/internal/core"
)

type page struct {
	added    []core.TxRecord
	modified []core.TxRecord
	removed  []core.TxRef
}

// Upstream implements upstream.Client against scripted data.
type Upstream struct {
	mu       sync.Mutex
	pages    []page
	accounts []core.Account
	reauth   bool
	errOnce  map[int]error
	calls    int
}

func New() *Upstream {
	return &Upstream{errOnce: make(map[int]error)}
}

// AddPage appends one change-set page to the script.
func (u *Upstream) AddPage(added, modified []core.TxRecord, removed []core.TxRef) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pages = append(u.pages, page{added: added, modified: modified, removed: removed})
}

// SetAccounts sets the account list returned by GetAccounts.
func (u *Upstream) SetAccounts(accounts []core.Account) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.accounts = accounts
}

// SetReauthRequired makes CheckItem fail with core.ErrReauthRequired.
func (u *Upstream) SetReauthRequired(v bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reauth = v
}

// FailPageOnce makes the next fetch of page index i fail with err, once.
func (u *Upstream) FailPageOnce(i int, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errOnce[i] = err
}

// Calls reports how many sync requests have been served.
func (u *Upstream) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func (u *Upstream) CheckItem(ctx context.Context, accessToken string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.reauth {
		return core.ErrReauthRequired
	}
	return nil
}

func (u *Upstream) SyncTransactions(ctx context.Context, accessToken, cursor string, pageSize int) (core.ChangeSet, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.calls++

	idx, err := u.indexOf(cursor)
	if err != nil {
		return core.ChangeSet{}, err
	}

	if failErr, ok := u.errOnce[idx]; ok {
		delete(u.errOnce, idx)
		return core.ChangeSet{}, failErr
	}

	if idx >= len(u.pages) {
		return core.ChangeSet{NextCursor: u.cursorFor(idx), HasMore: false}, nil
	}

	p := u.pages[idx]
	return core.ChangeSet{
		Added:      append([]core.TxRecord(nil), p.added...),
		Modified:   append([]core.TxRecord(nil), p.modified...),
		Removed:    append([]core.TxRef(nil), p.removed...),
		NextCursor: u.cursorFor(idx + 1),
		HasMore:    idx+1 < len(u.pages),
	}, nil
}

func (u *Upstream) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]core.Account(nil), u.accounts...), nil
}

func (u *Upstream) cursorFor(idx int) string {
	return fmt.Sprintf("cursor-%d", idx)
}

func (u *Upstream) indexOf(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, ok := strings.CutPrefix(cursor, "cursor-")
	if !ok {
		return 0, &core.UpstreamError{Code: "INVALID_CURSOR", Message: "unknown cursor " + cursor}
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &core.UpstreamError{Code: "INVALID_CURSOR", Message: "unknown cursor " + cursor}
	}
	return idx, nil
}
