// Package upstream is the typed boundary to the transaction aggregator
// API. Responses are validated and converted to core types on receipt;
// nothing loosely typed crosses into the sync core.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ledgersync/internal/core"
)

// MaxPageSize is the upstream's hard page cap for transactions/sync.
const MaxPageSize = 500

// Client is the aggregator surface the sync core consumes.
type Client interface {
	// CheckItem queries connection health for a credential. It returns
	// core.ErrReauthRequired when the upstream item needs a fresh login.
	CheckItem(ctx context.Context, accessToken string) error

	// SyncTransactions fetches one page of changes at the given cursor.
	SyncTransactions(ctx context.Context, accessToken, cursor string, pageSize int) (core.ChangeSet, error)

	// GetAccounts lists the accounts reachable with a credential.
	GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error)
}

// HTTPClient talks to the aggregator over JSON-on-HTTP.
type HTTPClient struct {
	baseURL  string
	clientID string
	secret   string
	httpc    *http.Client
}

func NewHTTPClient(baseURL, clientID, secret string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		httpc:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CheckItem(ctx context.Context, accessToken string) error {
	var resp itemGetResponse
	err := c.post(ctx, "/item/get", itemGetRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}, &resp)
	if err != nil {
		return fmt.Errorf("item health check: %w", err)
	}
	if resp.Item.Error != nil && resp.Item.Error.ErrorCode == codeItemLoginRequired {
		return fmt.Errorf("item health check: %w", core.ErrReauthRequired)
	}
	return nil
}

func (c *HTTPClient) SyncTransactions(ctx context.Context, accessToken, cursor string, pageSize int) (core.ChangeSet, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	var resp transactionsSyncResponse
	err := c.post(ctx, "/transactions/sync", transactionsSyncRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
		Cursor:      cursor,
		Count:       pageSize,
	}, &resp)
	if err != nil {
		return core.ChangeSet{}, fmt.Errorf("transactions sync: %w", err)
	}
	return resp.toChangeSet()
}

func (c *HTTPClient) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	var resp accountsGetResponse
	err := c.post(ctx, "/accounts/get", itemGetRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("accounts get: %w", err)
	}
	accounts := make([]core.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, core.Account{
			ID:           a.AccountID,
			Name:         a.Name,
			OfficialName: a.OfficialName,
			Type:         a.Type,
		})
	}
	return accounts, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return mapAPIError(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Upstream error codes with dedicated local semantics.
const (
	codeItemLoginRequired   = "ITEM_LOGIN_REQUIRED"
	codeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	codeMutationDuringSync  = "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"
)

func mapAPIError(status int, raw []byte) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(raw, &apiErr)

	switch {
	case status == http.StatusTooManyRequests || apiErr.ErrorCode == codeRateLimitExceeded:
		return core.ErrRateLimited
	case apiErr.ErrorCode == codeItemLoginRequired:
		return core.ErrReauthRequired
	case apiErr.ErrorCode == codeMutationDuringSync:
		return core.ErrPaginationConflict
	}

	msg := apiErr.ErrorMessage
	if msg == "" {
		msg = string(raw)
	}
	return &core.UpstreamError{Code: apiErr.ErrorCode, Message: msg}
}
