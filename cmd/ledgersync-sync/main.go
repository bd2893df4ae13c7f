// ledgersync-sync runs one sync for one account and prints the resulting
// balance history and monthly summary. Useful for relinking checks and
// for inspecting a ledger without the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ledgersync/internal/config"
	"ledgersync/internal/core"
	applog "ledgersync/internal/log"
	"ledgersync/internal/services"
	"ledgersync/internal/storage"
	"ledgersync/internal/upstream"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	accountID := flag.String("account", "", "account id to sync (required)")
	granularity := flag.String("granularity", "month", "history granularity: day, week or month")
	register := flag.Bool("register", false, "refresh the account list from upstream before syncing")
	flag.Parse()

	if *accountID == "" {
		fmt.Fprintln(os.Stderr, "usage: ledgersync-sync -account <account_id> [-granularity month] [-register]")
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	g, err := core.ParseGranularity(*granularity)
	if err != nil {
		logger.Error("Invalid granularity", "error", err)
		os.Exit(2)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	upstreamClient := upstream.NewHTTPClient(
		cfg.UpstreamBaseURL, cfg.UpstreamClientID, cfg.UpstreamSecret, cfg.UpstreamTimeout)

	syncService := services.NewSyncService(repo, upstreamClient, services.SyncConfig{
		PageSize:        cfg.SyncPageSize,
		MaxPages:        cfg.SyncMaxPages,
		PageDelay:       cfg.SyncPageDelay,
		ConflictRetries: cfg.SyncConflictRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *register {
		if _, err := syncService.RegisterAccounts(ctx, cfg.UpstreamAccessToken); err != nil {
			logger.Error("Failed to register accounts", "error", err)
			os.Exit(1)
		}
	}

	result, err := syncService.Sync(ctx, core.AccountContext{
		AccessToken: cfg.UpstreamAccessToken,
		AccountID:   *accountID,
	})
	if err != nil {
		logger.Error("Sync failed", "account_id", *accountID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("synced %s: %d added, %d modified, %d removed over %d page(s)\n",
		*accountID, result.Added, result.Modified, result.Removed, result.Pages)

	balances := services.NewBalanceService(repo, nil)
	history, err := balances.History(ctx, *accountID, nil, nil, g)
	if err != nil {
		logger.Error("Failed to compute balance history", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\ncurrent balance: %s\n", history.CurrentBalance.StringFixed(2))
	for _, p := range history.History {
		fmt.Printf("  %-10s  balance %12s  change %12s (%s%%)\n",
			p.Period, p.Balance.StringFixed(2), p.Change.StringFixed(2), p.ChangePct.StringFixed(2))
	}

	summaries := services.NewSummaryService(repo, nil)
	summary, err := summaries.Summary(ctx, *accountID, core.SummaryQuery{
		GroupBy:      core.GroupMonth,
		CategoryType: core.PrimaryCategory,
	})
	if err != nil {
		logger.Error("Failed to compute summary", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nmonthly summary (%d transactions)\n", summary.TotalCount)
	for _, p := range summary.Periods {
		fmt.Printf("  %-10s  expense %12s  income %12s  net %12s  (%d)\n",
			p.Period, p.Expense.StringFixed(2), p.Income.StringFixed(2), p.Net.StringFixed(2), p.Count)
	}
	for _, c := range summary.Categories {
		fmt.Printf("  %-24s %12s  (%d)\n", c.Category, c.Total.StringFixed(2), c.Count)
	}
	fmt.Printf("  total: expense %s, income %s, net %s\n",
		summary.TotalExpense.StringFixed(2), summary.TotalIncome.StringFixed(2), summary.TotalNet.StringFixed(2))
}
