package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"finsync/internal/domain/banksync"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/plaid"
	"finsync/internal/infrastructure/postgres"
	"finsync/internal/shared/config"
	"finsync/internal/shared/logger"
)

const usage = `finsync admin CLI - maintenance commands

Usage:
  admin <command> [options]

Commands:
  generate-key   Print a new base64 ENCRYPTION_KEY
  migrate        Apply the database schema
  sync           Run an incremental sync now

Examples:
  admin generate-key
  admin migrate
  admin sync --user-id=1 --item-id=6f1c3f4e-2b1a-4c7d-9e8f-0a1b2c3d4e5f
  admin sync --all --timeout=30m
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage, "\n")
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "generate-key":
		err = runGenerateKey()
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "sync":
		err = runSync(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage, "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage, "\n")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runGenerateKey() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	timeout := fs.Duration("timeout", time.Minute, "Timeout for the migration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	log.Info().Msg("Schema up to date")
	return nil
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	userID := fs.Int64("user-id", 0, "Owner of the item")
	itemID := fs.String("item-id", "", "Linked item to sync")
	all := fs.Bool("all", false, "Sync every linked item")
	timeout := fs.Duration("timeout", 30*time.Minute, "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*all && (*userID <= 0 || *itemID == "") {
		fs.Usage()
		return errors.New("must specify --user-id and --item-id, or --all")
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	syncService, err := newSyncService(cfg, db, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if *all {
		summaries, err := syncService.SyncAll(ctx)
		for _, s := range summaries {
			printSummary(s)
		}
		log.Info().Int("synced", len(summaries)).Dur("elapsed", time.Since(start)).Msg("Sync of all items finished")
		return err
	}

	summary, err := syncService.RunSync(ctx, *userID, *itemID)
	if err != nil {
		return err
	}
	printSummary(summary)
	log.Info().Dur("elapsed", time.Since(start)).Msg("Sync finished")
	return nil
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true})
	return cfg, log, nil
}

// newSyncService builds the sync stack without notifications; an admin
// run should not push to users' phones.
func newSyncService(cfg *config.Config, db *postgres.DB, log zerolog.Logger) (*banksync.SyncService, error) {
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	client := plaid.NewClient(plaid.Config{
		Env:          cfg.Plaid.Env,
		BaseURL:      cfg.Plaid.BaseURL,
		ClientID:     cfg.Plaid.ClientID,
		Secret:       cfg.Plaid.Secret,
		ClientName:   cfg.Plaid.ClientName,
		CountryCodes: cfg.Plaid.CountryCodes,
		Language:     cfg.Plaid.Language,
		Timeout:      cfg.Plaid.RequestTimeout,
	})
	if !client.Configured() {
		return nil, plaid.ErrNotConfigured
	}

	mirror := banksync.NewAccountMirror(postgres.NewAccountRepository(db), log)
	reconciler := banksync.NewReconciler(postgres.NewTransactionRepository(db), client, cfg.Plaid.PageSize, log)

	svc := banksync.NewSyncService(postgres.NewItemRepository(db), encryptor, client, mirror, reconciler, log)
	svc.SetLocker(postgres.NewAdvisoryLocker(db, log))
	return svc, nil
}

func printSummary(s *banksync.SyncSummary) {
	fmt.Printf("\n=== Item %s ===\n", s.ItemID)
	fmt.Printf("  Outcome:               %s\n", s.Outcome)
	fmt.Printf("  Pages:                 %d\n", s.Pages)
	fmt.Printf("  Transactions added:    %d\n", s.TransactionsAdded)
	fmt.Printf("  Transactions modified: %d\n", s.TransactionsModified)
	fmt.Printf("  Transactions removed:  %d\n", s.TransactionsRemoved)
	fmt.Printf("  Accounts updated:      %d\n", s.AccountsUpdated)
	if s.Outcome == banksync.OutcomePartial {
		fmt.Printf("  Skipped: orphaned=%d mismatched=%d malformed=%d\n", s.Orphaned, s.Mismatched, s.Malformed)
	}
}
