package main

import (
	"context"

	"github.com/rs/zerolog"

	"finsync/internal/domain/account"
	"finsync/internal/domain/banksync"
	"finsync/internal/domain/budget"
	"finsync/internal/domain/notification"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/firebase"
	"finsync/internal/infrastructure/plaid"
	"finsync/internal/infrastructure/postgres"
	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/interfaces/scheduler"
	"finsync/internal/shared/auth"
	"finsync/internal/shared/config"
	"finsync/internal/shared/messages"
)

// Dependencies holds everything the routes and background jobs need.
type Dependencies struct {
	DB  *postgres.DB
	JWT *auth.JWT

	ItemRepo    *postgres.ItemRepository
	SyncService *banksync.SyncService
	Notifier    *notification.Service

	HealthHandler       *httphandlers.HealthHandler
	PlaidHandler        *httphandlers.PlaidHandler
	AccountHandler      *httphandlers.AccountHandler
	TransactionHandler  *httphandlers.TransactionHandler
	BudgetHandler       *httphandlers.BudgetHandler
	NotificationHandler *httphandlers.NotificationHandler
}

// NewDependencies wires repositories, services and handlers. A missing
// vault key or provider credentials only disable bank linking.
func NewDependencies(ctx context.Context, db *postgres.DB, cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	itemRepo := postgres.NewItemRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	deviceTokenRepo := postgres.NewDeviceTokenRepository(db)

	var vault banksync.Vault
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Warn().Err(err).Msg("Credential vault unavailable, bank linking disabled")
		vault = crypto.Unavailable{Err: err}
	} else {
		vault = encryptor
	}

	plaidClient := plaid.NewClient(plaid.Config{
		Env:          cfg.Plaid.Env,
		BaseURL:      cfg.Plaid.BaseURL,
		ClientID:     cfg.Plaid.ClientID,
		Secret:       cfg.Plaid.Secret,
		ClientName:   cfg.Plaid.ClientName,
		CountryCodes: cfg.Plaid.CountryCodes,
		Language:     cfg.Plaid.Language,
		Timeout:      cfg.Plaid.RequestTimeout,
	})
	if !plaidClient.Configured() {
		log.Warn().Msg("PLAID_CLIENT_ID/PLAID_SECRET not set, bank linking disabled")
	}

	texts := messages.Default()
	if cfg.Firebase.MessagesFile != "" {
		texts, err = messages.Load(cfg.Firebase.MessagesFile)
		if err != nil {
			return nil, err
		}
	}

	// Keep the interface nil when Firebase is off so nothing is pushed.
	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, deviceTokenRepo.DeactivateToken, log)
		if err != nil {
			log.Warn().Err(err).Msg("Firebase unavailable, push notifications disabled")
		} else {
			messenger = fcm
		}
	}
	notificationService := notification.NewService(deviceTokenRepo, messenger, texts, log)

	accountService := account.NewService(accountRepo)
	transactionService := transaction.NewService(transactionRepo, accountService)
	budgetService := budget.NewService(budgetRepo, transactionRepo)

	mirror := banksync.NewAccountMirror(accountRepo, log)
	reconciler := banksync.NewReconciler(transactionRepo, plaidClient, cfg.Plaid.PageSize, log)
	syncService := banksync.NewSyncService(itemRepo, vault, plaidClient, mirror, reconciler, log)
	syncService.SetLocker(postgres.NewAdvisoryLocker(db, log))
	syncService.SetNotifier(notificationService)
	linkService := banksync.NewLinkService(itemRepo, vault, plaidClient, mirror, reconciler, cfg.Plaid.InitialLookbackDays, log)

	plaidConfigured := cfg.PlaidConfigured
	encryptionConfigured := func() bool { return encryptor != nil }

	return &Dependencies{
		DB:          db,
		JWT:         auth.NewJWT(cfg.JWT.Secret),
		ItemRepo:    itemRepo,
		SyncService: syncService,
		Notifier:    notificationService,

		HealthHandler:       httphandlers.NewHealthHandler(db, plaidConfigured, encryptionConfigured, cfg.Telemetry.Environment),
		PlaidHandler:        httphandlers.NewPlaidHandler(linkService, syncService, plaidConfigured, log),
		AccountHandler:      httphandlers.NewAccountHandler(accountService, log),
		TransactionHandler:  httphandlers.NewTransactionHandler(transactionService, log),
		BudgetHandler:       httphandlers.NewBudgetHandler(budgetService, log),
		NotificationHandler: httphandlers.NewNotificationHandler(notificationService, log),
	}, nil
}

// NewScheduler builds the cron-driven sync of every linked item.
func NewScheduler(deps *Dependencies, cfg *config.Config, log zerolog.Logger) (*scheduler.Scheduler, error) {
	return scheduler.NewScheduler(scheduler.Config{
		Cron:         cfg.Scheduler.Cron,
		WorkerCount:  cfg.Scheduler.WorkerCount,
		JobDelay:     cfg.Scheduler.JobDelay,
		JobTimeout:   cfg.Scheduler.JobTimeout,
		QueueSize:    cfg.Scheduler.QueueSize,
		RunOnStartup: cfg.Scheduler.RunOnStartup,
		JobProvider:  scheduler.ItemJobs(deps.ItemRepo, deps.SyncService, deps.Notifier, log),
	}, log)
}
