package notification

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"finsync/internal/domain/banksync"
	"finsync/internal/shared/messages"
)

// Service registers devices and pushes sync results to them.
type Service struct {
	repo      Repository
	messenger Messenger
	texts     *messages.Messages
	log       zerolog.Logger
}

// NewService creates a notification service. messenger may be nil, in
// which case nothing is pushed.
func NewService(repo Repository, messenger Messenger, texts *messages.Messages, log zerolog.Logger) *Service {
	if texts == nil {
		texts = messages.Default()
	}
	return &Service{
		repo:      repo,
		messenger: messenger,
		texts:     texts,
		log:       log.With().Str("service", "notification").Logger(),
	}
}

// RegisterDevice registers a device token for the authenticated user.
func (s *Service) RegisterDevice(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpsertDeviceToken(ctx, params)
}

// NotifySyncComplete pushes a summary of a sync that changed transactions.
// Failures are logged and never reach the sync.
func (s *Service) NotifySyncComplete(ctx context.Context, summary *banksync.SyncSummary) {
	changed := summary.TransactionsAdded + summary.TransactionsModified + summary.TransactionsRemoved
	body := s.render(s.texts.SyncComplete.Body, map[string]int{
		"added":    summary.TransactionsAdded,
		"modified": summary.TransactionsModified,
		"removed":  summary.TransactionsRemoved,
		"changed":  changed,
	})

	s.sendToUser(ctx, summary.UserID, s.texts.SyncComplete.Title, body, map[string]string{
		"type":   "sync_complete",
		"route":  "transactions",
		"itemId": summary.ItemID,
	})
}

// NotifyRelinkRequired tells the user an item needs to go through Link again.
func (s *Service) NotifyRelinkRequired(ctx context.Context, userID int64, itemID string) {
	s.sendToUser(ctx, userID, s.texts.RelinkRequired.Title, s.texts.RelinkRequired.Body, map[string]string{
		"type":   "relink_required",
		"route":  "accounts",
		"itemId": itemID,
	})
}

func (s *Service) sendToUser(ctx context.Context, userID int64, title, body string, data map[string]string) {
	if s.messenger == nil {
		return
	}

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("failed to load device tokens")
		return
	}
	if len(tokens) == 0 {
		s.log.Debug().Int64("user_id", userID).Msg("no active device tokens")
		return
	}

	tokenStrings := make([]string, len(tokens))
	for i, t := range tokens {
		tokenStrings[i] = t.Token
	}

	if err := s.messenger.SendMulticast(ctx, tokenStrings, title, body, data); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("failed to send notification")
	}
}

// render fills {name} placeholders.
func (s *Service) render(text string, values map[string]int) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", strconv.Itoa(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

var _ banksync.Notifier = (*Service)(nil)
