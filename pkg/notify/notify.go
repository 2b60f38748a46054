// Package notify is the watcher's outbound/inbound chat surface: a
// Telegram bot for restart, stagnation and lifecycle alerts, and a
// long-poll loop that feeds inbound commands to a caller-supplied
// handler.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/log"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/metrics"
)

// Notifier is the capability both the enabled Telegram notifier and
// the disabled no-op satisfy, so call sites never branch on enablement.
type Notifier interface {
	Send(text string)
	RunLongPoll(ctx context.Context, handle func(chatID int64, text string))
}

// New returns a Telegram-backed Notifier, or a NopNotifier if either
// the token or the chat id is empty.
func New(token, chatID string) (Notifier, error) {
	if token == "" || chatID == "" {
		return NopNotifier{}, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	var id int64
	if _, err := fmt.Sscanf(chatID, "%d", &id); err != nil {
		return nil, fmt.Errorf("parsing TELEGRAM_CHAT_ID %q: %w", chatID, err)
	}

	return &TelegramNotifier{bot: bot, chatID: id}, nil
}

// ValidateToken calls getMe once at startup. A 401 is fatal; any other
// error is logged as a warning and startup proceeds.
func ValidateToken(n Notifier) error {
	t, ok := n.(*TelegramNotifier)
	if !ok {
		return nil
	}
	_, err := t.bot.GetMe()
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 401 {
		return fmt.Errorf("telegram token rejected: %w", err)
	}
	log.WithComponent("notify").Warn().Err(err).Msg("could not validate telegram token, continuing")
	return nil
}

// TelegramNotifier sends HTML-formatted messages and long-polls for
// inbound commands.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// Send posts text to the configured chat. Failures are logged, never
// returned: outbound notification is always best-effort.
func (t *TelegramNotifier) Send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			log.WithComponent("notify").Error().Err(err).Msg("failed to send telegram message")
			metrics.NotifierSendErrorsTotal.Inc()
		}
	case <-time.After(10 * time.Second):
		log.WithComponent("notify").Error().Msg("timed out sending telegram message")
		metrics.NotifierSendErrorsTotal.Inc()
	}
}

// RunLongPoll blocks, dispatching each inbound text message to handle,
// until ctx is cancelled. It maintains a monotonically increasing
// update offset and backs off on error: 15s for transport errors, 30s
// for anything else.
func (t *TelegramNotifier) RunLongPoll(ctx context.Context, handle func(chatID int64, text string)) {
	logger := log.WithComponent("notify")
	offset := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := t.bot.GetUpdates(tgbotapi.UpdateConfig{
			Offset:  offset,
			Timeout: 30,
		})
		if err != nil {
			backoff := 30 * time.Second
			if isTransportError(err) {
				backoff = 15 * time.Second
			}
			logger.Error().Err(err).Dur("backoff", backoff).Msg("long-poll getUpdates failed")
			sleepOrDone(ctx, backoff)
			continue
		}

		for _, u := range updates {
			if u.UpdateID+1 > offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			handle(u.Message.Chat.ID, u.Message.Text)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isTransportError(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}

// NopNotifier silently discards every call. Used when Telegram
// credentials are absent so the rest of the system runs unchanged.
type NopNotifier struct{}

func (NopNotifier) Send(string) {}

func (NopNotifier) RunLongPoll(ctx context.Context, _ func(int64, string)) {
	<-ctx.Done()
}
