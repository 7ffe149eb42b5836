package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"vitals-service/internal/models"
	"vitals-service/internal/utils"
)

// sendTelegram delivers one alert to the configured chat, rate limited and
// retried.
func (s *Service) sendTelegram(ctx context.Context, alert models.Alert) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	text := fmt.Sprintf(
		"*%s ALERT*\n%s\n\n"+
			"*User:* %d\n"+
			"*Value:* %.1f\n"+
			"*Threshold:* %.1f",
		alert.Severity,
		alert.Message,
		alert.UserID,
		alert.Value,
		alert.Threshold,
	)

	return utils.Retry(s.logger, 3, time.Second, func() error {
		b, err := bot.New(s.cfg.Notifier.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}

		params := &bot.SendMessageParams{
			ChatID:    s.cfg.Notifier.TelegramChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", s.cfg.Notifier.TelegramChatID, err)
		}
		return nil
	})
}
