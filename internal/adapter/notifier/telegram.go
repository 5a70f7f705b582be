package notifier

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/wpbackup/internal/config"
	"github.com/semmidev/wpbackup/internal/domain"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a short message about each finished backup.
type TelegramNotifier struct {
	bot          sender
	chatID       int64
	site         string
	onlyFailures bool
}

func NewTelegram(cfg *config.TelegramConfig, site string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:          bot,
		chatID:       cfg.ChatID,
		site:         site,
		onlyFailures: cfg.OnlyFailures,
	}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, result domain.BackupResult) error {
	if result.OK && t.onlyFailures {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, t.format(result))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func (t *TelegramNotifier) format(result domain.BackupResult) string {
	if !result.OK {
		return fmt.Sprintf(
			"❌ Backup Failed\n\n"+
				"🌐 Site: %s\n"+
				"⚠️ Reason: %s\n"+
				"🏷 Kind: %s\n"+
				"🕐 Time: %s",
			t.site,
			result.Message,
			result.Kind,
			result.Finished.Format("2006-01-02 15:04:05"),
		)
	}

	return fmt.Sprintf(
		"✅ Backup Created\n\n"+
			"🌐 Site: %s\n"+
			"📁 File: %s\n"+
			"📊 Size: %.2f MB\n"+
			"🗂 Files: %d, Tables: %d, Rows: %d\n"+
			"⏱ Duration: %s",
		t.site,
		filepath.Base(result.Path),
		float64(result.Stats.Size)/(1024*1024),
		result.Stats.Files,
		result.Stats.Tables,
		result.Stats.Rows,
		result.Duration().Round(time.Second),
	)
}
