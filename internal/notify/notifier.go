package notify

import (
	"context"
	"fmt"
	"strings"

	"signal_trader/internal/models"
	"signal_trader/internal/storage"
	"signal_trader/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// StateReader is what the chat commands read.
type StateReader interface {
	ListPositions(ctx context.Context) ([]models.Position, error)
	Stats(ctx context.Context, limit int) (models.StatsSnapshot, error)
}

var _ StateReader = (storage.Store)(nil)

// Telegram is a passive notifier that also answers /positions and /stats.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	state  StateReader
}

func NewTelegram(token string, chatID int64, state StateReader) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
		state:  state,
	}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("telegram: send failed: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// /positions: what the monitor is tracking
func (t *Telegram) handlePositions(ctx context.Context) {
	positions, err := t.state.ListPositions(ctx)
	if err != nil {
		t.Sendf("❗️ positions unavailable: %v", err)
		return
	}
	t.Send(FormatPositions(positions))
}

// /stats: counters and the last closes
func (t *Telegram) handleStats(ctx context.Context) {
	st, err := t.state.Stats(ctx, 10)
	if err != nil {
		t.Sendf("❗️ stats unavailable: %v", err)
		return
	}
	t.Send(FormatStats(st))
}

// Start: long-polling for chat commands until ctx is done.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					go t.handlePositions(ctx)
				case "stats":
					go t.handleStats(ctx)
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t != nil && t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}

func FormatPositions(positions []models.Position) string {
	open := 0
	var b strings.Builder
	b.WriteString("📊 Open positions:\n")
	for _, p := range positions {
		if p.Terminal() {
			continue
		}
		open++
		fmt.Fprintf(&b, "- %s [%s] acc=%d @ %.2f tp1=%.2f%s tp2=%.2f%s tp3=%.2f\n",
			p.Symbol, p.Side, p.AccountID, p.EntryPrice,
			p.TP1, check(p.TP1Closed), p.TP2, check(p.TP2Closed), p.TP3)
	}
	if open == 0 {
		return "📭 No open positions"
	}
	return b.String()
}

func check(closed bool) string {
	if closed {
		return "✓"
	}
	return ""
}

func FormatStats(st models.StatsSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 wins=%d losses=%d win rate=%.2f%% pnl=%.2f\n",
		st.Wins, st.Losses, st.WinRate(), st.CumulativePnL)
	for _, h := range st.History {
		b.WriteString("• ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}

// Stdout writes every notification to the log.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("notify: %s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { s.Send(fmt.Sprintf(format, args...)) }
