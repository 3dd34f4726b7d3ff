package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tick_trader/internal/models"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// PerformanceSource — кто умеет отдавать сводку для /status.
type PerformanceSource interface {
	Performance() models.PerformanceSnapshot
}

// Telegram — пассивный нотифайер + одна команда /status.
// Без токена все методы — no-op, движок от телеграма не зависит.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	perf   PerformanceSource
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return &Telegram{}, nil
	}
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

// SetPerformanceSource подключает движок после сборки графа зависимостей.
func (t *Telegram) SetPerformanceSource(src PerformanceSource) {
	if t != nil {
		t.perf = src
	}
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// SendService — сервисные сообщения стримера/движка.
func (t *Telegram) SendService(_ context.Context, format string, args ...any) {
	t.Sendf(format, args...)
}

// Start: long-polling для /status.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || !upd.Message.IsCommand() {
				continue
			}
			switch upd.Message.Command() {
			case "status", "performance":
				t.handleStatus()
			}
		}
	}
}

func (t *Telegram) handleStatus() {
	if t.perf == nil {
		t.Send("📭 Движок ещё не подключён")
		return
	}
	p := t.perf.Performance()

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статус движка\n")
	fmt.Fprintf(&b, "Equity: $%.2f (%+.2f%%)\n", p.AccountEquity, p.TotalReturnPct)
	fmt.Fprintf(&b, "Сделок: %d | win rate %.1f%% | PF %.2f\n", p.TotalTrades, p.WinRate, p.ProfitFactor)
	fmt.Fprintf(&b, "Комиссий: $%.2f | maxDD %.2f%%\n", p.TotalFeesPaid, p.MaxDrawdownPct)
	fmt.Fprintf(&b, "Открыто позиций: %d (uPnL %+.2f)\n", p.OpenPositionCount, p.UnrealizedPnL)
	for _, pos := range p.OpenPositions {
		hold := time.Duration(pos.HoldingTimeSecond) * time.Second
		fmt.Fprintf(&b, "- %s %s @ %.4f stop=%.4f uPnL=%+.2f (%s)\n",
			pos.Symbol, pos.Side, pos.Entry, pos.Stop, pos.UnrealizedPnL, hold)
	}
	t.Send(b.String())
}
