package bot

import (
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"tradescan/internal/domain"
)

// SignalReader is the slice of the scan engine the bot commands need.
type SignalReader interface {
	SymbolHistory(symbol string) []domain.TradeSignal
	WatchedSymbols() []string
	TotalSignals() int64
	SignalCounts() (buy, sell, hold int64)
	EvaluateSymbol(symbol string) error
}

// StartTelegramBot wires bot commands and returns the alert dispatcher the
// engine pushes actionable signals into. Returns nil (alerts disabled) when
// no token is configured.
func StartTelegramBot(token string, reader SignalReader) *AlertDispatcher {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/status", func(c tele.Context) error {
		buy, sell, hold := reader.SignalCounts()
		return c.Send(fmt.Sprintf(
			"Watching: %s\nSignals: %d total (%d buy / %d sell / %d hold)",
			strings.Join(reader.WatchedSymbols(), ", "),
			reader.TotalSignals(), buy, sell, hold,
		))
	})

	b.Handle("/signals", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /signals BTCUSDT\nWatched: %s",
				strings.Join(reader.WatchedSymbols(), ", ")))
		}
		symbol := strings.ToUpper(args[0])
		signals := reader.SymbolHistory(symbol)
		if len(signals) == 0 {
			return c.Send(fmt.Sprintf("No signals recorded for %s yet", symbol))
		}
		// Newest five, most recent first.
		start := len(signals) - 5
		if start < 0 {
			start = 0
		}
		lines := make([]string, 0, 5)
		for i := len(signals) - 1; i >= start; i-- {
			s := signals[i]
			lines = append(lines, fmt.Sprintf("%s %s @ %s (%s)",
				s.Timestamp.Format("15:04"), s.Type, s.Price, s.Reason))
		}
		return c.Send(fmt.Sprintf("%s\n%s", symbol, strings.Join(lines, "\n")))
	})

	b.Handle("/scan", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /scan BTCUSDT")
		}
		symbol := strings.ToUpper(args[0])
		if err := reader.EvaluateSymbol(symbol); err != nil {
			return c.Send(fmt.Sprintf("Could not queue %s: %v", symbol, err))
		}
		return c.Send("Evaluation queued for " + symbol)
	})

	b.Handle("/alerts", func(c tele.Context) error {
		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | off | status")
		}
		chatID := c.Chat().ID
		switch mode {
		case "on":
			if alerts.Subscribe(chatID) {
				return c.Send("Alerts enabled: actionable signals will be sent here")
			}
			return c.Send("Alerts already enabled for this chat")
		case "off":
			if alerts.Unsubscribe(chatID) {
				return c.Send("Alerts disabled")
			}
			return c.Send("Alerts were not enabled for this chat")
		default:
			if alerts.IsSubscribed(chatID) {
				return c.Send("Alerts are ON")
			}
			return c.Send("Alerts are OFF")
		}
	})

	go b.Start()
	log.Println("Telegram bot started")
	return alerts
}
