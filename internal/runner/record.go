package runner

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EventKind distinguishes position events.
type EventKind string

const (
	EventEnter EventKind = "ENTER"
	EventExit  EventKind = "EXIT"
)

// Event is one position change: an entry or an exit at a bar index and price.
type Event struct {
	Kind  EventKind
	Index int
	Price decimal.Decimal
}

// Trade pairs an entry with its closing exit.
type Trade struct {
	Entry Event
	Exit  Event
}

// TradingRecord is the ordered log of position events for one evaluation
// context. It starts flat; events strictly alternate enter/exit, which the
// runner enforces through position gating.
type TradingRecord struct {
	events []Event
}

// NewTradingRecord returns an empty (flat) record.
func NewTradingRecord() *TradingRecord {
	return &TradingRecord{}
}

// InPosition reports whether the last event is an unmatched entry.
func (r *TradingRecord) InPosition() bool {
	n := len(r.events)
	return n > 0 && r.events[n-1].Kind == EventEnter
}

// Enter appends an entry event. Entering while already in a position is a
// programming error; the gate in the strategy prevents it.
func (r *TradingRecord) Enter(index int, price decimal.Decimal) error {
	if r.InPosition() {
		return fmt.Errorf("trading record: enter at bar %d while already in position", index)
	}
	r.events = append(r.events, Event{Kind: EventEnter, Index: index, Price: price})
	return nil
}

// Exit appends an exit event closing the open position.
func (r *TradingRecord) Exit(index int, price decimal.Decimal) error {
	if !r.InPosition() {
		return fmt.Errorf("trading record: exit at bar %d while flat", index)
	}
	r.events = append(r.events, Event{Kind: EventExit, Index: index, Price: price})
	return nil
}

// Events returns a copy of the event log.
func (r *TradingRecord) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ClosedTrades pairs entries with exits; a trailing open entry is excluded.
func (r *TradingRecord) ClosedTrades() []Trade {
	trades := make([]Trade, 0, len(r.events)/2)
	for i := 0; i+1 < len(r.events); i += 2 {
		trades = append(trades, Trade{Entry: r.events[i], Exit: r.events[i+1]})
	}
	return trades
}
