package models

import "time"

// round statuses reported by the game feed
const (
	RoundStatusBet      = "bet"
	RoundStatusSettling = "settling"
	RoundStatusSettled  = "settled"
)

// RoundEvent is one decoded round frame from the game feed.
type RoundEvent struct {
	RoundID string
	Status  string
	Symbols []string
	// Results carries ranks once the round is settling or settled.
	Results []SymbolResult
	// SettledAt is zero when the frame has no settle time.
	SettledAt  time.Time
	ReceivedAt time.Time
}

func (e RoundEvent) Settling() bool {
	return e.Status == RoundStatusSettling || e.Status == RoundStatusSettled
}
