package models

import "math"

// StatsSnapshot is the aggregate of every fully closed trade.
type StatsSnapshot struct {
	Wins          int64    `json:"wins"`
	Losses        int64    `json:"losses"`
	CumulativePnL float64  `json:"cumulative_pnl"`
	History       []string `json:"history"` // newest first
}

// WinRate in percent rounded to 2 decimals, 0 with no trades.
func (s StatsSnapshot) WinRate() float64 {
	total := s.Wins + s.Losses
	if total == 0 {
		return 0
	}
	return math.Round(float64(s.Wins)/float64(total)*100*100) / 100
}

// IsWin is the single rule the stores use to pick a counter.
func IsWin(pnl float64) bool { return pnl > 0 }
