package models

import "time"

type Side int

const (
	SideLong  Side = 0
	SideShort Side = 1
)

func SideFromDirection(direction string) Side {
	if IsLong(direction) {
		return SideLong
	}
	return SideShort
}

func (s Side) String() string {
	if s == SideLong {
		return "LONG"
	}
	return "SHORT"
}

// Sign is +1 for long, -1 for short: targets move away from entry by this sign.
func (s Side) Sign() float64 {
	if s == SideLong {
		return 1
	}
	return -1
}

// Position is the monitored state of one open trade, keyed by contract id.
// TP4/TP5 are stored for a longer exit ladder; the monitor does not read them.
type Position struct {
	ContractID       string    `json:"contract_id"`
	Symbol           string    `json:"symbol"`
	EntryPrice       float64   `json:"price"`
	Side             Side      `json:"side"`
	TP1              float64   `json:"tp1"`
	TP2              float64   `json:"tp2"`
	TP3              float64   `json:"tp3"`
	TP4              float64   `json:"tp4"`
	TP5              float64   `json:"tp5"`
	AccountID        int64     `json:"account_id"`
	PartialCloseSize int       `json:"partial_size"`
	TP1Closed        bool      `json:"tp1_closed"`
	TP2Closed        bool      `json:"tp2_closed"`
	TP3Closed        bool      `json:"tp3_closed"`
	FullClosed       bool      `json:"full_closed"`
	OpenedAt         time.Time `json:"opened_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Terminal positions are never evaluated again.
func (p Position) Terminal() bool { return p.FullClosed }

// Stage returns the next take-profit stage still open: 1..3, or 0 when done.
func (p Position) Stage() int {
	switch {
	case p.FullClosed:
		return 0
	case !p.TP1Closed:
		return 1
	case !p.TP2Closed:
		return 2
	case !p.TP3Closed:
		return 3
	}
	return 0
}

// Target returns the price level of stage 1..5.
func (p Position) Target(stage int) float64 {
	switch stage {
	case 1:
		return p.TP1
	case 2:
		return p.TP2
	case 3:
		return p.TP3
	case 4:
		return p.TP4
	case 5:
		return p.TP5
	}
	return 0
}

// MarkClosed sets the flag of stage and keeps the flags monotonic. It reports
// false when the stage was already closed.
func (p *Position) MarkClosed(stage int, at time.Time) bool {
	switch stage {
	case 1:
		if p.TP1Closed {
			return false
		}
		p.TP1Closed = true
	case 2:
		if p.TP2Closed {
			return false
		}
		p.TP1Closed, p.TP2Closed = true, true
	case 3:
		if p.TP3Closed {
			return false
		}
		p.TP3Closed, p.FullClosed = true, true
	default:
		return false
	}
	p.UpdatedAt = at
	return true
}
