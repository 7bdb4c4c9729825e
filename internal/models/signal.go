package models

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type Action string

const (
	ActionOpen         Action = "open"
	ActionClose        Action = "close"
	ActionPartialClose Action = "partial_close"
)

type OrderType int

const (
	OrderTypeLimit        OrderType = 1
	OrderTypeMarket       OrderType = 2
	OrderTypeStop         OrderType = 4
	OrderTypeTrailingStop OrderType = 5
)

func (t OrderType) IsTrailing() bool { return t == OrderTypeTrailingStop }

// AccountTarget mirrors a signal onto one brokerage account.
type AccountTarget struct {
	AccountID          int64   `json:"account_id"`
	QuantityMultiplier float64 `json:"quantity_multiplier"`
}

// TradeSignal is the typed form of an inbound webhook payload. Optional fields
// stay nil when the sender omitted them; defaults are applied by the executor.
type TradeSignal struct {
	Symbol    string
	Action    Action
	Price     *float64
	Quantity  *float64
	Direction *string
	OrderType OrderType

	TrailPrice       *float64
	PartialCloseRR   *float64
	PartialCloseSize *int
	FullCloseRR      *float64

	// top-level accountId/size, used by close and partial_close
	AccountID *int64
	Size      *int

	Accounts []AccountTarget
}

// IsLong reports whether the direction hint asks for a long entry.
func IsLong(direction string) bool {
	return strings.Contains(strings.ToLower(direction), "long")
}

// CloseAccount picks the account a close/partial_close applies to.
func (s TradeSignal) CloseAccount() (int64, bool) {
	if s.AccountID != nil {
		return *s.AccountID, true
	}
	if len(s.Accounts) > 0 {
		return s.Accounts[0].AccountID, true
	}
	return 0, false
}

// Policy is the table of defaults applied to fields a signal leaves out.
type Policy struct {
	Quantity           float64
	Direction          string
	OrderType          OrderType
	PartialCloseRR     float64
	FullCloseRR        float64
	ExtraRR            [3]float64 // TP3, TP4, TP5
	PartialCloseSize   int
	CloseSize          int
	QuantityMultiplier float64
	TickSize           float64
}

var DefaultPolicy = Policy{
	Quantity:           1,
	Direction:          "long",
	OrderType:          OrderTypeMarket,
	PartialCloseRR:     1.0,
	FullCloseRR:        2.0,
	ExtraRR:            [3]float64{3.0, 4.0, 5.0},
	PartialCloseSize:   1,
	CloseSize:          1,
	QuantityMultiplier: 1,
	TickSize:           0.01,
}

// RiskRewards returns the five ratios TP1..TP5 for a signal.
func (p Policy) RiskRewards(s TradeSignal) [5]float64 {
	rr := [5]float64{p.PartialCloseRR, p.FullCloseRR, p.ExtraRR[0], p.ExtraRR[1], p.ExtraRR[2]}
	if s.PartialCloseRR != nil {
		rr[0] = *s.PartialCloseRR
	}
	if s.FullCloseRR != nil {
		rr[1] = *s.FullCloseRR
	}
	return rr
}

// flexNumber accepts 5000, 5000.5, "5000" and null.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Errorf("not a number: %s", string(b))
	}
	n.value, n.set = v, true
	return nil
}

func (n flexNumber) float() *float64 {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}

func (n flexNumber) int() *int {
	if !n.set {
		return nil
	}
	v := int(n.value)
	return &v
}

func (n flexNumber) int64() *int64 {
	if !n.set {
		return nil
	}
	v := int64(n.value)
	return &v
}

type rawSignal struct {
	Symbol     *string    `json:"symbol"`
	Action     *string    `json:"action"`
	Price      flexNumber `json:"price"`
	Quantity   flexNumber `json:"quantity"`
	Data       *string    `json:"data"`
	Type       flexNumber `json:"type"`
	TrailPrice flexNumber `json:"trailPrice"`
	AccountID  flexNumber `json:"accountId"`
	Size       flexNumber `json:"size"`

	PartialClose *struct {
		TargetRR flexNumber `json:"target_rr"`
		Size     flexNumber `json:"size"`
	} `json:"partial_close"`
	FullClose *struct {
		TargetRR flexNumber `json:"target_rr"`
	} `json:"full_close"`

	MultipleAccounts []struct {
		AccountID          flexNumber `json:"account_id"`
		QuantityMultiplier flexNumber `json:"quantity_multiplier"`
	} `json:"multiple_accounts"`
}

// ParseSignal decodes a webhook body. It fails only on malformed input: bad JSON,
// non-numeric numbers, accounts without an id. A missing symbol is left for the
// executor to reject so the sender still gets an acknowledgement.
func ParseSignal(body []byte, policy Policy) (TradeSignal, error) {
	const op = "signal.parse"

	var raw rawSignal
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return TradeSignal{}, NewError(KindValidation, op, errors.Wrap(err, "decode payload"))
	}

	sig := TradeSignal{
		Action:     ActionOpen,
		Price:      raw.Price.float(),
		Quantity:   raw.Quantity.float(),
		Direction:  raw.Data,
		OrderType:  policy.OrderType,
		TrailPrice: raw.TrailPrice.float(),
		AccountID:  raw.AccountID.int64(),
		Size:       raw.Size.int(),
	}
	if raw.Symbol != nil {
		sig.Symbol = strings.TrimSpace(*raw.Symbol)
	}
	if raw.Action != nil {
		switch Action(strings.ToLower(strings.TrimSpace(*raw.Action))) {
		case ActionClose:
			sig.Action = ActionClose
		case ActionPartialClose:
			sig.Action = ActionPartialClose
		}
	}
	if t := raw.Type.int(); t != nil {
		sig.OrderType = OrderType(*t)
	}
	if raw.PartialClose != nil {
		sig.PartialCloseRR = raw.PartialClose.TargetRR.float()
		sig.PartialCloseSize = raw.PartialClose.Size.int()
	}
	if raw.FullClose != nil {
		sig.FullCloseRR = raw.FullClose.TargetRR.float()
	}

	for i, acc := range raw.MultipleAccounts {
		id := acc.AccountID.int64()
		if id == nil {
			return TradeSignal{}, Errorf(KindValidation, op, "multiple_accounts[%d]: account_id is required", i)
		}
		mult := policy.QuantityMultiplier
		if m := acc.QuantityMultiplier.float(); m != nil {
			mult = *m
		}
		sig.Accounts = append(sig.Accounts, AccountTarget{AccountID: *id, QuantityMultiplier: mult})
	}

	return sig, nil
}
