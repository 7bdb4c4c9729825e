package models

// OrderRequest is the body of an order placement.
type OrderRequest struct {
	AccountID  int64    `json:"accountId"`
	ContractID string   `json:"contractId"`
	Type       int      `json:"type"`
	Side       int      `json:"side"`
	Size       int      `json:"size"`
	TrailPrice *float64 `json:"trailPrice,omitempty"`
}

type OrderResult struct {
	OrderID      int64  `json:"orderId"`
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type Order struct {
	ID         int64   `json:"id"`
	AccountID  int64   `json:"accountId"`
	ContractID string  `json:"contractId"`
	Status     int     `json:"status"`
	Type       int     `json:"type"`
	Side       int     `json:"side"`
	Size       int     `json:"size"`
	LimitPrice float64 `json:"limitPrice"`
}

// BrokerPosition is a live position as the upstream reports it.
type BrokerPosition struct {
	ID           int64   `json:"id"`
	AccountID    int64   `json:"accountId"`
	ContractID   string  `json:"contractId"`
	Type         int     `json:"type"`
	Size         int     `json:"size"`
	AveragePrice float64 `json:"averagePrice"`
}

type ContractDetails struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	LastPrice float64 `json:"lastPrice"`
	TickSize  float64 `json:"tickSize"`
	TickValue float64 `json:"tickValue"`
}
