package service

import (
	"context"
	"net/http"

	"signal_trader/internal/models"
)

func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	const op = "place_order"

	var r models.OrderResult
	if err := c.call(ctx, op, http.MethodPost, "/Order/place", req, &r); err != nil {
		return models.OrderResult{}, err
	}
	if !r.Success {
		return r, models.Errorf(models.KindBrokerRejection, op,
			"account %d %s: code=%d msg=%s", req.AccountID, req.ContractID, r.ErrorCode, r.ErrorMessage)
	}
	return r, nil
}

// SearchOpenOrders lists working orders of one account on one contract.
func (c *Client) SearchOpenOrders(ctx context.Context, accountID int64, contractID string) ([]models.Order, error) {
	in := struct {
		AccountID  int64  `json:"accountId"`
		ContractID string `json:"contractId"`
		IsOpen     bool   `json:"isOpen"`
	}{accountID, contractID, true}

	var r struct {
		Orders []models.Order `json:"orders"`
	}
	if err := c.call(ctx, "search_open_orders", http.MethodPost, "/Order/search", in, &r); err != nil {
		return nil, err
	}
	return r.Orders, nil
}
