package service

import (
	"context"
	"net/http"

	"signal_trader/internal/models"

	"github.com/bytedance/sonic"
)

func (c *Client) SearchPositions(ctx context.Context, accountID int64) ([]models.BrokerPosition, error) {
	in := struct {
		AccountID int64 `json:"accountId"`
	}{accountID}

	var r struct {
		Positions []models.BrokerPosition `json:"positions"`
	}
	if err := c.call(ctx, "search_positions", http.MethodPost, "/Position/search", in, &r); err != nil {
		return nil, err
	}
	return r.Positions, nil
}

// PositionSize is the live size of contractID on the account, 0 when flat.
func (c *Client) PositionSize(ctx context.Context, accountID int64, contractID string) (int, error) {
	positions, err := c.SearchPositions(ctx, accountID)
	if err != nil {
		return 0, err
	}
	for _, p := range positions {
		if p.ContractID == contractID {
			return p.Size, nil
		}
	}
	return 0, nil
}

func (c *Client) CloseFullPosition(ctx context.Context, accountID int64, contractID string) error {
	in := struct {
		AccountID  int64  `json:"accountId"`
		ContractID string `json:"contractId"`
	}{accountID, contractID}
	return c.closeCall(ctx, "close_position", "/Position/closeContract", in)
}

func (c *Client) ClosePartialPosition(ctx context.Context, accountID int64, contractID string, size int) error {
	if size < 1 {
		return models.Errorf(models.KindValidation, "partial_close_position", "size %d must be at least 1", size)
	}
	in := struct {
		AccountID  int64  `json:"accountId"`
		ContractID string `json:"contractId"`
		Size       int    `json:"size"`
	}{accountID, contractID, size}
	return c.closeCall(ctx, "partial_close_position", "/Position/partialCloseContract", in)
}

// closeCall succeeds only on HTTP 200 with success:true in the body.
func (c *Client) closeCall(ctx context.Context, op, path string, in any) error {
	resp, err := c.do(ctx, op, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return statusError(op, resp)
	}

	var r struct {
		Success      bool   `json:"success"`
		ErrorCode    int    `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := sonic.Unmarshal(resp.body, &r); err != nil || !r.Success {
		return models.Errorf(models.KindBrokerRejection, op, "not confirmed: %s", truncate(resp.body))
	}
	return nil
}
