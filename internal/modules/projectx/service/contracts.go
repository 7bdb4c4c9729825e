package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"signal_trader/internal/models"

	"github.com/bytedance/sonic"
)

// GetContractDetails reads lastPrice and tickSize. The gateway answers either
// with the contract object itself or wrapped as {"contract": {...}}.
func (c *Client) GetContractDetails(ctx context.Context, contractID string) (models.ContractDetails, error) {
	const op = "contract_details"

	resp, err := c.do(ctx, op, http.MethodGet, "/Contract/searchById?id="+url.QueryEscape(contractID), nil)
	if err != nil {
		return models.ContractDetails{}, err
	}
	if !resp.ok() {
		return models.ContractDetails{}, statusError(op, resp)
	}

	var wrapped struct {
		Contract *models.ContractDetails `json:"contract"`
	}
	if err := sonic.Unmarshal(resp.body, &wrapped); err == nil && wrapped.Contract != nil {
		return *wrapped.Contract, nil
	}
	var d models.ContractDetails
	if err := sonic.Unmarshal(resp.body, &d); err != nil {
		return models.ContractDetails{}, models.NewError(models.KindNetwork, op, fmt.Errorf("decode: %w", err))
	}
	return d, nil
}
