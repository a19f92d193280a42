package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var _ port.AccountReader = (*AccountClient)(nil)

// AccountClient 合约账户
type AccountClient struct {
	*APIClient
}

func NewAccountClient(client *APIClient) *AccountClient {
	return &AccountClient{APIClient: client}
}

// AccountResponse /fapi/v2/account（只取用到的字段）
type AccountResponse struct {
	TotalWalletBalance    string `json:"totalWalletBalance"`
	TotalUnrealizedProfit string `json:"totalUnrealizedProfit"`
	AvailableBalance      string `json:"availableBalance"`
}

// Balance 钱包总余额 + 可用余额
func (c *AccountClient) Balance(ctx context.Context) (model.AccountBalance, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/account", nil)
	if err != nil {
		return model.AccountBalance{}, fmt.Errorf("failed to get binance futures account: %w", err)
	}

	var resp AccountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.AccountBalance{}, fmt.Errorf("failed to unmarshal binance futures account: %w", err)
	}

	return model.AccountBalance{
		TotalWalletBalance: parseFloat(resp.TotalWalletBalance),
		AvailableBalance:   parseFloat(resp.AvailableBalance),
		UpdatedAt:          time.Now().UTC(),
	}, nil
}
