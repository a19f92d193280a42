package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var _ port.OrderExecutor = (*OrderClient)(nil)

// OrderClient 合约下单（市价单，不重试）
type OrderClient struct {
	*APIClient
	newClientID func() string
}

func NewOrderClient(client *APIClient) *OrderClient {
	return &OrderClient{APIClient: client, newClientID: uuid.NewString}
}

// OrderResponse /fapi/v1/order 响应（newOrderRespType=RESULT）
type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	AvgPrice      string `json:"avgPrice"`
	ExecutedQty   string `json:"executedQty"`
	OrigQty       string `json:"origQty"`
}

// SubmitMarketOrder 提交市价单；超时时订单状态未知，按 clientOrderId 人工核对
func (c *OrderClient) SubmitMarketOrder(ctx context.Context, symbol string, side model.Side, qty float64) (model.Fill, error) {
	if qty <= 0 {
		return model.Fill{}, fmt.Errorf("%w: qty %v", model.ErrInvalidQuantityInput, qty)
	}
	clientID := c.newClientID()

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", decimal.NewFromFloat(qty).String())
	params.Set("newOrderRespType", "RESULT")
	params.Set("newClientOrderId", clientID)

	body, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		log.Error().
			Err(err).
			Str("symbol", symbol).
			Str("side", string(side)).
			Float64("qty", qty).
			Str("client_order_id", clientID).
			Msg("market order failed")
		return model.Fill{}, fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Fill{}, fmt.Errorf("parse order response: %w", err)
	}
	if resp.OrderID == 0 {
		return model.Fill{}, fmt.Errorf("order failed: %s", string(body))
	}
	switch resp.Status {
	case "REJECTED", "EXPIRED", "CANCELED":
		return model.Fill{}, fmt.Errorf("order %d %s: status %s", resp.OrderID, symbol, resp.Status)
	}

	fill := model.Fill{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          side,
		Quantity:      parseFloat(resp.ExecutedQty),
		AvgPrice:      parseFloat(resp.AvgPrice),
		Status:        resp.Status,
	}
	if fill.ClientOrderID == "" {
		fill.ClientOrderID = clientID
	}

	log.Info().
		Str("exchange", "BINANCE").
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("quantity", qty).
		Float64("avg_price", fill.AvgPrice).
		Str("orderID", fill.OrderID).
		Str("status", resp.Status).
		Msg("order placed")

	return fill, nil
}
