// internal/service/order/infrastructure/adapter/cart_http_adapter.go
package adapter

import (
	"context"
	"net/url"
	"strconv"

	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/service/order/port"
)

// CartHTTPAdapter 实现了 port.CartSnapshotter，购物车是独立部署的协作方。
type CartHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewCartHTTPAdapter(client *httpclient.Client, baseURL string) *CartHTTPAdapter {
	return &CartHTTPAdapter{client: client, baseURL: baseURL}
}

func (a *CartHTTPAdapter) Snapshot(ctx context.Context, userID int64) ([]port.CartLine, error) {
	params := url.Values{}
	params.Set("user_id", strconv.FormatInt(userID, 10))

	var resp struct {
		Items []struct {
			ProductID   int64   `json:"productId"`
			ProductName string  `json:"productName"`
			Quantity    int     `json:"quantity"`
			UnitPrice   float64 `json:"unitPrice"`
		} `json:"items"`
	}
	if err := a.client.GetJSON(ctx, a.baseURL+"/api/cart/snapshot", params, &resp); err != nil {
		return nil, err
	}

	lines := make([]port.CartLine, 0, len(resp.Items))
	for _, item := range resp.Items {
		lines = append(lines, port.CartLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return lines, nil
}

func (a *CartHTTPAdapter) Clear(ctx context.Context, userID int64) error {
	params := url.Values{}
	params.Set("user_id", strconv.FormatInt(userID, 10))
	return a.client.Post(ctx, a.baseURL+"/api/cart/clear", params)
}
