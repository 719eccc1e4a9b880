package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/erp/ordersync/internal/domain/order"
)

// maxResponseSize limits how much of the recommender's answer is read
const maxResponseSize = 64 * 1024

// HTTPRecommender asks an external allocation service for a warehouse.
// The request deadline comes from the caller's context.
type HTTPRecommender struct {
	endpoint   string
	httpClient *http.Client
}

type recommendRequest struct {
	OrderID         int64  `json:"order_id"`
	ShopID          int64  `json:"shop_id"`
	ExternalOrderID int64  `json:"external_order_id"`
	OrderNumber     int64  `json:"order_number"`
	Total           string `json:"total"`
	TestOrder       bool   `json:"test"`
}

type recommendResponse struct {
	Warehouse string `json:"warehouse"`
}

// NewHTTPRecommender creates a recommender posting to endpoint
func NewHTTPRecommender(endpoint string, client *http.Client) (*HTTPRecommender, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("warehouse: invalid endpoint %q", endpoint)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRecommender{endpoint: endpoint, httpClient: client}, nil
}

// Recommend posts the order summary and returns the warehouse code from the response
func (r *HTTPRecommender) Recommend(ctx context.Context, o *order.Order) (string, error) {
	body, err := json.Marshal(recommendRequest{
		OrderID:         o.ID,
		ShopID:          o.ShopID,
		ExternalOrderID: o.ExternalOrderID,
		OrderNumber:     o.OrderNumber,
		Total:           o.Total.StringFixed(2),
		TestOrder:       o.TestOrder,
	})
	if err != nil {
		return "", fmt.Errorf("warehouse: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("warehouse: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("warehouse: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("warehouse: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("warehouse: unexpected status %d", resp.StatusCode)
	}

	var out recommendResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("warehouse: failed to decode response: %w", err)
	}
	if out.Warehouse == "" {
		return "", errors.New("warehouse: response carried no warehouse")
	}
	return out.Warehouse, nil
}

var _ order.WarehouseRecommender = (*HTTPRecommender)(nil)
