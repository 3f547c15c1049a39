// Package remote talks to the commerce backend's cart API. The local cart
// is authoritative; everything here is a best-effort shadow copy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type addItemRequest struct {
	CustomerID string `json:"customer_id"`
	ProductID  int64  `json:"product_id"`
	Quantity   int    `json:"quantity"`
	VariantID  int64  `json:"variant_id,omitempty"`
}

type updateItemRequest struct {
	CustomerID string `json:"customer_id"`
	Quantity   int    `json:"quantity"`
}

func (c *Client) AddItem(ctx context.Context, customerID string, productID int64, quantity int, variantID int64) error {
	body := addItemRequest{
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   quantity,
		VariantID:  variantID,
	}
	return c.send(ctx, http.MethodPost, "/cart/items", body)
}

func (c *Client) UpdateItem(ctx context.Context, customerID, lineKey string, quantity int) error {
	body := updateItemRequest{CustomerID: customerID, Quantity: quantity}
	return c.send(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(lineKey), body)
}

func (c *Client) RemoveItem(ctx context.Context, customerID, lineKey string) error {
	path := "/cart/items/" + url.PathEscape(lineKey) + "?customer_id=" + url.QueryEscape(customerID)
	return c.send(ctx, http.MethodDelete, path, nil)
}

func (c *Client) Clear(ctx context.Context, customerID string) error {
	return c.send(ctx, http.MethodDelete, "/cart?customer_id="+url.QueryEscape(customerID), nil)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote cart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote cart returned %d: %s", resp.StatusCode, msg)
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
