// Package rest backs the remote store contract with a JSON REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/remote"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("health check status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	p.ID = 0
	var created domain.Product
	if err := c.do(ctx, http.MethodPost, "/products", p, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, p domain.Product) error {
	p.ID = id
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), p, nil)
}

func (c *Client) DeleteOrZeroStockProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil)
}

func (c *Client) CreateCustomer(ctx context.Context, cust domain.Customer) (int64, error) {
	cust.ID = 0
	var created domain.Customer
	if err := c.do(ctx, http.MethodPost, "/customers", cust, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, cust domain.Customer) error {
	cust.ID = id
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/customers/%d", id), cust, nil)
}

func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/customers/%d", id), nil, nil)
}

// CreateSale sends the client-generated identifier with the payload. A
// conflict response means an earlier replay of the same sale already
// landed, which counts as success.
func (c *Client) CreateSale(ctx context.Context, sale domain.Sale) error {
	err := c.do(ctx, http.MethodPost, "/sales", sale, nil)
	if err != nil && isConflict(err) {
		return nil
	}
	return err
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var customers []domain.Customer
	if err := c.do(ctx, http.MethodGet, "/customers", nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (c *Client) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var sales []domain.Sale
	if err := c.do(ctx, http.MethodGet, "/sales", nil, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func (c *Client) do(ctx context.Context, method string, path string, payload any, into any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return remote.Permanent(err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return remote.Permanent(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: all retryable.
		return remote.Transient(err)
	}
	defer drain(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if into == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return remote.Transient(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	serr := &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(detail))}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
		return remote.Transient(serr)
	}
	return remote.Permanent(serr)
}

func isConflict(err error) bool {
	var serr *statusError
	return errors.As(err, &serr) && serr.code == http.StatusConflict
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
