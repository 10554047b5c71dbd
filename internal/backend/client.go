// Package backend talks to the catalog and cart HTTP API.
//
// Responses use the {data: ...} envelope. Only GET requests are retried;
// cart creation and line item appends are not idempotent.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/netutil"
	"github.com/m3rciful/shopbot/internal/cart"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/metrics"
)

const (
	opListProducts = "list_products"
	opGetProduct   = "get_product"
	opCreateCart   = "create_cart"
	opGetCart      = "get_cart"
	opAddLine      = "add_cart_product"
	opFetchImage   = "fetch_image"

	maxErrorBody = 256
)

// Client implements catalog.Source and cart.Backend.
type Client struct {
	http     *resty.Client
	baseURL  string
	maxImage int64
	metrics  *metrics.Metrics
}

// Option customises New.
type Option func(*Client)

// WithMetrics records backend_requests_total.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client from normalized settings.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL+cfg.APIPrefix).
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryConditions(func(_ *resty.Response, err error) bool {
			return netutil.ShouldRetry(err)
		}).
		AddRetryHooks(logRetry)
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}

	c := &Client{
		http:     rc,
		baseURL:  cfg.BaseURL,
		maxImage: cfg.MaxImageBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// ListProducts returns all products in backend order.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var out envelope[[]productEntity]
	if err := c.do(ctx, opListProducts, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("populate", "*").SetResult(&out).Get("/products")
	}); err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(out.Data))
	for _, p := range out.Data {
		products = append(products, p.toProduct())
	}
	return products, nil
}

// GetProduct returns one product with its picture and description populated.
func (c *Client) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	var out envelope[productEntity]
	if err := c.do(ctx, opGetProduct, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", id).
			SetQueryParam("populate", "*").
			SetResult(&out).
			Get("/products/{id}")
	}); err != nil {
		return catalog.Product{}, err
	}
	if out.Data.ID == "" {
		return catalog.Product{}, fmt.Errorf("backend %s: empty product in response", opGetProduct)
	}
	return out.Data.toProduct(), nil
}

// CreateCart creates a cart owned by the Telegram user and returns its id.
func (c *Client) CreateCart(ctx context.Context, userID int64) (string, error) {
	var out envelope[cartEntity]
	body := envelope[createCartRequest]{Data: createCartRequest{TelegramUserID: strconv.FormatInt(userID, 10)}}
	if err := c.do(ctx, opCreateCart, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).SetResult(&out).Post("/carts")
	}); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("backend %s: response without cart id", opCreateCart)
	}
	return string(out.Data.ID), nil
}

// GetCartLines returns the cart's line items. A missing cart yields found=false.
func (c *Client) GetCartLines(ctx context.Context, cartID string) ([]cart.Line, bool, error) {
	var out envelope[cartEntity]
	err := c.do(ctx, opGetCart, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", cartID).
			SetQueryParam("populate", "cart_products.product").
			SetResult(&out).
			Get("/carts/{id}")
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	items := out.Data.Attributes.CartProducts.Data
	lines := make([]cart.Line, 0, len(items))
	for _, item := range items {
		prod := item.Attributes.Product.Data
		if prod == nil {
			continue
		}
		lines = append(lines, cart.Line{
			ProductID: string(prod.ID),
			Quantity:  item.Attributes.Quantity,
		})
	}
	return lines, true, nil
}

// AddCartProduct appends one line item.
func (c *Client) AddCartProduct(ctx context.Context, cartID, productID string, quantity int) error {
	body := envelope[createCartProductRequest]{Data: createCartProductRequest{
		Cart:     cartID,
		Product:  productID,
		Quantity: quantity,
	}}
	return c.do(ctx, opAddLine, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post("/cart-products")
	})
}

// FetchImage downloads a picture referenced by a product. Relative paths are
// resolved against the backend base URL.
func (c *Client) FetchImage(ctx context.Context, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("backend fetch_image: empty path")
	}
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		c.finish(ctx, opFetchImage, start, 0, err)
		return nil, fmt.Errorf("backend %s: %w", opFetchImage, err)
	}
	defer resp.RawResponse.Body.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		err := &StatusError{Op: opFetchImage, Status: resp.StatusCode()}
		c.finish(ctx, opFetchImage, start, resp.StatusCode(), err)
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.RawResponse.Body, c.maxImage+1))
	if err == nil && int64(len(data)) > c.maxImage {
		err = fmt.Errorf("image larger than %d bytes", c.maxImage)
	}
	c.finish(ctx, opFetchImage, start, resp.StatusCode(), err)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", opFetchImage, err)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) error {
	start := time.Now()
	resp, err := send(c.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json"))
	if err != nil {
		c.finish(ctx, op, start, 0, err)
		return fmt.Errorf("backend %s: %w", op, err)
	}
	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		err := &StatusError{
			Op:     op,
			Status: resp.StatusCode(),
			Body:   logger.SanitizeLimit(resp.String(), maxErrorBody),
		}
		c.finish(ctx, op, start, resp.StatusCode(), err)
		return err
	}
	c.finish(ctx, op, start, resp.StatusCode(), nil)
	return nil
}

func (c *Client) finish(ctx context.Context, op string, start time.Time, status int, err error) {
	c.metrics.BackendRequest(ctx, op, err)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("op", op),
		slog.Int("http_status", status),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), maxErrorBody)))
		logger.Warn(ctx, "backend", "backend.request", attrs...)
		return
	}
	logger.Debug(ctx, "backend", "backend.request", attrs...)
}

func logRetry(resp *resty.Response, err error) {
	if resp == nil || resp.Request == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("status", "retry"),
		slog.String("method", resp.Request.Method),
		slog.Int("attempt", resp.Request.Attempt),
		slog.Int("http_status", resp.StatusCode()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), maxErrorBody)))
	}
	logger.Warn(resp.Request.Context(), "backend", "backend.retry", attrs...)
}
