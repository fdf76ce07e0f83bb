package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"orderbot/internal/config"
	"orderbot/internal/domain"
	"orderbot/internal/errors"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

	// Upstream occasionally 502s under load; list requests retry with a
	// linearly growing wait.
	defaultMaxRetries   = 3
	defaultRetryBackoff = 2 * time.Second

	// Safety bound for the pagination walk.
	maxPages = 100

	// ExpTime/IsId are fixed query parameters the admin panel always sends.
	expTimeParam = "2"
	isIDParam    = "1"
)

type Client struct {
	baseURL      string
	token        string
	cookies      []*http.Cookie
	pageSize     int
	maxRetries   int
	retryBackoff time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewClient(cfg config.APIConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		cookies:      parseCookieHeader(cfg.Cookie),
		pageSize:     cfg.PageSize,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
	}
}

// parseCookieHeader splits a raw Cookie header copied from the admin panel
// session into individual cookies.
func parseCookieHeader(raw string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		name, value, found := strings.Cut(part, "=")
		if !found || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	return cookies
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Referer", c.baseURL+"/admin.html")
	req.Header.Set("User-Agent", userAgent)
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	return req, nil
}

// ListOrders fetches one page of the order list, retrying transport errors
// and non-200 responses with a linearly increasing wait.
func (c *Client) ListOrders(ctx context.Context, page, pageCount int, supplierID int64) ([]Order, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		orders, err := c.listOrdersOnce(ctx, page, pageCount, supplierID)
		if err == nil {
			return orders, nil
		}
		lastErr = err

		if attempt < c.maxRetries {
			wait := time.Duration(attempt) * c.retryBackoff
			c.logger.Warn("order list request failed, retrying",
				zap.Int("page", page),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return nil, errors.NewUnavailableError(fmt.Sprintf("listing orders page %d", page), lastErr)
}

func (c *Client) listOrdersOnce(ctx context.Context, page, pageCount int, supplierID int64) ([]Order, error) {
	query := url.Values{}
	query.Set("Page", strconv.Itoa(page))
	query.Set("PageCount", strconv.Itoa(pageCount))
	query.Set("ExpTime", expTimeParam)
	query.Set("IsId", isIDParam)
	if supplierID > 0 {
		query.Set("ShequId", strconv.FormatInt(supplierID, 10))
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/admin/orderList", query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting order list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order list returned status %d", resp.StatusCode)
	}

	var envelope listResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding order list: %w", err)
	}
	if envelope.Error != 0 {
		return nil, fmt.Errorf("order list returned error code %d", envelope.Error)
	}

	return envelope.Info, nil
}

// RecentOrders walks the order list per supplier and returns the orders
// created within the last N days. Pages are sorted newest-first upstream, so
// the walk stops at the first order older than the cutoff. Failures for a
// single supplier are logged and skipped.
func (c *Client) RecentOrders(ctx context.Context, days int, supplierIDs []int64) ([]Order, error) {
	cutoff := dayStart(time.Now().AddDate(0, 0, -days))

	var all []Order
	for _, supplierID := range supplierTargets(supplierIDs) {
		orders, err := c.supplierOrders(ctx, supplierID, cutoff, 0)
		if err != nil {
			c.logger.Warn("fetching recent orders failed",
				zap.Int64("supplierId", supplierID),
				zap.Error(err),
			)
			continue
		}
		all = append(all, orders...)
	}

	return all, nil
}

// NewOrders returns orders created within the window that have an id greater
// than lastID.
func (c *Client) NewOrders(ctx context.Context, lastID int64, days int, supplierIDs []int64) ([]Order, error) {
	cutoff := dayStart(time.Now().AddDate(0, 0, -days))

	var all []Order
	for _, supplierID := range supplierTargets(supplierIDs) {
		orders, err := c.supplierOrders(ctx, supplierID, cutoff, lastID)
		if err != nil {
			c.logger.Warn("fetching new orders failed",
				zap.Int64("supplierId", supplierID),
				zap.Error(err),
			)
			continue
		}
		all = append(all, orders...)
	}

	return all, nil
}

// supplierOrders paginates one supplier's order list until the page is
// short, empty, or crosses the cutoff / lastID boundary.
func (c *Client) supplierOrders(ctx context.Context, supplierID int64, cutoff time.Time, lastID int64) ([]Order, error) {
	var collected []Order

	for page := 1; page <= maxPages; page++ {
		orders, err := c.ListOrders(ctx, page, c.pageSize, supplierID)
		if err != nil {
			return collected, err
		}
		if len(orders) == 0 {
			break
		}

		stop := false
		for _, order := range orders {
			if order.CreateAt == 0 {
				continue
			}
			created := time.Unix(order.CreateAt, 0)
			if created.Before(cutoff) || (lastID > 0 && order.ID <= lastID) {
				stop = true
				break
			}
			collected = append(collected, order)
		}

		if stop || len(orders) < c.pageSize {
			break
		}
	}

	return collected, nil
}

// Suppliers fetches the supplier list. The endpoint returns either a bare
// JSON array or the usual {error, info} envelope depending on upstream
// version.
func (c *Client) Suppliers(ctx context.Context) ([]Supplier, error) {
	query := url.Values{}
	query.Set("NotPage", "1")

	req, err := c.newRequest(ctx, http.MethodGet, "/admin/sheQuList", query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting supplier list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supplier list returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading supplier list: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var suppliers []Supplier
		if err := json.Unmarshal(trimmed, &suppliers); err != nil {
			return nil, fmt.Errorf("decoding supplier list: %w", err)
		}
		return suppliers, nil
	}

	var envelope supplierListResponse
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decoding supplier list: %w", err)
	}
	if envelope.Error != 0 {
		return nil, fmt.Errorf("supplier list returned error code %d", envelope.Error)
	}

	return envelope.Info, nil
}

// OrderByID looks the order up through the list endpoint filtered by id.
func (c *Client) OrderByID(ctx context.Context, orderID int64) (*Order, error) {
	query := url.Values{}
	query.Set("Page", "1")
	query.Set("PageCount", "10")
	query.Set("ExpTime", expTimeParam)
	query.Set("Id", strconv.FormatInt(orderID, 10))

	req, err := c.newRequest(ctx, http.MethodGet, "/admin/orderList", query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting order %d: %w", orderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order lookup returned status %d", resp.StatusCode)
	}

	var envelope listResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding order lookup: %w", err)
	}
	if envelope.Error != 0 {
		return nil, fmt.Errorf("order lookup returned error code %d", envelope.Error)
	}
	if len(envelope.Info) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %d not found upstream", orderID))
	}

	order := envelope.Info[0]
	return &order, nil
}

// SyncOrder submits one synchronization request for the order. The current
// order state is checked first: a refunding/refunded order is never
// submitted, the refund status is reported back instead.
func (c *Client) SyncOrder(ctx context.Context, orderID int64) (*SyncResult, error) {
	if detail, err := c.OrderByID(ctx, orderID); err == nil {
		if status := domain.RefundStatusFromLogs(detail.LogsText(), detail.StatusText); status != "" {
			return &SyncResult{
				RefundStatus: status,
				Message:      "订单" + status,
			}, nil
		}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("Id", strconv.FormatInt(orderID, 10)); err != nil {
		return nil, fmt.Errorf("writing sync form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing sync form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/admin/userTb", nil, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Origin", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting sync for order %d: %w", orderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &SyncResult{Message: fmt.Sprintf("同步失败: HTTP %d", resp.StatusCode)}, nil
	}

	var result syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding sync response: %w", err)
	}
	if result.Error != 0 {
		return &SyncResult{Message: fmt.Sprintf("同步失败: error=%d", result.Error)}, nil
	}

	c.logger.Info("order synced", zap.Int64("orderId", orderID))
	return &SyncResult{Success: true, Message: "同步成功"}, nil
}

// supplierTargets maps an empty selection to one "all suppliers" pass,
// represented by id 0.
func supplierTargets(ids []int64) []int64 {
	if len(ids) == 0 {
		return []int64{0}
	}
	return ids
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
