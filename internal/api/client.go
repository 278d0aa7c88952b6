package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"table_order/internal/config"
	"table_order/internal/menu"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	apiMediaType      = "application/json"
	idempotencyHeader = "Idempotency-Key"
)

var (
	ErrMissingBaseURL = errors.New("api base url is required")
	ErrUnauthorized   = errors.New("api unauthorized")
	ErrRateLimited    = errors.New("api rate limited")
	ErrNotFound       = errors.New("api resource not found")
	ErrEmptyCategory  = errors.New("category name is empty")
	ErrNoOrderItems   = errors.New("order has no items")
	ErrMissingTableID = errors.New("table id is required")
	ErrCursorLoop     = errors.New("api repeated a page cursor")
)

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error: %s", e.Status)
	}
	return fmt.Sprintf("api error: %s: %s", e.Status, e.Body)
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(cfg config.Config, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", apiMediaType).
		SetHeader("Content-Type", apiMediaType).
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		})

	if token := strings.TrimSpace(cfg.APIToken); token != "" {
		httpClient.SetAuthScheme("Bearer")
		httpClient.SetAuthToken(token)
	}

	return &Client{
		http:   httpClient,
		logger: logger.Named("api"),
	}, nil
}

// GetMenuItemsByCategory follows the cursor until the last page. Items the
// server returns without a category are stamped with the requested one.
func (c *Client) GetMenuItemsByCategory(ctx context.Context, category string) ([]menu.Item, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, ErrEmptyCategory
	}

	path := fmt.Sprintf("/categories/%s/items", url.PathEscape(category))
	items := []menu.Item{}
	cursor := ""
	seen := map[string]struct{}{}

	for {
		var resp listResponse[menu.Item]
		query := map[string]string{}
		if cursor != "" {
			query["cursor"] = cursor
		}
		if err := c.doGet(ctx, path, query, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			if strings.TrimSpace(item.Category) == "" {
				item.Category = category
			}
			item.SetCount(0)
			items = append(items, item)
		}

		if resp.Paging.NextCursor == "" {
			break
		}
		cursor = resp.Paging.NextCursor
		if _, ok := seen[cursor]; ok {
			return nil, fmt.Errorf("%w: %q", ErrCursorLoop, cursor)
		}
		seen[cursor] = struct{}{}
	}

	c.logger.Debug("menu items loaded",
		zap.String("category", category),
		zap.Int("count", len(items)),
	)
	return items, nil
}

// CreateOrder submits the cart lines with count > 0. Each call carries a
// fresh idempotency key so the retry policy cannot double-submit.
func (c *Client) CreateOrder(ctx context.Context, items []menu.Item, orderType menu.OrderType, tableID string) (map[string]any, error) {
	if strings.TrimSpace(tableID) == "" {
		return nil, ErrMissingTableID
	}

	body := orderRequest{
		TableID:   tableID,
		OrderType: orderType,
		Items:     make([]orderLine, 0, len(items)),
	}
	for _, item := range items {
		if item.Count <= 0 {
			continue
		}
		body.Items = append(body.Items, orderLine{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Count,
			Price:    item.Price,
		})
	}
	if len(body.Items) == 0 {
		return nil, ErrNoOrderItems
	}

	key := uuid.NewString()
	result := map[string]any{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(idempotencyHeader, key).
		SetBody(body).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	if resp.IsError() {
		return nil, apiErrorFromResponse(resp)
	}

	c.logger.Info("order created",
		zap.String("table_id", tableID),
		zap.String("order_type", string(orderType)),
		zap.Int("lines", len(body.Items)),
		zap.String("idempotency_key", key),
	)
	return result, nil
}

func (c *Client) doGet(ctx context.Context, path string, query map[string]string, result any) error {
	req := c.http.R().SetContext(ctx).SetResult(result)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	if resp.IsError() {
		return apiErrorFromResponse(resp)
	}
	return nil
}

func apiErrorFromResponse(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       body,
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Error())
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Error())
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error())
	default:
		return apiErr
	}
}
