package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// HistoricalOrders fetches a page of order history. A zero cursor means
// the first page; limit is clamped to MaxOrdersPage.
func (c *Client) HistoricalOrders(ctx context.Context, cursor int64, limit int) (OrdersPage, error) {
	if limit <= 0 || limit > MaxOrdersPage {
		limit = MaxOrdersPage
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor > 0 {
		query.Set("cursor", strconv.FormatInt(cursor, 10))
	}

	var page OrdersPage
	if err := c.get(ctx, "/equity/history/orders", query, &page); err != nil {
		return OrdersPage{}, fmt.Errorf("get order history: %w", err)
	}
	return page, nil
}

// Dividends fetches a page of paid dividends. An empty cursor means the
// first page; limit is clamped to [1, MaxHistoryPage].
func (c *Client) Dividends(ctx context.Context, cursor string, limit int) (DividendsPage, error) {
	if limit <= 0 || limit > MaxHistoryPage {
		limit = MaxHistoryPage
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page DividendsPage
	if err := c.get(ctx, "/history/dividends", query, &page); err != nil {
		return DividendsPage{}, fmt.Errorf("get dividends: %w", err)
	}
	return page, nil
}

// Transactions fetches a page of account transactions. fromTime is the
// server-side lower bound (RFC3339); pagination requires carrying both the
// cursor and the time token returned in the previous page descriptor.
func (c *Client) Transactions(ctx context.Context, cursor, fromTime string, limit int) (TransactionsPage, error) {
	if limit <= 0 || limit > MaxHistoryPage {
		limit = MaxHistoryPage
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if fromTime != "" {
		query.Set("time", fromTime)
	}

	var page TransactionsPage
	if err := c.get(ctx, "/history/transactions", query, &page); err != nil {
		return TransactionsPage{}, fmt.Errorf("get transactions: %w", err)
	}
	return page, nil
}

// AccountInfo fetches the account metadata that scopes cached rows.
func (c *Client) AccountInfo(ctx context.Context) (AccountInfo, error) {
	var info AccountInfo
	if err := c.get(ctx, "/equity/account/info", nil, &info); err != nil {
		return AccountInfo{}, fmt.Errorf("get account info: %w", err)
	}
	return info, nil
}
