package api

import (
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of a historical order.
type OrderStatus string

const (
	OrderStatusLocal           OrderStatus = "LOCAL"
	OrderStatusUnconfirmed     OrderStatus = "UNCONFIRMED"
	OrderStatusConfirmed       OrderStatus = "CONFIRMED"
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusCancelling      OrderStatus = "CANCELLING"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusReplacing       OrderStatus = "REPLACING"
	OrderStatusReplaced        OrderStatus = "REPLACED"
)

// Terminal reports whether the status is final. A terminal order never
// changes again upstream, which is what makes it safe to cache forever.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Tax is a fee or tax charged against an order fill.
type Tax struct {
	FillID      string          `json:"fillId,omitempty"`
	Name        string          `json:"name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity,omitempty"`
	TimeCharged *time.Time      `json:"timeCharged,omitempty"`
}

// HistoricalOrder is a single record from the order history endpoint.
type HistoricalOrder struct {
	ID              int64           `json:"id"`
	Ticker          string          `json:"ticker,omitempty"`
	Type            string          `json:"type,omitempty"`
	Status          OrderStatus     `json:"status,omitempty"`
	Executor        string          `json:"executor,omitempty"`
	OrderedQuantity decimal.Decimal `json:"orderedQuantity"`
	FilledQuantity  decimal.Decimal `json:"filledQuantity"`
	OrderedValue    decimal.Decimal `json:"orderedValue"`
	FilledValue     decimal.Decimal `json:"filledValue"`
	LimitPrice      decimal.Decimal `json:"limitPrice"`
	StopPrice       decimal.Decimal `json:"stopPrice"`
	FillPrice       decimal.Decimal `json:"fillPrice"`
	FillCost        decimal.Decimal `json:"fillCost"`
	FillResult      decimal.Decimal `json:"fillResult"`
	FillID          int64           `json:"fillId,omitempty"`
	FillType        string          `json:"fillType,omitempty"`
	ParentOrder     int64           `json:"parentOrder,omitempty"`
	TimeValidity    string          `json:"timeValidity,omitempty"`
	DateCreated     *time.Time      `json:"dateCreated,omitempty"`
	DateExecuted    *time.Time      `json:"dateExecuted,omitempty"`
	DateModified    *time.Time      `json:"dateModified,omitempty"`
	Taxes           []Tax           `json:"taxes,omitempty"`
}

// DividendItem is a paid dividend from the dividend history endpoint.
// Reference is the upstream identity; an item without one cannot be stored.
type DividendItem struct {
	Reference           string          `json:"reference,omitempty"`
	Ticker              string          `json:"ticker,omitempty"`
	Type                string          `json:"type,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	AmountInEuro        decimal.Decimal `json:"amountInEuro"`
	GrossAmountPerShare decimal.Decimal `json:"grossAmountPerShare"`
	Quantity            decimal.Decimal `json:"quantity"`
	PaidOn              *time.Time      `json:"paidOn,omitempty"`
}

// TransactionItem is an account cash movement (deposit, withdrawal, fee,
// transfer) from the transaction history endpoint.
type TransactionItem struct {
	Reference string          `json:"reference,omitempty"`
	Type      string          `json:"type,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	DateTime  *time.Time      `json:"dateTime,omitempty"`
}

// AccountInfo identifies the account the API key belongs to.
type AccountInfo struct {
	ID           int64  `json:"id"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// OrdersPage is one page of historical orders.
type OrdersPage struct {
	Items        []HistoricalOrder `json:"items"`
	NextPagePath string            `json:"nextPagePath,omitempty"`
}

// DividendsPage is one page of dividend history.
type DividendsPage struct {
	Items        []DividendItem `json:"items"`
	NextPagePath string         `json:"nextPagePath,omitempty"`
}

// TransactionsPage is one page of transaction history.
type TransactionsPage struct {
	Items        []TransactionItem `json:"items"`
	NextPagePath string            `json:"nextPagePath,omitempty"`
}

// NextCursor extracts the cursor token from the page descriptor, or ""
// when there is no further page.
func (p DividendsPage) NextCursor() string {
	return pageParam(p.NextPagePath, "cursor")
}

// NextTokens extracts both the cursor and the time token from the page
// descriptor. Transaction pagination requires carrying both on the next
// request; a missing cursor means pagination is done, while a missing
// time token means the caller keeps the one it already has.
func (p TransactionsPage) NextTokens() (cursor, fromTime string) {
	return pageParam(p.NextPagePath, "cursor"), pageParam(p.NextPagePath, "time")
}

func pageParam(path, key string) string {
	if path == "" {
		return ""
	}
	parsed, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return parsed.Query().Get(key)
}
