package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"t212cache/internal/ratelimit"
	"t212cache/internal/retry"
)

func testClient(t *testing.T, baseURL string, limiter *ratelimit.Limiter, policy retry.Policy) *Client {
	t.Helper()
	client, err := NewClient(Options{
		Key:     "key",
		Secret:  "secret",
		BaseURL: baseURL,
	}, limiter, policy, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{MaxRetries: maxRetries, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond, Logger: zerolog.Nop()}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Options{Secret: "s"}, nil, retry.Policy{}, zerolog.Nop()); err == nil {
		t.Fatal("missing key should be rejected")
	}
	if _, err := NewClient(Options{Key: "k"}, nil, retry.Policy{}, zerolog.Nop()); err == nil {
		t.Fatal("missing secret should be rejected")
	}
}

func TestHistoricalOrdersSendsAuthAndClampsLimit(t *testing.T) {
	var gotAuth, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLimit = r.URL.Query().Get("limit")
		_ = json.NewEncoder(w).Encode(OrdersPage{})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, nil, fastPolicy(0))
	if _, err := client.HistoricalOrders(context.Background(), 0, 500); err != nil {
		t.Fatalf("HistoricalOrders: %v", err)
	}

	if gotAuth == "" || gotAuth[:6] != "Basic " {
		t.Fatalf("expected basic auth header, got %q", gotAuth)
	}
	if gotLimit != strconv.Itoa(MaxOrdersPage) {
		t.Fatalf("limit should clamp to %d, got %q", MaxOrdersPage, gotLimit)
	}
}

func TestTransactionsCarriesTimeParam(t *testing.T) {
	var gotTime, gotCursor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTime = r.URL.Query().Get("time")
		gotCursor = r.URL.Query().Get("cursor")
		_ = json.NewEncoder(w).Encode(TransactionsPage{})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, nil, fastPolicy(0))
	if _, err := client.Transactions(context.Background(), "c1", "2026-01-01T00:00:00Z", 10); err != nil {
		t.Fatalf("Transactions: %v", err)
	}

	if gotTime != "2026-01-01T00:00:00Z" {
		t.Fatalf("time param not forwarded, got %q", gotTime)
	}
	if gotCursor != "c1" {
		t.Fatalf("cursor param not forwarded, got %q", gotCursor)
	}
}

func TestGetRetriesTransientStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(DividendsPage{Items: []DividendItem{{Reference: "d1"}}})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, nil, fastPolicy(3))
	page, err := client.Dividends(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("expected recovery after 500s: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(page.Items) != 1 || page.Items[0].Reference != "d1" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestGetDoesNotRetryClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"clarification": "scope missing"})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, nil, fastPolicy(3))
	_, err := client.AccountInfo(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "scope missing" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if calls != 1 {
		t.Fatalf("403 must not be retried, got %d attempts", calls)
	}
}

func TestResponseHeadersFeedLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-limit", "6")
		w.Header().Set("x-ratelimit-remaining", "0")
		w.Header().Set("x-ratelimit-reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		_ = json.NewEncoder(w).Encode(DividendsPage{})
	}))
	defer srv.Close()

	limiter := ratelimit.New(zerolog.Nop())
	client := testClient(t, srv.URL, limiter, fastPolicy(0))

	if _, err := client.Dividends(context.Background(), "", 10); err != nil {
		t.Fatalf("Dividends: %v", err)
	}

	if limiter.CanProceed("/history/dividends") {
		t.Fatal("limiter should block after remaining=0 response")
	}
	if limiter.WaitDuration("/history/dividends") <= 0 {
		t.Fatal("limiter should report a wait until the reset instant")
	}
}

func TestAPIErrorTransientClassification(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		if !(&APIError{StatusCode: status}).Transient() {
			t.Fatalf("%d should be transient", status)
		}
	}
	for _, status := range []int{400, 401, 403, 404, 422} {
		if (&APIError{StatusCode: status}).Transient() {
			t.Fatalf("%d should be permanent", status)
		}
	}
}

func TestNextTokensParsesPagePath(t *testing.T) {
	page := TransactionsPage{NextPagePath: "/api/v0/history/transactions?cursor=abc&time=2026-01-02T00%3A00%3A00Z&limit=50"}
	cursor, fromTime := page.NextTokens()
	if cursor != "abc" {
		t.Fatalf("cursor = %q", cursor)
	}
	if fromTime != "2026-01-02T00:00:00Z" {
		t.Fatalf("time = %q", fromTime)
	}

	var done TransactionsPage
	if c, ts := done.NextTokens(); c != "" || ts != "" {
		t.Fatal("empty page path should yield empty tokens")
	}
}

func TestNextCursorParsesPagePath(t *testing.T) {
	page := DividendsPage{NextPagePath: "/api/v0/history/dividends?cursor=xyz&limit=50"}
	if got := page.NextCursor(); got != "xyz" {
		t.Fatalf("cursor = %q", got)
	}
}
