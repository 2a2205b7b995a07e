package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"trading-bot/internal/config"
)

func newTestAlpaca(baseURL string) *Alpaca {
	return NewAlpaca(config.BrokerConfig{
		Mode:        config.BrokerModeAlpaca,
		BaseURL:     baseURL,
		KeyID:       "test-key",
		SecretKey:   "test-secret",
		Timeout:     5 * time.Second,
		TimeInForce: "day",
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}, nil)
}

func TestAlpaca_PlaceBracket_SubmitsExpectedPayload(t *testing.T) {
	var captured orderPayload
	var sawAuthHeader bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v2/orders":
			_, _ = w.Write([]byte(`[]`))
		case r.Method == http.MethodPost && r.URL.Path == "/v2/orders":
			sawAuthHeader = r.Header.Get("APCA-API-KEY-ID") == "test-key"
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			_, _ = w.Write([]byte(`{"id":"ord-1","status":"accepted"}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	res := a.PlaceBracket(context.Background(), "AAPL", SideBuy, 50, 100.0, 0.01, 0.005, "gtc")

	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ID != "ord-1" || res.Status != "accepted" {
		t.Errorf("unexpected result: %+v", res)
	}
	if !sawAuthHeader {
		t.Errorf("expected APCA-API-KEY-ID header on submit")
	}

	if captured.Symbol != "AAPL" || captured.Side != "buy" || captured.Qty != 50 {
		t.Errorf("unexpected payload: %+v", captured)
	}
	if captured.Type != "market" || captured.OrderClass != "bracket" || captured.TimeInForce != "gtc" {
		t.Errorf("unexpected order attributes: %+v", captured)
	}
	if captured.TakeProfit == nil || captured.TakeProfit.LimitPrice != 101.00 {
		t.Errorf("expected take_profit.limit_price=101.00, got %+v", captured.TakeProfit)
	}
	if captured.StopLoss == nil || captured.StopLoss.StopPrice != 99.50 {
		t.Errorf("expected stop_loss.stop_price=99.50, got %+v", captured.StopLoss)
	}
}

func TestAlpaca_PlaceBracket_InvalidPricesSkipNetwork(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	res := a.PlaceBracket(context.Background(), "AAPL", SideBuy, 50, 0, 0.01, 0.005, "day")

	if res.OK {
		t.Fatalf("expected local rejection, got %+v", res)
	}
	if !strings.Contains(res.Err, "invalid bracket prices") {
		t.Errorf("expected invalid bracket error, got %q", res.Err)
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("expected zero HTTP requests, got %d", n)
	}
}

func TestAlpaca_Submit_ExtractsAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v2/orders" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"insufficient buying power"}`))
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	res := a.PlaceOrder(context.Background(), "AAPL", SideBuy, 50, 100, 0, 0)

	if res.OK {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Err != "403: insufficient buying power" {
		t.Errorf("expected extracted api message, got %q", res.Err)
	}
}

func TestAlpaca_PositionQty_NotFoundIsFlat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"position does not exist"}`))
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	qty, err := a.PositionQty(context.Background(), "AAPL")

	if err != nil {
		t.Fatalf("404 must not surface as error, got %v", err)
	}
	if qty != 0 {
		t.Errorf("expected flat position, got %f", qty)
	}
}

func TestAlpaca_SellWithoutPositionRejectedLocally(t *testing.T) {
	var posts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/positions/"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"position does not exist"}`))
		case r.Method == http.MethodPost:
			atomic.AddInt32(&posts, 1)
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	res := a.PlaceOrder(context.Background(), "AAPL", SideSell, 50, 100, 0, 0)

	if res.OK {
		t.Fatalf("expected local rejection, got %+v", res)
	}
	if res.Err != "no_position_to_sell" {
		t.Errorf("expected no_position_to_sell, got %q", res.Err)
	}
	if n := atomic.LoadInt32(&posts); n != 0 {
		t.Errorf("expected no order submission, got %d posts", n)
	}
}

func TestAlpaca_CancelsOppositeOrdersBeforeSubmit(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v2/orders":
			_, _ = w.Write([]byte(`[
				{"id":"sell-1","symbol":"AAPL","side":"sell","status":"new"},
				{"id":"buy-1","symbol":"AAPL","side":"buy","status":"new"}
			]`))
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v2/orders/"):
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/v2/orders/"))
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/v2/orders":
			_, _ = w.Write([]byte(`{"id":"ord-2","status":"accepted"}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	res := a.PlaceOrder(context.Background(), "AAPL", SideBuy, 50, 100, 0, 0)

	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(deleted) != 1 || deleted[0] != "sell-1" {
		t.Errorf("expected only opposite order cancelled, got %v", deleted)
	}
}

func TestAlpaca_AccountEquity_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"acct","status":"ACTIVE","equity":"10000.50"}`))
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	equity, err := a.AccountEquity(context.Background())

	if err != nil {
		t.Fatalf("AccountEquity returned error: %v", err)
	}
	if equity != 10000.50 {
		t.Errorf("expected equity=10000.50, got %f", equity)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 attempts, got %d", n)
	}
}

func TestAlpaca_NonRetryableStatusFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
	}))
	defer srv.Close()

	a := newTestAlpaca(srv.URL)
	_, err := a.AccountEquity(context.Background())

	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected single attempt for non-retryable status, got %d", n)
	}
}
