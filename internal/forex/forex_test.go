package forex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ebank/internal/core"
	applog "ebank/internal/log"
)

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError})
}

// rateServer serves a currencyapi-style response for March 2024 and
// counts how many requests it saw.
func rateServer(t *testing.T, rates map[string]string, target string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		q := r.URL.Query()
		for _, param := range []string{"apikey", "date_from", "date_to", "base_currency", "currencies"} {
			if q.Get(param) == "" {
				t.Errorf("missing query param %q", param)
			}
		}

		fmt.Fprint(w, `{"data":{`)
		first := true
		for date, rate := range rates {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `%q:{%q:%s}`, date, target, rate)
		}
		fmt.Fprint(w, `}}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestClient(srvURL string) *Client {
	return NewClient(Config{
		BaseURL:   srvURL,
		APIKey:    "test-key",
		Timeout:   5 * time.Second,
		CacheSize: 8,
		CacheTTL:  time.Minute,
	}, testLogger())
}

func payment(t *testing.T, amount, date string) core.PaymentEvent {
	t.Helper()
	a, err := core.ParseAmount(amount)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return core.PaymentEvent{Amount: a, TransactionDate: d}
}

func TestConvertAppliesDailyRates(t *testing.T) {
	srv, _ := rateServer(t, map[string]string{
		"2024-03-04": "1.08",
		"2024-03-05": "1.10",
	}, "USD")
	client := newTestClient(srv.URL)
	month, _ := core.ParseMonth("2024-03")

	converted, err := client.Convert(context.Background(), []core.PaymentEvent{
		payment(t, "EUR 100.00", "2024-03-04"),
		payment(t, "EUR -50.00", "2024-03-05"),
	}, "USD", month)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if got := converted[0].Amount.Currency; got != "USD" {
		t.Errorf("currency = %q, want USD", got)
	}
	want, _ := decimal.NewFromString("108.00")
	if !converted[0].Amount.Value.Equal(want) {
		t.Errorf("converted[0] = %s, want 108", converted[0].Amount.Value)
	}
	wantCredit, _ := decimal.NewFromString("-55.00")
	if !converted[1].Amount.Value.Equal(wantCredit) {
		t.Errorf("converted[1] = %s, want -55 (sign preserved)", converted[1].Amount.Value)
	}
}

func TestConvertIdentityRateIsNoOp(t *testing.T) {
	srv, _ := rateServer(t, map[string]string{"2024-03-04": "1.0"}, "EUR")
	client := newTestClient(srv.URL)
	month, _ := core.ParseMonth("2024-03")

	original := payment(t, "EUR 42.42", "2024-03-04")
	converted, err := client.Convert(context.Background(), []core.PaymentEvent{original}, "EUR", month)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if converted[0].Amount.Currency != "EUR" || !converted[0].Amount.Value.Equal(original.Amount.Value) {
		t.Errorf("identity conversion changed amount: %s -> %s", original.Amount, converted[0].Amount)
	}
}

func TestConvertMissingDateRate(t *testing.T) {
	// 2024-03-03 is a Sunday; the provider has no rate for it.
	srv, _ := rateServer(t, map[string]string{"2024-03-04": "1.08"}, "USD")
	client := newTestClient(srv.URL)
	month, _ := core.ParseMonth("2024-03")

	_, err := client.Convert(context.Background(), []core.PaymentEvent{
		payment(t, "EUR 10.00", "2024-03-03"),
	}, "USD", month)

	var rateErr *RateUnavailableError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateUnavailableError, got %v", err)
	}
	if rateErr.Date.String() != "2024-03-03" {
		t.Errorf("error date = %s, want 2024-03-03", rateErr.Date)
	}
}

func TestConvertProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()
	client := newTestClient(srv.URL)
	month, _ := core.ParseMonth("2024-03")

	_, err := client.Convert(context.Background(), []core.PaymentEvent{
		payment(t, "EUR 10.00", "2024-03-04"),
	}, "USD", month)

	var rateErr *RateUnavailableError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateUnavailableError, got %v", err)
	}
}

func TestMonthRatesAreCached(t *testing.T) {
	srv, requests := rateServer(t, map[string]string{"2024-03-04": "1.08"}, "USD")
	client := newTestClient(srv.URL)
	month, _ := core.ParseMonth("2024-03")
	txs := []core.PaymentEvent{payment(t, "EUR 10.00", "2024-03-04")}

	for i := 0; i < 3; i++ {
		if _, err := client.Convert(context.Background(), txs, "USD", month); err != nil {
			t.Fatalf("Convert #%d: %v", i+1, err)
		}
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("provider requests = %d, want 1 (snapshot should be cached)", got)
	}
}

func TestConvertEmptyBatch(t *testing.T) {
	// No fetch must happen for an empty page.
	client := newTestClient("http://127.0.0.1:0")
	month, _ := core.ParseMonth("2024-03")

	converted, err := client.Convert(context.Background(), nil, "USD", month)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(converted) != 0 {
		t.Errorf("converted = %v, want empty", converted)
	}
}
