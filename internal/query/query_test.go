package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"ebank/internal/core"
	"ebank/internal/forex"
	applog "ebank/internal/log"
	"ebank/internal/store"
)

type fakeStore struct {
	aggregates map[string]core.AccountAggregate
}

func (f *fakeStore) GetAggregate(_ context.Context, iban string) (core.AccountAggregate, error) {
	agg, ok := f.aggregates[iban]
	if !ok {
		return core.AccountAggregate{}, store.ErrNotFound
	}
	return agg, nil
}

// identityConverter relabels the currency with rate 1, or fails with a
// RateUnavailableError when told to.
type identityConverter struct {
	fail bool
}

func (c *identityConverter) Convert(_ context.Context, transactions []core.PaymentEvent, targetCurrency string, month core.Month) ([]core.PaymentEvent, error) {
	if c.fail {
		return nil, &forex.RateUnavailableError{Base: "EUR", Target: targetCurrency, Month: month, Err: errors.New("provider down")}
	}
	out := make([]core.PaymentEvent, len(transactions))
	for i, tx := range transactions {
		out[i] = tx
		out[i].Amount.Currency = targetCurrency
	}
	return out, nil
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError})
}

const testIBAN = "NL91ABNA0417164300"

func marchPayment(t *testing.T, id, amount, date string) core.PaymentEvent {
	t.Helper()
	a, err := core.ParseAmount(amount)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return core.PaymentEvent{PaymentID: id, IBAN: testIBAN, Amount: a, TransactionDate: d}
}

func serviceWith(t *testing.T, transactions []core.PaymentEvent) *Service {
	t.Helper()
	agg := core.AccountAggregate{IBAN: testIBAN, Transactions: transactions}
	fs := &fakeStore{aggregates: map[string]core.AccountAggregate{testIBAN: agg}}
	return New(fs, &identityConverter{}, testLogger())
}

func march(t *testing.T) core.Month {
	t.Helper()
	m, err := core.ParseMonth("2024-03")
	if err != nil {
		t.Fatalf("parse month: %v", err)
	}
	return m
}

func TestMonthEdgesAreExcluded(t *testing.T) {
	svc := serviceWith(t, []core.PaymentEvent{
		marchPayment(t, "0-0", "EUR 10.00", "2024-03-01"), // first day: excluded
		marchPayment(t, "0-1", "EUR 20.00", "2024-03-02"),
		marchPayment(t, "0-2", "EUR 30.00", "2024-03-30"),
		marchPayment(t, "0-3", "EUR 40.00", "2024-03-31"), // last day: excluded
		marchPayment(t, "0-4", "EUR 50.00", "2024-04-15"), // other month
	})

	res, err := svc.MonthTransactions(context.Background(), testIBAN, march(t), 1, 10, "EUR")
	if err != nil {
		t.Fatalf("MonthTransactions: %v", err)
	}

	if len(res.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(res.Transactions))
	}
	for _, tx := range res.Transactions {
		if d := tx.TransactionDate.String(); d == "2024-03-01" || d == "2024-03-31" {
			t.Errorf("month edge %s must be excluded", d)
		}
	}
}

func TestPagination(t *testing.T) {
	transactions := make([]core.PaymentEvent, 5)
	for i := range transactions {
		transactions[i] = marchPayment(t,
			fmt.Sprintf("0-%d", i),
			"EUR 10.00",
			fmt.Sprintf("2024-03-%02d", i+2))
	}
	svc := serviceWith(t, transactions)

	tests := []struct {
		name      string
		page      int
		wantIDs   []string
		wantPages int
	}{
		{name: "first page", page: 1, wantIDs: []string{"0-0", "0-1"}, wantPages: 3},
		{name: "last partial page", page: 3, wantIDs: []string{"0-4"}, wantPages: 3},
		{name: "past the end", page: 4, wantIDs: []string{}, wantPages: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.MonthTransactions(context.Background(), testIBAN, march(t), tt.page, 2, "EUR")
			if err != nil {
				t.Fatalf("MonthTransactions: %v", err)
			}
			if res.TotalPages != tt.wantPages {
				t.Errorf("totalPages = %d, want %d", res.TotalPages, tt.wantPages)
			}
			if len(res.Transactions) != len(tt.wantIDs) {
				t.Fatalf("page has %d transactions, want %d", len(res.Transactions), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if res.Transactions[i].PaymentID != id {
					t.Errorf("transactions[%d] = %s, want %s", i, res.Transactions[i].PaymentID, id)
				}
			}
		})
	}
}

func TestDebitCreditSplit(t *testing.T) {
	svc := serviceWith(t, []core.PaymentEvent{
		marchPayment(t, "0-0", "EUR 10.00", "2024-03-10"),
		marchPayment(t, "0-1", "EUR -5.00", "2024-03-11"),
		marchPayment(t, "0-2", "EUR 3.00", "2024-03-12"),
	})

	res, err := svc.MonthTransactions(context.Background(), testIBAN, march(t), 1, 10, "EUR")
	if err != nil {
		t.Fatalf("MonthTransactions: %v", err)
	}

	if want, _ := decimal.NewFromString("13"); !res.Debited.Equal(want) {
		t.Errorf("debited = %s, want 13", res.Debited)
	}
	// Credits are reported as a non-negative magnitude.
	if want, _ := decimal.NewFromString("5"); !res.Credited.Equal(want) {
		t.Errorf("credited = %s, want 5", res.Credited)
	}
}

func TestEmptyAccount(t *testing.T) {
	tests := []struct {
		name string
		iban string
		svc  *Service
	}{
		{name: "unknown account", iban: "GB29NWBK60161331926819", svc: serviceWith(t, nil)},
		{name: "account with no events", iban: testIBAN, svc: serviceWith(t, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.svc.MonthTransactions(context.Background(), tt.iban, march(t), 1, 10, "EUR")
			if err != nil {
				t.Fatalf("MonthTransactions: %v", err)
			}
			if !res.Debited.IsZero() || !res.Credited.IsZero() {
				t.Errorf("totals = %s/%s, want 0/0", res.Debited, res.Credited)
			}
			if len(res.Transactions) != 0 {
				t.Errorf("transactions = %d, want 0", len(res.Transactions))
			}
			if res.TotalPages != 1 {
				t.Errorf("totalPages = %d, want 1", res.TotalPages)
			}
		})
	}
}

func TestInvalidPagination(t *testing.T) {
	svc := serviceWith(t, nil)

	for _, tc := range []struct{ page, size int }{
		{0, 10}, {-1, 10}, {1, 0}, {1, -5},
	} {
		_, err := svc.MonthTransactions(context.Background(), testIBAN, march(t), tc.page, tc.size, "EUR")
		if !errors.Is(err, ErrInvalidPagination) {
			t.Errorf("page=%d size=%d: expected ErrInvalidPagination, got %v", tc.page, tc.size, err)
		}
	}
}

func TestRateUnavailablePropagates(t *testing.T) {
	agg := core.AccountAggregate{IBAN: testIBAN, Transactions: []core.PaymentEvent{
		marchPayment(t, "0-0", "EUR 10.00", "2024-03-10"),
	}}
	fs := &fakeStore{aggregates: map[string]core.AccountAggregate{testIBAN: agg}}
	svc := New(fs, &identityConverter{fail: true}, testLogger())

	_, err := svc.MonthTransactions(context.Background(), testIBAN, march(t), 1, 10, "USD")

	var rateErr *forex.RateUnavailableError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateUnavailableError to propagate, got %v", err)
	}
}

func TestTotalsAreComputedOverThePage(t *testing.T) {
	// Totals cover the returned page only, not the whole month.
	svc := serviceWith(t, []core.PaymentEvent{
		marchPayment(t, "0-0", "EUR 10.00", "2024-03-10"),
		marchPayment(t, "0-1", "EUR 20.00", "2024-03-11"),
		marchPayment(t, "0-2", "EUR 40.00", "2024-03-12"),
	})

	res, err := svc.MonthTransactions(context.Background(), testIBAN, march(t), 2, 2, "EUR")
	if err != nil {
		t.Fatalf("MonthTransactions: %v", err)
	}
	if want, _ := decimal.NewFromString("40"); !res.Debited.Equal(want) {
		t.Errorf("debited = %s, want 40 (page scope)", res.Debited)
	}
}
