// Package query serves paginated, currency-normalized month views over
// the account aggregates in the state store. It only reads; folding is
// the engine's job.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ebank/internal/core"
	applog "ebank/internal/log"
	"ebank/internal/store"
)

// ErrInvalidPagination is returned when page or size is not a positive
// integer. Rejected up front, it never produces a negative skip.
var ErrInvalidPagination = errors.New("page and size must be positive integers")

// Result is the answer to one month query. Debited and Credited are
// non-negative magnitudes summed over the returned page after currency
// conversion.
type Result struct {
	Debited      decimal.Decimal
	Credited     decimal.Decimal
	Transactions []core.PaymentEvent
	TotalPages   int
}

// AggregateReader is the slice of the state store the query engine
// needs.
type AggregateReader interface {
	GetAggregate(ctx context.Context, iban string) (core.AccountAggregate, error)
}

// Converter normalizes a batch of transactions to a target currency
// using the rates of the given month.
type Converter interface {
	Convert(ctx context.Context, transactions []core.PaymentEvent, targetCurrency string, month core.Month) ([]core.PaymentEvent, error)
}

type Service struct {
	store     AggregateReader
	converter Converter
	logger    *applog.Logger
}

func New(store AggregateReader, converter Converter, logger *applog.Logger) *Service {
	return &Service{
		store:     store,
		converter: converter,
		logger:    logger.WithComponent(applog.ComponentQuery),
	}
}

// MonthTransactions returns one page of an account's transactions for a
// month, converted to currency, with debit/credit totals over that page.
//
// The month filter keeps transactions dated strictly after the first and
// strictly before the last calendar day of the month: both month edges
// are excluded. An account with no data is a valid empty result, not an
// error; conversion failures surface as forex.RateUnavailableError.
func (s *Service) MonthTransactions(ctx context.Context, iban string, month core.Month, page, size int, currency string) (Result, error) {
	if page < 1 || size < 1 {
		return Result{}, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPagination, page, size)
	}

	agg, err := s.store.GetAggregate(ctx, iban)
	if errors.Is(err, store.ErrNotFound) {
		return emptyResult(), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read aggregate: %w", err)
	}
	if len(agg.Transactions) == 0 {
		return emptyResult(), nil
	}

	filtered := filterMonth(agg.Transactions, month)
	totalPages := pageCount(len(filtered), size)

	pageSlice := paginate(filtered, page, size)

	// Conversion is month-scoped: the queried month's snapshot, not
	// anything derived from the page's individual dates.
	converted, err := s.converter.Convert(ctx, pageSlice, currency, month)
	if err != nil {
		return Result{}, err
	}

	debited, credited := totals(converted)
	return Result{
		Debited:      debited,
		Credited:     credited,
		Transactions: converted,
		TotalPages:   totalPages,
	}, nil
}

func emptyResult() Result {
	return Result{
		Debited:      decimal.Zero,
		Credited:     decimal.Zero,
		Transactions: []core.PaymentEvent{},
		TotalPages:   1,
	}
}

// filterMonth keeps transactions dated inside the month with both edges
// excluded. The exclusive bounds are a compatibility contract; change
// them only together with the consumers relying on them.
func filterMonth(transactions []core.PaymentEvent, month core.Month) []core.PaymentEvent {
	first := month.FirstDay()
	last := month.LastDay()

	var filtered []core.PaymentEvent
	for _, tx := range transactions {
		if tx.TransactionDate.After(first) && tx.TransactionDate.Before(last) {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

func pageCount(total, size int) int {
	pages := (total + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

func paginate(transactions []core.PaymentEvent, page, size int) []core.PaymentEvent {
	skip := (page - 1) * size
	if skip >= len(transactions) {
		return []core.PaymentEvent{}
	}
	end := skip + size
	if end > len(transactions) {
		end = len(transactions)
	}
	return transactions[skip:end]
}

// totals sums the page into non-negative debit and credit magnitudes.
func totals(transactions []core.PaymentEvent) (debited, credited decimal.Decimal) {
	debited, credited = decimal.Zero, decimal.Zero
	for _, tx := range transactions {
		switch {
		case tx.Amount.IsDebit():
			debited = debited.Add(tx.Amount.Value)
		case tx.Amount.IsCredit():
			credited = credited.Sub(tx.Amount.Value)
		}
	}
	return debited, credited
}
