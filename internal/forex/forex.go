// Package forex converts payment amounts using historical exchange-rate
// snapshots. One snapshot covers one (base, target, month) triple and is
// cached, so concurrent queries for the same month share a single fetch.
package forex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"ebank/internal/cache"
	"ebank/internal/core"
	applog "ebank/internal/log"
)

// RateUnavailableError reports that no rate could be obtained, either
// because the provider was unreachable or because it has no rate for a
// specific date (weekends, bank holidays). It is a caller-visible
// condition, distinct from "account has no data".
type RateUnavailableError struct {
	Base   string
	Target string
	Month  core.Month
	Date   core.Date // zero when the whole snapshot fetch failed
	Err    error
}

func (e *RateUnavailableError) Error() string {
	if !e.Date.IsZero() {
		return fmt.Sprintf("no %s/%s rate for %s", e.Base, e.Target, e.Date)
	}
	return fmt.Sprintf("%s/%s rates for %s unavailable: %v", e.Base, e.Target, e.Month, e.Err)
}

func (e *RateUnavailableError) Unwrap() error { return e.Err }

// Snapshot holds one month of daily rates for a currency pair.
// Immutable once fetched.
type Snapshot struct {
	Base   string
	Target string
	Month  core.Month
	rates  map[string]decimal.Decimal
}

// Rate returns the rate for a calendar date, reporting whether the
// provider published one for that day.
func (s Snapshot) Rate(d core.Date) (decimal.Decimal, bool) {
	rate, ok := s.rates[d.String()]
	return rate, ok
}

// Config holds the rate provider settings.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// Client fetches and caches monthly rate snapshots from the external
// provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	snapshots  *cache.LRUCache[Snapshot]
	logger     *applog.Logger
}

func NewClient(cfg Config, logger *applog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		snapshots:  cache.NewLRUCache[Snapshot](cfg.CacheSize, cfg.CacheTTL),
		logger:     logger.WithComponent(applog.ComponentForex),
	}
}

// Convert restates every transaction amount in the target currency,
// applying the rate of each transaction's own date from the snapshot for
// month. All transactions must share one base currency (they belong to a
// single account, so they do). Amounts are multiplied exactly; sign is
// preserved. Returns RateUnavailableError when a needed rate is missing.
func (c *Client) Convert(ctx context.Context, transactions []core.PaymentEvent, targetCurrency string, month core.Month) ([]core.PaymentEvent, error) {
	if len(transactions) == 0 {
		return transactions, nil
	}

	base := transactions[0].Amount.Currency
	snapshot, err := c.MonthRates(ctx, base, targetCurrency, month)
	if err != nil {
		return nil, err
	}

	converted := make([]core.PaymentEvent, len(transactions))
	for i, tx := range transactions {
		rate, ok := snapshot.Rate(tx.TransactionDate)
		if !ok {
			return nil, &RateUnavailableError{
				Base:   base,
				Target: targetCurrency,
				Month:  month,
				Date:   tx.TransactionDate,
			}
		}
		converted[i] = tx
		converted[i].Amount = tx.Amount.Convert(targetCurrency, rate)
	}
	return converted, nil
}

// MonthRates returns the snapshot for (base, target, month), fetching it
// from the provider on a cache miss.
func (c *Client) MonthRates(ctx context.Context, base, target string, month core.Month) (Snapshot, error) {
	key := base + "/" + target + "/" + month.String()
	if snapshot, ok := c.snapshots.Get(key); ok {
		return snapshot, nil
	}

	snapshot, err := c.fetch(ctx, base, target, month)
	if err != nil {
		return Snapshot{}, &RateUnavailableError{Base: base, Target: target, Month: month, Err: err}
	}

	c.snapshots.Set(key, snapshot)
	c.logger.Debug("rate snapshot fetched",
		applog.FieldMonth, month.String(),
		applog.FieldCurrency, target,
		"days", len(snapshot.rates))
	return snapshot, nil
}

func (c *Client) fetch(ctx context.Context, base, target string, month core.Month) (Snapshot, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("date_from", month.FirstDay().String())
	q.Set("date_to", month.LastDay().String())
	q.Set("base_currency", base)
	q.Set("currencies", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("rate provider returned %s", resp.Status)
	}

	var body struct {
		Data map[string]map[string]decimal.Decimal `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Snapshot{}, fmt.Errorf("decode rate response: %w", err)
	}

	rates := make(map[string]decimal.Decimal, len(body.Data))
	for date, byCurrency := range body.Data {
		if rate, ok := byCurrency[target]; ok {
			rates[date] = rate
		}
	}
	return Snapshot{Base: base, Target: target, Month: month, rates: rates}, nil
}
