// Package polygon adapts the Polygon.io REST API to the pipeline's data
// sources: minute bars per ticker-date, grouped daily bars per date, and
// split lookups for the gap classifier.
//
// Every request waits on a shared rate limiter. Grouped daily results are
// cached per date since each date is read both as "current" and as
// "previous" during a run.
package polygon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	polygonrest "github.com/polygon-io/client-go/rest"
	pgmodels "github.com/polygon-io/client-go/rest/models"
	"golang.org/x/time/rate"

	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/pipeline"
)

const (
	extendedOpenHour  = 4
	extendedCloseHour = 20
	barsPageLimit     = 50000
)

var (
	_ pipeline.BarSource        = (*Client)(nil)
	_ pipeline.DailySource      = (*Client)(nil)
	_ pipeline.CorporateActions = (*Client)(nil)
)

// Config holds client settings.
type Config struct {
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	GroupedCacheTTL   time.Duration
	Location          *time.Location // exchange timezone for date boundaries
}

// Client provides access to Polygon market data
type Client struct {
	rest    *polygonrest.Client
	limiter *rate.Limiter
	grouped *cache.Cache
	loc     *time.Location
}

// NewClient creates a new Polygon client
func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewClientWithHTTP creates a client that sends requests through httpClient.
func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	ttl := cfg.GroupedCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		rest:    polygonrest.NewWithClient(cfg.APIKey, httpClient),
		limiter: rate.NewLimiter(limit, burst),
		grouped: cache.New(ttl, 2*ttl),
		loc:     loc,
	}
}

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.rest.GetMarketStatus(ctx); err != nil {
		return fmt.Errorf("failed to reach Polygon: %w", err)
	}
	return nil
}

// MinuteBars returns the unadjusted minute bars of ticker from 04:00 to
// 20:00 exchange time on date, oldest first.
func (c *Client) MinuteBars(ctx context.Context, ticker string, date time.Time) ([]models.Bar, error) {
	y, m, d := date.Date()
	from := time.Date(y, m, d, extendedOpenHour, 0, 0, 0, c.loc)
	to := time.Date(y, m, d, extendedCloseHour, 0, 0, 0, c.loc)

	params := &pgmodels.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   pgmodels.Minute,
		From:       pgmodels.Millis(from),
		To:         pgmodels.Millis(to),
	}
	adjusted := false
	order := pgmodels.Asc
	limit := barsPageLimit
	params.Adjusted = &adjusted
	params.Order = &order
	params.Limit = &limit

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	iter := c.rest.ListAggs(ctx, params)
	var bars []models.Bar
	for iter.Next() {
		bars = append(bars, barFromAgg(iter.Item()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch minute bars for %s: %w", ticker, err)
	}
	return bars, nil
}

// GroupedDaily returns the unadjusted daily bars of every US stock on date,
// keyed by ticker. A date without data yields an empty map.
func (c *Client) GroupedDaily(ctx context.Context, date time.Time) (map[string]pipeline.DailyQuote, error) {
	key := date.Format(models.DateLayout)
	if cached, ok := c.grouped.Get(key); ok {
		return cached.(map[string]pipeline.DailyQuote), nil
	}

	y, m, d := date.Date()
	adjusted := false
	params := &pgmodels.GetGroupedDailyAggsParams{
		Locale:     pgmodels.US,
		MarketType: pgmodels.Stocks,
		Date:       pgmodels.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)),
		Adjusted:   &adjusted,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.rest.GetGroupedDailyAggs(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grouped daily for %s: %w", key, err)
	}

	quotes := quotesFromAggs(resp.Results)
	if len(quotes) > 0 {
		c.grouped.Set(key, quotes, cache.DefaultExpiration)
	}
	return quotes, nil
}

// HasSplit reports whether Polygon lists a split of ticker executed between
// from and to, inclusive.
func (c *Client) HasSplit(ctx context.Context, ticker string, from, to time.Time) (bool, error) {
	gte := pgmodels.Date(dateOnly(from))
	lte := pgmodels.Date(dateOnly(to))
	limit := 10
	params := &pgmodels.ListSplitsParams{
		TickerEQ:         &ticker,
		ExecutionDateGTE: &gte,
		ExecutionDateLTE: &lte,
		Limit:            &limit,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}
	iter := c.rest.ListSplits(ctx, params)
	if iter.Next() {
		return true, nil
	}
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("failed to list splits for %s: %w", ticker, err)
	}
	return false, nil
}

func barFromAgg(a pgmodels.Agg) models.Bar {
	return models.Bar{
		Timestamp: time.Time(a.Timestamp),
		Open:      a.Open,
		High:      a.High,
		Low:       a.Low,
		Close:     a.Close,
		Volume:    a.Volume,
	}
}

// quotesFromAggs keys grouped daily results by ticker, skipping rows without
// a ticker or with non-positive prices.
func quotesFromAggs(aggs []pgmodels.Agg) map[string]pipeline.DailyQuote {
	quotes := make(map[string]pipeline.DailyQuote, len(aggs))
	for _, a := range aggs {
		if a.Ticker == "" || a.Open <= 0 || a.Close <= 0 {
			continue
		}
		quotes[a.Ticker] = pipeline.DailyQuote{
			Ticker: a.Ticker,
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Volume: a.Volume,
		}
	}
	return quotes
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
