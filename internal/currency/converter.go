// Package currency converts expense amounts between the supported currencies.
package currency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/pkg/logger"
	"github.com/vexpense/vexpense/pkg/metrics"
)

// Base is the currency every rate is quoted against.
const Base = "USD"

// ErrUnsupportedCurrency is returned for codes missing from the rate table.
var ErrUnsupportedCurrency = errors.New("currency: unsupported currency")

// DefaultRates are units of each currency per one USD, one entry per models.Currency.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"USD": 1,
		"JPY": 150,
		"LKR": 320,
		"EUR": 0.85,
	}
}

// RateSource supplies a fresh rate table quoted against USD.
type RateSource interface {
	Rates(ctx context.Context) (map[string]float64, error)
}

// Converter holds the current rate table. It is safe for concurrent use.
type Converter struct {
	source RateSource
	now    func() time.Time

	mu          sync.RWMutex
	rates       map[string]float64
	lastUpdated time.Time
}

// Option customises a Converter.
type Option func(*Converter)

// WithClock overrides the clock used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewConverter builds a Converter seeded with DefaultRates. A nil source
// keeps the defaults on every refresh.
func NewConverter(source RateSource, opts ...Option) *Converter {
	if source == nil {
		source = StaticSource(DefaultRates())
	}
	c := &Converter{
		source: source,
		now:    time.Now,
		rates:  DefaultRates(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh updates the rate table from the source. Only the accepted currencies
// are tracked: codes outside that set are ignored and a tracked code the source
// omits keeps its previous rate. On failure the table is left untouched.
func (c *Converter) Refresh(ctx context.Context) error {
	rates, err := c.source.Rates(ctx)
	if err != nil {
		metrics.CurrencyRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("currency: refresh rates: %w", err)
	}

	updated := 0
	c.mu.Lock()
	next := make(map[string]float64, len(c.rates))
	for code, rate := range c.rates {
		next[code] = rate
	}
	for code, rate := range rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !models.Currency(code).Valid() || rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			continue
		}
		next[code] = rate
		updated++
	}
	next[Base] = 1
	c.rates = next
	c.lastUpdated = c.now().UTC()
	c.mu.Unlock()

	metrics.CurrencyRefreshes.WithLabelValues("success").Inc()
	logger.WithModule("currency").Info("exchange rates updated",
		zap.Int("updated", updated),
		zap.Int("received", len(rates)))
	return nil
}

// LastUpdated reports when Refresh last succeeded. Zero until the first refresh.
func (c *Converter) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// Rates returns a copy of the current table.
func (c *Converter) Rates() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.rates))
	for k, v := range c.rates {
		out[k] = v
	}
	return out
}

// Supported lists the known currency codes in alphabetical order.
func (c *Converter) Supported() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]string, 0, len(c.rates))
	for code := range c.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Rate returns how many units of to equal one unit of from.
func (c *Converter) Rate(from, to string) (float64, error) {
	fromRate, toRate, err := c.pair(from, to)
	if err != nil {
		return 0, err
	}
	if strings.EqualFold(from, to) {
		return 1, nil
	}
	return toRate / fromRate, nil
}

// Convert converts amount from one currency to another, rounded to 2 decimals.
func (c *Converter) Convert(amount float64, from, to string) (float64, error) {
	fromRate, toRate, err := c.pair(from, to)
	if err != nil {
		return 0, err
	}
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	return Round(amount / fromRate * toRate), nil
}

// ToUSD converts amount to USD. A positive override rate (units of from per
// USD) takes precedence over the table.
func (c *Converter) ToUSD(amount float64, from string, override float64) (float64, float64, error) {
	if override > 0 && override != 1 && !strings.EqualFold(from, Base) {
		return Round(amount / override), override, nil
	}
	rate, err := c.Rate(Base, from)
	if err != nil {
		return 0, 0, err
	}
	usd, err := c.Convert(amount, from, Base)
	if err != nil {
		return 0, 0, err
	}
	return usd, rate, nil
}

func (c *Converter) pair(from, to string) (float64, float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fromRate, ok := c.rates[strings.ToUpper(from)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	toRate, ok := c.rates[strings.ToUpper(to)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	return fromRate, toRate, nil
}

// Round rounds to 2 decimal places.
func Round(value float64) float64 {
	return math.Round(value*100) / 100
}
