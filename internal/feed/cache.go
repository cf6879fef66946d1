package feed

import (
	"sync"
	"time"

	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// QuoteCache is an in-memory cache for live quotes
// SSOT: live price caching happens in this struct and only here
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]*Quote
	ttl    time.Duration
	logger *logger.Logger
}

// NewQuoteCache creates a new quote cache.
func NewQuoteCache(ttl time.Duration, log *logger.Logger) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]*Quote),
		ttl:    ttl,
		logger: log,
	}
}

// Update stores a quote. Older data never replaces newer data; equal
// timestamps are resolved by source priority.
func (c *QuoteCache) Update(quote *Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.quotes[quote.Symbol]
	if exists {
		if quote.Timestamp.Before(existing.Timestamp) {
			return false
		}
		if quote.Timestamp.Equal(existing.Timestamp) &&
			sourcePriority(quote.Source) <= sourcePriority(existing.Source) {
			return false
		}
	}

	quote.IsStale = time.Since(quote.Timestamp) > c.ttl
	c.quotes[quote.Symbol] = quote

	c.logger.WithFields(map[string]interface{}{
		"symbol": quote.Symbol,
		"price":  quote.Price,
		"source": quote.Source,
	}).Debug("Updated quote cache")

	return true
}

// Get retrieves a quote, marking staleness.
func (c *QuoteCache) Get(symbol string) (*Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quote, exists := c.quotes[symbol]
	if !exists {
		return nil, false
	}
	if time.Since(quote.Timestamp) > c.ttl {
		quote.IsStale = true
	}
	return quote, true
}

// GetMany retrieves fresh quotes for the given symbols. Stale entries are
// omitted: the engine treats them as missing data for this tick.
func (c *QuoteCache) GetMany(symbols []string) map[string]*Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*Quote, len(symbols))
	for _, symbol := range symbols {
		quote, exists := c.quotes[symbol]
		if !exists {
			continue
		}
		if time.Since(quote.Timestamp) > c.ttl {
			continue
		}
		result[symbol] = quote
	}
	return result
}

// CleanStale removes quotes older than the TTL. Returns the removed count.
func (c *QuoteCache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0
	for symbol, quote := range c.quotes {
		if now.Sub(quote.Timestamp) > c.ttl {
			delete(c.quotes, symbol)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Info("Cleaned stale quotes from cache")
	}
	return count
}

// Len returns the number of cached quotes.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
