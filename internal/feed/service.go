package feed

import (
	"context"
	"sync"

	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/redis"
)

// Service is the engine-facing price feed: cache-first batched lookups with a
// REST fallback, push notifications from the stream, and a Redis-backed
// last-known price for the repair pass.
// Implements contracts.PriceFeed and contracts.PriceSubscriber.
type Service struct {
	cache     *QuoteCache
	rest      *RESTClient
	lastKnown *redis.Cache
	logger    *logger.Logger

	subMu       sync.RWMutex
	subscribers []func(symbol string, price float64)
}

// NewService creates the feed service.
func NewService(cache *QuoteCache, rest *RESTClient, lastKnown *redis.Cache, log *logger.Logger) *Service {
	return &Service{
		cache:     cache,
		rest:      rest,
		lastKnown: lastKnown,
		logger:    log,
	}
}

// GetPrices returns current prices for the given symbols in one batched
// lookup. Fresh cached quotes are used as-is; the rest are fetched over REST.
// Symbols with no data anywhere are absent from the result.
func (s *Service) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	result := make(map[string]float64, len(symbols))

	cached := s.cache.GetMany(symbols)
	missing := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if quote, ok := cached[symbol]; ok {
			result[symbol] = quote.Price
		} else {
			missing = append(missing, symbol)
		}
	}

	if len(missing) > 0 {
		fetched, err := s.rest.FetchQuotes(ctx, missing)
		if err != nil {
			// Partial data is fine; the engine skips symbols without prices.
			s.logger.WithError(err).WithField("symbols", missing).Warn("REST quote fetch failed")
		} else {
			for symbol, quote := range fetched {
				s.cache.Update(quote)
				result[symbol] = quote.Price
			}
		}
	}

	// Remember every price we served for the repair pass.
	for symbol, price := range result {
		s.rememberLastKnown(ctx, symbol, price)
	}

	return result, nil
}

// LastKnownPrice returns the best available last-known price for a symbol.
// The in-memory cache (even stale) wins over the Redis record.
func (s *Service) LastKnownPrice(ctx context.Context, symbol string) (float64, bool) {
	if quote, ok := s.cache.Get(symbol); ok {
		return quote.Price, true
	}

	var price float64
	found, err := s.lastKnown.Get(ctx, redis.LastPriceKey(symbol), &price)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Last-known price lookup failed")
		return 0, false
	}
	if !found || price <= 0 {
		return 0, false
	}
	return price, true
}

// Subscribe registers a callback for accepted stream updates.
func (s *Service) Subscribe(fn func(symbol string, price float64)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// HandleStreamUpdate fans a stream update out to subscribers and records the
// last-known price. Wired as the WSClient OnUpdate callback.
func (s *Service) HandleStreamUpdate(symbol string, price float64) {
	s.rememberLastKnown(context.Background(), symbol, price)

	s.subMu.RLock()
	subscribers := s.subscribers
	s.subMu.RUnlock()

	for _, fn := range subscribers {
		fn(symbol, price)
	}
}

func (s *Service) rememberLastKnown(ctx context.Context, symbol string, price float64) {
	if err := s.lastKnown.Set(ctx, redis.LastPriceKey(symbol), price, redis.TTLLong); err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Debug("Failed to record last-known price")
	}
}

// CleanCache removes stale quotes; scheduled as a maintenance job.
func (s *Service) CleanCache() int {
	return s.cache.CleanStale()
}

// CacheLen reports the cached quote count, for status reporting.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}
