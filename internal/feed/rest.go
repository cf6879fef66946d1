package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Malick1802/signal-stride-forex-sub005/pkg/config"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/httputil"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// RESTClient fetches batched spot quotes from the market data provider.
type RESTClient struct {
	cfg    config.FeedConfig
	client *httputil.Client
	logger *logger.Logger
}

// NewRESTClient creates a new REST quote client.
func NewRESTClient(cfg config.FeedConfig, client *httputil.Client, log *logger.Logger) *RESTClient {
	return &RESTClient{
		cfg:    cfg,
		client: client,
		logger: log,
	}
}

// liveResponse mirrors the provider's /live payload.
type liveResponse struct {
	Quotes []struct {
		BaseCurrency  string  `json:"base_currency"`
		QuoteCurrency string  `json:"quote_currency"`
		Mid           float64 `json:"mid"`
	} `json:"quotes"`
	Timestamp int64 `json:"timestamp"`
}

// FetchQuotes fetches current mid prices for the given symbols in one request.
// Symbols the provider has no data for are simply absent from the result.
func (c *RESTClient) FetchQuotes(ctx context.Context, symbols []string) (map[string]*Quote, error) {
	if len(symbols) == 0 {
		return map[string]*Quote{}, nil
	}

	endpoint := fmt.Sprintf("%s/live?currency=%s&api_key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.QueryEscape(strings.Join(symbols, ",")),
		url.QueryEscape(c.cfg.APIKey),
	)

	var resp liveResponse
	if err := c.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}

	ts := time.Now()
	if resp.Timestamp > 0 {
		ts = time.Unix(resp.Timestamp, 0)
	}

	quotes := make(map[string]*Quote, len(resp.Quotes))
	for _, q := range resp.Quotes {
		symbol := q.BaseCurrency + q.QuoteCurrency
		if q.Mid <= 0 {
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"mid":    q.Mid,
			}).Warn("Provider returned non-positive price, dropping")
			continue
		}
		quotes[symbol] = &Quote{
			Symbol:    symbol,
			Price:     q.Mid,
			Timestamp: ts,
			Source:    SourceREST,
		}
	}

	return quotes, nil
}
