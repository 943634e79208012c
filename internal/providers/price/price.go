package price

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/providers"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	CoinMarketCapURL = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest"
	CoinGeckoURL     = "https://api.coingecko.com/api/v3/simple/price"
)

// Asset identifies a coin for both quote sources
type Asset struct {
	Symbol  string
	GeckoID string
	Name    string
}

var knownAssets = []Asset{
	{Symbol: "BTC", GeckoID: "bitcoin", Name: "Bitcoin"},
	{Symbol: "ETH", GeckoID: "ethereum", Name: "Ethereum"},
	{Symbol: "DOGE", GeckoID: "dogecoin", Name: "Dogecoin"},
	{Symbol: "LTC", GeckoID: "litecoin", Name: "Litecoin"},
	{Symbol: "XRP", GeckoID: "ripple", Name: "XRP"},
	{Symbol: "ADA", GeckoID: "cardano", Name: "Cardano"},
	{Symbol: "SOL", GeckoID: "solana", Name: "Solana"},
	{Symbol: "BNB", GeckoID: "binancecoin", Name: "BNB"},
	{Symbol: "MATIC", GeckoID: "polygon", Name: "Polygon"},
	{Symbol: "AVAX", GeckoID: "avalanche-2", Name: "Avalanche"},
}

// Lookup resolves a symbol, CoinGecko id or name. Unknown input is used verbatim
// as the symbol (upper case) and CoinGecko id (lower case).
func Lookup(s string) Asset {
	s = strings.TrimSpace(s)
	for _, a := range knownAssets {
		if strings.EqualFold(s, a.Symbol) || strings.EqualFold(s, a.GeckoID) || strings.EqualFold(s, a.Name) {
			return a
		}
	}
	return Asset{Symbol: strings.ToUpper(s), GeckoID: strings.ToLower(s)}
}

// ErrNoQuote is returned when a source has no data for the asset
var ErrNoQuote = errors.New("no quote for asset")

// CoinMarketCap fetches quotes from the CoinMarketCap pro API
type CoinMarketCap struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewCoinMarketCap(apiKey, endpoint string, timeout time.Duration) *CoinMarketCap {
	if endpoint == "" {
		endpoint = CoinMarketCapURL
	}
	return &CoinMarketCap{apiKey: apiKey, endpoint: endpoint, client: providers.NewHTTPClient(timeout)}
}

func (c *CoinMarketCap) Name() string { return "coinmarketcap" }

func (c *CoinMarketCap) Configured() bool { return c.apiKey != "" }

func (c *CoinMarketCap) Close() { c.client.CloseIdleConnections() }

// Fetch returns at most one quote for the asset named by query
func (c *CoinMarketCap) Fetch(ctx context.Context, query string, limit int) ([]providers.PriceQuote, error) {
	if !c.Configured() {
		return nil, apperr.Unconfigured(c.Name())
	}
	asset := Lookup(query)
	params := url.Values{"symbol": {asset.Symbol}, "convert": {"USD"}}
	header := http.Header{"X-CMC_PRO_API_KEY": {c.apiKey}}

	var resp struct {
		Data map[string]struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
			Quote  map[string]struct {
				Price            float64 `json:"price"`
				PercentChange24h float64 `json:"percent_change_24h"`
				MarketCap        float64 `json:"market_cap"`
				Volume24h        float64 `json:"volume_24h"`
				LastUpdated      string  `json:"last_updated"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := providers.GetJSON(ctx, c.client, c.Name(), c.endpoint+"?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	data, ok := resp.Data[asset.Symbol]
	if !ok {
		return nil, apperr.New(apperr.KindProviderFailure, c.Name(), ErrNoQuote)
	}
	usd, ok := data.Quote["USD"]
	if !ok {
		return nil, apperr.New(apperr.KindProviderFailure, c.Name(), ErrNoQuote)
	}
	return []providers.PriceQuote{{
		Symbol:           asset.Symbol,
		Name:             data.Name,
		Price:            usd.Price,
		PercentChange24h: usd.PercentChange24h,
		MarketCap:        usd.MarketCap,
		Volume24h:        usd.Volume24h,
		LastUpdated:      usd.LastUpdated,
		Source:           c.Name(),
	}}, nil
}

// CoinGecko fetches quotes from the public CoinGecko API. The key is optional.
type CoinGecko struct {
	apiKey   string
	endpoint string
	client   *http.Client
	now      func() time.Time
}

func NewCoinGecko(apiKey, endpoint string, timeout time.Duration) *CoinGecko {
	if endpoint == "" {
		endpoint = CoinGeckoURL
	}
	return &CoinGecko{apiKey: apiKey, endpoint: endpoint, client: providers.NewHTTPClient(timeout), now: time.Now}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) Configured() bool { return true }

func (c *CoinGecko) Close() { c.client.CloseIdleConnections() }

func (c *CoinGecko) Fetch(ctx context.Context, query string, limit int) ([]providers.PriceQuote, error) {
	asset := Lookup(query)
	params := url.Values{
		"ids":                 {asset.GeckoID},
		"vs_currencies":       {"usd"},
		"include_24hr_change": {"true"},
		"include_market_cap":  {"true"},
		"include_24hr_vol":    {"true"},
	}
	var header http.Header
	if c.apiKey != "" {
		header = http.Header{"x-cg-demo-api-key": {c.apiKey}}
	}

	var resp map[string]struct {
		USD          float64 `json:"usd"`
		USD24hChange float64 `json:"usd_24h_change"`
		USDMarketCap float64 `json:"usd_market_cap"`
		USD24hVol    float64 `json:"usd_24h_vol"`
	}
	if err := providers.GetJSON(ctx, c.client, c.Name(), c.endpoint+"?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	data, ok := resp[asset.GeckoID]
	if !ok {
		return nil, apperr.New(apperr.KindProviderFailure, c.Name(), ErrNoQuote)
	}
	name := asset.Name
	if name == "" && asset.GeckoID != "" {
		name = strings.ToUpper(asset.GeckoID[:1]) + asset.GeckoID[1:]
	}
	return []providers.PriceQuote{{
		Symbol:           asset.Symbol,
		Name:             name,
		Price:            data.USD,
		PercentChange24h: data.USD24hChange,
		MarketCap:        data.USDMarketCap,
		Volume24h:        data.USD24hVol,
		LastUpdated:      c.now().UTC().Format(time.RFC3339),
		Source:           c.Name(),
	}}, nil
}
