package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://eodhd.com/api"

// Gateway looks up quotes against the EOD Historical Data REST API.
type Gateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGateway creates an EODHD-backed gateway. An empty key falls back to
// the provider's demo token, which covers a handful of US tickers.
func NewGateway(apiKey string, timeout time.Duration) *Gateway {
	if apiKey == "" {
		apiKey = "demo"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gateway{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchResult struct {
	Code          string          `json:"Code"`
	Exchange      string          `json:"Exchange"`
	Name          string          `json:"Name"`
	Currency      string          `json:"Currency"`
	PreviousClose decimal.Decimal `json:"previousClose"`
}

type eodRow struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// Lookup resolves a symbol via the search endpoint, fetches its daily close
// series over the requested range, and shapes the result into a Quote.
func (g *Gateway) Lookup(ctx context.Context, symbol string, rng Range) (*Quote, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrUnknownSymbol)
	}

	// Search resolves the exchange suffix and currency, and doubles as the
	// existence check.
	addr := fmt.Sprintf("%s/search/%s?api_token=%s&fmt=json&limit=1",
		g.baseURL, url.PathEscape(symbol), url.QueryEscape(g.apiKey))
	var results []searchResult
	if err := g.getJSON(ctx, addr, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	best := results[0]
	ticker := best.Code + "." + best.Exchange

	now := time.Now()
	addr = fmt.Sprintf("%s/eod/%s?api_token=%s&fmt=json&from=%s&to=%s",
		g.baseURL, url.PathEscape(ticker), url.QueryEscape(g.apiKey),
		rng.start(now).Format("2006-01-02"), now.Format("2006-01-02"))
	var rows []eodRow
	if err := g.getJSON(ctx, addr, &rows); err != nil {
		return nil, err
	}

	quote := &Quote{
		Symbol:    best.Code,
		Name:      best.Name,
		Currency:  best.Currency,
		Price:     best.PreviousClose,
		Series:    make([]PricePoint, 0, len(rows)),
		FetchedAt: now,
	}
	for _, row := range rows {
		quote.Series = append(quote.Series, PricePoint{Date: row.Date, Close: row.Close})
	}
	if n := len(quote.Series); n > 0 {
		quote.Price = quote.Series[n-1].Close
	}
	return quote, nil
}

// getJSON fetches addr and decodes the JSON body into out, mapping HTTP
// failures onto the gateway's two error classes.
func (g *Gateway) getJSON(ctx context.Context, addr string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrTransientFetch, err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransientFetch, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: not found upstream", ErrUnknownSymbol)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d: %s", ErrTransientFetch, resp.StatusCode, trim(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrTransientFetch, err)
	}
	return nil
}

func trim(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
