// Package market fetches live quotes and price series for ticker symbols.
// The gateway is stateless: every lookup is a fresh fetch, failures are
// surfaced to the caller and never retried internally, and nothing here
// touches the document analysis pipeline.
package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownSymbol means the upstream source reports no such ticker.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrTransientFetch covers network and rate-limit failures; the caller
	// may retry.
	ErrTransientFetch = errors.New("transient market data failure")
)

// Range selects how far back the price series reaches.
type Range string

const (
	RangeMonth    Range = "1m"
	RangeQuarter  Range = "3m"
	RangeHalfYear Range = "6m"
	RangeYear     Range = "1y"
)

// ParseRange validates a range string, defaulting to one year when empty.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case "":
		return RangeYear, nil
	case RangeMonth, RangeQuarter, RangeHalfYear, RangeYear:
		return Range(s), nil
	default:
		return "", fmt.Errorf("invalid range %q (want 1m, 3m, 6m or 1y)", s)
	}
}

func (r Range) start(now time.Time) time.Time {
	switch r {
	case RangeMonth:
		return now.AddDate(0, -1, 0)
	case RangeQuarter:
		return now.AddDate(0, -3, 0)
	case RangeHalfYear:
		return now.AddDate(0, -6, 0)
	default:
		return now.AddDate(-1, 0, 0)
	}
}

// PricePoint is one daily close in a series.
type PricePoint struct {
	Date  string          `json:"date"` // YYYY-MM-DD
	Close decimal.Decimal `json:"close"`
}

// Quote is a display-ready market snapshot, created fresh per lookup.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Price     decimal.Decimal `json:"price"`
	Series    []PricePoint    `json:"series"`
	FetchedAt time.Time       `json:"fetched_at"`
}
