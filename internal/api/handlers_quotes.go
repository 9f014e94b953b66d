package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/finlens/finlens/internal/market"
)

// handleQuote serves a live quote and price series for a ticker symbol.
// Lookups are independent of any document session.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		jsonError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	rng, err := market.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.MarketTimeout)
	defer cancel()

	quote, err := s.market.Lookup(ctx, symbol, rng)
	if err != nil {
		switch {
		case errors.Is(err, market.ErrUnknownSymbol):
			jsonError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, market.ErrTransientFetch):
			w.Header().Set("Retry-After", "5")
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			jsonError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, quote)
}
