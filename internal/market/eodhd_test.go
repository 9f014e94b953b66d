package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestGateway(url string) *Gateway {
	g := NewGateway("test-token", 5*time.Second)
	g.baseURL = url
	return g
}

func TestLookup_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/AAPL") {
			t.Errorf("search path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_token"); got != "test-token" {
			t.Errorf("api_token = %q", got)
		}
		w.Write([]byte(`[{"Code":"AAPL","Exchange":"US","Name":"Apple Inc","Currency":"USD","previousClose":189.5}]`))
	})
	mux.HandleFunc("/eod/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/AAPL.US") {
			t.Errorf("eod path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("from") == "" || r.URL.Query().Get("to") == "" {
			t.Error("eod request missing date bounds")
		}
		w.Write([]byte(`[
			{"date":"2026-08-27","close":190.1},
			{"date":"2026-08-28","close":191.4}
		]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	quote, err := newTestGateway(srv.URL).Lookup(context.Background(), "AAPL", RangeYear)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if quote.Symbol != "AAPL" || quote.Name != "Apple Inc" || quote.Currency != "USD" {
		t.Errorf("quote header = %+v", quote)
	}
	if len(quote.Series) != 2 {
		t.Fatalf("series length = %d, want 2", len(quote.Series))
	}
	// Latest close wins over the search snapshot price.
	if quote.Price.String() != "191.4" {
		t.Errorf("price = %s, want 191.4", quote.Price)
	}
	if quote.Series[0].Date != "2026-08-27" {
		t.Errorf("series[0].date = %s", quote.Series[0].Date)
	}
	if quote.FetchedAt.IsZero() {
		t.Error("fetched_at not set")
	}
}

func TestLookup_UnknownSymbol(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty search result", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}},
		{"upstream 404", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestGateway(srv.URL).Lookup(context.Background(), "ZZZZ", RangeYear)
			if !errors.Is(err, ErrUnknownSymbol) {
				t.Errorf("err = %v, want ErrUnknownSymbol", err)
			}
		})
	}
}

func TestLookup_TransientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited", 429, "too many requests"},
		{"server error", 502, "bad gateway"},
		{"garbage payload", 200, "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestGateway(srv.URL).Lookup(context.Background(), "AAPL", RangeMonth)
			if !errors.Is(err, ErrTransientFetch) {
				t.Errorf("err = %v, want ErrTransientFetch", err)
			}
		})
	}
}

func TestLookup_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestGateway(srv.URL).Lookup(context.Background(), "AAPL", RangeYear)
	if !errors.Is(err, ErrTransientFetch) {
		t.Errorf("err = %v, want ErrTransientFetch", err)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"", RangeYear, false},
		{"1m", RangeMonth, false},
		{"3m", RangeQuarter, false},
		{"6m", RangeHalfYear, false},
		{"1y", RangeYear, false},
		{"2w", "", true},
		{"YTD", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRange(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRange(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRange(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
