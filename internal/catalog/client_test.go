package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

func TestFetchWatchlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "tok1" {
			t.Errorf("expected token header, got %q", r.Header.Get("X-Plex-Token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"MediaContainer":{"Metadata":[
			{"ratingKey":"rk1","guid":"catalog://m/1","title":"Blade Runner","year":2049,"type":"movie"}
		]}}`))
	}))
	defer srv.Close()

	c := New(Config{DiscoverBaseURL: srv.URL}, zerolog.Nop())
	entries, err := c.FetchWatchlist(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("FetchWatchlist: %v", err)
	}
	if len(entries) != 1 || entries[0].GUID != "catalog://m/1" || entries[0].Year != 2049 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestExistsInLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer":{"size":1}}`))
	}))
	defer srv.Close()

	c := New(Config{ServerBaseURL: srv.URL}, zerolog.Nop())
	exists, err := c.ExistsInLibrary(context.Background(), "tok1", domain.WatchlistEntry{GUID: "catalog://m/1"})
	if err != nil {
		t.Fatalf("ExistsInLibrary: %v", err)
	}
	if !exists {
		t.Fatalf("expected library presence")
	}
}
