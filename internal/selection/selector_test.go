package selection

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

func TestSelectDropsBelowSeederFloor(t *testing.T) {
	sel := New(zerolog.Nop())
	now := time.Now()
	results := []domain.IndexerResult{
		{Title: "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", Seeders: 50, PublishDate: now},
		{Title: "Blade.Runner.2049.720p.WEBRip", Seeders: 0, PublishDate: now},
	}

	got := sel.Select(results)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate to survive the seeder floor, got %d", len(got))
	}
	if got[0].Seeders != 50 {
		t.Fatalf("unexpected survivor: %+v", got[0])
	}
}

func TestSelectOrdersByScoreThenSeedersThenDate(t *testing.T) {
	sel := New(zerolog.Nop())
	now := time.Now()
	results := []domain.IndexerResult{
		{Title: "Blade.Runner.2049.720p.WEBRip", Seeders: 4, PublishDate: now},
		{Title: "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", Seeders: 50, PublishDate: now},
	}

	got := sel.Select(results)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Title != "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP" {
		t.Fatalf("expected the higher-quality release first, got %q", got[0].Title)
	}
}

func TestSelectStableTieBreak(t *testing.T) {
	sel := New(zerolog.Nop())
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	results := []domain.IndexerResult{
		{Title: "Same.Quality.1080p.WEB-DL", Seeders: 10, PublishDate: newer},
		{Title: "Same.Quality.1080p.WEB-DL", Seeders: 10, PublishDate: older},
	}

	got := sel.Select(results)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if !got[0].PublishDate.Equal(newer) {
		t.Fatalf("expected the newer publish date to sort first on a tie")
	}
}
