package scoring

import "testing"

func TestScoreS1Corpus(t *testing.T) {
	facets1, score1 := Score("Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", 50)
	if facets1.Resolution != "2160p" || facets1.Source != "BluRay" || facets1.Audio != "TrueHD" || facets1.ReleaseGroup != "GRP" {
		t.Fatalf("unexpected facets: %+v", facets1)
	}
	if score1 != 135 {
		t.Fatalf("score1 = %d, want 135", score1)
	}

	facets2, score2 := Score("Blade.Runner.2049.720p.WEBRip", 4)
	if facets2.Resolution != "720p" || facets2.Source != "WEBRip" {
		t.Fatalf("unexpected facets: %+v", facets2)
	}
	if score2 != 38 {
		t.Fatalf("score2 = %d, want 38", score2)
	}

	if score1 <= score2 {
		t.Fatalf("expected higher-quality release to outscore the lower one: %d vs %d", score1, score2)
	}
}

func TestScoreDeterministic(t *testing.T) {
	title := "Some.Show.S01.1080p.WEB-DL.DDP5.1.x264-GRP"
	f1, s1 := Score(title, 30)
	f2, s2 := Score(title, 30)
	if f1 != f2 || s1 != s2 {
		t.Fatalf("Score is not deterministic for repeated calls")
	}
}

func TestReleaseGroupFalsePositive(t *testing.T) {
	f := ParseFacets("Movie.Name.2020.1080p.BluRay.x264")
	if f.ReleaseGroup != "" {
		t.Fatalf("expected no release group, got %q", f.ReleaseGroup)
	}
}

func TestSeederBonusBands(t *testing.T) {
	cases := []struct {
		seeders int
		want    int
	}{
		{150, 20}, {100, 20}, {60, 15}, {50, 15}, {25, 10}, {20, 10}, {10, 5}, {5, 5}, {4, 0}, {0, 0},
	}
	for _, c := range cases {
		if got := seederBonus(c.seeders); got != c.want {
			t.Errorf("seederBonus(%d) = %d, want %d", c.seeders, got, c.want)
		}
	}
}
