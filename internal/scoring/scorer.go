package scoring

var (
	resolutionScore = map[string]int{"2160p": 40, "1080p": 30, "720p": 20, "480p": 10}
	sourceScore     = map[string]int{
		"Remux": 35, "BluRay": 30, "WEB-DL": 22, "WEBRip": 18,
		"HDTV": 10, "DVDRip": 8, "SDTV": 5, "CAM": 0,
	}
	codecScore = map[string]int{
		"x265": 10, "AV1": 10, "VP9": 8, "x264": 6, "XviD": 3, "DivX": 3, "MPEG2": 2,
	}
	hdrScore = map[string]int{
		"DV": 20, "HDR10+": 18, "HDR10": 15, "HDR": 12, "HLG": 8,
	}
	// audio is the most heavily weighted family: lossless formats dominate.
	audioScore = map[string]int{
		"TrueHD": 50, "DTS-HD MA": 50, "DTS-HD": 40, "DTS": 40,
		"DDP": 30, "DD": 30, "FLAC": 20, "AAC": 15, "Opus": 15, "MP3": 10,
	}
)

// seederBonus adds a banded bonus for well-seeded releases.
func seederBonus(seeders int) int {
	switch {
	case seeders >= 100:
		return 20
	case seeders >= 50:
		return 15
	case seeders >= 20:
		return 10
	case seeders >= 5:
		return 5
	default:
		return 0
	}
}

// Score parses the release title into facets and computes its quality score.
// Pure and deterministic: the same (title, seeders) pair always yields the
// same (Facets, score).
func Score(title string, seeders int) (Facets, int) {
	facets := ParseFacets(title)

	total := resolutionScore[facets.Resolution] +
		sourceScore[facets.Source] +
		codecScore[facets.VideoCodec] +
		hdrScore[facets.HDR] +
		audioScore[facets.Audio] +
		seederBonus(seeders)

	return facets, total
}
