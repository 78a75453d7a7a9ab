package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimilarity_IdenticalAfterNormalization(t *testing.T) {
	s := similarity("Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", "Blade Runner 2049 2160p BluRay TrueHD GRP")
	require.InDelta(t, 1.0, s, 0.001)
}

func TestSimilarity_ReorderedTokensStillHigh(t *testing.T) {
	s := similarity("2049 Blade Runner BluRay 2160p", "Blade Runner 2049 2160p BluRay")
	require.Greater(t, s, 0.6)
}

func TestSimilarity_UnrelatedTitlesLow(t *testing.T) {
	s := similarity("Blade Runner 2049", "The Great British Bake Off S12E04")
	require.Less(t, s, 0.6)
}

func TestSimilarity_EmptyStringsAreEqual(t *testing.T) {
	require.Equal(t, 1.0, similarity("", ""))
}
