// Package selection filters and ranks indexer results into an ordered
// candidate list for the orchestrator to descend.
package selection

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
	"github.com/ucero0/acquisitiond/internal/scoring"
)

// Selector filters by minimum seeder count and scores/sorts the survivors.
type Selector struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Selector {
	return &Selector{logger: logger.With().Str("component", "selector").Logger()}
}

// Select drops any result with fewer than one seeder, scores the rest with
// the QualityScorer, and returns them ordered by (score, seeders, publish
// date) descending. The sort is stable so equal keys preserve indexer order.
func (s *Selector) Select(results []domain.IndexerResult) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(results))
	for _, r := range results {
		if r.Seeders < 1 {
			s.logger.Debug().Str("title", r.Title).Int("seeders", r.Seeders).Msg("dropping result below seeder floor")
			continue
		}
		facets, score := scoring.Score(r.Title, r.Seeders)
		candidates = append(candidates, domain.Candidate{
			IndexerResult: r,
			Facets:        facets,
			Score:         score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Seeders != b.Seeders {
			return a.Seeders > b.Seeders
		}
		return a.PublishDate.After(b.PublishDate)
	})

	s.logger.Debug().Int("candidates", len(candidates)).Msg("selected candidates")
	return candidates
}
