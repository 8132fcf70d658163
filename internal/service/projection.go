package service

import (
	"math"
	"sort"

	"github.com/rongwang/tripsync/internal/models"
)

// Project returns the display order of proposals: canceled proposals are
// dropped, the rest sorted by average ranking (unranked last) with ties
// broken by ascending ID.
func Project(proposals []models.Proposal) []models.Proposal {
	out := make([]models.Proposal, 0, len(proposals))
	for _, p := range proposals {
		if p.IsCanceled() {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortKey(out[i]), sortKey(out[j])
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func sortKey(p models.Proposal) float64 {
	if p.AverageRanking == nil {
		return math.MaxFloat64
	}
	return *p.AverageRanking
}
