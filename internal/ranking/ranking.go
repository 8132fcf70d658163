// Package ranking computes group averages and applies the current user's
// ranking edits to a proposal. Every function returns a new value; input
// proposals and their ranking slices are never modified.
package ranking

import "github.com/rongwang/tripsync/internal/models"

// ComputeAverage returns the mean rank, or nil when nobody has ranked
func ComputeAverage(rankings []models.Ranking) *float64 {
	if len(rankings) == 0 {
		return nil
	}

	sum := 0
	for _, r := range rankings {
		sum += r.Rank
	}
	avg := float64(sum) / float64(len(rankings))
	return &avg
}

// ApplyLocalChange sets (newRank != nil) or clears (newRank == nil) the
// current user's ranking and recomputes the average locally.
func ApplyLocalChange(p models.Proposal, newRank *int) models.Proposal {
	current := p.CurrentUserRanking

	if newRank == nil {
		// Nothing to clear
		if current == nil {
			return p
		}
		p.Rankings = without(p.Rankings, *current)
		p.CurrentUserRanking = nil
		p.AverageRanking = ComputeAverage(p.Rankings)
		return p
	}

	rankings := clone(p.Rankings)
	var updated models.Ranking

	if current != nil {
		updated = *current
		updated.Rank = *newRank
		replaced := false
		for i, r := range rankings {
			if r.SameAs(*current) {
				rankings[i].Rank = *newRank
				replaced = true
				break
			}
		}
		if !replaced {
			rankings = append(rankings, updated)
		}
	} else {
		updated = models.Ranking{Rank: *newRank}
		rankings = append(rankings, updated)
	}

	p.Rankings = rankings
	p.CurrentUserRanking = &updated
	p.AverageRanking = ComputeAverage(p.Rankings)
	return p
}

// ReconcileServerRanking swaps the optimistic ranking for the persisted one
// the server returned.
func ReconcileServerRanking(p models.Proposal, server models.Ranking) models.Proposal {
	rankings := make([]models.Ranking, 0, len(p.Rankings)+1)
	for _, r := range p.Rankings {
		if server.ID != nil && r.ID != nil && *r.ID == *server.ID {
			continue
		}
		if p.CurrentUserRanking != nil && r.SameAs(*p.CurrentUserRanking) {
			continue
		}
		rankings = append(rankings, r)
	}

	confirmed := server
	rankings = append(rankings, confirmed)

	p.Rankings = rankings
	p.CurrentUserRanking = &confirmed
	p.AverageRanking = ComputeAverage(p.Rankings)
	return p
}

// without removes the first ranking matching target by the identity rule
func without(rankings []models.Ranking, target models.Ranking) []models.Ranking {
	out := make([]models.Ranking, 0, len(rankings))
	removed := false
	for _, r := range rankings {
		if !removed && r.SameAs(target) {
			removed = true
			continue
		}
		out = append(out, r)
	}
	return out
}

func clone(rankings []models.Ranking) []models.Ranking {
	out := make([]models.Ranking, len(rankings))
	copy(out, rankings)
	return out
}
