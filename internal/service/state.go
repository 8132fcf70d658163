package service

import (
	"sort"

	"github.com/rongwang/tripsync/internal/models"
)

// ViewStatus is the overall state of a trip's proposals view
type ViewStatus string

const (
	StatusLoading ViewStatus = "loading"
	StatusEmpty   ViewStatus = "empty"
	StatusLoaded  ViewStatus = "loaded"
	StatusError   ViewStatus = "error"
)

// ViewState is an immutable snapshot handed to presentation
type ViewState struct {
	Status    ViewStatus
	TripID    string
	Proposals []models.Proposal
	// Message is the user-facing error text when Status is StatusError
	Message   string
	Canceling []int64
	Voting    []int64
}

// IsCanceling reports whether a cancel for id is in flight
func (s ViewState) IsCanceling(id int64) bool {
	return containsID(s.Canceling, id)
}

// IsVoting reports whether a vote for id is in flight
func (s ViewState) IsVoting(id int64) bool {
	return containsID(s.Voting, id)
}

// Response converts the snapshot into the bridge API payload
func (s ViewState) Response() models.ViewResponse {
	views := make([]models.ProposalView, 0, len(s.Proposals))
	for _, p := range s.Proposals {
		views = append(views, models.NewProposalView(p))
	}
	return models.ViewResponse{
		Status:    string(s.Status),
		TripID:    s.TripID,
		Message:   s.Message,
		Proposals: views,
		Canceling: nonNil(s.Canceling),
		Voting:    nonNil(s.Voting),
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
