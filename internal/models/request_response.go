package models

// Request models
type SubmitRankingRequest struct {
	Rank int `json:"rank" binding:"required,min=1"`
}

// RankingRequest is the body sent upstream when submitting a ranking
type RankingRequest struct {
	Rank int `json:"rank"`
}

// Response models
type ProposalView struct {
	Proposal
	Route         string `json:"route"`
	AverageText   string `json:"averageText"`
	DepartureText string `json:"departureText"`
	ArrivalText   string `json:"arrivalText"`
}

type ViewResponse struct {
	Status    string         `json:"status"`
	TripID    string         `json:"tripId"`
	Message   string         `json:"message,omitempty"`
	Proposals []ProposalView `json:"proposals"`
	Canceling []int64        `json:"canceling"`
	Voting    []int64        `json:"voting"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewProposalView adds the display strings a view needs
func NewProposalView(p Proposal) ProposalView {
	return ProposalView{
		Proposal:      p,
		Route:         p.RouteText(),
		AverageText:   p.AverageDisplay(),
		DepartureText: p.DepartAt.Display(),
		ArrivalText:   p.ArriveAt.Display(),
	}
}
