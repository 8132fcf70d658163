package models

import (
	"fmt"
	"time"
)

// Proposal status constants
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// Proposal represents a flight suggested for group consideration on a trip
type Proposal struct {
	ID                 int64     `json:"id"`
	FlightID           *int64    `json:"flightId,omitempty"`
	Airline            string    `json:"airline"`
	FlightNumber       string    `json:"flightNumber"`
	Departure          Airport   `json:"departure"`
	Arrival            Airport   `json:"arrival"`
	DepartAt           Timestamp `json:"departAt"`
	ArriveAt           Timestamp `json:"arriveAt"`
	PointsCost         *int      `json:"pointsCost,omitempty"`
	Proposer           string    `json:"proposer"`
	CanCancel          bool      `json:"canCancel"`
	Status             string    `json:"status"`
	Rankings           []Ranking `json:"rankings"`
	CurrentUserRanking *Ranking  `json:"currentUserRanking,omitempty"`
	AverageRanking     *float64  `json:"averageRanking,omitempty"`
}

// IsCanceled reports whether the proposal must be hidden from display lists
func (p Proposal) IsCanceled() bool {
	return p.Status == StatusCanceled
}

// RouteText returns the "DEP → ARR" line shown for the proposal
func (p Proposal) RouteText() string {
	dep, arr := p.Departure.Display(), p.Arrival.Display()
	switch {
	case dep == "" && arr == "":
		return ""
	case dep == "":
		return arr
	case arr == "":
		return dep
	}
	return dep + " → " + arr
}

// AverageDisplay formats the average ranking, "—" when nobody has ranked yet
func (p Proposal) AverageDisplay() string {
	if p.AverageRanking == nil {
		return "—"
	}
	return fmt.Sprintf("%.1f", *p.AverageRanking)
}

// Ranking is one user's preference vote on a proposal (1 = most preferred).
// A nil ID means the ranking has not been persisted remotely yet.
type Ranking struct {
	ID       *int64  `json:"id,omitempty"`
	Rank     int     `json:"rank"`
	UserID   *string `json:"userId,omitempty"`
	UserName *string `json:"userName,omitempty"`
}

// Persisted reports whether the server has assigned an ID
func (r Ranking) Persisted() bool {
	return r.ID != nil
}

// SameAs applies the ranking identity rule: IDs when both are set,
// otherwise the single pending local ranking with a matching rank.
func (r Ranking) SameAs(other Ranking) bool {
	if r.ID != nil && other.ID != nil {
		return *r.ID == *other.ID
	}
	return r.ID == nil && other.ID == nil && r.Rank == other.Rank
}

// Airport is a code+name pair as delivered by the server
type Airport struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
	// Value is the resolved display value (code when known)
	Value string `json:"value"`
}

// Display returns the resolved airport display value
func (a Airport) Display() string {
	return a.Value
}

// Timestamp keeps the raw server string next to the parsed time so the
// raw value can still be shown when parsing failed.
type Timestamp struct {
	Time *time.Time `json:"time,omitempty"`
	Raw  string     `json:"raw,omitempty"`
}

// Display returns the formatted time, or the raw string as a fallback
func (t Timestamp) Display() string {
	if t.Time != nil {
		return t.Time.Format("Jan 2, 15:04")
	}
	return t.Raw
}

// UserIdentity identifies the signed-in user
type UserIdentity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
