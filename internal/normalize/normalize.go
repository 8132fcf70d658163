// Package normalize turns the heterogeneous proposal payloads of the trips
// API into canonical models.Proposal values.
//
// Each logical field is resolved from a fixed list of aliases in priority
// order; the first present value that is non-empty after trimming wins.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rongwang/tripsync/internal/models"
	"github.com/rongwang/tripsync/internal/ranking"
)

// YouLabel replaces the proposer name when the proposer is the current user
const YouLabel = "you"

var (
	parenCodePattern = regexp.MustCompile(`\(([A-Za-z]{3})\)`)
	hexPattern       = regexp.MustCompile(`^[0-9a-fA-F]{32,}$`)
	digitsPattern    = regexp.MustCompile(`^[0-9]+$`)
)

var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339}

// Proposals normalizes a list and drops canceled proposals
func Proposals(raws []models.RawProposal, currentUser *models.UserIdentity) []models.Proposal {
	out := make([]models.Proposal, 0, len(raws))
	for _, raw := range raws {
		p := Proposal(raw, currentUser)
		if p.IsCanceled() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Proposal builds the canonical proposal for one payload
func Proposal(raw models.RawProposal, currentUser *models.UserIdentity) models.Proposal {
	f := raw.Flight
	if f == nil {
		f = &models.RawFlight{}
	}

	p := models.Proposal{
		ID:           raw.ID.Int64(),
		FlightID:     firstInt(f.ID, raw.FlightID, raw.FlightIDCamel),
		Airline:      first(f.Airline, f.AirlineName, raw.Airline, raw.AirlineName, raw.AirlineNameCamel, raw.Carrier),
		FlightNumber: first(f.FlightNumber, raw.FlightNumber, raw.FlightNumberCamel),
		Departure: Airport(
			first(f.DepartureAirportCode, raw.DepartureAirportCode, raw.DepartureCode, raw.OriginCode),
			first(f.DepartureAirport, raw.DepartureAirport, raw.DepartureAirportName, raw.Origin),
		),
		Arrival: Airport(
			first(f.ArrivalAirportCode, raw.ArrivalAirportCode, raw.ArrivalCode, raw.DestinationCode),
			first(f.ArrivalAirport, raw.ArrivalAirport, raw.ArrivalAirportName, raw.Destination),
		),
		DepartAt:  ParseTimestamp(first(f.DepartureTime, raw.DepartureTime, raw.DepartAt, raw.DepartAtCamel, raw.DepartureDate)),
		ArriveAt:  ParseTimestamp(first(f.ArrivalTime, raw.ArrivalTime, raw.ArriveAt, raw.ArriveAtCamel, raw.ArrivalDate)),
		CanCancel: canCancel(raw),
		Status:    Status(raw.Status),
	}

	if cost := firstInt(f.PointsCost, raw.PointsCost, raw.PointsCostCamel, raw.Points); cost != nil {
		v := int(*cost)
		p.PointsCost = &v
	}

	profile := raw.Proposer
	if profile == nil || profile.Text != "" {
		profile = raw.ProposedByUser
	}
	rawProposer := first(flex(raw.ProposedBy), flex(raw.ProposedByCamel), raw.ProposerName)
	if rawProposer == "" && raw.Proposer != nil {
		rawProposer = strings.TrimSpace(raw.Proposer.Text)
	}
	p.Proposer = ProposerName(profile, rawProposer, currentUser)

	p.Rankings = make([]models.Ranking, 0, len(raw.Rankings))
	for _, r := range raw.Rankings {
		p.Rankings = append(p.Rankings, Ranking(r))
	}
	p.CurrentUserRanking = currentRanking(raw, p.Rankings, currentUser)
	if p.CurrentUserRanking != nil && !containsRanking(p.Rankings, *p.CurrentUserRanking) {
		p.Rankings = append(p.Rankings, *p.CurrentUserRanking)
	}

	if avg := firstFloat(raw.AverageRanking, raw.AverageRankingCamel, raw.AvgRanking); avg != nil {
		p.AverageRanking = avg
	} else {
		p.AverageRanking = ranking.ComputeAverage(p.Rankings)
	}

	return p
}

// Ranking converts a ranking payload
func Ranking(raw models.RawRanking) models.Ranking {
	r := models.Ranking{Rank: int(raw.Rank.Int64())}
	if raw.ID != nil {
		id := raw.ID.Int64()
		r.ID = &id
	}
	if uid := first(flex(raw.UserID), flex(raw.UserIDCamel)); uid != "" {
		r.UserID = &uid
	}
	if name := first(raw.UserName, raw.UserNameCamel); name != "" {
		r.UserName = &name
	}
	return r
}

// IsFlightProposal reports whether a generic proposal carries flight data.
// Used to filter the generic proposals list when the flight-specific
// endpoint is unavailable.
func IsFlightProposal(raw models.RawProposal) bool {
	if raw.FlightID != nil || raw.FlightIDCamel != nil {
		return true
	}
	f := raw.Flight
	if f == nil {
		f = &models.RawFlight{}
	}
	if f.ID != nil {
		return true
	}
	fields := []string{
		first(f.Airline, f.AirlineName, raw.Airline, raw.AirlineName, raw.AirlineNameCamel, raw.Carrier),
		first(f.FlightNumber, raw.FlightNumber, raw.FlightNumberCamel),
		first(f.DepartureAirportCode, raw.DepartureAirportCode, raw.DepartureCode, raw.OriginCode),
		first(f.ArrivalAirportCode, raw.ArrivalAirportCode, raw.ArrivalCode, raw.DestinationCode),
		first(f.DepartureAirport, raw.DepartureAirport, raw.DepartureAirportName, raw.Origin),
		first(f.ArrivalAirport, raw.ArrivalAirport, raw.ArrivalAirportName, raw.Destination),
	}
	for _, v := range fields {
		if v != "" {
			return true
		}
	}
	return false
}

// Status maps the server status onto active/canceled
func Status(raw *string) string {
	if raw == nil {
		return models.StatusActive
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "canceled", "cancelled":
		return models.StatusCanceled
	}
	return models.StatusActive
}

// Airport resolves the display value: 3-letter code, else a parenthesized
// code inside the name, else the name itself.
func Airport(code, name string) models.Airport {
	a := models.Airport{Code: code, Name: name}
	switch {
	case len(code) == 3:
		a.Value = strings.ToUpper(code)
	case parenCodePattern.MatchString(name):
		a.Value = strings.ToUpper(parenCodePattern.FindStringSubmatch(name)[1])
	default:
		a.Value = name
	}
	return a
}

// ParseTimestamp parses ISO-8601 with fractional seconds, then without.
// The raw string is kept either way.
func ParseTimestamp(raw string) models.Timestamp {
	ts := models.Timestamp{Raw: raw}
	if raw == "" {
		return ts
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = &t
			break
		}
	}
	return ts
}

// ProposerName resolves who proposed the flight. Structured profiles win;
// the raw string is only used when it is not an internal identifier.
func ProposerName(profile *models.RawProfile, raw string, currentUser *models.UserIdentity) string {
	var name string
	var handles []string

	if profile != nil {
		full := strings.TrimSpace(strings.Join(nonEmpty(first(profile.FirstName), first(profile.LastName)), " "))
		username := first(profile.Username)
		email := first(profile.Email)
		handles = append(handles, username, email)
		switch {
		case full != "":
			name = full
		case username != "":
			name = username
		case email != "":
			name = email
		}
	}

	raw = strings.TrimSpace(raw)
	handles = append(handles, raw)
	if name == "" && !LooksLikeIdentifier(raw) {
		name = raw
	}

	if currentUser != nil && matchesUser(handles, currentUser) {
		return YouLabel
	}
	return name
}

// LooksLikeIdentifier reports values that are internal ids rather than
// presentable names.
func LooksLikeIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if digitsPattern.MatchString(s) || strings.Contains(s, "|") || strings.HasPrefix(s, "user_") {
		return true
	}
	if hexPattern.MatchString(s) {
		return true
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func matchesUser(handles []string, user *models.UserIdentity) bool {
	for _, h := range handles {
		if h == "" {
			continue
		}
		if user.Email != "" && strings.EqualFold(h, user.Email) {
			return true
		}
		if user.Username != "" && strings.EqualFold(h, user.Username) {
			return true
		}
	}
	return false
}

func currentRanking(raw models.RawProposal, rankings []models.Ranking, currentUser *models.UserIdentity) *models.Ranking {
	for _, candidate := range []*models.RawRanking{raw.CurrentUserRanking, raw.UserRanking, raw.MyRanking} {
		if candidate != nil {
			r := Ranking(*candidate)
			return &r
		}
	}
	if currentUser == nil || currentUser.ID == "" {
		return nil
	}
	for _, r := range rankings {
		if r.UserID != nil && *r.UserID == currentUser.ID {
			found := r
			return &found
		}
	}
	return nil
}

func containsRanking(rankings []models.Ranking, target models.Ranking) bool {
	for _, r := range rankings {
		if r.SameAs(target) {
			return true
		}
	}
	return false
}

func canCancel(raw models.RawProposal) bool {
	switch {
	case raw.CanCancel != nil:
		return *raw.CanCancel
	case raw.CanCancelCamel != nil:
		return *raw.CanCancelCamel
	case raw.Permissions != nil && raw.Permissions.CanCancel != nil:
		return *raw.Permissions.CanCancel
	}
	return false
}

// first returns the first value that is non-empty after trimming
func first(values ...*string) string {
	for _, v := range values {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(values ...*models.FlexInt) *int64 {
	for _, v := range values {
		if v != nil {
			n := v.Int64()
			return &n
		}
	}
	return nil
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			f := *v
			return &f
		}
	}
	return nil
}

func flex(v *models.FlexString) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
