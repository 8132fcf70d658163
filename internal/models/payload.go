package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Server payloads come in several shapes: flight fields may be nested under
// "flight" or flat with snake_case or camelCase names. Every known alias is
// decoded into its own field and resolved later by the normalize package.

// RawProposal is a proposal exactly as the trips API returns it
type RawProposal struct {
	ID            FlexInt    `json:"id"`
	FlightID      *FlexInt   `json:"flight_id"`
	FlightIDCamel *FlexInt   `json:"flightId"`
	Flight        *RawFlight `json:"flight"`

	Airline           *string `json:"airline"`
	AirlineName       *string `json:"airline_name"`
	AirlineNameCamel  *string `json:"airlineName"`
	Carrier           *string `json:"carrier"`
	FlightNumber      *string `json:"flight_number"`
	FlightNumberCamel *string `json:"flightNumber"`

	DepartureAirportCode *string `json:"departure_airport_code"`
	DepartureCode        *string `json:"departure_code"`
	OriginCode           *string `json:"origin_code"`
	DepartureAirport     *string `json:"departure_airport"`
	DepartureAirportName *string `json:"departure_airport_name"`
	Origin               *string `json:"origin"`

	ArrivalAirportCode *string `json:"arrival_airport_code"`
	ArrivalCode        *string `json:"arrival_code"`
	DestinationCode    *string `json:"destination_code"`
	ArrivalAirport     *string `json:"arrival_airport"`
	ArrivalAirportName *string `json:"arrival_airport_name"`
	Destination        *string `json:"destination"`

	DepartureTime *string `json:"departure_time"`
	DepartAt      *string `json:"depart_at"`
	DepartAtCamel *string `json:"departAt"`
	DepartureDate *string `json:"departure_date"`
	ArrivalTime   *string `json:"arrival_time"`
	ArriveAt      *string `json:"arrive_at"`
	ArriveAtCamel *string `json:"arriveAt"`
	ArrivalDate   *string `json:"arrival_date"`

	PointsCost      *FlexInt `json:"points_cost"`
	PointsCostCamel *FlexInt `json:"pointsCost"`
	Points          *FlexInt `json:"points"`

	Proposer        *RawProfile `json:"proposer"`
	ProposedByUser  *RawProfile `json:"proposed_by_user"`
	ProposedBy      *FlexString `json:"proposed_by"`
	ProposedByCamel *FlexString `json:"proposedBy"`
	ProposerName    *string     `json:"proposer_name"`

	CanCancel      *bool           `json:"can_cancel"`
	CanCancelCamel *bool           `json:"canCancel"`
	Permissions    *RawPermissions `json:"permissions"`

	Status *string `json:"status"`

	Rankings           []RawRanking `json:"rankings"`
	CurrentUserRanking *RawRanking  `json:"current_user_ranking"`
	UserRanking        *RawRanking  `json:"user_ranking"`
	MyRanking          *RawRanking  `json:"my_ranking"`

	AverageRanking      *float64 `json:"average_ranking"`
	AverageRankingCamel *float64 `json:"averageRanking"`
	AvgRanking          *float64 `json:"avg_ranking"`
}

// RawFlight is the nested flight object some endpoints embed
type RawFlight struct {
	ID                   *FlexInt `json:"id"`
	Airline              *string  `json:"airline"`
	AirlineName          *string  `json:"airline_name"`
	FlightNumber         *string  `json:"flight_number"`
	DepartureAirportCode *string  `json:"departure_airport_code"`
	DepartureAirport     *string  `json:"departure_airport"`
	ArrivalAirportCode   *string  `json:"arrival_airport_code"`
	ArrivalAirport       *string  `json:"arrival_airport"`
	DepartureTime        *string  `json:"departure_time"`
	ArrivalTime          *string  `json:"arrival_time"`
	PointsCost           *FlexInt `json:"points_cost"`
}

// RawPermissions carries server-side capability flags
type RawPermissions struct {
	CanCancel *bool `json:"can_cancel"`
}

// RawRanking is a ranking as the server encodes it
type RawRanking struct {
	ID            *FlexInt    `json:"id"`
	Rank          FlexInt     `json:"rank"`
	UserID        *FlexString `json:"user_id"`
	UserIDCamel   *FlexString `json:"userId"`
	UserName      *string     `json:"user_name"`
	UserNameCamel *string     `json:"userName"`
}

// RawProfile is the proposer, either a structured profile or a bare string
type RawProfile struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	// Text is set when the server sent a plain string instead of an object
	Text string `json:"-"`
}

// UnmarshalJSON accepts either a profile object or a plain string
func (p *RawProfile) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Text)
	}
	type plain RawProfile
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = RawProfile(v)
	return nil
}

// RawUser is the body of the current-user endpoint
type RawUser struct {
	ID       FlexString `json:"id"`
	Email    string     `json:"email"`
	Username string     `json:"username"`
}

// FlexInt decodes integers sent either as JSON numbers or numeric strings
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = FlexInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return fmt.Errorf("invalid integer value %s", string(data))
	}
	*n = FlexInt(f)
	return nil
}

// Int64 returns the decoded value
func (n FlexInt) Int64() int64 {
	return int64(n)
}

// FlexString decodes identifiers sent either as strings or numbers
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (s *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("invalid identifier value %s", raw)
	}
	*s = FlexString(num.String())
	return nil
}

// String returns the decoded value
func (s FlexString) String() string {
	return string(s)
}
