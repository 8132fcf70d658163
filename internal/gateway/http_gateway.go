package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/tripsync/internal/models"
)

const maxErrorMessageLen = 200

// HTTPGateway implements Gateway against the trips REST API
type HTTPGateway struct {
	httpClient *http.Client
	baseURL    string
	token      string
	now        func() time.Time
}

// NewHTTPGateway creates a gateway for baseURL authenticated with a bearer
// session token. A zero timeout leaves requests unbounded.
func NewHTTPGateway(baseURL, sessionToken string, timeout time.Duration) (*HTTPGateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, Configuration("base URL is not set")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, Configuration(fmt.Sprintf("invalid base URL %q", baseURL))
	}

	return &HTTPGateway{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      sessionToken,
		now:        time.Now,
	}, nil
}

// FetchProposals handles GET /trips/{tripId}/flight-proposals
func (g *HTTPGateway) FetchProposals(ctx context.Context, tripID string) ([]models.RawProposal, error) {
	body, _, err := g.do(ctx, http.MethodGet, "/trips/"+url.PathEscape(tripID)+"/flight-proposals", nil)
	if err != nil {
		return nil, err
	}
	return decodeProposals(body)
}

// FetchAllProposals handles GET /trips/{tripId}/proposals
func (g *HTTPGateway) FetchAllProposals(ctx context.Context, tripID string) ([]models.RawProposal, error) {
	body, _, err := g.do(ctx, http.MethodGet, "/trips/"+url.PathEscape(tripID)+"/proposals", nil)
	if err != nil {
		return nil, err
	}
	return decodeProposals(body)
}

// CancelProposal handles DELETE /proposals/{id}
func (g *HTTPGateway) CancelProposal(ctx context.Context, proposalID int64) error {
	_, _, err := g.do(ctx, http.MethodDelete, proposalPath(proposalID), nil)
	return err
}

// SubmitRanking handles POST /proposals/{id}/rankings
func (g *HTTPGateway) SubmitRanking(ctx context.Context, proposalID int64, rank int) (*models.RawRanking, error) {
	body, status, err := g.do(ctx, http.MethodPost, proposalPath(proposalID)+"/rankings", models.RankingRequest{Rank: rank})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return decodeRanking(body)
}

// DeleteRanking handles DELETE /proposals/{id}/rankings
func (g *HTTPGateway) DeleteRanking(ctx context.Context, proposalID int64) error {
	_, _, err := g.do(ctx, http.MethodDelete, proposalPath(proposalID)+"/rankings", nil)
	return err
}

// FetchCurrentUser handles GET /users/me. When the endpoint fails the
// identity is read from the session token claims if it carries any.
func (g *HTTPGateway) FetchCurrentUser(ctx context.Context) (*models.UserIdentity, error) {
	body, _, err := g.do(ctx, http.MethodGet, "/users/me", nil)
	if err == nil {
		var user *models.UserIdentity
		user, err = decodeUser(body)
		if err == nil {
			return user, nil
		}
	}

	if user := g.identityFromToken(); user != nil {
		return user, nil
	}
	return nil, err
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	if err := g.checkSession(); err != nil {
		return nil, 0, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, Configuration(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, Transport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, Transport(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, Unauthorized()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, HTTPStatus(resp.StatusCode, errorMessage(body))
	}

	return body, resp.StatusCode, nil
}

// checkSession fails fast when the session token is a JWT that has expired.
// Opaque tokens are sent as-is and left to the server.
func (g *HTTPGateway) checkSession() error {
	claims := g.tokenClaims()
	if claims == nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Time.Before(g.now()) {
		return Unauthorized()
	}
	return nil
}

func (g *HTTPGateway) tokenClaims() jwt.MapClaims {
	if g.token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(g.token, claims); err != nil {
		return nil
	}
	return claims
}

func (g *HTTPGateway) identityFromToken() *models.UserIdentity {
	claims := g.tokenClaims()
	if claims == nil {
		return nil
	}

	user := &models.UserIdentity{
		ID:    claimString(claims, "sub"),
		Email: claimString(claims, "email"),
	}
	user.Username = claimString(claims, "preferred_username")
	if user.Username == "" {
		user.Username = claimString(claims, "username")
	}
	if user.Email == "" && user.Username == "" {
		return nil
	}
	return user
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func proposalPath(id int64) string {
	return "/proposals/" + strconv.FormatInt(id, 10)
}

func decodeProposals(body []byte) ([]models.RawProposal, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, Decoding(errors.New("empty response body"))
	}

	if body[0] == '[' {
		var list []models.RawProposal
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, Decoding(err)
		}
		return list, nil
	}

	var envelope struct {
		Proposals       *[]models.RawProposal `json:"proposals"`
		FlightProposals *[]models.RawProposal `json:"flight_proposals"`
		Data            *[]models.RawProposal `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, Decoding(err)
	}
	for _, list := range []*[]models.RawProposal{envelope.Proposals, envelope.FlightProposals, envelope.Data} {
		if list != nil {
			return *list, nil
		}
	}
	return nil, Decoding(errors.New("response has no proposals list"))
}

func decodeRanking(body []byte) (*models.RawRanking, error) {
	var envelope struct {
		Ranking *models.RawRanking `json:"ranking"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, Decoding(err)
	}
	if envelope.Ranking != nil {
		return persisted(envelope.Ranking), nil
	}

	var r models.RawRanking
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, Decoding(err)
	}
	return persisted(&r), nil
}

// persisted drops echoes that carry no server identity
func persisted(r *models.RawRanking) *models.RawRanking {
	if r == nil || r.ID == nil {
		return nil
	}
	return r
}

func decodeUser(body []byte) (*models.UserIdentity, error) {
	var envelope struct {
		User *models.RawUser `json:"user"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, Decoding(err)
	}

	raw := envelope.User
	if raw == nil {
		raw = &models.RawUser{}
		if err := json.Unmarshal(body, raw); err != nil {
			return nil, Decoding(err)
		}
	}

	return &models.UserIdentity{
		ID:       raw.ID.String(),
		Email:    strings.TrimSpace(raw.Email),
		Username: strings.TrimSpace(raw.Username),
	}, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
