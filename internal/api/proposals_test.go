package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rongwang/tripsync/internal/api/testutils"
	"github.com/rongwang/tripsync/internal/gateway"
	"github.com/rongwang/tripsync/internal/gateway/gatewaytest"
	"github.com/rongwang/tripsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proposalsPath = "/api/trips/trip-1/proposals"

const twoFlights = `[
	{
		"id": 1,
		"flight": {"airline": "Air France", "flight_number": "AF22", "departure_airport_code": "CDG", "arrival_airport_code": "JFK"},
		"rankings": [{"id": 7, "rank": 3}],
		"can_cancel": true
	},
	{
		"id": 2,
		"airline": "KLM",
		"departure_code": "AMS",
		"arrival_code": "JFK",
		"rankings": [{"id": 8, "rank": 1}, {"id": 9, "rank": 2}],
		"current_user_ranking": {"id": 9, "rank": 2}
	}
]`

func decodeView(t *testing.T, body []byte) models.ViewResponse {
	t.Helper()
	var view models.ViewResponse
	require.NoError(t, json.Unmarshal(body, &view))
	return view
}

func decodeError(t *testing.T, body []byte) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func viewIDs(view models.ViewResponse) []int64 {
	out := make([]int64, 0, len(view.Proposals))
	for _, p := range view.Proposals {
		out = append(out, p.ID)
	}
	return out
}

// load performs the first GET so the trip's engine holds the list
func load(t *testing.T, testCtx *testutils.TestContext) models.ViewResponse {
	t.Helper()
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, proposalsPath, nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)
	return decodeView(t, w.Body.Bytes())
}

func TestHealth(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetProposals(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, twoFlights)...)

	// Test case 1: First request loads and ranks the list
	view := load(t, testCtx)

	assert.Equal(t, "loaded", view.Status)
	assert.Equal(t, "trip-1", view.TripID)
	assert.Equal(t, []int64{2, 1}, viewIDs(view))
	assert.Equal(t, "AMS → JFK", view.Proposals[0].Route)
	assert.Equal(t, "1.5", view.Proposals[0].AverageText)
	require.NotNil(t, view.Proposals[0].CurrentUserRanking)
	assert.Equal(t, 2, view.Proposals[0].CurrentUserRanking.Rank)
	assert.Equal(t, "CDG → JFK", view.Proposals[1].Route)
	assert.True(t, view.Proposals[1].CanCancel)
	assert.Empty(t, view.Canceling)
	assert.Empty(t, view.Voting)

	// Test case 2: Later requests are served from memory
	load(t, testCtx)
	assert.Equal(t, 1, testCtx.Gateway.Calls(gatewaytest.CallFetch))
}

func TestGetProposals_EmptyTrip(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	view := load(t, testCtx)

	assert.Equal(t, "empty", view.Status)
	assert.NotNil(t, view.Proposals)
	assert.Empty(t, view.Proposals)
}

func TestGetProposals_UpstreamFailure(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetFetchErr(gateway.Transport(errors.New("connection refused")))

	view := load(t, testCtx)

	assert.Equal(t, "error", view.Status)
	assert.Equal(t, "Unable to reach the server. Check your connection and try again.", view.Message)
}

func TestRefreshProposals(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, twoFlights)...)
	load(t, testCtx)

	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, `[{"id": 3, "airline": "BA"}]`)...)
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, proposalsPath+"/refresh", nil, testutils.AuthHeaders(testCtx.TestUserJWT))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3}, viewIDs(decodeView(t, w.Body.Bytes())))
	assert.Equal(t, 2, testCtx.Gateway.Calls(gatewaytest.CallFetch))
}

func TestSubmitRanking(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, twoFlights)...)
	load(t, testCtx)
	headers := testutils.AuthHeaders(testCtx.TestUserJWT)

	// Test case 1: Server confirms the new ranking
	testCtx.Gateway.SetSubmitResult(gatewaytest.DecodeRanking(t, `{"id": 55, "rank": 1}`), nil)
	w := testutils.PerformRequest(testCtx.Router, http.MethodPut, proposalsPath+"/1/ranking", models.SubmitRankingRequest{Rank: 1}, headers)

	require.Equal(t, http.StatusOK, w.Code)
	view := decodeView(t, w.Body.Bytes())
	assert.Equal(t, []int64{2, 1}, viewIDs(view))
	mine := view.Proposals[1].CurrentUserRanking
	require.NotNil(t, mine)
	require.NotNil(t, mine.ID)
	assert.Equal(t, int64(55), *mine.ID)
	assert.Equal(t, "2.0", view.Proposals[1].AverageText)

	// Test case 2: Rank below one
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, proposalsPath+"/1/ranking", models.SubmitRankingRequest{Rank: 0}, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w.Body.Bytes()).Code)

	// Test case 3: Malformed proposal id
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, proposalsPath+"/abc/ranking", models.SubmitRankingRequest{Rank: 1}, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 1, testCtx.Gateway.Calls(gatewaytest.CallSubmit))
}

func TestSubmitRanking_UpstreamFailureRollsBack(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, twoFlights)...)
	before := load(t, testCtx)
	headers := testutils.AuthHeaders(testCtx.TestUserJWT)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"server error", gateway.HTTPStatus(http.StatusInternalServerError, ""), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"session expired", gateway.Unauthorized(), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"offline", gateway.Transport(errors.New("timeout")), http.StatusServiceUnavailable, "TRANSPORT_FAILURE"},
		{"bad payload", gateway.Decoding(errors.New("unexpected")), http.StatusBadGateway, "DECODING_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testCtx.Gateway.SetSubmitResult(nil, tt.err)

			w := testutils.PerformRequest(testCtx.Router, http.MethodPut, proposalsPath+"/1/ranking", models.SubmitRankingRequest{Rank: 1}, headers)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w.Body.Bytes()).Code)
			assert.Equal(t, before, load(t, testCtx))
		})
	}
}

func TestClearRanking(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, twoFlights)...)
	load(t, testCtx)

	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, `[
		{"id": 1, "airline": "Air France", "rankings": [{"id": 7, "rank": 3}]},
		{"id": 2, "airline": "KLM", "rankings": [{"id": 8, "rank": 1}]}
	]`)...)
	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete, proposalsPath+"/2/ranking", nil, testutils.AuthHeaders(testCtx.TestUserJWT))

	require.Equal(t, http.StatusOK, w.Code)
	view := decodeView(t, w.Body.Bytes())
	assert.Equal(t, []int64{2, 1}, viewIDs(view))
	assert.Nil(t, view.Proposals[0].CurrentUserRanking)
	assert.Equal(t, "1.0", view.Proposals[0].AverageText)
	assert.Equal(t, 1, testCtx.Gateway.Calls(gatewaytest.CallDelete))
}

func TestCancelProposal(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, twoFlights)...)
	load(t, testCtx)
	headers := testutils.AuthHeaders(testCtx.TestUserJWT)

	// Test case 1: Upstream refuses
	testCtx.Gateway.SetCancelErr(gateway.HTTPStatus(http.StatusForbidden, "not yours"))
	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete, proposalsPath+"/1", nil, headers)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, []int64{2, 1}, viewIDs(load(t, testCtx)))

	// Test case 2: Cancellation succeeds
	testCtx.Gateway.SetCancelErr(nil)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, `[{"id": 2, "airline": "KLM"}]`)...)
	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, proposalsPath+"/1", nil, headers)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{2}, viewIDs(decodeView(t, w.Body.Bytes())))

	testCtx.Registry.For("trip-1").Wait()
	assert.Equal(t, 2, testCtx.Gateway.Calls(gatewaytest.CallFetch))
}

func TestStreamProposals(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	testCtx.Gateway.SetProposals(gatewaytest.Decode(t, twoFlights)...)

	server := httptest.NewServer(testCtx.Router)
	defer server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+proposalsPath+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testCtx.TestUserJWT)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}

	assert.Equal(t, "state", event)
	view := decodeView(t, []byte(data))
	assert.Equal(t, "loaded", view.Status)
	assert.Equal(t, []int64{2, 1}, viewIDs(view))
}
