// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rongwang/tripsync/internal/gateway"
	"github.com/rongwang/tripsync/internal/models"
	"github.com/stretchr/testify/require"
)

// Call names recorded by Fake
const (
	CallFetch     = "FetchProposals"
	CallFetchAll  = "FetchAllProposals"
	CallCancel    = "CancelProposal"
	CallSubmit    = "SubmitRanking"
	CallDelete    = "DeleteRanking"
	CallFetchUser = "FetchCurrentUser"
)

// Fake is a scriptable Gateway. Zero value returns empty results.
type Fake struct {
	mu sync.Mutex

	proposals    []models.RawProposal
	allProposals []models.RawProposal
	fetchErr     error
	fetchAllErr  error
	cancelErr    error
	submitResult *models.RawRanking
	submitErr    error
	deleteErr    error
	user         *models.UserIdentity
	userErr      error

	// BeforeSubmit runs inside SubmitRanking before it returns
	BeforeSubmit func(proposalID int64, rank int)

	calls map[string]int
}

var _ gateway.Gateway = (*Fake)(nil)

// New creates a fake serving proposals from the flight endpoint
func New(proposals ...models.RawProposal) *Fake {
	return &Fake{proposals: proposals, calls: make(map[string]int)}
}

func (f *Fake) SetProposals(proposals ...models.RawProposal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proposals = proposals
}

func (f *Fake) SetAllProposals(proposals ...models.RawProposal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allProposals = proposals
}

func (f *Fake) SetFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *Fake) SetFetchAllErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchAllErr = err
}

func (f *Fake) SetCancelErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelErr = err
}

func (f *Fake) SetSubmitResult(r *models.RawRanking, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitResult, f.submitErr = r, err
}

func (f *Fake) SetDeleteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

func (f *Fake) SetUser(user *models.UserIdentity, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user, f.userErr = user, err
}

// Calls returns how often the named method was invoked
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *Fake) record(name string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *Fake) FetchProposals(ctx context.Context, tripID string) ([]models.RawProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallFetch)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]models.RawProposal(nil), f.proposals...), nil
}

func (f *Fake) FetchAllProposals(ctx context.Context, tripID string) ([]models.RawProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallFetchAll)
	if f.fetchAllErr != nil {
		return nil, f.fetchAllErr
	}
	return append([]models.RawProposal(nil), f.allProposals...), nil
}

func (f *Fake) CancelProposal(ctx context.Context, proposalID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallCancel)
	return f.cancelErr
}

func (f *Fake) SubmitRanking(ctx context.Context, proposalID int64, rank int) (*models.RawRanking, error) {
	f.mu.Lock()
	f.record(CallSubmit)
	hook := f.BeforeSubmit
	result, err := f.submitResult, f.submitErr
	f.mu.Unlock()

	if hook != nil {
		hook(proposalID, rank)
	}
	return result, err
}

func (f *Fake) DeleteRanking(ctx context.Context, proposalID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallDelete)
	return f.deleteErr
}

func (f *Fake) FetchCurrentUser(ctx context.Context) (*models.UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(CallFetchUser)
	return f.user, f.userErr
}

// Decode parses a JSON array of proposal payloads
func Decode(t testing.TB, body string) []models.RawProposal {
	t.Helper()
	var list []models.RawProposal
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	return list
}

// DecodeRanking parses a single ranking payload
func DecodeRanking(t testing.TB, body string) *models.RawRanking {
	t.Helper()
	var r models.RawRanking
	require.NoError(t, json.Unmarshal([]byte(body), &r))
	return &r
}
