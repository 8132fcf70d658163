package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/rongwang/tripsync/internal/gateway"
	"github.com/rongwang/tripsync/internal/models"
	"github.com/rongwang/tripsync/internal/normalize"
	"github.com/rongwang/tripsync/internal/ranking"
)

// ErrInvalidRank is returned when a vote carries a rank below 1
var ErrInvalidRank = errors.New("rank must be a positive integer")

// Service defines the operations a trip's proposals view performs
type Service interface {
	// Loading
	Refresh(ctx context.Context) error
	EnsureLoaded(ctx context.Context) error

	// Mutations
	Cancel(ctx context.Context, proposalID int64) error
	Vote(ctx context.Context, proposalID int64, rank *int) error

	// View state
	State() ViewState
	Subscribe() (<-chan ViewState, func())
}

// Engine owns the canonical proposal list of one trip and reconciles
// optimistic local edits with the remote API.
//
// Every change to the list happens under mu; network calls never hold it.
// Concurrent operations on different proposals may overlap, each with its
// own rollback snapshot of the whole list.
type Engine struct {
	gw     gateway.Gateway
	tripID string
	logger *slog.Logger

	mu          sync.Mutex
	proposals   []models.Proposal
	status      ViewStatus
	message     string
	canceling   map[int64]struct{}
	voting      map[int64]struct{}
	currentUser *models.UserIdentity
	started     bool
	closed      bool
	subs        map[int]chan ViewState
	nextSub     int

	background sync.WaitGroup
}

var _ Service = (*Engine)(nil)

// NewEngine creates the engine for tripID. A nil gateway is allowed; every
// operation then fails with a configuration error.
func NewEngine(gw gateway.Gateway, tripID string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gw:        gw,
		tripID:    tripID,
		logger:    logger.With("trip_id", tripID),
		status:    StatusLoading,
		canceling: make(map[int64]struct{}),
		voting:    make(map[int64]struct{}),
		subs:      make(map[int]chan ViewState),
	}
}

// Refresh re-fetches the proposals, moving the view through Loading
func (e *Engine) Refresh(ctx context.Context) error {
	return e.reload(ctx, true)
}

// EnsureLoaded refreshes only if no fetch has been started yet
func (e *Engine) EnsureLoaded(ctx context.Context) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()

	if started {
		return nil
	}
	return e.Refresh(ctx)
}

// Cancel cancels a proposal remotely and removes it from the list on success
func (e *Engine) Cancel(ctx context.Context, proposalID int64) error {
	if e.gw == nil {
		return gateway.Configuration("gateway is not available")
	}

	e.mu.Lock()
	if _, busy := e.canceling[proposalID]; busy {
		e.mu.Unlock()
		e.logger.Debug("cancel already in flight", "proposal_id", proposalID)
		return nil
	}
	e.canceling[proposalID] = struct{}{}
	e.notifyLocked()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.canceling, proposalID)
		e.notifyLocked()
		e.mu.Unlock()
	}()

	if err := e.gw.CancelProposal(ctx, proposalID); err != nil {
		e.logger.Warn("cancel proposal failed", "proposal_id", proposalID, "error", err)
		return err
	}

	e.mu.Lock()
	if !e.closed {
		e.proposals = removeProposal(e.proposals, proposalID)
		e.status = listStatus(e.proposals)
		e.notifyLocked()
	}
	e.mu.Unlock()

	e.logger.Info("proposal canceled", "proposal_id", proposalID)

	// Pick up server-side side effects of the cancellation
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		_ = e.reload(context.WithoutCancel(ctx), false)
	}()

	return nil
}

// Vote sets (rank != nil) or clears (rank == nil) the current user's
// ranking on a proposal. The edit is applied locally first and rolled back
// if the remote call fails.
func (e *Engine) Vote(ctx context.Context, proposalID int64, rank *int) error {
	if rank != nil && *rank < 1 {
		return ErrInvalidRank
	}
	if e.gw == nil {
		return gateway.Configuration("gateway is not available")
	}

	e.mu.Lock()
	idx := indexOf(e.proposals, proposalID)
	if idx < 0 {
		e.mu.Unlock()
		e.logger.Debug("vote target no longer listed", "proposal_id", proposalID)
		return nil
	}
	if _, busy := e.voting[proposalID]; busy {
		e.mu.Unlock()
		e.logger.Debug("vote already in flight", "proposal_id", proposalID)
		return nil
	}

	snapshot := cloneProposals(e.proposals)
	before := e.proposals[idx]
	e.proposals = replaceProposal(e.proposals, idx, ranking.ApplyLocalChange(before, rank))
	e.voting[proposalID] = struct{}{}
	e.notifyLocked()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.voting, proposalID)
		e.notifyLocked()
		e.mu.Unlock()
	}()

	switch {
	case rank != nil:
		raw, err := e.gw.SubmitRanking(ctx, proposalID, *rank)
		if err != nil {
			e.rollback(snapshot, proposalID, err)
			return err
		}
		if raw != nil {
			e.confirm(proposalID, normalize.Ranking(*raw))
			return nil
		}
		// Without the server's ranking identity the optimistic entry
		// cannot be reconciled precisely
		_ = e.reload(context.WithoutCancel(ctx), false)

	case before.CurrentUserRanking != nil:
		if err := e.gw.DeleteRanking(ctx, proposalID); err != nil {
			e.rollback(snapshot, proposalID, err)
			return err
		}
		_ = e.reload(context.WithoutCancel(ctx), false)
	}

	return nil
}

// State returns the current view snapshot
func (e *Engine) State() ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest view state.
// Slow readers only ever miss intermediate states. The returned function
// unsubscribes and closes the channel.
func (e *Engine) Subscribe() (<-chan ViewState, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan ViewState, 1)
	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextSub
	e.nextSub++
	ch <- e.snapshotLocked()
	e.subs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

// Wait blocks until background refreshes have finished
func (e *Engine) Wait() {
	e.background.Wait()
}

// Close tears the view down. Responses that arrive afterwards are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

func (e *Engine) reload(ctx context.Context, showLoading bool) error {
	if e.gw == nil {
		err := gateway.Configuration("gateway is not available")
		e.fail(err)
		return err
	}

	e.mu.Lock()
	e.started = true
	if showLoading && !e.closed {
		e.status = StatusLoading
		e.message = ""
		e.notifyLocked()
	}
	e.mu.Unlock()

	user := e.resolveUser(ctx)

	raws, err := e.fetch(ctx)
	if err != nil {
		e.fail(err)
		return err
	}

	list := Project(normalize.Proposals(raws, user))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.proposals = list
	e.status = listStatus(list)
	e.message = ""
	e.notifyLocked()

	e.logger.Debug("proposals loaded", "count", len(list))
	return nil
}

// fetch uses the flight endpoint and falls back to the generic list when
// the server does not offer it.
func (e *Engine) fetch(ctx context.Context) ([]models.RawProposal, error) {
	raws, err := e.gw.FetchProposals(ctx, e.tripID)
	if err == nil {
		return raws, nil
	}

	code := gateway.StatusCodeOf(err)
	if code != http.StatusNotFound && code != http.StatusMethodNotAllowed {
		return nil, err
	}

	e.logger.Info("flight proposals endpoint unavailable, using generic list", "status", code)
	all, err := e.gw.FetchAllProposals(ctx, e.tripID)
	if err != nil {
		return nil, err
	}

	flights := make([]models.RawProposal, 0, len(all))
	for _, raw := range all {
		if normalize.IsFlightProposal(raw) {
			flights = append(flights, raw)
		}
	}
	return flights, nil
}

// resolveUser returns the current user, fetching it until it is known
func (e *Engine) resolveUser(ctx context.Context) *models.UserIdentity {
	e.mu.Lock()
	user := e.currentUser
	e.mu.Unlock()
	if user != nil {
		return user
	}

	user, err := e.gw.FetchCurrentUser(ctx)
	if err != nil {
		e.logger.Warn("current user unavailable", "error", err)
		return nil
	}

	e.mu.Lock()
	e.currentUser = user
	e.mu.Unlock()
	return user
}

func (e *Engine) confirm(proposalID int64, server models.Ranking) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	idx := indexOf(e.proposals, proposalID)
	if idx < 0 {
		e.logger.Debug("dropping confirmed ranking for unlisted proposal", "proposal_id", proposalID)
		return
	}
	e.proposals = replaceProposal(e.proposals, idx, ranking.ReconcileServerRanking(e.proposals[idx], server))
	e.notifyLocked()
}

func (e *Engine) rollback(snapshot []models.Proposal, proposalID int64, cause error) {
	e.logger.Warn("vote failed, rolling back", "proposal_id", proposalID, "error", cause)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.proposals = snapshot
	e.notifyLocked()
}

func (e *Engine) fail(err error) {
	if kind, _ := gateway.KindOf(err); kind == gateway.KindDecoding {
		e.logger.Error("proposals payload did not match any known shape", "error", err)
	} else {
		e.logger.Warn("loading proposals failed", "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.status = StatusError
	e.message = gateway.UserMessage(err)
	e.notifyLocked()
}

func (e *Engine) snapshotLocked() ViewState {
	return ViewState{
		Status:    e.status,
		TripID:    e.tripID,
		Proposals: cloneProposals(e.proposals),
		Message:   e.message,
		Canceling: sortedIDs(e.canceling),
		Voting:    sortedIDs(e.voting),
	}
}

// notifyLocked pushes the latest state, replacing any unread one
func (e *Engine) notifyLocked() {
	if len(e.subs) == 0 {
		return
	}
	state := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

func listStatus(list []models.Proposal) ViewStatus {
	if len(list) == 0 {
		return StatusEmpty
	}
	return StatusLoaded
}

func indexOf(list []models.Proposal, id int64) int {
	for i, p := range list {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func cloneProposals(list []models.Proposal) []models.Proposal {
	if list == nil {
		return nil
	}
	out := make([]models.Proposal, len(list))
	copy(out, list)
	return out
}

func replaceProposal(list []models.Proposal, idx int, p models.Proposal) []models.Proposal {
	out := cloneProposals(list)
	out[idx] = p
	return Project(out)
}

func removeProposal(list []models.Proposal, id int64) []models.Proposal {
	out := make([]models.Proposal, 0, len(list))
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
