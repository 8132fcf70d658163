// Package gateway talks to the remote trips API. The Gateway interface is
// what the reconciliation engine depends on; HTTPGateway is the production
// implementation.
package gateway

import (
	"context"

	"github.com/rongwang/tripsync/internal/models"
)

// Gateway defines the remote proposal operations.
// Every method returns a *Error on failure.
type Gateway interface {
	// FetchProposals lists the flight proposals of a trip
	FetchProposals(ctx context.Context, tripID string) ([]models.RawProposal, error)
	// FetchAllProposals lists every proposal of a trip, flight or not
	FetchAllProposals(ctx context.Context, tripID string) ([]models.RawProposal, error)

	CancelProposal(ctx context.Context, proposalID int64) error

	// SubmitRanking returns the persisted ranking, or nil when the server
	// did not echo it back
	SubmitRanking(ctx context.Context, proposalID int64, rank int) (*models.RawRanking, error)
	DeleteRanking(ctx context.Context, proposalID int64) error

	FetchCurrentUser(ctx context.Context) (*models.UserIdentity, error)
}
