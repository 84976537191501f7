package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// DAOConfigStore persists the singleton DAO configuration.
type DAOConfigStore interface {
	// Create writes the config exactly once; a second call returns
	// ErrAlreadyInitialized.
	Create(ctx context.Context, cfg DAOConfig) error
	// Get returns the config or ErrNotInitialized.
	Get(ctx context.Context) (DAOConfig, error)
	Update(ctx context.Context, cfg DAOConfig) error
}

// TeamStore persists teams and the reverse membership index. Both structures
// are written by the same Create call so they can never diverge.
type TeamStore interface {
	// Create inserts the team and all membership rows. It returns
	// ErrTeamExists for a duplicate name and ErrAlreadyInTeam when any
	// member already belongs to a team.
	Create(ctx context.Context, team Team) error
	Get(ctx context.Context, name string) (Team, error)
	ListNames(ctx context.Context) ([]string, error)
	// AddStake increases the team's total stake.
	AddStake(ctx context.Context, name string, amount int64) error
	// MemberTeam returns the team name an address belongs to, or "" with a
	// nil error when the address has no team.
	MemberTeam(ctx context.Context, addr string) (string, error)
}

// StakeStore persists per-address stake totals.
type StakeStore interface {
	// Get returns the stake record or ErrNotFound.
	Get(ctx context.Context, addr string) (UserStake, error)
	// Add accumulates amount onto the address's total and records the
	// percentage used for this stake call.
	Add(ctx context.Context, addr, teamName string, amount int64, percentage int) error
}

// PredictionStore persists predictions and enforces the one-way lifecycle
// transitions at the storage layer.
type PredictionStore interface {
	// Create inserts an Open prediction; ErrPredictionExists on a reused id.
	Create(ctx context.Context, p Prediction) error
	Get(ctx context.Context, id string) (Prediction, error)
	// MarkResolved flips resolved and fixes the outcome; it fails with
	// ErrAlreadyResolved when the prediction is no longer Open.
	MarkResolved(ctx context.Context, id string, outcome bool, currentPrice, referencePrice int64, at time.Time) error
	// MarkDistributed records the one-time reward distribution; it fails
	// with ErrAlreadyDistributed on a replay and ErrNotResolved when the
	// prediction is still Open.
	MarkDistributed(ctx context.Context, id string, at time.Time) error
	// NextID returns a collision-free generated id from the monotonic
	// prediction counter.
	NextID(ctx context.Context) (string, error)
	ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]Prediction, error)
	ListSettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]Prediction, error)
	DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stores bundles every entity store bound to one transaction.
type Stores struct {
	DAO         DAOConfigStore
	Teams       TeamStore
	Stakes      StakeStore
	Predictions PredictionStore
	Audit       AuditStore
}

// TxRunner executes fn inside a single database transaction. The Stores
// passed to fn are bound to that transaction; any error aborts the whole
// unit of work, which is what gives every entry point its all-or-nothing
// guarantee.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
