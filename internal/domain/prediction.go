package domain

import "time"

// Prediction is a directional bet that an asset's price will rise (or fall),
// tied to a team and a stake. Its lifecycle is a one-way state machine:
// Open -> Resolved, then at most one reward distribution.
type Prediction struct {
	ID              string
	TeamName        string
	Asset           string
	Direction       bool // true = price will rise
	StakeAmount     int64
	StakePercentage int
	Predictor       string
	CreatedAt       time.Time // service clock, never client-supplied

	Resolved   bool
	Outcome    *bool // nil until resolved, then fixed forever
	ResolvedAt *time.Time

	// Oracle snapshot recorded at resolution for auditability.
	CurrentPrice   *int64
	ReferencePrice *int64

	Distributed   bool
	DistributedAt *time.Time
}

// Settled reports whether the prediction has completed its full lifecycle
// (resolved and rewards distributed) and is eligible for archival.
func (p Prediction) Settled() bool {
	return p.Resolved && p.Distributed
}
