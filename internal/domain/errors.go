package domain

import "errors"

// Sentinel errors for the DAO core. Callers branch on these with errors.Is;
// the discriminant survives wrapping all the way to the transport layer.
var (
	ErrLowBalance             = errors.New("insufficient balance")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrTeamNotFound           = errors.New("team not found")
	ErrTeamExists             = errors.New("team already exists")
	ErrAlreadyInTeam          = errors.New("address already belongs to a team")
	ErrInvalidStakePercentage = errors.New("stake percentage out of range")
	ErrPredictionExists       = errors.New("prediction already exists")
	ErrPredictionNotFound     = errors.New("prediction not found")
	ErrOracleDataUnavailable  = errors.New("oracle data unavailable")
	ErrAlreadyResolved        = errors.New("prediction already resolved")
	ErrNotResolved            = errors.New("prediction not resolved")
	ErrAlreadyDistributed     = errors.New("rewards already distributed")
	ErrAlreadyInitialized     = errors.New("dao already initialized")
	ErrNotInitialized         = errors.New("dao not initialized")

	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
)
