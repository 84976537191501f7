package domain

import "time"

// UserStake tracks an address's committed KALE across stake calls. Amount is
// the cumulative total in base token units; Percentage is the fraction of
// balance used by the most recent stake call.
type UserStake struct {
	Address    string
	TeamName   string
	Amount     int64
	Percentage int // 1-100
	UpdatedAt  time.Time
}
