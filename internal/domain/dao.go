package domain

import "time"

// DAOConfig is the singleton contract configuration: the admin identity and
// the external contract references every entry point consults. Written once
// by Initialize; mutable only through an admin-authorized update.
type DAOConfig struct {
	Admin         string // admin address
	KaleToken     string // staking token contract address
	Oracle        string // price oracle contract address
	Treasury      string // pool account holding staked funds
	InitializedAt time.Time
	UpdatedAt     time.Time
}
