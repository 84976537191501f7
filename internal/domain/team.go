package domain

import "time"

// MaxTeamNameLen bounds team names. Names are case-sensitive and permanent:
// once created a name can never be reused, even if the team goes idle.
const MaxTeamNameLen = 64

// Team is a named group of addresses sharing a stake pool.
type Team struct {
	Name       string
	Members    []string // insertion order preserved; no duplicates
	TotalStake int64
	CreatedAt  time.Time
}

// HasMember reports whether addr is a member of the team.
func (t Team) HasMember(addr string) bool {
	for _, m := range t.Members {
		if m == addr {
			return true
		}
	}
	return false
}
