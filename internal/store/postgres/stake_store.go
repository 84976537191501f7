package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/collabkale/kaledao/internal/domain"
)

// StakeStore implements domain.StakeStore using PostgreSQL.
type StakeStore struct {
	db db
}

// Get returns the stake record for an address or domain.ErrNotFound.
func (s *StakeStore) Get(ctx context.Context, addr string) (domain.UserStake, error) {
	const query = `
		SELECT address, team_name, amount, percentage, updated_at
		FROM user_stakes WHERE address = $1`

	var us domain.UserStake
	err := s.db.QueryRow(ctx, query, addr).Scan(
		&us.Address, &us.TeamName, &us.Amount, &us.Percentage, &us.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserStake{}, domain.ErrNotFound
		}
		return domain.UserStake{}, fmt.Errorf("postgres: get stake %s: %w", addr, err)
	}
	return us, nil
}

// Add accumulates amount onto the address's committed total and records the
// percentage used for this call.
func (s *StakeStore) Add(ctx context.Context, addr, teamName string, amount int64, percentage int) error {
	const query = `
		INSERT INTO user_stakes (address, team_name, amount, percentage, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (address) DO UPDATE SET
			amount     = user_stakes.amount + EXCLUDED.amount,
			percentage = EXCLUDED.percentage,
			team_name  = EXCLUDED.team_name,
			updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, addr, teamName, amount, percentage); err != nil {
		return fmt.Errorf("postgres: add stake %s: %w", addr, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StakeStore = (*StakeStore)(nil)
