package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/collabkale/kaledao/internal/domain"
)

// TeamStore implements domain.TeamStore using PostgreSQL. The team row and
// its membership rows are written in the same transaction, so the reverse
// index can never diverge from the member list.
type TeamStore struct {
	db db
}

// Create inserts the team and one membership row per member. Conflicts map
// to the typed errors: a duplicate name to ErrTeamExists, a member who
// already belongs to any team to ErrAlreadyInTeam.
func (s *TeamStore) Create(ctx context.Context, team domain.Team) error {
	const insertTeam = `
		INSERT INTO teams (name, total_stake, created_at)
		VALUES ($1, $2, $3)`

	if _, err := s.db.Exec(ctx, insertTeam, team.Name, team.TotalStake, team.CreatedAt); err != nil {
		if isUniqueViolation(err, "teams_pkey") {
			return domain.ErrTeamExists
		}
		return fmt.Errorf("postgres: create team %s: %w", team.Name, err)
	}

	const insertMember = `
		INSERT INTO team_members (address, team_name, position, joined_at)
		VALUES ($1, $2, $3, $4)`

	for i, member := range team.Members {
		if _, err := s.db.Exec(ctx, insertMember, member, team.Name, i, team.CreatedAt); err != nil {
			if isUniqueViolation(err, "team_members_pkey") {
				return fmt.Errorf("%w: %s", domain.ErrAlreadyInTeam, member)
			}
			return fmt.Errorf("postgres: add member %s to team %s: %w", member, team.Name, err)
		}
	}

	return nil
}

// Get retrieves a team with its members in join order.
func (s *TeamStore) Get(ctx context.Context, name string) (domain.Team, error) {
	const teamQuery = `SELECT name, total_stake, created_at FROM teams WHERE name = $1`

	var team domain.Team
	err := s.db.QueryRow(ctx, teamQuery, name).Scan(&team.Name, &team.TotalStake, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, fmt.Errorf("postgres: get team %s: %w", name, err)
	}

	const memberQuery = `
		SELECT address FROM team_members
		WHERE team_name = $1 ORDER BY position`

	rows, err := s.db.Query(ctx, memberQuery, name)
	if err != nil {
		return domain.Team{}, fmt.Errorf("postgres: get team members %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return domain.Team{}, fmt.Errorf("postgres: scan team member: %w", err)
		}
		team.Members = append(team.Members, addr)
	}
	if err := rows.Err(); err != nil {
		return domain.Team{}, fmt.Errorf("postgres: iterate team members: %w", err)
	}

	return team, nil
}

// ListNames returns every team name in creation order.
func (s *TeamStore) ListNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM teams ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list teams: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("postgres: scan team name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddStake increases the team's total stake.
func (s *TeamStore) AddStake(ctx context.Context, name string, amount int64) error {
	const query = `UPDATE teams SET total_stake = total_stake + $2 WHERE name = $1`

	tag, err := s.db.Exec(ctx, query, name, amount)
	if err != nil {
		return fmt.Errorf("postgres: add stake to team %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

// MemberTeam looks up the team an address belongs to. No membership is not
// an error: it returns "" with a nil error.
func (s *TeamStore) MemberTeam(ctx context.Context, addr string) (string, error) {
	var name string
	err := s.db.QueryRow(ctx,
		`SELECT team_name FROM team_members WHERE address = $1`, addr,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("postgres: member team %s: %w", addr, err)
	}
	return name, nil
}

// Compile-time interface check.
var _ domain.TeamStore = (*TeamStore)(nil)
