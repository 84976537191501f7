package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/collabkale/kaledao/internal/crypto"
	"github.com/collabkale/kaledao/internal/domain"
)

// TeamService manages the team registry and its reverse membership index.
type TeamService struct {
	tx       domain.TxRunner
	verifier domain.CallerVerifier
	logger   *slog.Logger
}

// NewTeamService creates a TeamService.
func NewTeamService(tx domain.TxRunner, verifier domain.CallerVerifier, logger *slog.Logger) *TeamService {
	return &TeamService{
		tx:       tx,
		verifier: verifier,
		logger:   logger,
	}
}

// FormTeam registers a new team. Every founding member signs the same digest
// over the team name and the full member list, so nobody can be enrolled
// without consenting to the exact roster. Team names are permanent: a name
// can never be reused.
func (s *TeamService) FormTeam(ctx context.Context, name string, founders []domain.Caller) (domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > domain.MaxTeamNameLen {
		return domain.Team{}, fmt.Errorf("team_service: team name must be 1-%d characters", domain.MaxTeamNameLen)
	}
	if len(founders) == 0 {
		return domain.Team{}, fmt.Errorf("team_service: a team needs at least one member")
	}

	// Addresses are canonicalized before anything keys on them, so a
	// lowercased presentation of an enrolled account collides with its
	// existing membership row instead of slipping past it.
	founders = append([]domain.Caller(nil), founders...)
	members := make([]string, 0, len(founders))
	seen := make(map[string]bool, len(founders))
	for i := range founders {
		founders[i].Address = crypto.CanonicalAddress(founders[i].Address)
		if seen[founders[i].Address] {
			return domain.Team{}, fmt.Errorf("team_service: duplicate member %s", founders[i].Address)
		}
		seen[founders[i].Address] = true
		members = append(members, founders[i].Address)
	}

	digest := crypto.FormTeamDigest(name, members)
	for _, f := range founders {
		if err := s.verifier.Verify(f, digest); err != nil {
			return domain.Team{}, fmt.Errorf("team_service: form team %s: member %s: %w", name, f.Address, err)
		}
	}

	team := domain.Team{
		Name:      name,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		if _, err := st.DAO.Get(ctx); err != nil {
			return err
		}
		for _, m := range members {
			existing, err := st.Teams.MemberTeam(ctx, m)
			if err != nil {
				return err
			}
			if existing != "" {
				return fmt.Errorf("%w: %s is in team %s", domain.ErrAlreadyInTeam, m, existing)
			}
		}
		if err := st.Teams.Create(ctx, team); err != nil {
			return err
		}
		return st.Audit.Log(ctx, "team_formed", map[string]any{
			"team":    team.Name,
			"members": team.Members,
		})
	})
	if err != nil {
		return domain.Team{}, fmt.Errorf("team_service: form team %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "team_service: team formed",
		slog.String("team", team.Name),
		slog.Int("members", len(team.Members)),
	)
	return team, nil
}

// GetTeam returns a team with its members.
func (s *TeamService) GetTeam(ctx context.Context, name string) (domain.Team, error) {
	var team domain.Team
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		team, err = st.Teams.Get(ctx, name)
		return err
	})
	if err != nil {
		return domain.Team{}, fmt.Errorf("team_service: get team %s: %w", name, err)
	}
	return team, nil
}

// GetUserTeam returns the team an address belongs to, or "" when it has
// none.
func (s *TeamService) GetUserTeam(ctx context.Context, addr string) (string, error) {
	addr = crypto.CanonicalAddress(addr)
	var name string
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		name, err = st.Teams.MemberTeam(ctx, addr)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("team_service: get user team %s: %w", addr, err)
	}
	return name, nil
}

// ListTeams returns every team name.
func (s *TeamService) ListTeams(ctx context.Context) ([]string, error) {
	var names []string
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		names, err = st.Teams.ListNames(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("team_service: list teams: %w", err)
	}
	return names, nil
}
