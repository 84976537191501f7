package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/collabkale/kaledao/internal/domain"
)

// DAOConfigStore implements domain.DAOConfigStore using PostgreSQL. The
// config is a singleton row pinned to id = 1 by a CHECK constraint.
type DAOConfigStore struct {
	db db
}

// Create writes the config exactly once. A second call hits the singleton
// conflict and returns domain.ErrAlreadyInitialized.
func (s *DAOConfigStore) Create(ctx context.Context, cfg domain.DAOConfig) error {
	const query = `
		INSERT INTO dao_config (id, admin_addr, kale_token, oracle_addr, treasury_addr, initialized_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.db.Exec(ctx, query,
		cfg.Admin, cfg.KaleToken, cfg.Oracle, cfg.Treasury, cfg.InitializedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create dao config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

// Get returns the config or domain.ErrNotInitialized.
func (s *DAOConfigStore) Get(ctx context.Context) (domain.DAOConfig, error) {
	const query = `
		SELECT admin_addr, kale_token, oracle_addr, treasury_addr, initialized_at, updated_at
		FROM dao_config WHERE id = 1`

	var cfg domain.DAOConfig
	err := s.db.QueryRow(ctx, query).Scan(
		&cfg.Admin, &cfg.KaleToken, &cfg.Oracle, &cfg.Treasury,
		&cfg.InitializedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DAOConfig{}, domain.ErrNotInitialized
		}
		return domain.DAOConfig{}, fmt.Errorf("postgres: get dao config: %w", err)
	}
	return cfg, nil
}

// Update replaces the contract references; the admin identity is updatable
// too so the DAO can hand over control.
func (s *DAOConfigStore) Update(ctx context.Context, cfg domain.DAOConfig) error {
	const query = `
		UPDATE dao_config SET
			admin_addr    = $1,
			kale_token    = $2,
			oracle_addr   = $3,
			treasury_addr = $4,
			updated_at    = NOW()
		WHERE id = 1`

	tag, err := s.db.Exec(ctx, query, cfg.Admin, cfg.KaleToken, cfg.Oracle, cfg.Treasury)
	if err != nil {
		return fmt.Errorf("postgres: update dao config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotInitialized
	}
	return nil
}

// Compile-time interface check.
var _ domain.DAOConfigStore = (*DAOConfigStore)(nil)
