// Package service implements the DAO entry points: initialization, team
// formation, staking, the prediction lifecycle, and reward distribution.
// Every mutating entry point verifies the caller's signature, runs its reads
// and writes inside one transaction, and leaves an audit trail.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/collabkale/kaledao/internal/crypto"
	"github.com/collabkale/kaledao/internal/domain"
)

// AdminService manages the singleton DAO configuration.
type AdminService struct {
	tx       domain.TxRunner
	verifier domain.CallerVerifier
	logger   *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(tx domain.TxRunner, verifier domain.CallerVerifier, logger *slog.Logger) *AdminService {
	return &AdminService{
		tx:       tx,
		verifier: verifier,
		logger:   logger,
	}
}

// Initialize writes the DAO configuration exactly once. The caller becomes
// the admin; a second call fails with ErrAlreadyInitialized no matter who
// signs it.
func (s *AdminService) Initialize(ctx context.Context, caller domain.Caller, kaleToken, oracle, treasury string) (domain.DAOConfig, error) {
	caller.Address = crypto.CanonicalAddress(caller.Address)
	digest := crypto.InitializeDigest(caller.Address, kaleToken, oracle, treasury)
	if err := s.verifier.Verify(caller, digest); err != nil {
		return domain.DAOConfig{}, fmt.Errorf("admin_service: initialize: %w", err)
	}

	cfg := domain.DAOConfig{
		Admin:         caller.Address,
		KaleToken:     kaleToken,
		Oracle:        oracle,
		Treasury:      treasury,
		InitializedAt: time.Now().UTC(),
	}
	cfg.UpdatedAt = cfg.InitializedAt

	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		if err := st.DAO.Create(ctx, cfg); err != nil {
			return err
		}
		return st.Audit.Log(ctx, "dao_initialized", map[string]any{
			"admin":    cfg.Admin,
			"token":    cfg.KaleToken,
			"oracle":   cfg.Oracle,
			"treasury": cfg.Treasury,
		})
	})
	if err != nil {
		return domain.DAOConfig{}, fmt.Errorf("admin_service: initialize: %w", err)
	}

	s.logger.InfoContext(ctx, "admin_service: dao initialized",
		slog.String("admin", cfg.Admin),
		slog.String("token", cfg.KaleToken),
		slog.String("oracle", cfg.Oracle),
	)
	return cfg, nil
}

// GetConfig returns the current configuration.
func (s *AdminService) GetConfig(ctx context.Context) (domain.DAOConfig, error) {
	var cfg domain.DAOConfig
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		cfg, err = st.DAO.Get(ctx)
		return err
	})
	if err != nil {
		return domain.DAOConfig{}, fmt.Errorf("admin_service: get config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig replaces the contract wiring. Only the current admin may call
// it; handing admin to a new address is allowed and takes effect atomically
// with the rest of the update.
func (s *AdminService) UpdateConfig(ctx context.Context, caller domain.Caller, admin, kaleToken, oracle, treasury string) (domain.DAOConfig, error) {
	admin = crypto.CanonicalAddress(admin)
	digest := crypto.UpdateConfigDigest(admin, kaleToken, oracle, treasury)
	if err := s.verifier.Verify(caller, digest); err != nil {
		return domain.DAOConfig{}, fmt.Errorf("admin_service: update config: %w", err)
	}

	var out domain.DAOConfig
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		current, err := st.DAO.Get(ctx)
		if err != nil {
			return err
		}
		if !crypto.SameAddress(caller.Address, current.Admin) {
			return fmt.Errorf("%w: caller %s is not the admin", domain.ErrUnauthorized, caller.Address)
		}

		out = domain.DAOConfig{
			Admin:         admin,
			KaleToken:     kaleToken,
			Oracle:        oracle,
			Treasury:      treasury,
			InitializedAt: current.InitializedAt,
			UpdatedAt:     time.Now().UTC(),
		}
		if err := st.DAO.Update(ctx, out); err != nil {
			return err
		}
		return st.Audit.Log(ctx, "dao_config_updated", map[string]any{
			"admin":    out.Admin,
			"token":    out.KaleToken,
			"oracle":   out.Oracle,
			"treasury": out.Treasury,
		})
	})
	if err != nil {
		return domain.DAOConfig{}, fmt.Errorf("admin_service: update config: %w", err)
	}

	s.logger.InfoContext(ctx, "admin_service: config updated",
		slog.String("admin", out.Admin))
	return out, nil
}
