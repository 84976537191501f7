package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/collabkale/kaledao/internal/crypto"
	"github.com/collabkale/kaledao/internal/domain"
)

// StakeService manages the stake ledger: percentage-denominated commitments
// of a member's KALE balance against their team.
type StakeService struct {
	tx       domain.TxRunner
	verifier domain.CallerVerifier
	token    domain.TokenClient
	logger   *slog.Logger
}

// NewStakeService creates a StakeService.
func NewStakeService(tx domain.TxRunner, verifier domain.CallerVerifier, token domain.TokenClient, logger *slog.Logger) *StakeService {
	return &StakeService{
		tx:       tx,
		verifier: verifier,
		token:    token,
		logger:   logger,
	}
}

// Stake commits percentage of the caller's current token balance to their
// team. The amount is balance * percentage / 100 with integer truncation; a
// zero result is rejected as ErrLowBalance, never silently recorded. The
// ledger writes and the token transfer to the treasury commit or roll back
// together.
func (s *StakeService) Stake(ctx context.Context, teamName string, caller domain.Caller, percentage int) (domain.UserStake, error) {
	if percentage <= 0 || percentage > 100 {
		return domain.UserStake{}, fmt.Errorf("stake_service: %w: %d", domain.ErrInvalidStakePercentage, percentage)
	}
	caller.Address = crypto.CanonicalAddress(caller.Address)

	digest := crypto.StakeDigest(teamName, caller.Address, percentage)
	if err := s.verifier.Verify(caller, digest); err != nil {
		return domain.UserStake{}, fmt.Errorf("stake_service: stake: %w", err)
	}

	var out domain.UserStake
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		cfg, err := st.DAO.Get(ctx)
		if err != nil {
			return err
		}

		team, err := st.Teams.Get(ctx, teamName)
		if err != nil {
			return err
		}
		if !team.HasMember(caller.Address) {
			return fmt.Errorf("%w: %s is not a member of %s", domain.ErrUnauthorized, caller.Address, teamName)
		}

		balance, err := s.token.BalanceOf(ctx, cfg.KaleToken, caller.Address)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", caller.Address, err)
		}

		// The multiply runs in big.Int so a huge balance cannot overflow
		// int64 before the division; the quotient is at most balance, so
		// it always fits.
		product := new(big.Int).Mul(big.NewInt(balance), big.NewInt(int64(percentage)))
		amount := product.Div(product, big.NewInt(100)).Int64()
		if amount <= 0 || amount > balance {
			return fmt.Errorf("%w: balance %d at %d%%", domain.ErrLowBalance, balance, percentage)
		}

		if err := st.Stakes.Add(ctx, caller.Address, teamName, amount, percentage); err != nil {
			return err
		}
		if err := st.Teams.AddStake(ctx, teamName, amount); err != nil {
			return err
		}
		if err := st.Audit.Log(ctx, "stake_added", map[string]any{
			"team":       teamName,
			"user":       caller.Address,
			"amount":     amount,
			"percentage": percentage,
		}); err != nil {
			return err
		}

		// Ledger state is written before the external transfer; a transfer
		// failure rolls the whole unit of work back.
		if err := s.token.Transfer(ctx, cfg.KaleToken, caller.Address, cfg.Treasury, amount); err != nil {
			return fmt.Errorf("transfer stake to treasury: %w", err)
		}

		out, err = st.Stakes.Get(ctx, caller.Address)
		return err
	})
	if err != nil {
		return domain.UserStake{}, fmt.Errorf("stake_service: stake %s for %s: %w", caller.Address, teamName, err)
	}

	s.logger.InfoContext(ctx, "stake_service: stake committed",
		slog.String("team", teamName),
		slog.String("user", caller.Address),
		slog.Int64("amount", out.Amount),
		slog.Int("percentage", percentage),
	)
	return out, nil
}

// GetUserStake returns the cumulative stake record for an address. An
// address that never staked gets a zero-amount record, not an error.
func (s *StakeService) GetUserStake(ctx context.Context, addr string) (domain.UserStake, error) {
	addr = crypto.CanonicalAddress(addr)
	var out domain.UserStake
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		out, err = st.Stakes.Get(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			out = domain.UserStake{Address: addr}
			return nil
		}
		return err
	})
	if err != nil {
		return domain.UserStake{}, fmt.Errorf("stake_service: get stake %s: %w", addr, err)
	}
	return out, nil
}
