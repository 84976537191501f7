package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/collabkale/kaledao/internal/crypto"
	"github.com/collabkale/kaledao/internal/domain"
)

// RewardBonusDivisor sets the winner's bonus: stake / divisor on top of the
// returned stake, so 10 pays a 10% premium out of the forfeited pool.
const RewardBonusDivisor = 10

// RewardService pays out resolved predictions. Distribution is per
// prediction: a correct predictor gets their stake back plus the bonus, an
// incorrect predictor's stake stays in the treasury pool.
type RewardService struct {
	tx       domain.TxRunner
	verifier domain.CallerVerifier
	token    domain.TokenClient
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewRewardService creates a RewardService. notifier may be nil.
func NewRewardService(tx domain.TxRunner, verifier domain.CallerVerifier, token domain.TokenClient, notifier domain.Notifier, logger *slog.Logger) *RewardService {
	return &RewardService{
		tx:       tx,
		verifier: verifier,
		token:    token,
		notifier: notifier,
		logger:   logger,
	}
}

// DistributeRewards settles a resolved prediction exactly once. Only the
// admin may call it; a replay fails with ErrAlreadyDistributed and pays
// nothing. The distribution mark is written before the treasury transfer so
// a transfer failure rolls the whole unit of work back.
func (s *RewardService) DistributeRewards(ctx context.Context, id string, caller domain.Caller) (int64, error) {
	caller.Address = crypto.CanonicalAddress(caller.Address)
	digest := crypto.DistributeDigest(id)
	if err := s.verifier.Verify(caller, digest); err != nil {
		return 0, fmt.Errorf("reward_service: distribute %s: %w", id, err)
	}

	var paid int64
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		cfg, err := st.DAO.Get(ctx)
		if err != nil {
			return err
		}
		if !crypto.SameAddress(caller.Address, cfg.Admin) {
			return fmt.Errorf("%w: caller %s is not the admin", domain.ErrUnauthorized, caller.Address)
		}

		p, err := st.Predictions.Get(ctx, id)
		if err != nil {
			return err
		}
		if !p.Resolved {
			return domain.ErrNotResolved
		}

		if err := st.Predictions.MarkDistributed(ctx, id, time.Now().UTC()); err != nil {
			return err
		}

		if p.Outcome != nil && *p.Outcome {
			paid = p.StakeAmount + p.StakeAmount/RewardBonusDivisor
			if err := s.token.Transfer(ctx, cfg.KaleToken, cfg.Treasury, p.Predictor, paid); err != nil {
				return fmt.Errorf("pay reward: %w", err)
			}
		}

		return st.Audit.Log(ctx, "rewards_distributed", map[string]any{
			"prediction": id,
			"predictor":  p.Predictor,
			"paid":       paid,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("reward_service: distribute %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "reward_service: rewards distributed",
		slog.String("prediction", id),
		slog.Int64("paid", paid),
	)

	if s.notifier != nil {
		msg := fmt.Sprintf("prediction %s: paid %d", id, paid)
		if nerr := s.notifier.Notify(ctx, "rewards_distributed", "Rewards distributed", msg); nerr != nil {
			s.logger.WarnContext(ctx, "reward_service: notification failed",
				slog.String("error", nerr.Error()))
		}
	}
	return paid, nil
}
