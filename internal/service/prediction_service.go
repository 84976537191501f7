package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/collabkale/kaledao/internal/crypto"
	"github.com/collabkale/kaledao/internal/domain"
)

// PredictionService manages the prediction lifecycle: creation in state Open
// and the one-way transition to Resolved against the price oracle.
type PredictionService struct {
	tx       domain.TxRunner
	verifier domain.CallerVerifier
	oracle   domain.PriceOracle
	locks    domain.LockManager
	lockTTL  time.Duration
	logger   *slog.Logger
}

// NewPredictionService creates a PredictionService. locks may be nil, in
// which case resolution runs without the cross-process lock; the guarded
// database update still keeps resolution exactly-once.
func NewPredictionService(
	tx domain.TxRunner,
	verifier domain.CallerVerifier,
	oracle domain.PriceOracle,
	locks domain.LockManager,
	lockTTL time.Duration,
	logger *slog.Logger,
) *PredictionService {
	return &PredictionService{
		tx:       tx,
		verifier: verifier,
		oracle:   oracle,
		locks:    locks,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// MakePrediction records a directional bet for a team. The predictor must be
// a member of the team and must have at least stakeAmount committed in the
// ledger. An empty id draws one from the prediction counter; a supplied id
// that was ever used before fails with ErrPredictionExists, ids are a
// permanent namespace. The creation timestamp comes from the service clock,
// never from the caller.
func (s *PredictionService) MakePrediction(
	ctx context.Context,
	id, teamName, asset string,
	direction bool,
	stakeAmount int64,
	stakePercentage int,
	caller domain.Caller,
) (domain.Prediction, error) {
	if stakePercentage <= 0 || stakePercentage > 100 {
		return domain.Prediction{}, fmt.Errorf("prediction_service: %w: %d", domain.ErrInvalidStakePercentage, stakePercentage)
	}
	if asset == "" {
		return domain.Prediction{}, fmt.Errorf("prediction_service: asset must not be empty")
	}
	if stakeAmount <= 0 {
		return domain.Prediction{}, fmt.Errorf("prediction_service: %w: stake amount %d", domain.ErrLowBalance, stakeAmount)
	}
	caller.Address = crypto.CanonicalAddress(caller.Address)

	digest := crypto.PredictionDigest(id, teamName, asset, direction, stakeAmount, stakePercentage, caller.Address)
	if err := s.verifier.Verify(caller, digest); err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: make prediction: %w", err)
	}

	var out domain.Prediction
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		if _, err := st.DAO.Get(ctx); err != nil {
			return err
		}

		team, err := st.Teams.Get(ctx, teamName)
		if err != nil {
			return err
		}
		if !team.HasMember(caller.Address) {
			return fmt.Errorf("%w: %s is not a member of %s", domain.ErrUnauthorized, caller.Address, teamName)
		}

		stake, err := st.Stakes.Get(ctx, caller.Address)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: no stake on record for %s", domain.ErrLowBalance, caller.Address)
			}
			return err
		}
		if stakeAmount > stake.Amount {
			return fmt.Errorf("%w: prediction stake %d exceeds committed %d", domain.ErrLowBalance, stakeAmount, stake.Amount)
		}

		predID := id
		if predID == "" {
			predID, err = st.Predictions.NextID(ctx)
			if err != nil {
				return err
			}
		}

		out = domain.Prediction{
			ID:              predID,
			TeamName:        teamName,
			Asset:           asset,
			Direction:       direction,
			StakeAmount:     stakeAmount,
			StakePercentage: stakePercentage,
			Predictor:       caller.Address,
			CreatedAt:       time.Now().UTC(),
		}
		if err := st.Predictions.Create(ctx, out); err != nil {
			return err
		}
		return st.Audit.Log(ctx, "prediction_made", map[string]any{
			"prediction": out.ID,
			"team":       teamName,
			"asset":      asset,
			"direction":  direction,
			"amount":     stakeAmount,
			"predictor":  caller.Address,
		})
	})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: make prediction: %w", err)
	}

	s.logger.InfoContext(ctx, "prediction_service: prediction made",
		slog.String("prediction", out.ID),
		slog.String("team", teamName),
		slog.String("asset", asset),
		slog.Bool("direction", direction),
		slog.Int64("amount", stakeAmount),
	)
	return out, nil
}

// GetPrediction returns a prediction by id.
func (s *PredictionService) GetPrediction(ctx context.Context, id string) (domain.Prediction, error) {
	var out domain.Prediction
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		out, err = st.Predictions.Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: get prediction %s: %w", id, err)
	}
	return out, nil
}

// ResolvePrediction fixes the outcome of an open prediction against the
// oracle. The actual direction is current > reference with strict
// inequality; equal prices count as "no rise". An oracle failure leaves the
// prediction untouched in state Open, retryable. Anyone may call it.
func (s *PredictionService) ResolvePrediction(ctx context.Context, id string) (domain.Prediction, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "resolve:"+id, s.lockTTL)
		if err != nil {
			return domain.Prediction{}, fmt.Errorf("prediction_service: resolve %s: %w", id, err)
		}
		defer unlock()
	}

	var out domain.Prediction
	err := s.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		cfg, err := st.DAO.Get(ctx)
		if err != nil {
			return err
		}

		p, err := st.Predictions.Get(ctx, id)
		if err != nil {
			return err
		}
		if p.Resolved {
			return domain.ErrAlreadyResolved
		}

		current, err := s.oracle.LastPrice(ctx, cfg.Oracle, p.Asset)
		if err != nil {
			return err
		}
		reference, err := s.oracle.PriceAt(ctx, cfg.Oracle, p.Asset, p.CreatedAt)
		if err != nil {
			return err
		}

		actualRise := current.Price > reference.Price
		outcome := p.Direction == actualRise
		now := time.Now().UTC()

		if err := st.Predictions.MarkResolved(ctx, id, outcome, current.Price, reference.Price, now); err != nil {
			return err
		}

		p.Resolved = true
		p.Outcome = &outcome
		p.ResolvedAt = &now
		p.CurrentPrice = &current.Price
		p.ReferencePrice = &reference.Price
		out = p

		return st.Audit.Log(ctx, "prediction_resolved", map[string]any{
			"prediction":      id,
			"outcome":         outcome,
			"current_price":   current.Price,
			"reference_price": reference.Price,
		})
	})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: resolve %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "prediction_service: prediction resolved",
		slog.String("prediction", id),
		slog.Bool("outcome", *out.Outcome),
		slog.Int64("current_price", *out.CurrentPrice),
		slog.Int64("reference_price", *out.ReferencePrice),
	)
	return out, nil
}
