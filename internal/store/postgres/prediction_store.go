package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/collabkale/kaledao/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL. The
// one-way lifecycle transitions are enforced with guarded UPDATEs, so two
// concurrent resolvers cannot both win.
type PredictionStore struct {
	db db
}

const predictionColumns = `
	id, team_name, asset, direction, stake_amount, stake_percentage,
	predictor, created_at, resolved, outcome, resolved_at,
	current_price, reference_price, distributed, distributed_at`

func scanPrediction(row pgx.Row) (domain.Prediction, error) {
	var p domain.Prediction
	err := row.Scan(
		&p.ID, &p.TeamName, &p.Asset, &p.Direction, &p.StakeAmount,
		&p.StakePercentage, &p.Predictor, &p.CreatedAt, &p.Resolved,
		&p.Outcome, &p.ResolvedAt, &p.CurrentPrice, &p.ReferencePrice,
		&p.Distributed, &p.DistributedAt,
	)
	return p, err
}

// Create inserts an open prediction. A reused id maps to ErrPredictionExists.
func (s *PredictionStore) Create(ctx context.Context, p domain.Prediction) error {
	const query = `
		INSERT INTO predictions (
			id, team_name, asset, direction, stake_amount,
			stake_percentage, predictor, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.Exec(ctx, query,
		p.ID, p.TeamName, p.Asset, p.Direction, p.StakeAmount,
		p.StakePercentage, p.Predictor, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "predictions_pkey") {
			return domain.ErrPredictionExists
		}
		return fmt.Errorf("postgres: create prediction %s: %w", p.ID, err)
	}
	return nil
}

// Get returns a prediction or domain.ErrPredictionNotFound.
func (s *PredictionStore) Get(ctx context.Context, id string) (domain.Prediction, error) {
	query := `SELECT` + predictionColumns + ` FROM predictions WHERE id = $1`

	p, err := scanPrediction(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prediction{}, domain.ErrPredictionNotFound
		}
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction %s: %w", id, err)
	}
	return p, nil
}

// MarkResolved fixes the outcome and price snapshot. The WHERE NOT resolved
// guard means a second resolver touches zero rows; the follow-up read then
// tells apart "already resolved" from "never existed".
func (s *PredictionStore) MarkResolved(ctx context.Context, id string, outcome bool, currentPrice, referencePrice int64, at time.Time) error {
	const query = `
		UPDATE predictions SET
			resolved        = TRUE,
			outcome         = $2,
			current_price   = $3,
			reference_price = $4,
			resolved_at     = $5
		WHERE id = $1 AND NOT resolved`

	tag, err := s.db.Exec(ctx, query, id, outcome, currentPrice, referencePrice, at)
	if err != nil {
		return fmt.Errorf("postgres: resolve prediction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return domain.ErrAlreadyResolved
	}
	return nil
}

// MarkDistributed records the one-time payout. A zero-row update is
// disambiguated by re-reading the row: missing, still open, or replayed.
func (s *PredictionStore) MarkDistributed(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE predictions SET
			distributed    = TRUE,
			distributed_at = $2
		WHERE id = $1 AND resolved AND NOT distributed`

	tag, err := s.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres: distribute prediction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		p, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if !p.Resolved {
			return domain.ErrNotResolved
		}
		return domain.ErrAlreadyDistributed
	}
	return nil
}

// NextID draws the next value from the prediction counter.
func (s *PredictionStore) NextID(ctx context.Context) (string, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT nextval('prediction_id_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("postgres: next prediction id: %w", err)
	}
	return fmt.Sprintf("pred-%d", n), nil
}

// ListOpenBefore returns unresolved predictions created before cutoff,
// oldest first.
func (s *PredictionStore) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Prediction, error) {
	query := `SELECT` + predictionColumns + `
		FROM predictions
		WHERE NOT resolved AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	return s.list(ctx, query, cutoff, limit)
}

// ListSettledBefore returns fully settled predictions resolved before cutoff.
func (s *PredictionStore) ListSettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Prediction, error) {
	query := `SELECT` + predictionColumns + `
		FROM predictions
		WHERE resolved AND distributed AND resolved_at < $1
		ORDER BY resolved_at
		LIMIT $2`

	return s.list(ctx, query, cutoff, limit)
}

func (s *PredictionStore) list(ctx context.Context, query string, cutoff time.Time, limit int) ([]domain.Prediction, error) {
	rows, err := s.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteSettledBefore removes settled predictions resolved before cutoff and
// reports how many rows went away. Used by the archiver after upload.
func (s *PredictionStore) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM predictions
		WHERE resolved AND distributed AND resolved_at < $1`

	tag, err := s.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete settled predictions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
