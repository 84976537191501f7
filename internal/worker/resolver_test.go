package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabkale/kaledao/internal/domain"
	"github.com/collabkale/kaledao/internal/service"
)

// sweepState is a minimal in-memory backing store for sweep tests: just
// enough of the prediction lifecycle for ResolvePrediction to run.
type sweepState struct {
	cfg         domain.DAOConfig
	predictions map[string]domain.Prediction
}

type sweepTx struct{ s *sweepState }

func (t *sweepTx) InTx(ctx context.Context, fn func(ctx context.Context, st domain.Stores) error) error {
	return fn(ctx, domain.Stores{
		DAO:         sweepDAO{t.s},
		Predictions: &sweepPredictions{t.s},
		Audit:       nopAudit{},
	})
}

type sweepDAO struct{ s *sweepState }

func (d sweepDAO) Create(context.Context, domain.DAOConfig) error {
	return domain.ErrAlreadyInitialized
}
func (d sweepDAO) Get(context.Context) (domain.DAOConfig, error)  { return d.s.cfg, nil }
func (d sweepDAO) Update(context.Context, domain.DAOConfig) error { return nil }

type sweepPredictions struct{ s *sweepState }

func (p *sweepPredictions) Create(_ context.Context, pr domain.Prediction) error {
	p.s.predictions[pr.ID] = pr
	return nil
}

func (p *sweepPredictions) Get(_ context.Context, id string) (domain.Prediction, error) {
	pr, ok := p.s.predictions[id]
	if !ok {
		return domain.Prediction{}, domain.ErrPredictionNotFound
	}
	return pr, nil
}

func (p *sweepPredictions) MarkResolved(_ context.Context, id string, outcome bool, current, reference int64, at time.Time) error {
	pr := p.s.predictions[id]
	if pr.Resolved {
		return domain.ErrAlreadyResolved
	}
	pr.Resolved = true
	pr.Outcome = &outcome
	pr.ResolvedAt = &at
	pr.CurrentPrice = &current
	pr.ReferencePrice = &reference
	p.s.predictions[id] = pr
	return nil
}

func (p *sweepPredictions) MarkDistributed(context.Context, string, time.Time) error { return nil }
func (p *sweepPredictions) NextID(context.Context) (string, error)                   { return "pred-1", nil }

func (p *sweepPredictions) ListOpenBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Prediction, error) {
	var out []domain.Prediction
	for _, pr := range p.s.predictions {
		if !pr.Resolved && pr.CreatedAt.Before(cutoff) {
			out = append(out, pr)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *sweepPredictions) ListSettledBefore(context.Context, time.Time, int) ([]domain.Prediction, error) {
	return nil, nil
}
func (p *sweepPredictions) DeleteSettledBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, string, map[string]any) error { return nil }
func (nopAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}
func (nopAudit) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type sweepOracle struct {
	price int64
	err   error
}

func (o sweepOracle) LastPrice(context.Context, string, string) (domain.PriceData, error) {
	if o.err != nil {
		return domain.PriceData{}, o.err
	}
	return domain.PriceData{Price: o.price, Timestamp: time.Now()}, nil
}

func (o sweepOracle) PriceAt(context.Context, string, string, time.Time) (domain.PriceData, error) {
	if o.err != nil {
		return domain.PriceData{}, o.err
	}
	return domain.PriceData{Price: o.price - 1, Timestamp: time.Now()}, nil
}

func newSweepResolver(s *sweepState, oracle domain.PriceOracle, notifier domain.Notifier) *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx := &sweepTx{s}
	preds := service.NewPredictionService(tx, nil, oracle, nil, 0, logger)
	return NewResolver(ResolverConfig{
		Interval:  time.Minute,
		MinAge:    time.Hour,
		BatchSize: 10,
	}, tx, preds, notifier, logger)
}

func openPrediction(id string, age time.Duration) domain.Prediction {
	return domain.Prediction{
		ID:        id,
		TeamName:  "alpha",
		Asset:     "BTC",
		Direction: true,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestSweepResolvesAgedPredictions(t *testing.T) {
	s := &sweepState{
		cfg: domain.DAOConfig{Oracle: "0xoracle"},
		predictions: map[string]domain.Prediction{
			"old":   openPrediction("old", 2*time.Hour),
			"young": openPrediction("young", time.Minute),
		},
	}
	r := newSweepResolver(s, sweepOracle{price: 100}, nil)

	require.NoError(t, r.Sweep(context.Background()))

	assert.True(t, s.predictions["old"].Resolved)
	assert.False(t, s.predictions["young"].Resolved, "predictions younger than min age stay open")
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

func TestSweepNotifiesEachResolution(t *testing.T) {
	s := &sweepState{
		cfg: domain.DAOConfig{Oracle: "0xoracle"},
		predictions: map[string]domain.Prediction{
			"a": openPrediction("a", 2*time.Hour),
			"b": openPrediction("b", 3*time.Hour),
		},
	}
	notifier := &recordingNotifier{}
	r := newSweepResolver(s, sweepOracle{price: 100}, notifier)

	require.NoError(t, r.Sweep(context.Background()))
	assert.Equal(t, []string{"prediction_resolved", "prediction_resolved"}, notifier.events)
}

func TestSweepSurvivesOracleOutage(t *testing.T) {
	s := &sweepState{
		cfg: domain.DAOConfig{Oracle: "0xoracle"},
		predictions: map[string]domain.Prediction{
			"old": openPrediction("old", 2*time.Hour),
		},
	}
	r := newSweepResolver(s, sweepOracle{err: domain.ErrOracleDataUnavailable}, nil)

	require.NoError(t, r.Sweep(context.Background()), "an outage is not a sweep failure")
	assert.False(t, s.predictions["old"].Resolved)
}

func TestSweepWithNothingEligible(t *testing.T) {
	s := &sweepState{
		cfg:         domain.DAOConfig{Oracle: "0xoracle"},
		predictions: map[string]domain.Prediction{},
	}
	r := newSweepResolver(s, sweepOracle{price: 100}, nil)
	assert.NoError(t, r.Sweep(context.Background()))
}
