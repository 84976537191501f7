package s3blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabkale/kaledao/internal/domain"
)

// fakeWriter records which upload path each object took.
type fakeWriter struct {
	puts       []string
	multiparts []string
	failPut    bool
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.failPut {
		return errors.New("bucket unavailable")
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	w.puts = append(w.puts, path)
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	w.multiparts = append(w.multiparts, path)
	return nil
}

// archState holds settled predictions and audit rows for archive tests.
type archState struct {
	settled []domain.Prediction
	audit   []domain.AuditEntry
	deleted int64
}

type archTx struct{ s *archState }

func (t *archTx) InTx(ctx context.Context, fn func(ctx context.Context, st domain.Stores) error) error {
	return fn(ctx, domain.Stores{
		Predictions: &archPredictions{t.s},
		Audit:       &archAudit{t.s},
	})
}

type archPredictions struct{ s *archState }

func (p *archPredictions) Create(context.Context, domain.Prediction) error { return nil }
func (p *archPredictions) Get(context.Context, string) (domain.Prediction, error) {
	return domain.Prediction{}, domain.ErrPredictionNotFound
}
func (p *archPredictions) MarkResolved(context.Context, string, bool, int64, int64, time.Time) error {
	return nil
}
func (p *archPredictions) MarkDistributed(context.Context, string, time.Time) error { return nil }
func (p *archPredictions) NextID(context.Context) (string, error)                   { return "", nil }
func (p *archPredictions) ListOpenBefore(context.Context, time.Time, int) ([]domain.Prediction, error) {
	return nil, nil
}

func (p *archPredictions) ListSettledBefore(_ context.Context, _ time.Time, limit int) ([]domain.Prediction, error) {
	if limit > 0 && len(p.s.settled) > limit {
		return p.s.settled[:limit], nil
	}
	return p.s.settled, nil
}

func (p *archPredictions) DeleteSettledBefore(context.Context, time.Time) (int64, error) {
	n := int64(len(p.s.settled))
	p.s.settled = nil
	p.s.deleted += n
	return n, nil
}

type archAudit struct{ s *archState }

func (a *archAudit) Log(context.Context, string, map[string]any) error { return nil }
func (a *archAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return a.s.audit, nil
}
func (a *archAudit) DeleteBefore(context.Context, time.Time) (int64, error) {
	n := int64(len(a.s.audit))
	a.s.audit = nil
	return n, nil
}

func settledPrediction(id string) domain.Prediction {
	outcome := true
	now := time.Now().UTC()
	return domain.Prediction{
		ID:          id,
		TeamName:    "alpha",
		Asset:       "BTC",
		Resolved:    true,
		Outcome:     &outcome,
		ResolvedAt:  &now,
		Distributed: true,
		CreatedAt:   now.Add(-time.Hour),
	}
}

func TestArchivePredictionsUploadsThenDeletes(t *testing.T) {
	s := &archState{settled: []domain.Prediction{settledPrediction("p1"), settledPrediction("p2")}}
	w := &fakeWriter{}
	a := NewArchiver(w, &archTx{s}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchivePredictions(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"archive/predictions/2026-08.jsonl"}, w.puts)
	assert.Empty(t, s.settled)
}

func TestArchiveFailedUploadLeavesRows(t *testing.T) {
	s := &archState{settled: []domain.Prediction{settledPrediction("p1")}}
	w := &fakeWriter{failPut: true}
	a := NewArchiver(w, &archTx{s}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := a.ArchivePredictions(context.Background(), time.Now().UTC(), 100)
	require.Error(t, err)
	assert.Len(t, s.settled, 1, "rows survive until the upload succeeds")
}

func TestArchiveLargeBatchUsesMultipart(t *testing.T) {
	s := &archState{settled: []domain.Prediction{settledPrediction("p1"), settledPrediction("p2")}}
	w := &fakeWriter{}
	a := NewArchiver(w, &archTx{s}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.multipartThreshold = 64 // two JSONL rows comfortably exceed this

	n, err := a.ArchivePredictions(context.Background(), time.Now().UTC(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, w.puts)
	assert.Len(t, w.multiparts, 1)
}

func TestArchiveAuditEmptyIsNoOp(t *testing.T) {
	s := &archState{}
	w := &fakeWriter{}
	a := NewArchiver(w, &archTx{s}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveAudit(context.Background(), time.Now().UTC(), 100)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.puts)
	assert.Empty(t, w.multiparts)
}
