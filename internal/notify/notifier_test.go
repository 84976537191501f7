package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifyFiltersEvents(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"prediction_resolved"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(context.Background(), "prediction_resolved", "resolved", "pred-1"))
	require.NoError(t, n.Notify(context.Background(), "stake_placed", "staked", "alice"))

	assert.Equal(t, []string{"resolved"}, sender.titles)
}

func TestNotifyEmptyFilterAllowsEverything(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(context.Background(), "anything", "a", "b"))
	assert.Len(t, sender.titles, 1)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	broken := &recordingSender{name: "telegram", err: errors.New("api down")}
	working := &recordingSender{name: "discord"}
	n := NewNotifier([]Sender{broken, working}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.NotifyAll(context.Background(), "oracle stale", "EUR/USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Equal(t, []string{"oracle stale"}, working.titles, "healthy channels still deliver")
}

func TestNoSendersIsNoOp(t *testing.T) {
	n := NewNotifier(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, n.NotifyAll(context.Background(), "a", "b"))
}
