package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/collabkale/kaledao/internal/domain"
)

// memState is the full in-memory DAO state. The transaction runner clones it
// before every unit of work and swaps the clone in only on success, so a
// failed entry point observably leaves no partial writes.
type memState struct {
	config      *domain.DAOConfig
	teams       map[string]domain.Team
	memberIndex map[string]string // address -> team name
	stakes      map[string]domain.UserStake
	predictions map[string]domain.Prediction
	usedIDs     map[string]bool
	nextID      int64
	audit       []domain.AuditEntry
}

func newMemState() *memState {
	return &memState{
		teams:       map[string]domain.Team{},
		memberIndex: map[string]string{},
		stakes:      map[string]domain.UserStake{},
		predictions: map[string]domain.Prediction{},
		usedIDs:     map[string]bool{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	if s.config != nil {
		cfg := *s.config
		c.config = &cfg
	}
	for k, v := range s.teams {
		v.Members = append([]string(nil), v.Members...)
		c.teams[k] = v
	}
	for k, v := range s.memberIndex {
		c.memberIndex[k] = v
	}
	for k, v := range s.stakes {
		c.stakes[k] = v
	}
	for k, v := range s.predictions {
		c.predictions[k] = v
	}
	for k := range s.usedIDs {
		c.usedIDs[k] = true
	}
	c.nextID = s.nextID
	c.audit = append([]domain.AuditEntry(nil), s.audit...)
	return c
}

// memTx implements domain.TxRunner with copy-on-write semantics.
type memTx struct {
	state *memState
}

func newMemTx() *memTx {
	return &memTx{state: newMemState()}
}

func (m *memTx) InTx(ctx context.Context, fn func(ctx context.Context, s domain.Stores) error) error {
	working := m.state.clone()
	if err := fn(ctx, memStoresFor(working)); err != nil {
		return err
	}
	m.state = working
	return nil
}

func memStoresFor(s *memState) domain.Stores {
	return domain.Stores{
		DAO:         &memDAOStore{s},
		Teams:       &memTeamStore{s},
		Stakes:      &memStakeStore{s},
		Predictions: &memPredictionStore{s},
		Audit:       &memAuditStore{s},
	}
}

type memDAOStore struct{ s *memState }

func (m *memDAOStore) Create(_ context.Context, cfg domain.DAOConfig) error {
	if m.s.config != nil {
		return domain.ErrAlreadyInitialized
	}
	m.s.config = &cfg
	return nil
}

func (m *memDAOStore) Get(context.Context) (domain.DAOConfig, error) {
	if m.s.config == nil {
		return domain.DAOConfig{}, domain.ErrNotInitialized
	}
	return *m.s.config, nil
}

func (m *memDAOStore) Update(_ context.Context, cfg domain.DAOConfig) error {
	if m.s.config == nil {
		return domain.ErrNotInitialized
	}
	m.s.config = &cfg
	return nil
}

type memTeamStore struct{ s *memState }

func (m *memTeamStore) Create(_ context.Context, team domain.Team) error {
	if _, ok := m.s.teams[team.Name]; ok {
		return domain.ErrTeamExists
	}
	for _, member := range team.Members {
		if _, ok := m.s.memberIndex[member]; ok {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyInTeam, member)
		}
	}
	m.s.teams[team.Name] = team
	for _, member := range team.Members {
		m.s.memberIndex[member] = team.Name
	}
	return nil
}

func (m *memTeamStore) Get(_ context.Context, name string) (domain.Team, error) {
	team, ok := m.s.teams[name]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return team, nil
}

func (m *memTeamStore) ListNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(m.s.teams))
	for name := range m.s.teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memTeamStore) AddStake(_ context.Context, name string, amount int64) error {
	team, ok := m.s.teams[name]
	if !ok {
		return domain.ErrTeamNotFound
	}
	team.TotalStake += amount
	m.s.teams[name] = team
	return nil
}

func (m *memTeamStore) MemberTeam(_ context.Context, addr string) (string, error) {
	return m.s.memberIndex[addr], nil
}

type memStakeStore struct{ s *memState }

func (m *memStakeStore) Get(_ context.Context, addr string) (domain.UserStake, error) {
	st, ok := m.s.stakes[addr]
	if !ok {
		return domain.UserStake{}, domain.ErrNotFound
	}
	return st, nil
}

func (m *memStakeStore) Add(_ context.Context, addr, teamName string, amount int64, percentage int) error {
	st := m.s.stakes[addr]
	st.Address = addr
	st.TeamName = teamName
	st.Amount += amount
	st.Percentage = percentage
	st.UpdatedAt = time.Now().UTC()
	m.s.stakes[addr] = st
	return nil
}

type memPredictionStore struct{ s *memState }

func (m *memPredictionStore) Create(_ context.Context, p domain.Prediction) error {
	if m.s.usedIDs[p.ID] {
		return domain.ErrPredictionExists
	}
	m.s.usedIDs[p.ID] = true
	m.s.predictions[p.ID] = p
	return nil
}

func (m *memPredictionStore) Get(_ context.Context, id string) (domain.Prediction, error) {
	p, ok := m.s.predictions[id]
	if !ok {
		return domain.Prediction{}, domain.ErrPredictionNotFound
	}
	return p, nil
}

func (m *memPredictionStore) MarkResolved(_ context.Context, id string, outcome bool, currentPrice, referencePrice int64, at time.Time) error {
	p, ok := m.s.predictions[id]
	if !ok {
		return domain.ErrPredictionNotFound
	}
	if p.Resolved {
		return domain.ErrAlreadyResolved
	}
	p.Resolved = true
	p.Outcome = &outcome
	p.ResolvedAt = &at
	p.CurrentPrice = &currentPrice
	p.ReferencePrice = &referencePrice
	m.s.predictions[id] = p
	return nil
}

func (m *memPredictionStore) MarkDistributed(_ context.Context, id string, at time.Time) error {
	p, ok := m.s.predictions[id]
	if !ok {
		return domain.ErrPredictionNotFound
	}
	if !p.Resolved {
		return domain.ErrNotResolved
	}
	if p.Distributed {
		return domain.ErrAlreadyDistributed
	}
	p.Distributed = true
	p.DistributedAt = &at
	m.s.predictions[id] = p
	return nil
}

func (m *memPredictionStore) NextID(context.Context) (string, error) {
	m.s.nextID++
	return fmt.Sprintf("pred-%d", m.s.nextID), nil
}

func (m *memPredictionStore) ListOpenBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Prediction, error) {
	var out []domain.Prediction
	for _, p := range m.s.predictions {
		if !p.Resolved && p.CreatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPredictionStore) ListSettledBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Prediction, error) {
	var out []domain.Prediction
	for _, p := range m.s.predictions {
		if p.Settled() && p.ResolvedAt != nil && p.ResolvedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPredictionStore) DeleteSettledBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, p := range m.s.predictions {
		if p.Settled() && p.ResolvedAt != nil && p.ResolvedAt.Before(cutoff) {
			delete(m.s.predictions, id)
			n++
		}
	}
	return n, nil
}

type memAuditStore struct{ s *memState }

func (m *memAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	m.s.audit = append(m.s.audit, domain.AuditEntry{
		ID:        int64(len(m.s.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *memAuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range m.s.audit {
		if opts.Until != nil && !e.CreatedAt.Before(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memAuditStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []domain.AuditEntry
	var n int64
	for _, e := range m.s.audit {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.s.audit = kept
	return n, nil
}

// fakeOracle serves scripted prices. lastErr forces LastPrice failures to
// exercise oracle outage behavior.
type fakeOracle struct {
	last    map[string]domain.PriceData
	at      map[string]domain.PriceData
	lastErr error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		last: map[string]domain.PriceData{},
		at:   map[string]domain.PriceData{},
	}
}

func (o *fakeOracle) LastPrice(_ context.Context, _, asset string) (domain.PriceData, error) {
	if o.lastErr != nil {
		return domain.PriceData{}, o.lastErr
	}
	pd, ok := o.last[asset]
	if !ok {
		return domain.PriceData{}, domain.ErrOracleDataUnavailable
	}
	return pd, nil
}

func (o *fakeOracle) PriceAt(_ context.Context, _, asset string, _ time.Time) (domain.PriceData, error) {
	pd, ok := o.at[asset]
	if !ok {
		return domain.PriceData{}, domain.ErrOracleDataUnavailable
	}
	return pd, nil
}

// transferRecord captures one token movement.
type transferRecord struct {
	From   string
	To     string
	Amount int64
}

// fakeToken tracks balances and transfers; failTransfer forces the next
// transfer to fail so atomicity can be asserted.
type fakeToken struct {
	balances     map[string]int64
	transfers    []transferRecord
	failTransfer bool
}

func newFakeToken() *fakeToken {
	return &fakeToken{balances: map[string]int64{}}
}

func (t *fakeToken) BalanceOf(_ context.Context, _, holder string) (int64, error) {
	return t.balances[holder], nil
}

func (t *fakeToken) Transfer(_ context.Context, _, from, to string, amount int64) error {
	if t.failTransfer {
		return errors.New("token transfer reverted")
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	t.transfers = append(t.transfers, transferRecord{From: from, To: to, Amount: amount})
	return nil
}

// fakeNotifier records the events it is asked to deliver.
type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

// Compile-time interface checks for the fakes.
var (
	_ domain.TxRunner    = (*memTx)(nil)
	_ domain.PriceOracle = (*fakeOracle)(nil)
	_ domain.TokenClient = (*fakeToken)(nil)
	_ domain.Notifier    = (*fakeNotifier)(nil)
)
