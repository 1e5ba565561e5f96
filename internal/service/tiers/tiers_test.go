package tiers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

// fakeStore is mutex-guarded because AutoAssign runs agents concurrently.
type fakeStore struct {
	mu          sync.Mutex
	agents      map[string]model.Agent
	assignments map[uuid.UUID]model.AgentTierAssignment
	tiers       []model.AgentTier
	bookings    int
	revenue     float64
	assigned    []model.AgentTierAssignment
	audits      []model.AuditLog
}

func (f *fakeStore) GetAgentByCode(_ context.Context, code string) (model.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[code]
	if !ok {
		return model.Agent{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) GetActiveAssignment(_ context.Context, agentID uuid.UUID) (model.AgentTierAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[agentID]
	if !ok {
		return model.AgentTierAssignment{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) ListActiveTiers(_ context.Context) ([]model.AgentTier, error) {
	return f.tiers, nil
}

func (f *fakeStore) AgentKPIsSince(_ context.Context, _ string, _ time.Time) (int, float64, error) {
	return f.bookings, f.revenue, nil
}

func (f *fakeStore) AssignTierWithAudit(_ context.Context, a model.AgentTierAssignment, audit model.AuditLog) (model.AgentTierAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New()
	a.Status = model.StatusActive
	f.assigned = append(f.assigned, a)
	f.audits = append(f.audits, audit)
	if f.assignments == nil {
		f.assignments = map[uuid.UUID]model.AgentTierAssignment{}
	}
	f.assignments[a.AgentID] = a
	return a, nil
}

// standardTiers mirrors the seeded ladder, rank 1 first.
func standardTiers() []model.AgentTier {
	return []model.AgentTier{
		{TierCode: model.TierPlatinum, Rank: 1, Thresholds: model.KPIThresholds{MinBookings: 100, MinRevenue: 500000}},
		{TierCode: model.TierGold, Rank: 2, Thresholds: model.KPIThresholds{MinBookings: 50, MinRevenue: 200000}},
		{TierCode: model.TierSilver, Rank: 3, Thresholds: model.KPIThresholds{MinBookings: 20, MinRevenue: 50000}},
		{TierCode: model.TierBronze, Rank: 4, Thresholds: model.KPIThresholds{}},
	}
}

func testService(store *fakeStore) *Service {
	s := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestEvaluateRecommendsHighestQualifyingTier(t *testing.T) {
	agentID := uuid.New()
	store := &fakeStore{
		agents:   map[string]model.Agent{"AGT-001": {ID: agentID, AgentCode: "AGT-001"}},
		tiers:    standardTiers(),
		bookings: 60,
		revenue:  250000,
	}
	s := testService(store)

	resp, err := s.Evaluate(context.Background(), model.TierEvaluateRequest{AgentID: "AGT-001"})
	require.NoError(t, err)

	assert.Equal(t, model.TierGold, resp.RecommendedTier)
	assert.Equal(t, model.TierBronze, resp.CurrentTier)
	assert.True(t, resp.ChangeRequired)
	assert.Equal(t, 60, resp.KPIs.BookingCount)
	assert.Equal(t, WindowQuarterly, resp.KPIs.Window)
}

func TestEvaluateWindowLookback(t *testing.T) {
	agentID := uuid.New()
	store := &fakeStore{
		agents: map[string]model.Agent{"AGT-001": {ID: agentID, AgentCode: "AGT-001"}},
		tiers:  standardTiers(),
	}
	s := testService(store)

	resp, err := s.Evaluate(context.Background(), model.TierEvaluateRequest{AgentID: "AGT-001", Window: WindowMonthly})
	require.NoError(t, err)
	assert.Equal(t, 30.0, resp.KPIs.To.Sub(resp.KPIs.From).Hours()/24)

	resp, err = s.Evaluate(context.Background(), model.TierEvaluateRequest{AgentID: "AGT-001", Window: WindowYearly})
	require.NoError(t, err)
	assert.Equal(t, 365.0, resp.KPIs.To.Sub(resp.KPIs.From).Hours()/24)
}

func TestEvaluateRejectsUnknownWindow(t *testing.T) {
	s := testService(&fakeStore{})
	_, err := s.Evaluate(context.Background(), model.TierEvaluateRequest{AgentID: "AGT-001", Window: "WEEKLY"})
	assert.Error(t, err)
}

func TestEvaluateNoChangeWhenTierMatches(t *testing.T) {
	agentID := uuid.New()
	store := &fakeStore{
		agents: map[string]model.Agent{"AGT-001": {ID: agentID, AgentCode: "AGT-001"}},
		assignments: map[uuid.UUID]model.AgentTierAssignment{
			agentID: {AgentID: agentID, TierCode: model.TierSilver, Status: model.StatusActive},
		},
		tiers:    standardTiers(),
		bookings: 25,
		revenue:  60000,
	}
	s := testService(store)

	resp, err := s.Evaluate(context.Background(), model.TierEvaluateRequest{AgentID: "AGT-001"})
	require.NoError(t, err)
	assert.Equal(t, model.TierSilver, resp.RecommendedTier)
	assert.False(t, resp.ChangeRequired)
}

func TestAutoAssignWritesOnlyChanges(t *testing.T) {
	upID, holdID := uuid.New(), uuid.New()
	store := &fakeStore{
		agents: map[string]model.Agent{
			"AGT-UP":   {ID: upID, AgentCode: "AGT-UP"},
			"AGT-HOLD": {ID: holdID, AgentCode: "AGT-HOLD"},
		},
		assignments: map[uuid.UUID]model.AgentTierAssignment{
			holdID: {AgentID: holdID, TierCode: model.TierGold, Status: model.StatusActive},
		},
		tiers:    standardTiers(),
		bookings: 60,
		revenue:  250000,
	}
	s := testService(store)

	results, err := s.AutoAssign(context.Background(),
		model.TierAutoAssignRequest{AgentIDs: []string{"AGT-UP", "AGT-HOLD", "AGT-MISSING"}},
		"system", model.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Changed)
	assert.Equal(t, model.TierBronze, results[0].PreviousTier)
	assert.Equal(t, model.TierGold, results[0].RecommendedTier)

	assert.False(t, results[1].Changed)
	assert.Empty(t, results[1].Error)

	assert.False(t, results[2].Changed)
	assert.NotEmpty(t, results[2].Error)

	require.Len(t, store.assigned, 1)
	assert.Equal(t, upID, store.assigned[0].AgentID)
	assert.Equal(t, model.AssignAuto, store.assigned[0].AssignmentType)
	require.Len(t, store.audits, 1)
	assert.Equal(t, model.ActionAutoAssigned, store.audits[0].Action)
}

func TestManualAssignRequiresJustification(t *testing.T) {
	s := testService(&fakeStore{})
	_, err := s.ManualAssign(context.Background(),
		model.ManualAssignRequest{AgentID: "AGT-001", TierCode: model.TierGold},
		"admin", model.RequestMeta{})
	assert.Error(t, err)
}

func TestManualAssignWritesOverride(t *testing.T) {
	agentID := uuid.New()
	store := &fakeStore{
		agents: map[string]model.Agent{"AGT-001": {ID: agentID, AgentCode: "AGT-001"}},
	}
	s := testService(store)

	stored, err := s.ManualAssign(context.Background(), model.ManualAssignRequest{
		AgentID:       "AGT-001",
		TierCode:      model.TierPlatinum,
		Justification: "strategic account",
		EffectiveFrom: "2026-04-01T00:00:00Z",
	}, "admin", model.RequestMeta{RequestID: "req-1"})
	require.NoError(t, err)

	assert.Equal(t, model.TierPlatinum, stored.TierCode)
	assert.Equal(t, model.AssignManualOverride, stored.AssignmentType)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), stored.EffectiveFrom)
	require.Len(t, store.audits, 1)
	assert.Equal(t, model.ActionManualOverride, store.audits[0].Action)
	assert.Equal(t, "admin", store.audits[0].Actor)
	assert.Equal(t, "strategic account", store.audits[0].Justification)
}
