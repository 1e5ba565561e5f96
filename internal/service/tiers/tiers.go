// Package tiers evaluates agent KPIs against tier thresholds and manages
// tier assignments, both KPI-driven and manual.
package tiers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

// Evaluation windows and their lookback periods.
const (
	WindowMonthly   = "MONTHLY"
	WindowQuarterly = "QUARTERLY"
	WindowYearly    = "YEARLY"
)

var windowDays = map[string]int{
	WindowMonthly:   30,
	WindowQuarterly: 90,
	WindowYearly:    365,
}

// Store is the storage surface the evaluator needs.
type Store interface {
	GetAgentByCode(ctx context.Context, code string) (model.Agent, error)
	GetActiveAssignment(ctx context.Context, agentID uuid.UUID) (model.AgentTierAssignment, error)
	ListActiveTiers(ctx context.Context) ([]model.AgentTier, error)
	AgentKPIsSince(ctx context.Context, agentID string, from time.Time) (int, float64, error)
	AssignTierWithAudit(ctx context.Context, a model.AgentTierAssignment, audit model.AuditLog) (model.AgentTierAssignment, error)
}

// Service runs tier evaluation and assignment.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Evaluate computes an agent's KPIs over the window and recommends a tier.
// Nothing is written; the caller decides whether to assign.
func (s *Service) Evaluate(ctx context.Context, req model.TierEvaluateRequest) (model.TierEvaluateResponse, error) {
	window := req.Window
	if window == "" {
		window = WindowQuarterly
	}
	days, ok := windowDays[window]
	if !ok {
		return model.TierEvaluateResponse{}, fmt.Errorf("tiers: unknown window %q", window)
	}

	agent, err := s.store.GetAgentByCode(ctx, req.AgentID)
	if err != nil {
		return model.TierEvaluateResponse{}, fmt.Errorf("tiers: agent %s: %w", req.AgentID, err)
	}

	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)
	count, revenue, err := s.store.AgentKPIsSince(ctx, req.AgentID, from)
	if err != nil {
		return model.TierEvaluateResponse{}, fmt.Errorf("tiers: aggregate KPIs: %w", err)
	}
	kpis := model.AgentKPIs{
		AgentID:      agent.ID,
		Window:       window,
		From:         from,
		To:           to,
		BookingCount: count,
		BookingValue: revenue,
	}

	current := model.TierBronze
	if assignment, err := s.store.GetActiveAssignment(ctx, agent.ID); err == nil {
		current = assignment.TierCode
	} else if err != storage.ErrNotFound {
		return model.TierEvaluateResponse{}, fmt.Errorf("tiers: active assignment: %w", err)
	}

	recommended, err := s.recommend(ctx, kpis)
	if err != nil {
		return model.TierEvaluateResponse{}, err
	}

	return model.TierEvaluateResponse{
		KPIs:            kpis,
		CurrentTier:     current,
		RecommendedTier: recommended,
		ChangeRequired:  recommended != current,
	}, nil
}

// recommend walks the ACTIVE tiers from rank 1 down and returns the first
// whose thresholds the KPIs meet. BRONZE is the floor when nothing matches.
func (s *Service) recommend(ctx context.Context, kpis model.AgentKPIs) (model.TierCode, error) {
	tiers, err := s.store.ListActiveTiers(ctx)
	if err != nil {
		return "", fmt.Errorf("tiers: load tiers: %w", err)
	}
	for _, t := range tiers {
		if kpis.BookingCount >= t.Thresholds.MinBookings && kpis.BookingValue >= t.Thresholds.MinRevenue {
			return t.TierCode, nil
		}
	}
	return model.TierBronze, nil
}

// autoAssignWorkers bounds concurrent evaluations in a batch run. Each
// assignment is its own transaction, so agents are independent.
const autoAssignWorkers = 4

// AutoAssign evaluates each agent and writes a new assignment only when the
// recommendation differs from the current tier. Per-agent failures are
// reported in the result rather than aborting the batch.
func (s *Service) AutoAssign(ctx context.Context, req model.TierAutoAssignRequest, actor string, meta model.RequestMeta) ([]model.TierAutoAssignResult, error) {
	results := make([]model.TierAutoAssignResult, len(req.AgentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(autoAssignWorkers)
	for i, agentCode := range req.AgentIDs {
		g.Go(func() error {
			results[i] = s.autoAssignOne(gctx, agentCode, req.Window, actor, meta)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) autoAssignOne(ctx context.Context, agentCode, window, actor string, meta model.RequestMeta) model.TierAutoAssignResult {
	result := model.TierAutoAssignResult{AgentID: agentCode}

	eval, err := s.Evaluate(ctx, model.TierEvaluateRequest{AgentID: agentCode, Window: window})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.PreviousTier = eval.CurrentTier
	result.RecommendedTier = eval.RecommendedTier

	if !eval.ChangeRequired {
		return result
	}

	justification := fmt.Sprintf("%s KPIs: %d bookings, %.2f revenue",
		eval.KPIs.Window, eval.KPIs.BookingCount, eval.KPIs.BookingValue)
	if _, err := s.assign(ctx, eval.KPIs.AgentID, eval.RecommendedTier, model.AssignAuto, justification, time.Time{}, actor, meta, model.ActionAutoAssigned); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Changed = true
	s.logger.Info("tier auto-assigned",
		"agent_id", agentCode,
		"previous", result.PreviousTier,
		"recommended", result.RecommendedTier,
	)
	return result
}

// ManualAssign overrides an agent's tier. Justification is required.
func (s *Service) ManualAssign(ctx context.Context, req model.ManualAssignRequest, actor string, meta model.RequestMeta) (model.AgentTierAssignment, error) {
	if req.Justification == "" {
		return model.AgentTierAssignment{}, fmt.Errorf("tiers: manual override requires a justification")
	}

	agent, err := s.store.GetAgentByCode(ctx, req.AgentID)
	if err != nil {
		return model.AgentTierAssignment{}, fmt.Errorf("tiers: agent %s: %w", req.AgentID, err)
	}

	var effectiveFrom time.Time
	if req.EffectiveFrom != "" {
		effectiveFrom, err = time.Parse(time.RFC3339, req.EffectiveFrom)
		if err != nil {
			return model.AgentTierAssignment{}, fmt.Errorf("tiers: effectiveFrom: %w", err)
		}
	}

	return s.assign(ctx, agent.ID, req.TierCode, model.AssignManualOverride, req.Justification, effectiveFrom, actor, meta, model.ActionManualOverride)
}

func (s *Service) assign(ctx context.Context, agentID uuid.UUID, tier model.TierCode, assignType model.AssignmentType, justification string, effectiveFrom time.Time, actor string, meta model.RequestMeta, action model.AuditAction) (model.AgentTierAssignment, error) {
	assignment := model.AgentTierAssignment{
		AgentID:        agentID,
		TierCode:       tier,
		AssignmentType: assignType,
		EffectiveFrom:  effectiveFrom,
		Justification:  justification,
	}
	audit := model.AuditLog{
		Actor:         actor,
		Module:        model.ModuleTierAssignment,
		Action:        action,
		Justification: justification,
		Meta:          meta,
	}
	stored, err := s.store.AssignTierWithAudit(ctx, assignment, audit)
	if err != nil {
		return model.AgentTierAssignment{}, fmt.Errorf("tiers: assign: %w", err)
	}
	return stored, nil
}
