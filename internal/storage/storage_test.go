package storage_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	tc, err := testutil.StartPostgres()
	if err == nil {
		db, dberr := tc.NewTestDB(context.Background(), testutil.TestLogger())
		if dberr == nil {
			testDB = db
		}
		code := m.Run()
		if testDB != nil {
			testDB.Close()
		}
		tc.Terminate()
		os.Exit(code)
	}
	os.Exit(m.Run())
}

func requireDB(t *testing.T) *storage.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("Docker unavailable, skipping integration test")
	}
	return testDB
}

func testAudit(module string, action model.AuditAction) model.AuditLog {
	return model.AuditLog{
		Actor:  "test@example.com",
		Module: module,
		Action: action,
		Meta:   model.RequestMeta{IP: "127.0.0.1", RequestID: "test"},
	}
}

func sampleFare(code, origin, destination string) model.NegotiatedFare {
	now := time.Now().UTC().Truncate(time.Second)
	return model.NegotiatedFare{
		Airline:       "EK",
		FareCode:      code,
		Origin:        origin,
		Destination:   destination,
		TripType:      model.TripRoundTrip,
		CabinClass:    "ECONOMY",
		BaseNetFare:   1000,
		Currency:      "USD",
		BookingStart:  now,
		BookingEnd:    now.AddDate(0, 6, 0),
		TravelStart:   now,
		TravelEnd:     now.AddDate(1, 0, 0),
		POS:           []string{"US"},
		SeatAllotment: 50,
		Status:        model.StatusActive,
	}
}

func TestFareCreate_ConflictOnOverlap(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	first, conflicts, err := db.CreateFareWithAudit(ctx, sampleFare("NF-CONF-1", "SFO", "NRT"),
		testAudit(model.ModuleNegotiatedFare, model.ActionCreated))
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.NotEqual(t, "", first.ID.String())

	// Same scope, overlapping windows: blocked, nothing written.
	_, conflicts, err = db.CreateFareWithAudit(ctx, sampleFare("NF-CONF-2", "SFO", "NRT"),
		testAudit(model.ModuleNegotiatedFare, model.ActionCreated))
	require.NoError(t, err)
	assert.NotEmpty(t, conflicts)

	// Different route is untouched by the conflict check.
	_, conflicts, err = db.CreateFareWithAudit(ctx, sampleFare("NF-CONF-3", "SFO", "HND"),
		testAudit(model.ModuleNegotiatedFare, model.ActionCreated))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFareStatusChange_WritesAuditRow(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	fare, _, err := db.CreateFareWithAudit(ctx, sampleFare("NF-AUD-1", "BOS", "CDG"),
		testAudit(model.ModuleNegotiatedFare, model.ActionCreated))
	require.NoError(t, err)

	audit := testAudit(model.ModuleNegotiatedFare, model.ActionStatusChanged)
	audit.Justification = "seasonal pull"
	updated, err := db.UpdateFareStatusWithAudit(ctx, fare.ID, model.StatusInactive, audit)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInactive, updated.Status)

	logs, total, err := db.ListAuditLogs(ctx, model.AuditFilters{
		Module:   model.ModuleNegotiatedFare,
		EntityID: fare.ID.String(),
	}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	// Newest first: the status change carries both snapshots.
	change := logs[0]
	assert.Equal(t, model.ActionStatusChanged, change.Action)
	assert.Equal(t, "seasonal pull", change.Justification)
	assert.Equal(t, "ACTIVE", change.BeforeData["status"])
	assert.Equal(t, "INACTIVE", change.AfterData["status"])
}

func TestBulkInsertFares_SkipsConflictingRows(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	batch := []model.NegotiatedFare{
		sampleFare("NF-BULK-1", "SEA", "FRA"),
		sampleFare("NF-BULK-2", "SEA", "MUC"),
		sampleFare("NF-BULK-3", "SEA", "FRA"), // collides with row 1
	}
	inserted, skipped, err := db.BulkInsertFaresWithAudit(ctx, batch,
		testAudit(model.ModuleNegotiatedFare, model.ActionCreated))
	require.NoError(t, err)
	assert.Len(t, inserted, 2)
	assert.NotEmpty(t, skipped)

	// The committed rows are queryable.
	found, err := db.FindFareForRoute(ctx, "SEA", "MUC", "ECONOMY")
	require.NoError(t, err)
	assert.Equal(t, "NF-BULK-2", found.FareCode)
}

func TestDiscountRule_DuplicateActiveCode(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	rule := model.DynamicDiscountRule{
		RuleCode:        "DDR-DUP-1",
		AdjustmentType:  model.AdjustPercent,
		AdjustmentValue: 10,
		Priority:        1,
		Status:          model.StatusActive,
	}
	created, err := db.CreateDiscountRuleWithAudit(ctx, rule,
		testAudit(model.ModuleDiscountRule, model.ActionCreated))
	require.NoError(t, err)

	_, err = db.CreateDiscountRuleWithAudit(ctx, rule,
		testAudit(model.ModuleDiscountRule, model.ActionCreated))
	assert.ErrorIs(t, err, storage.ErrDuplicateCode)

	// INACTIVE frees the code for a fresh ACTIVE rule.
	_, err = db.UpdateDiscountRuleStatusWithAudit(ctx, created.ID, model.StatusInactive,
		testAudit(model.ModuleDiscountRule, model.ActionStatusChanged))
	require.NoError(t, err)
	_, err = db.CreateDiscountRuleWithAudit(ctx, rule,
		testAudit(model.ModuleDiscountRule, model.ActionCreated))
	assert.NoError(t, err)
}

func TestAssignTier_SingleActiveAssignment(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	agent, err := db.CreateAgentWithAudit(ctx, model.Agent{
		AgentCode: "AGT-ASSIGN-1",
		Name:      "Assignment Test",
		Status:    model.StatusActive,
	}, testAudit(model.ModuleAgent, model.ActionCreated))
	require.NoError(t, err)

	for i, tier := range []model.TierCode{model.TierSilver, model.TierGold} {
		_, err := db.AssignTierWithAudit(ctx, model.AgentTierAssignment{
			AgentID:        agent.ID,
			TierCode:       tier,
			AssignmentType: model.AssignAuto,
			EffectiveFrom:  time.Now().UTC(),
			Justification:  fmt.Sprintf("assignment %d", i+1),
		}, testAudit(model.ModuleTierAssignment, model.ActionAutoAssigned))
		require.NoError(t, err)
	}

	active, err := db.GetActiveAssignment(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierGold, active.TierCode)

	assignments, total, err := db.ListAssignments(ctx, agent.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	superseded := 0
	for _, a := range assignments {
		if a.SupersededAt != nil {
			superseded++
		}
	}
	assert.Equal(t, 1, superseded, "exactly one assignment should be superseded")
}

func TestAssignTier_SupersedeAtNewEffectiveFrom(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	agent, err := db.CreateAgentWithAudit(ctx, model.Agent{
		AgentCode: "AGT-ASSIGN-2",
		Name:      "Future Override Test",
		Status:    model.StatusActive,
	}, testAudit(model.ModuleAgent, model.ActionCreated))
	require.NoError(t, err)

	_, err = db.AssignTierWithAudit(ctx, model.AgentTierAssignment{
		AgentID:        agent.ID,
		TierCode:       model.TierSilver,
		AssignmentType: model.AssignAuto,
		Justification:  "initial",
	}, testAudit(model.ModuleTierAssignment, model.ActionAutoAssigned))
	require.NoError(t, err)

	// A manual override taking effect next month supersedes the old
	// assignment at that date, not at write time.
	effective := time.Now().UTC().AddDate(0, 1, 0).Truncate(time.Second)
	_, err = db.AssignTierWithAudit(ctx, model.AgentTierAssignment{
		AgentID:        agent.ID,
		TierCode:       model.TierPlatinum,
		AssignmentType: model.AssignManualOverride,
		EffectiveFrom:  effective,
		Justification:  "strategic account",
	}, testAudit(model.ModuleTierAssignment, model.ActionManualOverride))
	require.NoError(t, err)

	assignments, _, err := db.ListAssignments(ctx, agent.ID, 10, 0)
	require.NoError(t, err)
	for _, a := range assignments {
		if a.TierCode == model.TierSilver {
			require.NotNil(t, a.SupersededAt)
			assert.True(t, a.SupersededAt.Equal(effective),
				"superseded_at should be the new assignment's effectiveFrom")
		}
	}
}

func TestOfferTrace_RoundTripAndKPIs(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	trace := model.OfferTrace{
		TraceID:      "TRC-test1",
		AuditTraceID: "AUD-test1",
		AgentID:      "AGT-KPI-1",
		AgentTier:    model.TierBronze,
		Cohorts:      []string{},
		Origin:       "JFK",
		Destination:  "LHR",
		FareSource:   model.FareSourceAPI,
		BasePrice:    8500,
		Adjustments:  []model.AppliedAdjustment{},
		Ancillaries:  []model.AncillaryLine{},
		Bundles:      []model.BundleLine{},
		FinalPrice:   8500,
		Commission:   255,
	}
	saved, err := db.InsertOfferTrace(ctx, trace)
	require.NoError(t, err)

	got, err := db.GetOfferTrace(ctx, saved.TraceID)
	require.NoError(t, err)
	assert.Equal(t, 8500.0, got.BasePrice)
	assert.Equal(t, model.FareSourceAPI, got.FareSource)

	count, revenue, err := db.AgentKPIsSince(ctx, "AGT-KPI-1", time.Now().UTC().AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 8500.0, revenue)
}

func TestGetFare_NotFound(t *testing.T) {
	db := requireDB(t)

	fare, _, err := db.CreateFareWithAudit(context.Background(), sampleFare("NF-DEL-1", "LAX", "SYD"),
		testAudit(model.ModuleNegotiatedFare, model.ActionCreated))
	require.NoError(t, err)

	require.NoError(t, db.DeleteFareWithAudit(context.Background(), fare.ID,
		testAudit(model.ModuleNegotiatedFare, model.ActionDeleted)))

	_, err = db.GetFare(context.Background(), fare.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
