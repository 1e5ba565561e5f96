package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

type fakeStore struct {
	tiers   []model.AgentTier
	agents  []model.Agent
	cohorts []model.Cohort
}

func (f *fakeStore) CreateTierWithAudit(_ context.Context, t model.AgentTier, _ model.AuditLog) (model.AgentTier, error) {
	for _, existing := range f.tiers {
		if existing.TierCode == t.TierCode {
			return model.AgentTier{}, storage.ErrDuplicateCode
		}
	}
	f.tiers = append(f.tiers, t)
	return t, nil
}

func (f *fakeStore) CreateAgentWithAudit(_ context.Context, a model.Agent, _ model.AuditLog) (model.Agent, error) {
	for _, existing := range f.agents {
		if existing.AgentCode == a.AgentCode {
			return model.Agent{}, storage.ErrDuplicateCode
		}
	}
	f.agents = append(f.agents, a)
	return a, nil
}

func (f *fakeStore) CreateCohortWithAudit(_ context.Context, c model.Cohort, _ model.AuditLog) (model.Cohort, error) {
	for _, existing := range f.cohorts {
		if existing.CohortCode == c.CohortCode {
			return model.Cohort{}, storage.ErrDuplicateCode
		}
	}
	f.cohorts = append(f.cohorts, c)
	return c, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunSeedsDefaultLadder(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, Run(context.Background(), store, "", discard()))

	require.Len(t, store.tiers, 4)
	assert.Equal(t, model.TierPlatinum, store.tiers[0].TierCode)
	assert.Equal(t, model.TierBronze, store.tiers[3].TierCode)
}

func TestRunIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, Run(context.Background(), store, "", discard()))
	require.NoError(t, Run(context.Background(), store, "", discard()))
	assert.Len(t, store.tiers, 4)
}

func TestRunAppliesSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	data := `
agents:
  - agentCode: AGT-001
    name: Demo Agency
    pos: US
cohorts:
  - cohortCode: US-PORTAL
    name: US portal bookings
    type: GEOGRAPHIC
    pos: [US]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	store := &fakeStore{}
	require.NoError(t, Run(context.Background(), store, path, discard()))

	require.Len(t, store.agents, 1)
	assert.Equal(t, "AGT-001", store.agents[0].AgentCode)
	require.Len(t, store.cohorts, 1)
	assert.Equal(t, "US-PORTAL", store.cohorts[0].CohortCode)
}

func TestRunFailsOnMissingFile(t *testing.T) {
	store := &fakeStore{}
	err := Run(context.Background(), store, "/does/not/exist.yaml", discard())
	assert.Error(t, err)
}
