// Package seed installs the built-in tier ladder and optional demo data on
// startup. Seeding is idempotent: rows that already exist are skipped.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
)

// seedActor is the audit actor recorded for seeded rows.
const seedActor = "seed"

// Store is the storage surface seeding writes through.
type Store interface {
	CreateTierWithAudit(ctx context.Context, t model.AgentTier, audit model.AuditLog) (model.AgentTier, error)
	CreateAgentWithAudit(ctx context.Context, a model.Agent, audit model.AuditLog) (model.Agent, error)
	CreateCohortWithAudit(ctx context.Context, c model.Cohort, audit model.AuditLog) (model.Cohort, error)
}

// File is the YAML shape of an optional seed file.
type File struct {
	Tiers   []TierSpec   `yaml:"tiers"`
	Agents  []AgentSpec  `yaml:"agents"`
	Cohorts []CohortSpec `yaml:"cohorts"`
}

// TierSpec is one tier definition in a seed file.
type TierSpec struct {
	TierCode    string  `yaml:"tierCode"`
	DisplayName string  `yaml:"displayName"`
	Rank        int     `yaml:"rank"`
	MinBookings int     `yaml:"minBookings"`
	MinRevenue  float64 `yaml:"minRevenue"`
	Benefits    string  `yaml:"benefits"`
}

func (t TierSpec) model() model.AgentTier {
	return model.AgentTier{
		TierCode:    model.TierCode(t.TierCode),
		DisplayName: t.DisplayName,
		Rank:        t.Rank,
		Thresholds:  model.KPIThresholds{MinBookings: t.MinBookings, MinRevenue: t.MinRevenue},
		Benefits:    t.Benefits,
	}
}

// AgentSpec is one agent in a seed file.
type AgentSpec struct {
	AgentCode  string `yaml:"agentCode"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	AgencyName string `yaml:"agencyName"`
	POS        string `yaml:"pos"`
	Channel    string `yaml:"channel"`
}

func (a AgentSpec) model() model.Agent {
	return model.Agent{
		AgentCode:  a.AgentCode,
		Name:       a.Name,
		Email:      a.Email,
		AgencyName: a.AgencyName,
		POS:        a.POS,
		Channel:    model.Channel(a.Channel),
	}
}

// CohortSpec is one cohort in a seed file.
type CohortSpec struct {
	CohortCode   string         `yaml:"cohortCode"`
	Name         string         `yaml:"name"`
	Type         string         `yaml:"type"`
	POS          []string       `yaml:"pos"`
	Channels     []string       `yaml:"channels"`
	Device       string         `yaml:"device"`
	CriteriaExpr map[string]any `yaml:"criteriaExpr"`
}

func (c CohortSpec) model() model.Cohort {
	channels := make([]model.Channel, 0, len(c.Channels))
	for _, ch := range c.Channels {
		channels = append(channels, model.Channel(ch))
	}
	return model.Cohort{
		CohortCode:   c.CohortCode,
		Name:         c.Name,
		Type:         model.CohortType(c.Type),
		POS:          c.POS,
		Channels:     channels,
		Device:       c.Device,
		CriteriaExpr: c.CriteriaExpr,
	}
}

// DefaultTiers is the built-in ladder, rank 1 first.
func DefaultTiers() []model.AgentTier {
	return []model.AgentTier{
		{TierCode: model.TierPlatinum, DisplayName: "Platinum", Rank: 1, Thresholds: model.KPIThresholds{MinBookings: 100, MinRevenue: 500000}},
		{TierCode: model.TierGold, DisplayName: "Gold", Rank: 2, Thresholds: model.KPIThresholds{MinBookings: 50, MinRevenue: 200000}},
		{TierCode: model.TierSilver, DisplayName: "Silver", Rank: 3, Thresholds: model.KPIThresholds{MinBookings: 20, MinRevenue: 50000}},
		{TierCode: model.TierBronze, DisplayName: "Bronze", Rank: 4},
	}
}

// Run seeds the default tier ladder, then applies the seed file at path if
// one is configured.
func Run(ctx context.Context, store Store, path string, logger *slog.Logger) error {
	tiers := DefaultTiers()
	var file File

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("seed: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return fmt.Errorf("seed: parse %s: %w", path, err)
		}
		for _, t := range file.Tiers {
			tiers = append(tiers, t.model())
		}
	}

	created := 0
	for _, t := range tiers {
		_, err := store.CreateTierWithAudit(ctx, t, auditRow(model.ModuleAgentTier))
		if errors.Is(err, storage.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed: tier %s: %w", t.TierCode, err)
		}
		created++
	}
	for _, spec := range file.Agents {
		a := spec.model()
		_, err := store.CreateAgentWithAudit(ctx, a, auditRow(model.ModuleAgent))
		if errors.Is(err, storage.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed: agent %s: %w", a.AgentCode, err)
		}
		created++
	}
	for _, spec := range file.Cohorts {
		c := spec.model()
		_, err := store.CreateCohortWithAudit(ctx, c, auditRow(model.ModuleCohort))
		if errors.Is(err, storage.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed: cohort %s: %w", c.CohortCode, err)
		}
		created++
	}

	logger.Info("seed complete", "created", created)
	return nil
}

func auditRow(module string) model.AuditLog {
	return model.AuditLog{
		Actor:  seedActor,
		Module: module,
		Action: model.ActionCreated,
	}
}
