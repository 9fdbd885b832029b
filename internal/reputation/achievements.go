package reputation

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/nais/deploy-governance/internal/model"
)

// Criterion fields that a definition can set minimums for.
const (
	FieldTotalScore              = "totalScore"
	FieldDeploymentContributions = "deploymentContributions"
	FieldCommunityLeadership     = "communityLeadership"
	FieldInnovationBonus         = "innovationBonus"
	FieldEnvironmentalImpact     = "environmentalImpact"
	FieldConsistencyScore        = "consistencyScore"
)

type Definition struct {
	ID       string             `yaml:"id"`
	Title    string             `yaml:"title"`
	Category string             `yaml:"category"`
	Rarity   string             `yaml:"rarity"`
	Value    int                `yaml:"value"`
	Criteria map[string]float64 `yaml:"criteria"`
}

// Met reports whether every criterion is met by the reputation record.
func (d Definition) Met(rep model.Reputation) bool {
	for field, minimum := range d.Criteria {
		v, ok := fieldValue(rep, field)
		if !ok || v < minimum {
			return false
		}
	}
	return true
}

type Catalogue []Definition

func DefaultCatalogue() Catalogue {
	return Catalogue{
		{
			ID:       "first_deployment",
			Title:    "First Deployment",
			Category: "deployment",
			Rarity:   "common",
			Value:    10,
			Criteria: map[string]float64{FieldDeploymentContributions: 1},
		},
		{
			ID:       "eco_champion",
			Title:    "Eco Champion",
			Category: "environmental",
			Rarity:   "rare",
			Value:    50,
			Criteria: map[string]float64{FieldEnvironmentalImpact: 10},
		},
		{
			ID:       "community_pillar",
			Title:    "Community Pillar",
			Category: "community",
			Rarity:   "rare",
			Value:    40,
			Criteria: map[string]float64{FieldCommunityLeadership: 5},
		},
		{
			ID:       "innovator",
			Title:    "Innovator",
			Category: "innovation",
			Rarity:   "epic",
			Value:    60,
			Criteria: map[string]float64{FieldInnovationBonus: 50},
		},
		{
			ID:       "trusted_steward",
			Title:    "Trusted Steward",
			Category: "leadership",
			Rarity:   "legendary",
			Value:    100,
			Criteria: map[string]float64{FieldTotalScore: 500, FieldConsistencyScore: 80},
		},
	}
}

// Unlock appends every achievement whose criteria are met and that the
// record does not already hold.
func (c Catalogue) Unlock(rep model.Reputation, at time.Time) model.Reputation {
	for _, d := range c {
		if rep.HasAchievement(d.ID) || !d.Met(rep) {
			continue
		}
		rep.Achievements = append(rep.Achievements, model.Achievement{
			ID:         d.ID,
			Title:      d.Title,
			Category:   d.Category,
			Rarity:     d.Rarity,
			UnlockedAt: at,
			Value:      d.Value,
		})
	}
	return rep
}

func (c Catalogue) Validate() error {
	seen := map[string]struct{}{}
	for i, d := range c {
		if d.ID == "" {
			return fmt.Errorf("achievement %d: missing id", i)
		}
		if _, ok := seen[d.ID]; ok {
			return fmt.Errorf("achievement %q: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}
		if len(d.Criteria) == 0 {
			return fmt.Errorf("achievement %q: no criteria", d.ID)
		}
		for field := range d.Criteria {
			if _, ok := fieldValue(model.Reputation{}, field); !ok {
				return fmt.Errorf("achievement %q: unknown criterion %q", d.ID, field)
			}
		}
	}
	return nil
}

// ParseCatalogue decodes a YAML list of achievement definitions.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var c Catalogue
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("decoding achievements: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadCatalogue(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading achievements file: %w", err)
	}
	return ParseCatalogue(data)
}

func fieldValue(rep model.Reputation, field string) (float64, bool) {
	switch field {
	case FieldTotalScore:
		return float64(rep.TotalScore), true
	case FieldDeploymentContributions:
		return float64(rep.DeploymentContributions), true
	case FieldCommunityLeadership:
		return float64(rep.CommunityLeadership), true
	case FieldInnovationBonus:
		return float64(rep.InnovationBonus), true
	case FieldEnvironmentalImpact:
		return rep.EnvironmentalImpact, true
	case FieldConsistencyScore:
		return float64(rep.ConsistencyScore), true
	}
	return 0, false
}
