package impact

import (
	"math"
	"strings"

	"github.com/nais/deploy-governance/internal/model"
)

// Baseline sub-scores used when no signal is supplied for a dimension.
const (
	BaselineCommunitySatisfaction = 75
	BaselinePerformanceImpact     = 80
	BaselineEnvironmentalBenefit  = 85
	BaselineInnovationRecognition = 70
	BaselineLongTermValue         = 78
)

const (
	componentCommunityBonus  = 10
	componentInnovationBonus = 15
	optimizePerformanceBonus = 15
	optimizeEnvironmentBonus = 10
)

type dimension struct {
	category string
	weight   float64
}

// Display weights for the breakdown. Overall does not use them.
var dimensions = [...]dimension{
	{category: "community", weight: 0.2},
	{category: "performance", weight: 0.2},
	{category: "environmental", weight: 0.25},
	{category: "innovation", weight: 0.15},
	{category: "long_term", weight: 0.2},
}

type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the lovability score of a change set.
func (s *Scorer) Score(changes []model.Change, signals model.ImpactSignals) model.ImpactScore {
	scores := [5]int{
		signalOr(signals.CommunitySatisfaction, BaselineCommunitySatisfaction),
		signalOr(signals.PerformanceImpact, BaselinePerformanceImpact),
		signalOr(signals.EnvironmentalBenefit, BaselineEnvironmentalBenefit),
		signalOr(signals.InnovationRecognition, BaselineInnovationRecognition),
		signalOr(signals.LongTermValue, BaselineLongTermValue),
	}
	factors := [5][]string{}
	for i, p := range []*int{signals.CommunitySatisfaction, signals.PerformanceImpact, signals.EnvironmentalBenefit, signals.InnovationRecognition, signals.LongTermValue} {
		if p != nil {
			factors[i] = append(factors[i], "external signal")
		} else {
			factors[i] = append(factors[i], "baseline")
		}
	}

	if hasComponentAddition(changes) {
		scores[0] += componentCommunityBonus
		scores[3] += componentInnovationBonus
		factors[0] = append(factors[0], "new components")
		factors[3] = append(factors[3], "new components")
	}
	if hasOptimization(changes) {
		scores[1] += optimizePerformanceBonus
		scores[2] += optimizeEnvironmentBonus
		factors[1] = append(factors[1], "optimization changes")
		factors[2] = append(factors[2], "optimization changes")
	}

	sum := 0
	breakdown := make([]model.ImpactBreakdown, len(dimensions))
	for i := range scores {
		scores[i] = clamp(scores[i])
		sum += scores[i]
		breakdown[i] = model.ImpactBreakdown{
			Category: dimensions[i].category,
			Score:    scores[i],
			Weight:   dimensions[i].weight,
			Factors:  factors[i],
		}
	}

	return model.ImpactScore{
		CommunitySatisfaction: scores[0],
		PerformanceImpact:     scores[1],
		EnvironmentalBenefit:  scores[2],
		InnovationRecognition: scores[3],
		LongTermValue:         scores[4],
		Overall:               int(math.Round(float64(sum) / float64(len(scores)))),
		Breakdown:             breakdown,
	}
}

func hasComponentAddition(changes []model.Change) bool {
	for _, c := range changes {
		if c.Type == model.ChangeTypeAdd && strings.Contains(strings.ToLower(c.Path), "component") {
			return true
		}
	}
	return false
}

func hasOptimization(changes []model.Change) bool {
	for _, c := range changes {
		p := strings.ToLower(c.Path)
		if strings.Contains(p, "optimiz") || strings.Contains(p, "optimis") || strings.Contains(p, "performance") {
			return true
		}
	}
	return false
}

func signalOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}
