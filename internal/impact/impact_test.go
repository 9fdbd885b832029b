package impact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nais/deploy-governance/internal/impact"
	"github.com/nais/deploy-governance/internal/model"
)

func ptr(v int) *int { return &v }

func TestScorer_Score(t *testing.T) {
	scorer := impact.NewScorer()

	t.Run("baseline", func(t *testing.T) {
		score := scorer.Score([]model.Change{{Path: "README.md", Type: model.ChangeTypeAdd}}, model.ImpactSignals{})
		assert.Equal(t, 75, score.CommunitySatisfaction)
		assert.Equal(t, 80, score.PerformanceImpact)
		assert.Equal(t, 85, score.EnvironmentalBenefit)
		assert.Equal(t, 70, score.InnovationRecognition)
		assert.Equal(t, 78, score.LongTermValue)
		// (75+80+85+70+78)/5 = 77.6
		assert.Equal(t, 78, score.Overall)
	})

	t.Run("component addition", func(t *testing.T) {
		score := scorer.Score([]model.Change{{Path: "src/components/Widget.tsx", Type: model.ChangeTypeAdd}}, model.ImpactSignals{})
		assert.Equal(t, 85, score.CommunitySatisfaction)
		assert.Equal(t, 85, score.InnovationRecognition)
		assert.Equal(t, 83, score.Overall)
	})

	t.Run("modified component gets no bonus", func(t *testing.T) {
		score := scorer.Score([]model.Change{{Path: "src/components/Widget.tsx", Type: model.ChangeTypeModify}}, model.ImpactSignals{})
		assert.Equal(t, 75, score.CommunitySatisfaction)
	})

	t.Run("optimization clamps to 100", func(t *testing.T) {
		score := scorer.Score(
			[]model.Change{{Path: "src/performance/cache.ts", Type: model.ChangeTypeModify}},
			model.ImpactSignals{EnvironmentalBenefit: ptr(95)},
		)
		assert.Equal(t, 95, score.PerformanceImpact)
		assert.Equal(t, 100, score.EnvironmentalBenefit)
	})

	t.Run("signals override and clamp", func(t *testing.T) {
		score := scorer.Score(nil, model.ImpactSignals{
			CommunitySatisfaction: ptr(-20),
			LongTermValue:         ptr(250),
		})
		assert.Equal(t, 0, score.CommunitySatisfaction)
		assert.Equal(t, 100, score.LongTermValue)
	})

	t.Run("breakdown", func(t *testing.T) {
		score := scorer.Score(nil, model.ImpactSignals{})
		require.Len(t, score.Breakdown, 5)
		total := 0.0
		for _, b := range score.Breakdown {
			total += b.Weight
		}
		assert.InDelta(t, 1.0, total, 1e-9)
		assert.Equal(t, "environmental", score.Breakdown[2].Category)
		assert.Equal(t, 85, score.Breakdown[2].Score)
	})
}
