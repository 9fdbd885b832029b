package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nais/deploy-governance/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.Status
		allowed  bool
	}{
		{model.StatusCreated, model.StatusValidating, true},
		{model.StatusValidating, model.StatusVoting, true},
		{model.StatusValidating, model.StatusValidationFailed, true},
		{model.StatusVoting, model.StatusApproved, true},
		{model.StatusVoting, model.StatusWithdrawn, true},
		{model.StatusApproved, model.StatusDeploying, true},
		{model.StatusDeploying, model.StatusPartiallyFailed, true},
		{model.StatusPartiallyFailed, model.StatusDeployed, true},
		{model.StatusDeployed, model.StatusRolledBack, true},
		{model.StatusFailed, model.StatusRolledBack, true},

		{model.StatusCreated, model.StatusVoting, false},
		{model.StatusVoting, model.StatusDeploying, false},
		{model.StatusDeploying, model.StatusWithdrawn, false},
		{model.StatusRejected, model.StatusVoting, false},
		{model.StatusRolledBack, model.StatusDeployed, false},
		{model.StatusDeployed, model.StatusDeploying, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, model.CanTransition(tc.from, tc.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range []model.Status{model.StatusValidationFailed, model.StatusRejected, model.StatusWithdrawn, model.StatusRolledBack} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []model.Status{model.StatusVoting, model.StatusDeployed, model.StatusPartiallyFailed, model.StatusFailed} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestApproval_Validate(t *testing.T) {
	t.Run("matching variant", func(t *testing.T) {
		assert.NoError(t, model.Approval{Kind: model.ApproverAIReviewer, AIReview: &model.AIReviewDetails{}}.Validate())
		assert.NoError(t, model.Approval{Kind: model.ApproverCommunity, Community: &model.CommunityDetails{}, VotingPower: 2}.Validate())
		assert.NoError(t, model.Approval{Kind: model.ApproverExpert, Expert: &model.ExpertDetails{ReputationScore: 1200}}.Validate())
	})

	t.Run("mismatched variant", func(t *testing.T) {
		err := model.Approval{Kind: model.ApproverExpert, Community: &model.CommunityDetails{}}.Validate()
		assert.EqualError(t, err, `approval of kind "expert" has mismatched details`)
	})

	t.Run("two variants", func(t *testing.T) {
		err := model.Approval{Kind: model.ApproverAIReviewer, AIReview: &model.AIReviewDetails{}, Expert: &model.ExpertDetails{}}.Validate()
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.EqualError(t, model.Approval{Kind: "oracle"}.Validate(), `unknown approver kind "oracle"`)
	})

	t.Run("negative voting power", func(t *testing.T) {
		err := model.Approval{Kind: model.ApproverCommunity, Community: &model.CommunityDetails{}, VotingPower: -1}.Validate()
		assert.Error(t, err)
	})
}

func TestVoteChoice_IsValid(t *testing.T) {
	assert.True(t, model.VoteApprove.IsValid())
	assert.True(t, model.VoteAbstain.IsValid())
	assert.False(t, model.VoteChoice("maybe").IsValid())
}

func TestDeployment_Clone(t *testing.T) {
	d := model.Deployment{
		ID:      "d1",
		Changes: []model.Change{{Path: "a.ts", Type: model.ChangeTypeAdd}},
		Targets: []model.TargetRef{{ID: "vercel", CurrentVersion: "v1"}},
		Tally:   &model.TallyResult{VotesCast: 3},
	}

	clone := d.Clone()
	clone.Changes[0].Path = "b.ts"
	clone.Targets[0].CurrentVersion = "v2"
	clone.Tally.VotesCast = 4

	assert.Equal(t, "a.ts", d.Changes[0].Path)
	assert.Equal(t, "v1", d.Targets[0].CurrentVersion)
	assert.Equal(t, 3, d.Tally.VotesCast)

	t.Run("change values are not shared", func(t *testing.T) {
		d := model.Deployment{Changes: []model.Change{{
			Path:     "config/app.json",
			Type:     model.ChangeTypeModify,
			OldValue: map[string]any{"a": 1.0, "tags": []any{"x"}},
			NewValue: []any{map[string]any{"b": 2.0}},
		}}}

		clone := d.Clone()
		clone.Changes[0].OldValue.(map[string]any)["a"] = 42.0
		clone.Changes[0].OldValue.(map[string]any)["tags"].([]any)[0] = "y"
		clone.Changes[0].NewValue.([]any)[0].(map[string]any)["b"] = 3.0

		assert.Equal(t, map[string]any{"a": 1.0, "tags": []any{"x"}}, d.Changes[0].OldValue)
		assert.Equal(t, []any{map[string]any{"b": 2.0}}, d.Changes[0].NewValue)
	})

	t.Run("approval details are not shared", func(t *testing.T) {
		d := model.Deployment{
			Approvals: []model.Approval{{
				Kind:     model.ApproverAIReviewer,
				AIReview: &model.AIReviewDetails{Concerns: []string{"overall risk is high"}},
			}},
			Rollbacks: []model.RollbackRecord{{Results: []model.TargetResult{{TargetID: "vercel", Warnings: []string{"slow"}}}}},
		}

		clone := d.Clone()
		clone.Approvals[0].AIReview.Concerns[0] = "none"
		clone.Approvals[0].AIReview.AdditiveRatio = 1
		clone.Rollbacks[0].Results[0].Warnings[0] = "fast"

		assert.Equal(t, []string{"overall risk is high"}, d.Approvals[0].AIReview.Concerns)
		assert.Equal(t, 0.0, d.Approvals[0].AIReview.AdditiveRatio)
		assert.Equal(t, []string{"slow"}, d.Rollbacks[0].Results[0].Warnings)
	})

	target, ok := d.Target("vercel")
	assert.True(t, ok)
	assert.Equal(t, "v1", target.CurrentVersion)
	_, ok = d.Target("netlify")
	assert.False(t, ok)
}

func TestReputation_Clone(t *testing.T) {
	rep := model.Reputation{UserID: "alice", Expertise: []string{"react"}, Achievements: []model.Achievement{{ID: "first_deployment"}}}
	clone := rep.Clone()
	clone.Expertise[0] = "vue"

	assert.Equal(t, "react", rep.Expertise[0])
	assert.True(t, rep.HasAchievement("first_deployment"))
	assert.False(t, rep.HasAchievement("eco_warrior"))
}
