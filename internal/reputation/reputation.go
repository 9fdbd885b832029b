package reputation

import (
	"math"
	"strings"
	"time"

	"github.com/nais/deploy-governance/internal/model"
)

type ActionKind string

const (
	ActionDeploymentSuccess ActionKind = "deployment_success"
	ActionDeploymentFailure ActionKind = "deployment_failure"
	ActionAccurateVote      ActionKind = "accurate_vote"
	ActionInaccurateVote    ActionKind = "inaccurate_vote"
	ActionExpertReview      ActionKind = "expert_review"
	ActionInnovation        ActionKind = "innovation"
)

func (a ActionKind) IsValid() bool {
	switch a {
	case ActionDeploymentSuccess, ActionDeploymentFailure, ActionAccurateVote, ActionInaccurateVote, ActionExpertReview, ActionInnovation:
		return true
	}
	return false
}

// OutcomeContext carries the optional inputs of an outcome.
type OutcomeContext struct {
	EnvironmentalImpact float64
	InnovationScore     int
	At                  time.Time
}

const (
	minMultiplier = 0.5
	maxMultiplier = 3.0

	deploymentSuccessPoints   = 10
	environmentalImpactPoints = 8
	deploymentFailurePoints   = -5
	accurateVotePoints        = 5
	inaccurateVotePoints      = -2
	expertReviewPoints        = 15
	innovationPoints          = 20
)

// Multiplier is the reputation component of voting power.
func Multiplier(totalScore int) float64 {
	return math.Min(math.Max(float64(totalScore)/1000, minMultiplier), maxMultiplier)
}

// VotingPower derives the weight of a vote from the voter's reputation. The
// result is rounded to two decimals and never below 0.5.
func VotingPower(rep model.Reputation, expertise []string, relevantContext []string) float64 {
	expertiseBonus := 0.1 * float64(len(expertise))
	if matchesContext(expertise, relevantContext) {
		expertiseBonus += 0.3
	}
	consistencyBonus := float64(min(max(rep.ConsistencyScore, 0), 100)) / 100 * 0.5
	environmentalBonus := math.Max(math.Min(rep.EnvironmentalImpact/100, 0.5), 0)

	power := Multiplier(rep.TotalScore) + expertiseBonus + consistencyBonus + environmentalBonus
	power = math.Round(power*100) / 100
	return math.Max(power, minMultiplier)
}

func matchesContext(expertise, relevantContext []string) bool {
	for _, e := range expertise {
		for _, c := range relevantContext {
			if strings.EqualFold(e, c) {
				return true
			}
		}
	}
	return false
}

// ApplyOutcome returns an updated copy of rep. The total score is floored at
// zero, consistency is recomputed and newly earned achievements from the
// catalogue are unlocked.
func ApplyOutcome(rep model.Reputation, action ActionKind, oc OutcomeContext, catalogue Catalogue) model.Reputation {
	ret := rep.Clone()

	switch action {
	case ActionDeploymentSuccess:
		ret.TotalScore += deploymentSuccessPoints
		ret.DeploymentContributions++
		if oc.EnvironmentalImpact != 0 {
			ret.TotalScore += environmentalImpactPoints
			ret.EnvironmentalImpact += oc.EnvironmentalImpact
		}
	case ActionDeploymentFailure:
		ret.TotalScore += deploymentFailurePoints
		ret.DeploymentContributions++
	case ActionAccurateVote:
		ret.TotalScore += accurateVotePoints
	case ActionInaccurateVote:
		ret.TotalScore += inaccurateVotePoints
	case ActionExpertReview:
		ret.TotalScore += expertReviewPoints
		ret.CommunityLeadership++
	case ActionInnovation:
		ret.TotalScore += innovationPoints
		ret.InnovationBonus += oc.InnovationScore
	}

	ret.TotalScore = max(ret.TotalScore, 0)
	ret.ConsistencyScore = Consistency(ret)
	ret.UpdatedAt = oc.At
	return catalogue.Unlock(ret, oc.At)
}

// Consistency is min(participation + quality, 100).
func Consistency(rep model.Reputation) int {
	activities := rep.DeploymentContributions + rep.CommunityLeadership
	participation := min(2*activities, 60)
	quality := min(rep.TotalScore/10, 40)
	return min(participation+quality, 100)
}
