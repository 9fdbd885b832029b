package voting

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/changeset"
	"github.com/nais/deploy-governance/internal/model"
)

const aiReviewerID = "ai-reviewer"

type TallyInput struct {
	RoundID          string
	Votes            []model.Vote
	ExpertReviews    []model.Approval
	EligibleVoters   int
	QuorumPercentage float64
	DecisiveMargin   float64
	// Final is set when the voting window has expired.
	Final bool
}

// ComputeTally weighs the votes of a round. Participation is counted in votes
// while approval is weighed in voting power. Outcome reports the current
// result: approved or rejected once quorum is met, pending until the deadline
// otherwise. Decisive is set when the round may be closed on that outcome,
// which before the deadline also requires the approval percentage to be at
// least DecisiveMargin away from 50. At the deadline anything but an approval
// with quorum is a rejection.
func ComputeTally(in TallyInput) model.TallyResult {
	res := model.TallyResult{
		RoundID:          in.RoundID,
		Outcome:          model.TallyPending,
		VotesCast:        len(in.Votes),
		EligibleVoters:   max(in.EligibleVoters, len(in.Votes)),
		QuorumPercentage: in.QuorumPercentage,
		Final:            in.Final,
	}

	for _, v := range in.Votes {
		switch v.Choice {
		case model.VoteApprove:
			res.ApproveWeight += v.VotingPower
		case model.VoteReject:
			res.RejectWeight += v.VotingPower
		case model.VoteAbstain:
			res.AbstainWeight += v.VotingPower
		}
	}
	for _, a := range in.ExpertReviews {
		res.ExpertWeight += a.VotingPower
		switch a.Status {
		case model.ApprovalApproved:
			res.ApproveWeight += a.VotingPower
		case model.ApprovalRejected:
			res.RejectWeight += a.VotingPower
		}
	}
	res.TotalWeight = res.ApproveWeight + res.RejectWeight + res.AbstainWeight

	if res.EligibleVoters > 0 {
		res.ParticipationRate = float64(res.VotesCast) / float64(res.EligibleVoters) * 100
	}
	res.QuorumMet = res.VotesCast > 0 && res.ParticipationRate >= in.QuorumPercentage
	if res.TotalWeight > 0 {
		res.ApprovalPercentage = res.ApproveWeight / res.TotalWeight * 100
	}

	switch {
	case res.QuorumMet && res.ApprovalPercentage > 50:
		res.Outcome = model.TallyApproved
		res.Reason = fmt.Sprintf("approved with %.1f%% of the voting weight", res.ApprovalPercentage)
	case res.QuorumMet:
		res.Outcome = model.TallyRejected
		res.Reason = fmt.Sprintf("approval of %.1f%% is not above 50%%", res.ApprovalPercentage)
	case in.Final:
		res.Outcome = model.TallyRejected
		res.Reason = fmt.Sprintf("%v: %.1f%% participation, %.1f%% required", apierror.ErrQuorumNotMet, res.ParticipationRate, in.QuorumPercentage)
	}
	res.Decisive = in.Final || (res.QuorumMet && math.Abs(res.ApprovalPercentage-50) >= in.DecisiveMargin)
	return res
}

// ExpertWeight is the weight of one expert review.
func ExpertWeight(weight float64, totalScore int) float64 {
	return weight * math.Min(float64(totalScore)/1000, 3)
}

// AIReview is the automated advisory approval recorded when a round opens.
func AIReview(d model.Deployment, cfg Config, at time.Time) model.Approval {
	overall := model.RiskLow
	if d.RiskAssessment != nil {
		overall = d.RiskAssessment.OverallRisk
	}
	ratio := changeset.AdditiveRatio(d.Changes)

	concerns := make([]string, 0)
	if overall.AtLeast(model.RiskHigh) {
		concerns = append(concerns, fmt.Sprintf("overall risk is %s", overall))
	}
	if ratio < cfg.MinAdditiveRatio {
		concerns = append(concerns, fmt.Sprintf("additive ratio %.2f is below %.2f", ratio, cfg.MinAdditiveRatio))
	}
	if d.EnvironmentalImpact > cfg.EnvironmentalImpactThreshold {
		concerns = append(concerns, fmt.Sprintf("environmental impact %.2f exceeds %.2f", d.EnvironmentalImpact, cfg.EnvironmentalImpactThreshold))
	}

	status := model.ApprovalApproved
	reason := "no concerns found"
	if len(concerns) > 0 {
		status = model.ApprovalRejected
		reason = "recommend rejection: " + strings.Join(concerns, "; ")
	}

	return model.Approval{
		Kind:       model.ApproverAIReviewer,
		ApproverID: aiReviewerID,
		Status:     status,
		Reason:     reason,
		CreatedAt:  at,
		AIReview: &model.AIReviewDetails{
			OverallRisk:         overall,
			AdditiveRatio:       ratio,
			EnvironmentalImpact: d.EnvironmentalImpact,
			Concerns:            concerns,
		},
	}
}

// CommunityApproval turns a decided tally into an approval record.
func CommunityApproval(result model.TallyResult, at time.Time) model.Approval {
	status := model.ApprovalPending
	switch result.Outcome {
	case model.TallyApproved:
		status = model.ApprovalApproved
	case model.TallyRejected:
		status = model.ApprovalRejected
	}
	return model.Approval{
		Kind:        model.ApproverCommunity,
		ApproverID:  "community",
		Status:      status,
		VotingPower: result.TotalWeight,
		Reason:      result.Reason,
		CreatedAt:   at,
		Community: &model.CommunityDetails{
			RoundID:            result.RoundID,
			VotesCast:          result.VotesCast,
			ParticipationRate:  result.ParticipationRate,
			ApprovalPercentage: result.ApprovalPercentage,
		},
	}
}

// RelevantContext lists the lower-cased path segments of every change, with
// file extensions stripped, and the types of any risk factors.
func RelevantContext(d model.Deployment) []string {
	seen := map[string]struct{}{}
	for _, c := range d.Changes {
		for _, segment := range strings.Split(strings.ToLower(c.Path), "/") {
			segment = strings.TrimSuffix(segment, path.Ext(segment))
			if segment == "" {
				continue
			}
			seen[segment] = struct{}{}
		}
	}
	if d.RiskAssessment != nil {
		for _, f := range d.RiskAssessment.Factors {
			seen[string(f.Type)] = struct{}{}
		}
	}

	ret := make([]string, 0, len(seen))
	for s := range seen {
		ret = append(ret, s)
	}
	sort.Strings(ret)
	return ret
}
