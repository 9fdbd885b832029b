package model

import (
	"fmt"
	"slices"
	"time"
)

// ApproverKind tags which variant of an Approval is populated.
type ApproverKind string

const (
	ApproverAIReviewer ApproverKind = "ai_reviewer"
	ApproverCommunity  ApproverKind = "community"
	ApproverExpert     ApproverKind = "expert"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is a normalized record of one approving actor. Exactly one of the
// kind specific detail fields is set, matching Kind.
type Approval struct {
	Kind        ApproverKind   `json:"kind"`
	ApproverID  string         `json:"approverId"`
	Status      ApprovalStatus `json:"status"`
	VotingPower float64        `json:"votingPower"`
	Reason      string         `json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`

	AIReview  *AIReviewDetails  `json:"aiReview,omitempty"`
	Community *CommunityDetails `json:"community,omitempty"`
	Expert    *ExpertDetails    `json:"expert,omitempty"`
}

type AIReviewDetails struct {
	OverallRisk         RiskLevel `json:"overallRisk"`
	AdditiveRatio       float64   `json:"additiveRatio"`
	EnvironmentalImpact float64   `json:"environmentalImpact"`
	Concerns            []string  `json:"concerns"`
}

type CommunityDetails struct {
	RoundID            string  `json:"roundId"`
	VotesCast          int     `json:"votesCast"`
	ParticipationRate  float64 `json:"participationRate"`
	ApprovalPercentage float64 `json:"approvalPercentage"`
}

type ExpertDetails struct {
	ReputationScore int `json:"reputationScore"`
}

// Clone returns a copy that shares no details with a.
func (a Approval) Clone() Approval {
	ret := a
	if a.AIReview != nil {
		ai := *a.AIReview
		ai.Concerns = slices.Clone(ai.Concerns)
		ret.AIReview = &ai
	}
	if a.Community != nil {
		c := *a.Community
		ret.Community = &c
	}
	if a.Expert != nil {
		e := *a.Expert
		ret.Expert = &e
	}
	return ret
}

func CloneApprovals(approvals []Approval) []Approval {
	if approvals == nil {
		return nil
	}
	ret := make([]Approval, len(approvals))
	for i, a := range approvals {
		ret[i] = a.Clone()
	}
	return ret
}

// Validate checks that the populated variant matches Kind.
func (a Approval) Validate() error {
	var ok bool
	switch a.Kind {
	case ApproverAIReviewer:
		ok = a.AIReview != nil && a.Community == nil && a.Expert == nil
	case ApproverCommunity:
		ok = a.Community != nil && a.AIReview == nil && a.Expert == nil
	case ApproverExpert:
		ok = a.Expert != nil && a.AIReview == nil && a.Community == nil
	default:
		return fmt.Errorf("unknown approver kind %q", a.Kind)
	}
	if !ok {
		return fmt.Errorf("approval of kind %q has mismatched details", a.Kind)
	}
	if a.VotingPower < 0 {
		return fmt.Errorf("approval voting power must not be negative")
	}
	return nil
}
