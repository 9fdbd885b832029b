package model

import "time"

type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

func (c VoteChoice) IsValid() bool {
	return c == VoteApprove || c == VoteReject || c == VoteAbstain
}

// Vote is a community vote. VotingPower is snapshotted when the vote is cast.
type Vote struct {
	ID           string     `json:"id"`
	DeploymentID string     `json:"deploymentId"`
	RoundID      string     `json:"roundId"`
	Voter        string     `json:"voter"`
	Choice       VoteChoice `json:"vote"`
	VotingPower  float64    `json:"votingPower"`
	Reason       string     `json:"reason,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	// Replaced is set when this vote superseded an earlier vote by the same
	// voter in the same round. It is informational, not an error.
	Replaced bool `json:"replaced,omitempty"`
}

type RoundStatus string

const (
	RoundOpen     RoundStatus = "open"
	RoundApproved RoundStatus = "approved"
	RoundRejected RoundStatus = "rejected"
)

// VotingRound is one voting window for a deployment. RelevantContext is used
// to compute expertise bonuses for voters.
type VotingRound struct {
	ID                   string       `json:"id"`
	DeploymentID         string       `json:"deploymentId"`
	Status               RoundStatus  `json:"status"`
	OpenedAt             time.Time    `json:"openedAt"`
	ClosesAt             time.Time    `json:"closesAt"`
	DecidedAt            *time.Time   `json:"decidedAt,omitempty"`
	ExpertReviewRequired bool         `json:"expertReviewRequired"`
	RequestedExperts     []string     `json:"requestedExperts,omitempty"`
	AIReview             Approval     `json:"aiReview"`
	ExpertReviews        []Approval   `json:"expertReviews,omitempty"`
	RelevantContext      []string     `json:"relevantContext,omitempty"`
	Result               *TallyResult `json:"result,omitempty"`
}

// Clone returns a deep copy of the round.
func (r VotingRound) Clone() VotingRound {
	ret := r
	ret.RequestedExperts = append([]string(nil), r.RequestedExperts...)
	ret.AIReview = r.AIReview.Clone()
	ret.ExpertReviews = CloneApprovals(r.ExpertReviews)
	ret.RelevantContext = append([]string(nil), r.RelevantContext...)
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		ret.DecidedAt = &t
	}
	if r.Result != nil {
		res := *r.Result
		ret.Result = &res
	}
	return ret
}

type TallyOutcome string

const (
	TallyPending  TallyOutcome = "pending"
	TallyApproved TallyOutcome = "approved"
	TallyRejected TallyOutcome = "rejected"
)

// TallyResult is a snapshot of a round's weighted tally. Participation is
// counted in votes, approval in voting power. A round is only closed on a
// Decisive result.
type TallyResult struct {
	RoundID            string       `json:"roundId"`
	Outcome            TallyOutcome `json:"outcome"`
	VotesCast          int          `json:"votesCast"`
	EligibleVoters     int          `json:"eligibleVoters"`
	ParticipationRate  float64      `json:"participationRate"`
	QuorumPercentage   float64      `json:"quorumPercentage"`
	QuorumMet          bool         `json:"quorumMet"`
	ApproveWeight      float64      `json:"approveWeight"`
	RejectWeight       float64      `json:"rejectWeight"`
	AbstainWeight      float64      `json:"abstainWeight"`
	ExpertWeight       float64      `json:"expertWeight"`
	TotalWeight        float64      `json:"totalWeight"`
	ApprovalPercentage float64      `json:"approvalPercentage"`
	Decisive           bool         `json:"decisive"`
	Final              bool         `json:"final"`
	Reason             string       `json:"reason,omitempty"`
}
