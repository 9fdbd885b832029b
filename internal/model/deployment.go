package model

import "time"

type Status string

const (
	StatusCreated          Status = "created"
	StatusValidating       Status = "validating"
	StatusValidationFailed Status = "validation_failed"
	StatusVoting           Status = "voting"
	StatusRejected         Status = "rejected"
	StatusApproved         Status = "approved"
	StatusWithdrawn        Status = "withdrawn"
	StatusDeploying        Status = "deploying"
	StatusDeployed         Status = "deployed"
	StatusPartiallyFailed  Status = "partially_failed"
	StatusFailed           Status = "failed"
	StatusRolledBack       Status = "rolled_back"
)

// transitions lists the allowed forward edges. The edges into RolledBack are
// the only backwards step in the lifecycle.
var transitions = map[Status][]Status{
	StatusCreated:         {StatusValidating},
	StatusValidating:      {StatusValidationFailed, StatusVoting},
	StatusVoting:          {StatusRejected, StatusApproved, StatusWithdrawn},
	StatusApproved:        {StatusDeploying, StatusWithdrawn},
	StatusDeploying:       {StatusDeployed, StatusPartiallyFailed, StatusFailed},
	StatusPartiallyFailed: {StatusDeployed, StatusRolledBack},
	StatusDeployed:        {StatusRolledBack},
	StatusFailed:          {StatusRolledBack},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

type Transition struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// RollbackRecord describes one rollback attempt of a deployment.
type RollbackRecord struct {
	Version     string         `json:"version"`
	RequestedBy string         `json:"requestedBy"`
	Succeeded   bool           `json:"succeeded"`
	Results     []TargetResult `json:"results"`
	At          time.Time      `json:"at"`
}

// Deployment is owned by the orchestrator. Changes never change after
// creation; everything else is mutated only through orchestrator
// transitions.
type Deployment struct {
	ID                  string           `json:"id"`
	Version             string           `json:"version"`
	CreatedAt           time.Time        `json:"createdAt"`
	CreatedBy           string           `json:"createdBy"`
	Status              Status           `json:"status"`
	Changes             []Change         `json:"changes"`
	Targets             []TargetRef      `json:"targets"`
	Validation          ValidationResult `json:"validation"`
	RiskAssessment      *RiskAssessment  `json:"riskAssessment,omitempty"`
	ImpactScore         *ImpactScore     `json:"impactScore,omitempty"`
	EnvironmentalImpact float64          `json:"environmentalImpact"`
	VotingRoundID       string           `json:"votingRoundId,omitempty"`
	Tally               *TallyResult     `json:"tally,omitempty"`
	Approvals           []Approval       `json:"approvals"`
	TargetResults       []TargetResult   `json:"targetResults"`
	Rollbacks           []RollbackRecord `json:"rollbacks,omitempty"`
	RollbackAvailable   bool             `json:"rollbackAvailable"`
	ReputationSettled   bool             `json:"reputationSettled"`
	History             []Transition     `json:"history"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy suitable for handing out as a read-only snapshot.
func (d Deployment) Clone() Deployment {
	ret := d
	ret.Changes = CloneChanges(d.Changes)
	ret.Targets = append([]TargetRef(nil), d.Targets...)
	ret.Validation.Violations = append([]string(nil), d.Validation.Violations...)
	if d.RiskAssessment != nil {
		ra := *d.RiskAssessment
		ra.Factors = append([]RiskFactor(nil), ra.Factors...)
		ra.Mitigations = append([]string(nil), ra.Mitigations...)
		ra.RecommendedActions = append([]string(nil), ra.RecommendedActions...)
		ret.RiskAssessment = &ra
	}
	if d.ImpactScore != nil {
		is := *d.ImpactScore
		is.Breakdown = append([]ImpactBreakdown(nil), is.Breakdown...)
		ret.ImpactScore = &is
	}
	if d.Tally != nil {
		t := *d.Tally
		ret.Tally = &t
	}
	ret.Approvals = CloneApprovals(d.Approvals)
	ret.TargetResults = CloneTargetResults(d.TargetResults)
	if d.Rollbacks != nil {
		ret.Rollbacks = make([]RollbackRecord, len(d.Rollbacks))
		for i, r := range d.Rollbacks {
			ret.Rollbacks[i] = r
			ret.Rollbacks[i].Results = CloneTargetResults(r.Results)
		}
	}
	ret.History = append([]Transition(nil), d.History...)
	return ret
}

// Target returns the target with the given id.
func (d Deployment) Target(id string) (TargetRef, bool) {
	for _, t := range d.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return TargetRef{}, false
}
