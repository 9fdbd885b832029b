package model

// RiskLevel is ordered: low < medium < high < critical.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether r is as severe as other or more.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.rank() >= other.rank()
}

// Max returns the more severe of the two levels.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > r.rank() {
		return other
	}
	return r
}

type RiskFactorType string

const (
	RiskFactorSecurity      RiskFactorType = "security"
	RiskFactorPerformance   RiskFactorType = "performance"
	RiskFactorCompatibility RiskFactorType = "compatibility"
)

type RiskFactor struct {
	Type        RiskFactorType `json:"type"`
	Severity    RiskLevel      `json:"severity"`
	Description string         `json:"description"`
	Mitigation  string         `json:"mitigation"`
	Paths       []string       `json:"paths"`
}

type RiskAssessment struct {
	OverallRisk        RiskLevel    `json:"overallRisk"`
	Factors            []RiskFactor `json:"factors"`
	Mitigations        []string     `json:"mitigations"`
	RecommendedActions []string     `json:"recommendedActions"`
	Confidence         int          `json:"confidence"`
}

// HasFactor reports whether the assessment contains a factor of the given type.
func (r RiskAssessment) HasFactor(t RiskFactorType) bool {
	for _, f := range r.Factors {
		if f.Type == t {
			return true
		}
	}
	return false
}
