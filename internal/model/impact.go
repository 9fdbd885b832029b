package model

type ImpactScore struct {
	CommunitySatisfaction int `json:"communitySatisfaction"`
	PerformanceImpact     int `json:"performanceImpact"`
	EnvironmentalBenefit  int `json:"environmentalBenefit"`
	InnovationRecognition int `json:"innovationRecognition"`
	LongTermValue         int `json:"longTermValue"`
	// Overall is the unweighted mean of the five dimensions.
	Overall   int               `json:"overall"`
	Breakdown []ImpactBreakdown `json:"breakdown"`
}

// ImpactBreakdown is informational; its weights are not used for Overall.
type ImpactBreakdown struct {
	Category string   `json:"category"`
	Score    int      `json:"score"`
	Weight   float64  `json:"weight"`
	Factors  []string `json:"factors"`
}

// ImpactSignals carries caller supplied measurements that replace the
// baseline of a dimension. Nil fields keep the baseline.
type ImpactSignals struct {
	CommunitySatisfaction *int `json:"communitySatisfaction,omitempty"`
	PerformanceImpact     *int `json:"performanceImpact,omitempty"`
	EnvironmentalBenefit  *int `json:"environmentalBenefit,omitempty"`
	InnovationRecognition *int `json:"innovationRecognition,omitempty"`
	LongTermValue         *int `json:"longTermValue,omitempty"`
}
