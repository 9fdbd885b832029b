package risk

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/nais/deploy-governance/internal/model"
)

const (
	// DefaultSizeThreshold is the serialized size of a new value above which a
	// change is considered a performance risk.
	DefaultSizeThreshold = 10_000
	// BaselineConfidence is used when there is not enough history.
	BaselineConfidence = 85

	minHistorySamples = 5

	mitigationSecurity      = "expert security review + penetration test"
	mitigationPerformance   = "performance test in staging"
	mitigationCompatibility = "backward-compatibility test + versioning"
	mitigationStagedRollout = "staged rollout with monitoring"
	mitigationAutoRollback  = "automated rollback on failure"
)

var (
	securityKeywords      = []string{"auth", "security", "permission"}
	compatibilityKeywords = []string{"api", "interface"}
)

// History summarizes the outcome of earlier deployments.
type History struct {
	Successes int
	Failures  int
}

type Engine struct {
	sizeThreshold int
}

// Option is a function that can be used to set custom options for the engine
type Option func(*Engine)

// WithSizeThreshold will set a custom size threshold for performance risks
func WithSizeThreshold(threshold int) Option {
	return func(e *Engine) {
		e.sizeThreshold = threshold
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{sizeThreshold: DefaultSizeThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assess derives risk factors and the overall risk level using the baseline confidence.
func (e *Engine) Assess(changes []model.Change) model.RiskAssessment {
	return e.AssessWithHistory(changes, History{})
}

// AssessWithHistory is Assess with confidence adjusted by earlier outcomes.
func (e *Engine) AssessWithHistory(changes []model.Change, history History) model.RiskAssessment {
	var security, performance, compatibility []string
	for _, change := range changes {
		if e.isSecurity(change) {
			security = append(security, change.Path)
		}
		if e.isPerformance(change) {
			performance = append(performance, change.Path)
		}
		if e.isCompatibility(change) {
			compatibility = append(compatibility, change.Path)
		}
	}

	factors := make([]model.RiskFactor, 0, 3)
	if len(security) > 0 {
		factors = append(factors, model.RiskFactor{
			Type:        model.RiskFactorSecurity,
			Severity:    model.RiskHigh,
			Description: fmt.Sprintf("security sensitive paths changed: %s", strings.Join(security, ", ")),
			Mitigation:  mitigationSecurity,
			Paths:       security,
		})
	}
	if len(performance) > 0 {
		factors = append(factors, model.RiskFactor{
			Type:        model.RiskFactorPerformance,
			Severity:    model.RiskMedium,
			Description: fmt.Sprintf("large values (over %d bytes) in: %s", e.sizeThreshold, strings.Join(performance, ", ")),
			Mitigation:  mitigationPerformance,
			Paths:       performance,
		})
	}
	if len(compatibility) > 0 {
		factors = append(factors, model.RiskFactor{
			Type:        model.RiskFactorCompatibility,
			Severity:    model.RiskMedium,
			Description: fmt.Sprintf("public interfaces changed: %s", strings.Join(compatibility, ", ")),
			Mitigation:  mitigationCompatibility,
			Paths:       compatibility,
		})
	}

	overall := model.RiskLow
	for _, f := range factors {
		// any factor at all escalates above low
		overall = overall.Max(model.RiskMedium).Max(f.Severity)
	}

	mitigations := make([]string, 0, len(factors)+2)
	for _, f := range factors {
		mitigations = appendUnique(mitigations, f.Mitigation)
	}
	mitigations = appendUnique(mitigations, mitigationStagedRollout)
	mitigations = appendUnique(mitigations, mitigationAutoRollback)

	actions := []string{"review all changes", "test in preview environment"}
	if len(security) > 0 {
		actions = append(actions, "security audit required")
	}
	if len(performance) > 0 {
		actions = append(actions, "performance testing recommended")
	}

	return model.RiskAssessment{
		OverallRisk:        overall,
		Factors:            factors,
		Mitigations:        mitigations,
		RecommendedActions: actions,
		Confidence:         confidence(history),
	}
}

// ChangeRisk is the highest severity the change triggers on its own.
func (e *Engine) ChangeRisk(change model.Change) model.RiskLevel {
	level := model.RiskLow
	if e.isPerformance(change) || e.isCompatibility(change) {
		level = level.Max(model.RiskMedium)
	}
	if e.isSecurity(change) {
		level = level.Max(model.RiskHigh)
	}
	return level
}

func (e *Engine) isSecurity(change model.Change) bool {
	return containsAny(change.Path, securityKeywords)
}

func (e *Engine) isCompatibility(change model.Change) bool {
	return containsAny(change.Path, compatibilityKeywords)
}

func (e *Engine) isPerformance(change model.Change) bool {
	if change.NewValue == nil {
		return false
	}
	b, err := json.Marshal(change.NewValue)
	if err != nil {
		// a value we can't even serialize is not something we can size
		return true
	}
	return len(b) > e.sizeThreshold
}

func confidence(history History) int {
	samples := history.Successes + history.Failures
	if samples < minHistorySamples {
		return BaselineConfidence
	}
	rate := float64(history.Successes) / float64(samples)
	c := int(math.Round(0.5*BaselineConfidence + 0.5*rate*100))
	return min(max(c, 0), 100)
}

func containsAny(path string, keywords []string) bool {
	path = strings.ToLower(path)
	for _, k := range keywords {
		if strings.Contains(path, k) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
