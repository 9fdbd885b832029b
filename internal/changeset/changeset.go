// Package changeset decides whether a proposed change set is additive-only
// and derives the per-change environmental impact.
package changeset

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nais/deploy-governance/internal/model"
)

// Validate returns the violations that keep changes from being additive-only.
// When additiveOnly is false every change set is valid.
func Validate(changes []model.Change, additiveOnly bool) model.ValidationResult {
	violations := make([]string, 0)
	if !additiveOnly {
		return model.ValidationResult{Valid: true, Violations: violations}
	}

	for _, change := range changes {
		switch change.Type {
		case model.ChangeTypeAdd:
		case model.ChangeTypeModify:
			if !IsAdditiveModification(change.OldValue, change.NewValue) {
				violations = append(violations, fmt.Sprintf("modification of %s is not additive", change.Path))
			}
		case model.ChangeTypeDelete:
			violations = append(violations, fmt.Sprintf("deletion of %s violates additive-only policy", change.Path))
		case model.ChangeTypeMove, model.ChangeTypeRename:
			violations = append(violations, fmt.Sprintf("%s of %s violates additive-only policy", change.Type, change.Path))
		default:
			violations = append(violations, fmt.Sprintf("unknown change type %q for %s", change.Type, change.Path))
		}
	}

	return model.ValidationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// IsAdditiveModification reports whether newValue is a strict superset of
// oldValue. Objects may gain keys, sequences may gain trailing elements and
// scalars may not change at all. A missing side can't be proven a superset.
func IsAdditiveModification(oldValue, newValue any) bool {
	if oldValue == nil || newValue == nil {
		return false
	}

	switch old := oldValue.(type) {
	case map[string]any:
		updated, ok := newValue.(map[string]any)
		if !ok {
			return false
		}
		for key, value := range old {
			v, exists := updated[key]
			if !exists || !reflect.DeepEqual(value, v) {
				return false
			}
		}
		return true
	case []any:
		updated, ok := newValue.([]any)
		if !ok || len(updated) < len(old) {
			return false
		}
		for i := range old {
			if !reflect.DeepEqual(old[i], updated[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EnvironmentalImpact estimates the build and rollout cost of one change.
func EnvironmentalImpact(change model.Change) float64 {
	var impact float64
	switch change.Type {
	case model.ChangeTypeAdd:
		impact += 1
	case model.ChangeTypeModify:
		impact += 2
	case model.ChangeTypeDelete:
		impact += 0.5
	case model.ChangeTypeMove, model.ChangeTypeRename:
		impact += 1.5
	}

	if strings.Contains(change.Path, ".js") || strings.Contains(change.Path, ".ts") {
		impact += 0.5
	}
	if strings.Contains(change.Path, ".css") {
		impact += 0.3
	}
	if strings.Contains(change.Path, "node_modules") {
		impact += 2
	}
	return impact
}

// TotalEnvironmentalImpact sums the impact of every change.
func TotalEnvironmentalImpact(changes []model.Change) float64 {
	var total float64
	for _, change := range changes {
		total += EnvironmentalImpact(change)
	}
	return total
}

// AdditiveRatio is the share of changes that are additive on their own.
func AdditiveRatio(changes []model.Change) float64 {
	if len(changes) == 0 {
		return 1
	}
	additive := 0
	for _, change := range changes {
		switch change.Type {
		case model.ChangeTypeAdd:
			additive++
		case model.ChangeTypeModify:
			if IsAdditiveModification(change.OldValue, change.NewValue) {
				additive++
			}
		}
	}
	return float64(additive) / float64(len(changes))
}
