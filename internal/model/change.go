package model

// ChangeType is the kind of edit a single change applies to a path.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "add"
	ChangeTypeModify ChangeType = "modify"
	ChangeTypeDelete ChangeType = "delete"
	ChangeTypeMove   ChangeType = "move"
	ChangeTypeRename ChangeType = "rename"
)

func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeTypeAdd, ChangeTypeModify, ChangeTypeDelete, ChangeTypeMove, ChangeTypeRename:
		return true
	}
	return false
}

// Change is one proposed edit in a deployment. OldValue and NewValue hold
// decoded JSON (map[string]any, []any or a scalar) and may be nil.
type Change struct {
	Path                string     `json:"path"`
	Type                ChangeType `json:"type"`
	OldValue            any        `json:"oldValue,omitempty"`
	NewValue            any        `json:"newValue,omitempty"`
	RiskLevel           RiskLevel  `json:"riskLevel,omitempty"`
	EnvironmentalImpact float64    `json:"environmentalImpact"`
}

// CloneChanges returns a deep copy of the changes. OldValue and NewValue are
// copied recursively so that no map or slice is shared with the input.
func CloneChanges(changes []Change) []Change {
	if changes == nil {
		return nil
	}
	ret := make([]Change, len(changes))
	for i, c := range changes {
		ret[i] = c
		ret[i].OldValue = cloneValue(c.OldValue)
		ret[i].NewValue = cloneValue(c.NewValue)
	}
	return ret
}

// cloneValue copies decoded JSON. Scalars are returned as is.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		ret := make(map[string]any, len(v))
		for k, e := range v {
			ret[k] = cloneValue(e)
		}
		return ret
	case []any:
		if v == nil {
			return v
		}
		ret := make([]any, len(v))
		for i, e := range v {
			ret[i] = cloneValue(e)
		}
		return ret
	default:
		return v
	}
}
