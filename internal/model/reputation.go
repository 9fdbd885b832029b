package model

import "time"

// Reputation is a user's soulbound (non-transferable) reputation record.
type Reputation struct {
	UserID                  string        `json:"userId"`
	TotalScore              int           `json:"totalScore"`
	DeploymentContributions int           `json:"deploymentContributions"`
	CommunityLeadership     int           `json:"communityLeadership"`
	InnovationBonus         int           `json:"innovationBonus"`
	EnvironmentalImpact     float64       `json:"environmentalImpact"`
	ConsistencyScore        int           `json:"consistencyScore"`
	Expertise               []string      `json:"expertise"`
	Achievements            []Achievement `json:"achievements"`
	UpdatedAt               time.Time     `json:"updatedAt"`
}

// HasAchievement reports whether the achievement id is already unlocked.
func (r Reputation) HasAchievement(id string) bool {
	for _, a := range r.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so that slices are not shared between records.
func (r Reputation) Clone() Reputation {
	ret := r
	ret.Expertise = append([]string(nil), r.Expertise...)
	ret.Achievements = append([]Achievement(nil), r.Achievements...)
	return ret
}

type Achievement struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Rarity     string    `json:"rarity"`
	UnlockedAt time.Time `json:"unlockedAt"`
	Value      int       `json:"value"`
}
