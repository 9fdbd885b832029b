package model

import (
	"slices"
	"time"
)

type SyncStatus string

const (
	SyncUnknown SyncStatus = "unknown"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// TargetRef is a handle to an external platform. The orchestrator only
// reads and writes the status and version fields.
type TargetRef struct {
	ID              string       `json:"id"`
	Platform        string       `json:"platform"`
	Endpoint        string       `json:"endpoint,omitempty"`
	Health          HealthStatus `json:"health"`
	SyncStatus      SyncStatus   `json:"syncStatus"`
	CurrentVersion  string       `json:"currentVersion,omitempty"`
	PreviousVersion string       `json:"previousVersion,omitempty"`
}

// TargetStatus is what a platform client reports after an operation or a
// health check.
type TargetStatus struct {
	Sync     SyncStatus   `json:"sync"`
	Health   HealthStatus `json:"health"`
	Version  string       `json:"version,omitempty"`
	Message  string       `json:"message,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

type TargetOperation string

const (
	TargetOpDeploy   TargetOperation = "deploy"
	TargetOpRollback TargetOperation = "rollback"
)

// TargetResult is the outcome of dispatching one operation to one target.
type TargetResult struct {
	TargetID   string          `json:"targetId"`
	Operation  TargetOperation `json:"operation"`
	Status     SyncStatus      `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Version    string          `json:"version,omitempty"`
	Attempts   int             `json:"attempts"`
	Warnings   []string        `json:"warnings,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

func CloneTargetResults(results []TargetResult) []TargetResult {
	if results == nil {
		return nil
	}
	ret := make([]TargetResult, len(results))
	for i, r := range results {
		ret[i] = r
		ret[i].Warnings = slices.Clone(r.Warnings)
	}
	return ret
}

func (r TargetResult) Synced() bool {
	return r.Status == SyncSynced
}
