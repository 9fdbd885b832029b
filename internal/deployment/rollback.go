package deployment

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/model"
)

// Rollback reverts the targets still running the deployment's version. The
// version is the given one, or else the version the targets ran before. Only
// one rollback per deployment runs at a time; concurrent calls fail with
// apierror.ErrConcurrentRollbackConflict.
func (o *Orchestrator) Rollback(ctx context.Context, id, version, actor string) (model.Deployment, error) {
	unlock, ok := o.operations.TryLock(id)
	if !ok {
		return model.Deployment{}, fmt.Errorf("%w: deployment %s", apierror.ErrConcurrentRollbackConflict, id)
	}
	defer unlock()

	log := o.log.WithFields(logrus.Fields{"deployment_id": id, "user_id": actor})

	d, err := o.store.LoadDeployment(ctx, id)
	if err != nil {
		return model.Deployment{}, err
	}
	if !d.RollbackAvailable {
		return model.Deployment{}, fmt.Errorf("%w: deployment %s has no rollback available", apierror.ErrRollbackUnavailable, id)
	}
	switch d.Status {
	case model.StatusDeployed, model.StatusPartiallyFailed, model.StatusFailed:
	default:
		return model.Deployment{}, fmt.Errorf("%w: deployment %s is %s", apierror.ErrRollbackUnavailable, id, d.Status)
	}

	targets := o.refresh(ctx, d)
	affected := make([]model.TargetRef, 0, len(targets))
	for _, t := range targets {
		if t.CurrentVersion == d.Version {
			affected = append(affected, t)
		}
	}
	if len(affected) == 0 {
		return model.Deployment{}, fmt.Errorf("%w: no target of deployment %s is running version %s", apierror.ErrRollbackUnavailable, id, d.Version)
	}

	if version == "" {
		for _, t := range affected {
			if t.PreviousVersion != "" {
				version = t.PreviousVersion
				break
			}
		}
	}
	if version == "" {
		return model.Deployment{}, fmt.Errorf("%w: no previous version known for deployment %s", apierror.ErrRollbackUnavailable, id)
	}

	o.metrics.rollbacks.Add(ctx, 1)
	log.WithFields(logrus.Fields{"version": version, "targets": len(affected)}).Info("rolling back")

	results := o.dispatch(ctx, d.ID, model.TargetOpRollback, version, affected)
	succeeded := !slices.ContainsFunc(results, func(r model.TargetResult) bool { return !r.Synced() })

	d, err = o.update(ctx, id, func(d *model.Deployment) error {
		for _, t := range targets {
			if idx := slices.IndexFunc(d.Targets, func(existing model.TargetRef) bool { return existing.ID == t.ID }); idx >= 0 {
				d.Targets[idx].Health = t.Health
				d.Targets[idx].CurrentVersion = t.CurrentVersion
			}
		}
		for _, r := range results {
			idx := slices.IndexFunc(d.Targets, func(t model.TargetRef) bool { return t.ID == r.TargetID })
			if idx < 0 || !r.Synced() {
				continue
			}
			d.Targets[idx].PreviousVersion = d.Targets[idx].CurrentVersion
			d.Targets[idx].CurrentVersion = r.Version
			d.Targets[idx].SyncStatus = model.SyncSynced
		}
		d.Rollbacks = append(d.Rollbacks, model.RollbackRecord{
			Version:     version,
			RequestedBy: actor,
			Succeeded:   succeeded,
			Results:     results,
			At:          o.clock.Now(),
		})
		d.UpdatedAt = o.clock.Now()
		if !succeeded {
			return nil
		}
		d.RollbackAvailable = false
		return o.move(ctx, d, model.StatusRolledBack, fmt.Sprintf("rolled back to %s by %s", version, actor))
	})
	if err != nil {
		return model.Deployment{}, err
	}

	if !succeeded {
		log.Warn("rollback failed on some targets")
		return d, &apierror.SyncError{Results: results}
	}
	return d, nil
}

// refresh asks every target for its current version and health.
func (o *Orchestrator) refresh(ctx context.Context, d model.Deployment) []model.TargetRef {
	targets := slices.Clone(d.Targets)
	for i, t := range targets {
		client, err := o.resolver.Client(t)
		if err != nil {
			o.log.WithError(err).WithField("target_id", t.ID).Warn("resolving target client for health check")
			continue
		}
		status, err := o.call(ctx, func(ctx context.Context) (model.TargetStatus, error) {
			return client.HealthCheck(ctx, t), nil
		})
		if err != nil {
			o.log.WithError(err).WithField("target_id", t.ID).Warn("health check")
			continue
		}
		if status.Health != "" {
			targets[i].Health = status.Health
		}
		if status.Version != "" {
			targets[i].CurrentVersion = status.Version
		}
	}
	return targets
}

// HealthCheck reports the current status of every target of a deployment.
func (o *Orchestrator) HealthCheck(ctx context.Context, id string) ([]model.TargetRef, error) {
	d, err := o.store.LoadDeployment(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.refresh(ctx, d), nil
}
