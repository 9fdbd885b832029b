package deployment

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/model"
)

func (o *Orchestrator) startDeploy(id string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.deploy(context.Background(), id)
	}()
}

func (o *Orchestrator) deploy(ctx context.Context, id string) {
	log := o.log.WithField("deployment_id", id)

	d, err := o.update(ctx, id, func(d *model.Deployment) error {
		if d.Status != model.StatusApproved {
			return errSkip
		}
		return o.move(ctx, d, model.StatusDeploying, "dispatching to targets")
	})
	if errors.Is(err, errSkip) {
		log.Info("deployment is no longer approved, not dispatching")
		return
	} else if err != nil {
		log.WithError(err).Error("starting dispatch")
		return
	}

	results := o.dispatch(ctx, d.ID, model.TargetOpDeploy, d.Version, d.Targets)

	d, err = o.update(ctx, id, func(d *model.Deployment) error {
		o.applyDeployResults(d, results)
		d.TargetResults = results
		return o.move(ctx, d, aggregate(d.Targets), summarize(results))
	})
	if err != nil {
		log.WithError(err).Error("recording dispatch results")
		return
	}

	log.WithField("status", d.Status).Info("dispatch finished")
	o.settle(ctx, d)
}

// RetryFailedTargets re-dispatches the failed targets of a partially failed
// deployment. The deployment completes once every target is synced.
func (o *Orchestrator) RetryFailedTargets(ctx context.Context, id, actor string) (model.Deployment, error) {
	unlock, ok := o.operations.TryLock(id)
	if !ok {
		return model.Deployment{}, fmt.Errorf("%w: another target operation is running for deployment %s", apierror.ErrConflict, id)
	}
	defer unlock()

	d, err := o.store.LoadDeployment(ctx, id)
	if err != nil {
		return model.Deployment{}, err
	}
	if d.Status != model.StatusPartiallyFailed {
		return model.Deployment{}, fmt.Errorf("%w: deployment %s is %s, only partially failed deployments can be retried", apierror.ErrConflict, id, d.Status)
	}

	failed := make([]model.TargetRef, 0)
	for _, t := range d.Targets {
		if t.SyncStatus != model.SyncSynced {
			failed = append(failed, t)
		}
	}
	o.log.WithFields(logrus.Fields{"deployment_id": id, "user_id": actor, "targets": len(failed)}).Info("retrying failed targets")

	results := o.dispatch(ctx, d.ID, model.TargetOpDeploy, d.Version, failed)

	d, err = o.update(ctx, id, func(d *model.Deployment) error {
		o.applyDeployResults(d, results)
		for _, r := range results {
			idx := slices.IndexFunc(d.TargetResults, func(existing model.TargetResult) bool { return existing.TargetID == r.TargetID })
			if idx >= 0 {
				d.TargetResults[idx] = r
			} else {
				d.TargetResults = append(d.TargetResults, r)
			}
		}
		if aggregate(d.Targets) == model.StatusDeployed {
			return o.move(ctx, d, model.StatusDeployed, "all targets synced after retry by "+actor)
		}
		d.UpdatedAt = o.clock.Now()
		return nil
	})
	if err != nil {
		return model.Deployment{}, err
	}

	if d.Status == model.StatusDeployed {
		o.settle(ctx, d)
		return o.store.LoadDeployment(ctx, id)
	}
	return d, &apierror.SyncError{Results: results}
}

// dispatch runs the operation against every target concurrently, bounded by
// MaxParallelTargets. A failing target never stops its siblings.
func (o *Orchestrator) dispatch(ctx context.Context, deploymentID string, op model.TargetOperation, version string, targets []model.TargetRef) []model.TargetResult {
	results := make([]model.TargetResult, len(targets))
	g := errgroup.Group{}
	g.SetLimit(o.cfg.MaxParallelTargets)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = o.dispatchTarget(ctx, deploymentID, op, version, target)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) dispatchTarget(ctx context.Context, deploymentID string, op model.TargetOperation, version string, target model.TargetRef) model.TargetResult {
	log := o.log.WithFields(logrus.Fields{
		"deployment_id": deploymentID,
		"target_id":     target.ID,
		"operation":     op,
	})
	res := model.TargetResult{
		TargetID:  target.ID,
		Operation: op,
		Status:    model.SyncFailed,
		Version:   version,
		StartedAt: o.clock.Now(),
	}
	defer func() {
		res.FinishedAt = o.clock.Now()
		o.metrics.dispatchTime.Record(ctx, res.FinishedAt.Sub(res.StartedAt).Milliseconds(), metric.WithAttributes(attribute.String("operation", string(op))))
		if !res.Synced() {
			o.metrics.syncFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target.ID)))
		}
	}()

	client, err := o.resolver.Client(target)
	if err != nil {
		res.Reason = err.Error()
		log.WithError(err).Error("resolving target client")
		return res
	}

	attempts := 1 + max(o.cfg.TargetRetries, 0)
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		status, err := o.call(ctx, func(ctx context.Context) (model.TargetStatus, error) {
			if op == model.TargetOpRollback {
				return client.Rollback(ctx, deploymentID, target, version)
			}
			return client.Deploy(ctx, deploymentID, version, target)
		})

		switch {
		case err != nil:
			res.Reason = err.Error()
		case status.Sync != model.SyncSynced:
			res.Reason = status.Message
			if res.Reason == "" {
				res.Reason = fmt.Sprintf("target reported %s", status.Sync)
			}
		default:
			res.Status = model.SyncSynced
			res.Reason = ""
			res.Warnings = status.Warnings
			if status.Version != "" {
				res.Version = status.Version
			}
			return res
		}
		log.WithField("attempt", attempt).WithField("reason", res.Reason).Warn("target operation failed")
	}
	return res
}

type callResult struct {
	status model.TargetStatus
	err    error
}

// call runs fn with the per-target timeout. A client that ignores its context
// is abandoned when the timeout fires.
func (o *Orchestrator) call(ctx context.Context, fn func(ctx context.Context) (model.TargetStatus, error)) (model.TargetStatus, error) {
	ctx, cancel := o.clock.WithTimeout(ctx, o.cfg.TargetTimeout)
	defer cancel()

	ch := make(chan callResult, 1)
	go func() {
		status, err := fn(ctx)
		ch <- callResult{status: status, err: err}
	}()

	select {
	case r := <-ch:
		return r.status, r.err
	case <-ctx.Done():
		return model.TargetStatus{}, fmt.Errorf("timed out after %s: %w", o.cfg.TargetTimeout, ctx.Err())
	}
}

func (o *Orchestrator) applyDeployResults(d *model.Deployment, results []model.TargetResult) {
	for _, r := range results {
		idx := slices.IndexFunc(d.Targets, func(t model.TargetRef) bool { return t.ID == r.TargetID })
		if idx < 0 {
			continue
		}
		t := &d.Targets[idx]
		if !r.Synced() {
			t.SyncStatus = model.SyncFailed
			continue
		}
		if t.CurrentVersion != r.Version {
			t.PreviousVersion = t.CurrentVersion
			t.CurrentVersion = r.Version
		}
		t.SyncStatus = model.SyncSynced
		t.Health = model.HealthHealthy
	}
}

// aggregate derives the dispatch outcome from the sync status of all targets.
func aggregate(targets []model.TargetRef) model.Status {
	synced := 0
	for _, t := range targets {
		if t.SyncStatus == model.SyncSynced {
			synced++
		}
	}
	switch synced {
	case len(targets):
		return model.StatusDeployed
	case 0:
		return model.StatusFailed
	}
	return model.StatusPartiallyFailed
}

func summarize(results []model.TargetResult) string {
	synced := 0
	for _, r := range results {
		if r.Synced() {
			synced++
		}
	}
	return fmt.Sprintf("%d of %d targets synced", synced, len(results))
}
