package deployment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/changeset"
	"github.com/nais/deploy-governance/internal/impact"
	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/reputation"
	"github.com/nais/deploy-governance/internal/risk"
	"github.com/nais/deploy-governance/internal/voting"
)

type Store interface {
	SaveDeployment(ctx context.Context, d model.Deployment) error
	LoadDeployment(ctx context.Context, id string) (model.Deployment, error)
	ListDeployments(ctx context.Context) ([]model.Deployment, error)
}

// TargetClient pushes releases to one external platform.
type TargetClient interface {
	Deploy(ctx context.Context, deploymentID, version string, target model.TargetRef) (model.TargetStatus, error)
	Rollback(ctx context.Context, deploymentID string, target model.TargetRef, version string) (model.TargetStatus, error)
	HealthCheck(ctx context.Context, target model.TargetRef) model.TargetStatus
}

type Resolver interface {
	Client(target model.TargetRef) (TargetClient, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(target model.TargetRef) (TargetClient, error)

func (f ResolverFunc) Client(target model.TargetRef) (TargetClient, error) {
	return f(target)
}

type Voting interface {
	Open(ctx context.Context, d model.Deployment, onDecided voting.DecisionFunc) (model.VotingRound, error)
	Resume(ctx context.Context, roundID string, onDecided voting.DecisionFunc) error
	Round(ctx context.Context, roundID string) (model.VotingRound, error)
	Tally(ctx context.Context, roundID string) (model.TallyResult, error)
	Votes(ctx context.Context, roundID string) ([]model.Vote, error)
}

type Ledger interface {
	Apply(ctx context.Context, userID string, action reputation.ActionKind, oc reputation.OutcomeContext) (model.Reputation, error)
}

type Config struct {
	AdditiveOnly                 bool
	EnvironmentalImpactThreshold float64
	TargetTimeout                time.Duration
	TargetRetries                int
	MaxParallelTargets           int
}

func DefaultConfig() Config {
	return Config{
		AdditiveOnly:                 true,
		EnvironmentalImpactThreshold: 100,
		TargetTimeout:                2 * time.Minute,
		TargetRetries:                1,
		MaxParallelTargets:           4,
	}
}

type CreateRequest struct {
	Version   string
	CreatedBy string
	Changes   []model.Change
	Targets   []model.TargetRef
	Signals   model.ImpactSignals
}

type metrics struct {
	created      metric.Int64Counter
	transitions  metric.Int64Counter
	syncFailures metric.Int64Counter
	rollbacks    metric.Int64Counter
	dispatchTime metric.Int64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	created, err := meter.Int64Counter("deployments_created", metric.WithDescription("deployments created"))
	if err != nil {
		return nil, fmt.Errorf("creating deployments_created counter: %w", err)
	}
	transitions, err := meter.Int64Counter("deployment_transitions", metric.WithDescription("deployment status transitions"))
	if err != nil {
		return nil, fmt.Errorf("creating deployment_transitions counter: %w", err)
	}
	syncFailures, err := meter.Int64Counter("target_sync_failures", metric.WithDescription("failed target operations"))
	if err != nil {
		return nil, fmt.Errorf("creating target_sync_failures counter: %w", err)
	}
	rollbacks, err := meter.Int64Counter("rollbacks", metric.WithDescription("rollbacks attempted"))
	if err != nil {
		return nil, fmt.Errorf("creating rollbacks counter: %w", err)
	}
	dispatchTime, err := meter.Int64Histogram("target_dispatch_time", metric.WithDescription("time spent on one target operation"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating target_dispatch_time histogram: %w", err)
	}
	return &metrics{
		created:      created,
		transitions:  transitions,
		syncFailures: syncFailures,
		rollbacks:    rollbacks,
		dispatchTime: dispatchTime,
	}, nil
}

type Orchestrator struct {
	store    Store
	voting   Voting
	ledger   Ledger
	resolver Resolver
	risk     *risk.Engine
	impact   *impact.Scorer
	cfg      Config
	clock    clock.Clock
	log      logrus.FieldLogger
	metrics  *metrics

	// locks serializes record updates, operations serializes target
	// operations (dispatch retries and rollbacks) of one deployment.
	locks      *keyedMutex
	operations *keyedMutex

	wg sync.WaitGroup
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func WithRiskEngine(e *risk.Engine) Option {
	return func(o *Orchestrator) {
		o.risk = e
	}
}

func New(store Store, v Voting, ledger Ledger, resolver Resolver, cfg Config, meter metric.Meter, log logrus.FieldLogger, opts ...Option) (*Orchestrator, error) {
	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}
	if cfg.MaxParallelTargets < 1 {
		cfg.MaxParallelTargets = 1
	}

	o := &Orchestrator{
		store:      store,
		voting:     v,
		ledger:     ledger,
		resolver:   resolver,
		risk:       risk.New(),
		impact:     impact.NewScorer(),
		cfg:        cfg,
		clock:      clock.New(),
		log:        log,
		metrics:    m,
		locks:      newKeyedMutex(),
		operations: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Create records a new deployment and, if it passes validation and the
// environmental impact ceiling, opens a voting round for it. Rejected
// deployments are still stored and returned together with the error.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (model.Deployment, error) {
	if err := o.validateRequest(req); err != nil {
		return model.Deployment{}, err
	}

	now := o.clock.Now()
	d := model.Deployment{
		ID:                uuid.NewString(),
		Version:           req.Version,
		CreatedAt:         now,
		CreatedBy:         req.CreatedBy,
		Status:            model.StatusCreated,
		Changes:           o.annotate(req.Changes),
		Targets:           initialTargets(req.Targets),
		Approvals:         []model.Approval{},
		TargetResults:     []model.TargetResult{},
		History:           []model.Transition{},
		RollbackAvailable: true,
		UpdatedAt:         now,
	}
	if d.Version == "" {
		d.Version = now.UTC().Format("20060102150405")
	}

	log := o.log.WithField("deployment_id", d.ID)
	defer o.locks.Lock(d.ID)()

	o.metrics.created.Add(ctx, 1)
	if err := o.move(ctx, &d, model.StatusValidating, "created"); err != nil {
		return model.Deployment{}, err
	}

	d.Validation = changeset.Validate(d.Changes, o.cfg.AdditiveOnly)
	history, err := o.history(ctx)
	if err != nil {
		log.WithError(err).Warn("loading deployment history, using baseline confidence")
	}
	assessment := o.risk.AssessWithHistory(d.Changes, history)
	d.RiskAssessment = &assessment
	score := o.impact.Score(d.Changes, req.Signals)
	d.ImpactScore = &score
	d.EnvironmentalImpact = changeset.TotalEnvironmentalImpact(d.Changes)

	var rejection error
	switch {
	case !d.Validation.Valid:
		rejection = &apierror.ValidationError{Violations: d.Validation.Violations}
	case d.EnvironmentalImpact > o.cfg.EnvironmentalImpactThreshold:
		rejection = &apierror.RiskThresholdError{Impact: d.EnvironmentalImpact, Threshold: o.cfg.EnvironmentalImpactThreshold}
	}
	if rejection != nil {
		if err := o.move(ctx, &d, model.StatusValidationFailed, rejection.Error()); err != nil {
			return model.Deployment{}, err
		}
		if err := o.store.SaveDeployment(ctx, d); err != nil {
			return model.Deployment{}, fmt.Errorf("saving deployment: %w", err)
		}
		log.WithError(rejection).Info("deployment failed validation")
		return d.Clone(), rejection
	}

	if err := o.move(ctx, &d, model.StatusVoting, "validated"); err != nil {
		return model.Deployment{}, err
	}
	if err := o.store.SaveDeployment(ctx, d); err != nil {
		return model.Deployment{}, fmt.Errorf("saving deployment: %w", err)
	}

	round, err := o.voting.Open(ctx, d, o.onDecided)
	if err != nil {
		log.WithError(err).Error("opening voting round")
		if merr := o.move(ctx, &d, model.StatusRejected, "voting round could not be opened"); merr == nil {
			if serr := o.store.SaveDeployment(ctx, d); serr != nil {
				log.WithError(serr).Error("saving rejected deployment")
			}
		}
		return d.Clone(), fmt.Errorf("opening voting round: %w", err)
	}

	d.VotingRoundID = round.ID
	d.Approvals = append(d.Approvals, round.AIReview)
	d.UpdatedAt = o.clock.Now()
	if err := o.store.SaveDeployment(ctx, d); err != nil {
		return model.Deployment{}, fmt.Errorf("saving deployment: %w", err)
	}

	log.WithFields(logrus.Fields{
		"round_id":     round.ID,
		"overall_risk": assessment.OverallRisk,
		"impact":       d.EnvironmentalImpact,
	}).Info("deployment open for voting")
	return d.Clone(), nil
}

// Get returns a snapshot of the deployment. While voting, the tally is live.
func (o *Orchestrator) Get(ctx context.Context, id string) (model.Deployment, error) {
	d, err := o.store.LoadDeployment(ctx, id)
	if err != nil {
		return model.Deployment{}, err
	}
	if d.Status == model.StatusVoting && d.VotingRoundID != "" {
		tally, err := o.voting.Tally(ctx, d.VotingRoundID)
		if err != nil {
			o.log.WithError(err).WithField("deployment_id", id).Warn("computing live tally")
		} else {
			d.Tally = &tally
		}
	}
	return d, nil
}

func (o *Orchestrator) List(ctx context.Context) ([]model.Deployment, error) {
	return o.store.ListDeployments(ctx)
}

// Withdraw abandons a deployment before dispatch. Only the creator may do so.
func (o *Orchestrator) Withdraw(ctx context.Context, id, actor string) (model.Deployment, error) {
	return o.update(ctx, id, func(d *model.Deployment) error {
		if d.CreatedBy != actor {
			return fmt.Errorf("%w: only %s can withdraw deployment %s", apierror.ErrForbidden, d.CreatedBy, d.ID)
		}
		if d.Status != model.StatusVoting && d.Status != model.StatusApproved {
			return fmt.Errorf("%w: deployment %s is %s and can no longer be withdrawn", apierror.ErrConflict, d.ID, d.Status)
		}
		return o.move(ctx, d, model.StatusWithdrawn, "withdrawn by "+actor)
	})
}

// Recover picks up deployments left in flight by an earlier process: open
// rounds are rescheduled and approved deployments are dispatched.
func (o *Orchestrator) Recover(ctx context.Context) error {
	deployments, err := o.store.ListDeployments(ctx)
	if err != nil {
		return fmt.Errorf("listing deployments: %w", err)
	}
	for _, d := range deployments {
		log := o.log.WithField("deployment_id", d.ID)
		switch d.Status {
		case model.StatusVoting:
			round, err := o.voting.Round(ctx, d.VotingRoundID)
			if err != nil {
				log.WithError(err).Error("loading voting round")
				continue
			}
			if round.Result != nil {
				o.onDecided(round, *round.Result)
				continue
			}
			if err := o.voting.Resume(ctx, round.ID, o.onDecided); err != nil {
				log.WithError(err).Error("resuming voting round")
			}
		case model.StatusApproved:
			o.startDeploy(d.ID)
		case model.StatusDeploying:
			log.Warn("deployment was interrupted during dispatch, target state is unknown")
		}
	}
	return nil
}

// Wait blocks until all background dispatches have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) onDecided(round model.VotingRound, result model.TallyResult) {
	ctx := context.Background()
	log := o.log.WithFields(logrus.Fields{"deployment_id": round.DeploymentID, "round_id": round.ID})

	d, err := o.update(ctx, round.DeploymentID, func(d *model.Deployment) error {
		if d.Status != model.StatusVoting {
			return errSkip
		}
		d.Tally = &result
		d.Approvals = append(d.Approvals, voting.CommunityApproval(result, o.clock.Now()))
		if result.Outcome == model.TallyApproved {
			return o.move(ctx, d, model.StatusApproved, result.Reason)
		}
		return o.move(ctx, d, model.StatusRejected, result.Reason)
	})
	if errors.Is(err, errSkip) {
		log.Info("ignoring decision for deployment no longer in voting")
		return
	} else if err != nil {
		log.WithError(err).Error("applying voting decision")
		return
	}

	if d.Status == model.StatusApproved {
		o.startDeploy(d.ID)
	}
}

var errSkip = errors.New("skip")

func (o *Orchestrator) validateRequest(req CreateRequest) error {
	if req.CreatedBy == "" {
		return fmt.Errorf("%w: missing creator", apierror.ErrInvalidInput)
	}
	if len(req.Changes) == 0 {
		return fmt.Errorf("%w: a deployment needs at least one change", apierror.ErrInvalidInput)
	}
	if len(req.Targets) == 0 {
		return fmt.Errorf("%w: a deployment needs at least one target", apierror.ErrInvalidInput)
	}
	seen := map[string]struct{}{}
	for _, t := range req.Targets {
		if t.ID == "" {
			return fmt.Errorf("%w: target without id", apierror.ErrInvalidInput)
		}
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("%w: duplicate target %q", apierror.ErrInvalidInput, t.ID)
		}
		seen[t.ID] = struct{}{}
		if _, err := o.resolver.Client(t); err != nil {
			return fmt.Errorf("%w: target %q: %v", apierror.ErrInvalidInput, t.ID, err)
		}
	}
	for _, c := range req.Changes {
		if c.Path == "" {
			return fmt.Errorf("%w: change without path", apierror.ErrInvalidInput)
		}
	}
	return nil
}

func (o *Orchestrator) annotate(changes []model.Change) []model.Change {
	ret := model.CloneChanges(changes)
	for i := range ret {
		ret[i].RiskLevel = o.risk.ChangeRisk(ret[i])
		ret[i].EnvironmentalImpact = changeset.EnvironmentalImpact(ret[i])
	}
	return ret
}

func initialTargets(targets []model.TargetRef) []model.TargetRef {
	ret := slices.Clone(targets)
	for i := range ret {
		if ret[i].Health == "" {
			ret[i].Health = model.HealthUnknown
		}
		if ret[i].SyncStatus == "" {
			ret[i].SyncStatus = model.SyncUnknown
		}
	}
	return ret
}

// history counts earlier outcomes. Rolled back deployments count as failures.
func (o *Orchestrator) history(ctx context.Context) (risk.History, error) {
	deployments, err := o.store.ListDeployments(ctx)
	if err != nil {
		return risk.History{}, err
	}
	h := risk.History{}
	for _, d := range deployments {
		switch d.Status {
		case model.StatusDeployed:
			h.Successes++
		case model.StatusFailed, model.StatusRolledBack:
			h.Failures++
		}
	}
	return h, nil
}

func (o *Orchestrator) move(ctx context.Context, d *model.Deployment, to model.Status, reason string) error {
	if !model.CanTransition(d.Status, to) {
		return fmt.Errorf("%w: deployment %s cannot move from %s to %s", apierror.ErrConflict, d.ID, d.Status, to)
	}
	now := o.clock.Now()
	d.History = append(d.History, model.Transition{From: d.Status, To: to, At: now, Reason: reason})
	d.Status = to
	d.UpdatedAt = now
	o.metrics.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
	o.log.WithFields(logrus.Fields{
		"deployment_id": d.ID,
		"status":        to,
	}).Debug("deployment transitioned")
	return nil
}

// update serializes a read-modify-write of one deployment.
func (o *Orchestrator) update(ctx context.Context, id string, fn func(d *model.Deployment) error) (model.Deployment, error) {
	defer o.locks.Lock(id)()

	d, err := o.store.LoadDeployment(ctx, id)
	if err != nil {
		return model.Deployment{}, err
	}
	if err := fn(&d); err != nil {
		return model.Deployment{}, err
	}
	if err := o.store.SaveDeployment(ctx, d); err != nil {
		return model.Deployment{}, fmt.Errorf("saving deployment: %w", err)
	}
	return d.Clone(), nil
}
