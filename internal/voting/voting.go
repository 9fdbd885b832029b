package voting

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
	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/reputation"
)

type Store interface {
	SaveRound(ctx context.Context, round model.VotingRound) error
	LoadRound(ctx context.Context, roundID string) (model.VotingRound, error)
	SaveVote(ctx context.Context, vote model.Vote) error
	LoadVotesForDeployment(ctx context.Context, deploymentID string) ([]model.Vote, error)
	CountEligibleVoters(ctx context.Context) (int, error)
}

type Ledger interface {
	Get(ctx context.Context, userID string) (model.Reputation, error)
	VotingPower(ctx context.Context, userID string, relevantContext []string) (float64, error)
	Apply(ctx context.Context, userID string, action reputation.ActionKind, oc reputation.OutcomeContext) (model.Reputation, error)
}

type Notifier interface {
	NotifyCommunity(ctx context.Context, deploymentID, roundID string) error
	NotifyExpert(ctx context.Context, expertID, deploymentID string) error
}

// DecisionFunc is called once per round when it is decided, outside of any
// round lock.
type DecisionFunc func(round model.VotingRound, result model.TallyResult)

type Config struct {
	Window                       time.Duration
	QuorumPercentage             float64
	DecisiveMargin               float64
	MinAdditiveRatio             float64
	EnvironmentalImpactThreshold float64
	ExpertWeight                 float64
	Experts                      []string
}

func DefaultConfig() Config {
	return Config{
		Window:                       24 * time.Hour,
		QuorumPercentage:             51,
		DecisiveMargin:               10,
		MinAdditiveRatio:             0.8,
		EnvironmentalImpactThreshold: 100,
		ExpertWeight:                 2,
	}
}

type roundState struct {
	mu        sync.Mutex
	round     model.VotingRound
	onDecided DecisionFunc
	done      chan struct{}
}

type Coordinator struct {
	store    Store
	ledger   Ledger
	notifier Notifier
	cfg      Config
	clock    clock.Clock
	log      logrus.FieldLogger

	votesCast metric.Int64Counter

	mu     sync.RWMutex
	rounds map[string]*roundState
	stop   chan struct{}
	wg     sync.WaitGroup
}

type Option func(*Coordinator)

func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = c
	}
}

func NewCoordinator(store Store, ledger Ledger, notifier Notifier, cfg Config, meter metric.Meter, log logrus.FieldLogger, opts ...Option) (*Coordinator, error) {
	votesCast, err := meter.Int64Counter("votes_cast", metric.WithDescription("community votes cast"))
	if err != nil {
		return nil, fmt.Errorf("creating votes_cast counter: %w", err)
	}

	c := &Coordinator{
		store:     store,
		ledger:    ledger,
		notifier:  notifier,
		cfg:       cfg,
		clock:     clock.New(),
		log:       log,
		votesCast: votesCast,
		rounds:    map[string]*roundState{},
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Open starts a voting round for the deployment and schedules its expiry.
func (c *Coordinator) Open(ctx context.Context, d model.Deployment, onDecided DecisionFunc) (model.VotingRound, error) {
	now := c.clock.Now()
	round := model.VotingRound{
		ID:              uuid.NewString(),
		DeploymentID:    d.ID,
		Status:          model.RoundOpen,
		OpenedAt:        now,
		ClosesAt:        now.Add(c.cfg.Window),
		AIReview:        AIReview(d, c.cfg, now),
		RelevantContext: RelevantContext(d),
	}
	if d.RiskAssessment != nil && d.RiskAssessment.OverallRisk.AtLeast(model.RiskHigh) {
		round.ExpertReviewRequired = true
		round.RequestedExperts = slices.Clone(c.cfg.Experts)
	}

	if err := c.store.SaveRound(ctx, round); err != nil {
		return model.VotingRound{}, fmt.Errorf("saving voting round: %w", err)
	}
	c.schedule(round, onDecided)

	log := c.log.WithFields(logrus.Fields{"deployment_id": d.ID, "round_id": round.ID})
	log.WithField("closes_at", round.ClosesAt).Info("voting round opened")

	if err := c.notifier.NotifyCommunity(ctx, d.ID, round.ID); err != nil {
		log.WithError(err).Warn("notifying community")
	}
	for _, expert := range round.RequestedExperts {
		if err := c.notifier.NotifyExpert(ctx, expert, d.ID); err != nil {
			log.WithError(err).WithField("expert", expert).Warn("notifying expert")
		}
	}

	return round.Clone(), nil
}

// Resume schedules expiry for a round that was opened by an earlier process.
// The stored round decides whether it is still open.
func (c *Coordinator) Resume(ctx context.Context, roundID string, onDecided DecisionFunc) error {
	round, err := c.store.LoadRound(ctx, roundID)
	if err != nil {
		return err
	}
	if round.Status != model.RoundOpen {
		return fmt.Errorf("%w: round %s is already %s", apierror.ErrConflict, round.ID, round.Status)
	}
	if !c.schedule(round, onDecided) {
		return fmt.Errorf("%w: round %s is already scheduled", apierror.ErrConflict, round.ID)
	}
	return nil
}

// schedule tracks the round until it is decided. It returns false if the round
// is already tracked.
func (c *Coordinator) schedule(round model.VotingRound, onDecided DecisionFunc) bool {
	st := &roundState{round: round, onDecided: onDecided, done: make(chan struct{})}
	c.mu.Lock()
	if _, exists := c.rounds[round.ID]; exists {
		c.mu.Unlock()
		return false
	}
	c.rounds[round.ID] = st
	c.mu.Unlock()

	remaining := round.ClosesAt.Sub(c.clock.Now())
	if remaining <= 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.expire(st)
		}()
		return true
	}

	timer := c.clock.Timer(remaining)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-timer.C:
			c.expire(st)
		case <-st.done:
			timer.Stop()
		case <-c.stop:
			timer.Stop()
		}
	}()
	return true
}

func (c *Coordinator) expire(st *roundState) {
	ctx := context.Background()

	st.mu.Lock()
	if st.round.Status != model.RoundOpen {
		st.mu.Unlock()
		return
	}
	result, err := c.tally(ctx, st.round, true)
	if err != nil {
		c.log.WithError(err).WithField("round_id", st.round.ID).Error("tallying expired round, rejecting")
		result = model.TallyResult{
			RoundID:          st.round.ID,
			Outcome:          model.TallyRejected,
			QuorumPercentage: c.cfg.QuorumPercentage,
			Decisive:         true,
			Final:            true,
			Reason:           fmt.Sprintf("tally failed: %v", err),
		}
	}
	round := c.decide(ctx, st, result)
	st.mu.Unlock()

	if st.onDecided != nil {
		st.onDecided(round, result)
	}
}

// SubmitVote records a vote with the voter's current voting power. A later
// vote by the same voter replaces the earlier one.
func (c *Coordinator) SubmitVote(ctx context.Context, roundID, voter string, choice model.VoteChoice, reason string) (model.Vote, error) {
	if voter == "" {
		return model.Vote{}, fmt.Errorf("%w: missing voter", apierror.ErrInvalidInput)
	}
	if !choice.IsValid() {
		return model.Vote{}, fmt.Errorf("%w: unknown vote %q", apierror.ErrInvalidInput, choice)
	}
	st, err := c.active(ctx, roundID)
	if err != nil {
		return model.Vote{}, err
	}

	var (
		decided *model.TallyResult
		round   model.VotingRound
	)
	vote, err := func() (model.Vote, error) {
		st.mu.Lock()
		defer st.mu.Unlock()

		if err := c.checkOpen(st.round); err != nil {
			return model.Vote{}, err
		}

		power, err := c.ledger.VotingPower(ctx, voter, st.round.RelevantContext)
		if err != nil {
			return model.Vote{}, fmt.Errorf("computing voting power: %w", err)
		}
		existing, err := c.votes(ctx, st.round)
		if err != nil {
			return model.Vote{}, err
		}

		vote := model.Vote{
			ID:           uuid.NewString(),
			DeploymentID: st.round.DeploymentID,
			RoundID:      st.round.ID,
			Voter:        voter,
			Choice:       choice,
			VotingPower:  power,
			Reason:       reason,
			Timestamp:    c.clock.Now(),
			Replaced:     slices.ContainsFunc(existing, func(v model.Vote) bool { return v.Voter == voter }),
		}
		if err := c.store.SaveVote(ctx, vote); err != nil {
			return model.Vote{}, fmt.Errorf("saving vote: %w", err)
		}
		c.votesCast.Add(ctx, 1, metric.WithAttributes(attribute.String("choice", string(choice))))

		decided, round = c.decideEarly(ctx, st)
		return vote, nil
	}()
	if err != nil {
		return model.Vote{}, err
	}

	c.log.WithFields(logrus.Fields{
		"round_id": roundID,
		"user_id":  voter,
		"choice":   choice,
		"replaced": vote.Replaced,
	}).Debug("vote recorded")

	if decided != nil && st.onDecided != nil {
		st.onDecided(round, *decided)
	}
	return vote, nil
}

// SubmitExpertReview records a configured expert's review on a round that
// requested one. The expert is credited with an expert review the first time
// they review a round.
func (c *Coordinator) SubmitExpertReview(ctx context.Context, roundID, expert string, approve bool, reason string) (model.Approval, error) {
	if !slices.Contains(c.cfg.Experts, expert) {
		return model.Approval{}, fmt.Errorf("%w: %q is not a configured expert", apierror.ErrForbidden, expert)
	}
	st, err := c.active(ctx, roundID)
	if err != nil {
		return model.Approval{}, err
	}

	var (
		decided *model.TallyResult
		round   model.VotingRound
		first   bool
	)
	approval, err := func() (model.Approval, error) {
		st.mu.Lock()
		defer st.mu.Unlock()

		if err := c.checkOpen(st.round); err != nil {
			return model.Approval{}, err
		}
		if !st.round.ExpertReviewRequired {
			return model.Approval{}, fmt.Errorf("%w: round %s did not request expert review", apierror.ErrConflict, roundID)
		}

		rep, err := c.ledger.Get(ctx, expert)
		if err != nil {
			return model.Approval{}, fmt.Errorf("loading expert reputation: %w", err)
		}
		status := model.ApprovalRejected
		if approve {
			status = model.ApprovalApproved
		}
		approval := model.Approval{
			Kind:        model.ApproverExpert,
			ApproverID:  expert,
			Status:      status,
			VotingPower: ExpertWeight(c.cfg.ExpertWeight, rep.TotalScore),
			Reason:      reason,
			CreatedAt:   c.clock.Now(),
			Expert:      &model.ExpertDetails{ReputationScore: rep.TotalScore},
		}

		updated := st.round.Clone()
		idx := slices.IndexFunc(updated.ExpertReviews, func(a model.Approval) bool { return a.ApproverID == expert })
		if idx >= 0 {
			updated.ExpertReviews[idx] = approval
		} else {
			updated.ExpertReviews = append(updated.ExpertReviews, approval)
			first = true
		}
		if err := c.store.SaveRound(ctx, updated); err != nil {
			return model.Approval{}, fmt.Errorf("saving voting round: %w", err)
		}
		st.round = updated

		decided, round = c.decideEarly(ctx, st)
		return approval, nil
	}()
	if err != nil {
		return model.Approval{}, err
	}

	if first {
		if _, err := c.ledger.Apply(ctx, expert, reputation.ActionExpertReview, reputation.OutcomeContext{}); err != nil {
			c.log.WithError(err).WithField("user_id", expert).Error("crediting expert review")
		}
	}
	if decided != nil && st.onDecided != nil {
		st.onDecided(round, *decided)
	}
	return approval, nil
}

// Tally returns the current tally of a round, or the final one if the round
// is decided.
func (c *Coordinator) Tally(ctx context.Context, roundID string) (model.TallyResult, error) {
	st, err := c.state(roundID)
	if errors.Is(err, apierror.ErrNotFound) {
		round, err := c.store.LoadRound(ctx, roundID)
		if err != nil {
			return model.TallyResult{}, err
		}
		if round.Result != nil {
			return *round.Result, nil
		}
		return c.tally(ctx, round, false)
	} else if err != nil {
		return model.TallyResult{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.round.Result != nil {
		return *st.round.Result, nil
	}
	return c.tally(ctx, st.round, false)
}

// Round returns a snapshot of the round.
func (c *Coordinator) Round(ctx context.Context, roundID string) (model.VotingRound, error) {
	st, err := c.state(roundID)
	if errors.Is(err, apierror.ErrNotFound) {
		return c.store.LoadRound(ctx, roundID)
	} else if err != nil {
		return model.VotingRound{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.round.Clone(), nil
}

// Votes returns the active votes of a round.
func (c *Coordinator) Votes(ctx context.Context, roundID string) ([]model.Vote, error) {
	round, err := c.Round(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return c.votes(ctx, round)
}

// Close stops all pending expiry timers. Rounds remain open in the store and
// can be resumed.
func (c *Coordinator) Close() {
	close(c.stop)
	c.wg.Wait()
}

func (c *Coordinator) checkOpen(round model.VotingRound) error {
	if round.Status != model.RoundOpen || !c.clock.Now().Before(round.ClosesAt) {
		return fmt.Errorf("%w: round %s closed at %s", apierror.ErrVoteWindowClosed, round.ID, round.ClosesAt.Format(time.RFC3339))
	}
	return nil
}

// decideEarly must be called with the round lock held.
func (c *Coordinator) decideEarly(ctx context.Context, st *roundState) (*model.TallyResult, model.VotingRound) {
	result, err := c.tally(ctx, st.round, false)
	if err != nil {
		c.log.WithError(err).WithField("round_id", st.round.ID).Warn("tallying round")
		return nil, model.VotingRound{}
	}
	if !result.Decisive {
		return nil, model.VotingRound{}
	}
	return &result, c.decide(ctx, st, result)
}

// decide must be called with the round lock held.
func (c *Coordinator) decide(ctx context.Context, st *roundState, result model.TallyResult) model.VotingRound {
	now := c.clock.Now()
	st.round.Status = model.RoundRejected
	if result.Outcome == model.TallyApproved {
		st.round.Status = model.RoundApproved
	}
	st.round.DecidedAt = &now
	st.round.Result = &result
	if err := c.store.SaveRound(ctx, st.round); err != nil {
		c.log.WithError(err).WithField("round_id", st.round.ID).Error("saving decided round")
	}
	close(st.done)

	c.mu.Lock()
	delete(c.rounds, st.round.ID)
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"round_id":            st.round.ID,
		"deployment_id":       st.round.DeploymentID,
		"outcome":             result.Outcome,
		"participation_rate":  result.ParticipationRate,
		"approval_percentage": result.ApprovalPercentage,
		"final":               result.Final,
	}).Info("voting round decided")
	return st.round.Clone()
}

func (c *Coordinator) tally(ctx context.Context, round model.VotingRound, final bool) (model.TallyResult, error) {
	votes, err := c.votes(ctx, round)
	if err != nil {
		return model.TallyResult{}, err
	}
	eligible, err := c.store.CountEligibleVoters(ctx)
	if err != nil {
		return model.TallyResult{}, fmt.Errorf("counting eligible voters: %w", err)
	}
	return ComputeTally(TallyInput{
		RoundID:          round.ID,
		Votes:            votes,
		ExpertReviews:    round.ExpertReviews,
		EligibleVoters:   eligible,
		QuorumPercentage: c.cfg.QuorumPercentage,
		DecisiveMargin:   c.cfg.DecisiveMargin,
		Final:            final,
	}), nil
}

func (c *Coordinator) votes(ctx context.Context, round model.VotingRound) ([]model.Vote, error) {
	all, err := c.store.LoadVotesForDeployment(ctx, round.DeploymentID)
	if err != nil {
		return nil, fmt.Errorf("loading votes: %w", err)
	}
	ret := make([]model.Vote, 0, len(all))
	for _, v := range all {
		if v.RoundID == round.ID {
			ret = append(ret, v)
		}
	}
	return ret, nil
}

// active returns the state of a scheduled round. Rounds that are no longer
// scheduled are looked up in the store so that late votes are told the
// window is closed.
func (c *Coordinator) active(ctx context.Context, roundID string) (*roundState, error) {
	st, err := c.state(roundID)
	if !errors.Is(err, apierror.ErrNotFound) {
		return st, err
	}
	round, lerr := c.store.LoadRound(ctx, roundID)
	if lerr != nil {
		return nil, lerr
	}
	if err := c.checkOpen(round); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: round %s is open but not scheduled by this coordinator", apierror.ErrConflict, roundID)
}

func (c *Coordinator) state(roundID string) (*roundState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("%w: voting round %s", apierror.ErrNotFound, roundID)
	}
	return st, nil
}
