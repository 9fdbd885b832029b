package voting_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/database/memory"
	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/reputation"
	"github.com/nais/deploy-governance/internal/voting"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type decisions struct {
	mu      sync.Mutex
	results []model.TallyResult
	rounds  []model.VotingRound
}

func (d *decisions) record(round model.VotingRound, result model.TallyResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rounds = append(d.rounds, round)
	d.results = append(d.results, result)
}

func (d *decisions) get() []model.TallyResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.TallyResult(nil), d.results...)
}

type fixture struct {
	store       *memory.Store
	ledger      *reputation.Ledger
	notifier    *voting.MockNotifier
	clock       *clock.Mock
	coordinator *voting.Coordinator
}

func newFixture(t *testing.T, cfg voting.Config, scores map[string]int) *fixture {
	ctx := context.Background()
	log, _ := test.NewNullLogger()

	store := memory.New()
	for user, score := range scores {
		require.NoError(t, store.SaveReputation(ctx, model.Reputation{UserID: user, TotalScore: score}))
	}

	mockClock := clock.NewMock()
	mockClock.Set(testTime)

	ledger := reputation.NewLedger(store, log, reputation.WithClock(mockClock))
	notifier := voting.NewMockNotifier(t)
	coordinator, err := voting.NewCoordinator(store, ledger, notifier, cfg, metric.NewMeterProvider().Meter("test"), log, voting.WithClock(mockClock))
	require.NoError(t, err)
	t.Cleanup(coordinator.Close)

	return &fixture{store: store, ledger: ledger, notifier: notifier, clock: mockClock, coordinator: coordinator}
}

func lowRisk(id string) model.Deployment {
	return model.Deployment{
		ID:             id,
		Changes:        []model.Change{{Path: "src/components/Widget.tsx", Type: model.ChangeTypeAdd}},
		RiskAssessment: &model.RiskAssessment{OverallRisk: model.RiskLow},
	}
}

func TestCoordinator_MissedQuorumRejectsAtDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, voting.DefaultConfig(), map[string]int{"alice": 2000, "bob": 1000})
	f.store.SetEligibleVoters(10)
	f.notifier.EXPECT().NotifyCommunity(mock.Anything, "d1", mock.Anything).Return(nil)

	d := &decisions{}
	round, err := f.coordinator.Open(ctx, lowRisk("d1"), d.record)
	require.NoError(t, err)
	assert.Equal(t, testTime.Add(24*time.Hour), round.ClosesAt)
	assert.Equal(t, model.ApprovalApproved, round.AIReview.Status)

	_, err = f.coordinator.SubmitVote(ctx, round.ID, "alice", model.VoteApprove, "")
	require.NoError(t, err)
	_, err = f.coordinator.SubmitVote(ctx, round.ID, "bob", model.VoteReject, "")
	require.NoError(t, err)

	tally, err := f.coordinator.Tally(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TallyPending, tally.Outcome)
	assert.False(t, tally.QuorumMet)
	assert.InDelta(t, 66.7, tally.ApprovalPercentage, 0.05)
	assert.Empty(t, d.get())

	f.clock.Add(24 * time.Hour)

	assert.Eventually(t, func() bool { return len(d.get()) == 1 }, time.Second, 5*time.Millisecond)
	result := d.get()[0]
	assert.Equal(t, model.TallyRejected, result.Outcome)
	assert.True(t, result.Final)

	stored, err := f.store.LoadRound(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoundRejected, stored.Status)
	require.NotNil(t, stored.Result)

	assert.Equal(t, 0, f.coordinator.ScheduledRounds())

	_, err = f.coordinator.SubmitVote(ctx, round.ID, "carol", model.VoteApprove, "")
	assert.ErrorIs(t, err, apierror.ErrVoteWindowClosed)
}

func TestCoordinator_CloseResultWaitsForDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, voting.DefaultConfig(), map[string]int{"alice": 1200, "bob": 1000})
	f.notifier.EXPECT().NotifyCommunity(mock.Anything, "d6", mock.Anything).Return(nil)

	d := &decisions{}
	round, err := f.coordinator.Open(ctx, lowRisk("d6"), d.record)
	require.NoError(t, err)

	_, err = f.coordinator.SubmitVote(ctx, round.ID, "alice", model.VoteApprove, "")
	require.NoError(t, err)
	_, err = f.coordinator.SubmitVote(ctx, round.ID, "bob", model.VoteReject, "")
	require.NoError(t, err)

	tally, err := f.coordinator.Tally(ctx, round.ID)
	require.NoError(t, err)
	assert.True(t, tally.QuorumMet)
	assert.InDelta(t, 54.5, tally.ApprovalPercentage, 0.05)
	assert.Equal(t, model.TallyApproved, tally.Outcome)
	assert.False(t, tally.Decisive)
	assert.Empty(t, d.get())
	assert.Equal(t, 1, f.coordinator.ScheduledRounds())

	f.clock.Add(24 * time.Hour)

	assert.Eventually(t, func() bool { return len(d.get()) == 1 }, time.Second, 5*time.Millisecond)
	result := d.get()[0]
	assert.Equal(t, model.TallyApproved, result.Outcome)
	assert.True(t, result.Final)
	assert.Equal(t, 0, f.coordinator.ScheduledRounds())
}

func TestCoordinator_DecisiveQuorumApprovesEarly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, voting.DefaultConfig(), map[string]int{"a": 1000, "b": 1000, "c": 1000, "d": 1000})
	f.store.SetEligibleVoters(6)
	f.notifier.EXPECT().NotifyCommunity(mock.Anything, "d2", mock.Anything).Return(nil)

	d := &decisions{}
	round, err := f.coordinator.Open(ctx, lowRisk("d2"), d.record)
	require.NoError(t, err)

	for _, voter := range []string{"a", "b", "c"} {
		vote, err := f.coordinator.SubmitVote(ctx, round.ID, voter, model.VoteApprove, "looks good")
		require.NoError(t, err)
		assert.Equal(t, 1.0, vote.VotingPower)
	}
	assert.Empty(t, d.get())

	_, err = f.coordinator.SubmitVote(ctx, round.ID, "d", model.VoteReject, "")
	require.NoError(t, err)

	results := d.get()
	require.Len(t, results, 1)
	assert.Equal(t, model.TallyApproved, results[0].Outcome)
	assert.InDelta(t, 66.7, results[0].ParticipationRate, 0.05)
	assert.Equal(t, 75.0, results[0].ApprovalPercentage)
	assert.False(t, results[0].Final)

	decided, err := f.coordinator.Round(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoundApproved, decided.Status)
	assert.Equal(t, 0, f.coordinator.ScheduledRounds())

	tally, err := f.coordinator.Tally(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TallyApproved, tally.Outcome)

	// the expiry timer is stopped, the round is not decided twice
	f.clock.Add(25 * time.Hour)
	assert.Never(t, func() bool { return len(d.get()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestCoordinator_SubmitVote(t *testing.T) {
	ctx := context.Background()

	t.Run("later vote replaces the earlier one", func(t *testing.T) {
		f := newFixture(t, voting.DefaultConfig(), map[string]int{"alice": 1000})
		f.store.SetEligibleVoters(100)
		f.notifier.EXPECT().NotifyCommunity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
		round, err := f.coordinator.Open(ctx, lowRisk("d"), nil)
		require.NoError(t, err)

		first, err := f.coordinator.SubmitVote(ctx, round.ID, "alice", model.VoteApprove, "")
		require.NoError(t, err)
		assert.False(t, first.Replaced)

		f.clock.Add(time.Minute)
		second, err := f.coordinator.SubmitVote(ctx, round.ID, "alice", model.VoteReject, "changed my mind")
		require.NoError(t, err)
		assert.True(t, second.Replaced)

		votes, err := f.coordinator.Votes(ctx, round.ID)
		require.NoError(t, err)
		require.Len(t, votes, 1)
		assert.Equal(t, model.VoteReject, votes[0].Choice)
	})

	t.Run("voting power is snapshotted", func(t *testing.T) {
		f := newFixture(t, voting.DefaultConfig(), map[string]int{"alice": 1000})
		f.store.SetEligibleVoters(100)
		f.notifier.EXPECT().NotifyCommunity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
		round, err := f.coordinator.Open(ctx, lowRisk("d"), nil)
		require.NoError(t, err)

		_, err = f.coordinator.SubmitVote(ctx, round.ID, "alice", model.VoteApprove, "")
		require.NoError(t, err)
		require.NoError(t, f.store.SaveReputation(ctx, model.Reputation{UserID: "alice", TotalScore: 3000}))

		votes, err := f.coordinator.Votes(ctx, round.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, votes[0].VotingPower)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture(t, voting.DefaultConfig(), nil)
		f.notifier.EXPECT().NotifyCommunity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
		round, err := f.coordinator.Open(ctx, lowRisk("d"), nil)
		require.NoError(t, err)

		_, err = f.coordinator.SubmitVote(ctx, round.ID, "alice", "maybe", "")
		assert.ErrorIs(t, err, apierror.ErrInvalidInput)
		_, err = f.coordinator.SubmitVote(ctx, round.ID, "", model.VoteApprove, "")
		assert.ErrorIs(t, err, apierror.ErrInvalidInput)
		_, err = f.coordinator.SubmitVote(ctx, "unknown", "alice", model.VoteApprove, "")
		assert.ErrorIs(t, err, apierror.ErrNotFound)
	})

	t.Run("notification failures do not fail the round", func(t *testing.T) {
		f := newFixture(t, voting.DefaultConfig(), nil)
		f.notifier.EXPECT().NotifyCommunity(mock.Anything, mock.Anything, mock.Anything).Return(errors.New("webhook down"))
		_, err := f.coordinator.Open(ctx, lowRisk("d"), nil)
		assert.NoError(t, err)
	})
}

func TestCoordinator_ExpertReview(t *testing.T) {
	ctx := context.Background()
	cfg := voting.DefaultConfig()
	cfg.Experts = []string{"erin", "frank"}

	highRisk := model.Deployment{
		ID:             "d3",
		Changes:        []model.Change{{Path: "src/auth/session.ts", Type: model.ChangeTypeAdd}},
		RiskAssessment: &model.RiskAssessment{OverallRisk: model.RiskHigh, Factors: []model.RiskFactor{{Type: model.RiskFactorSecurity, Severity: model.RiskHigh}}},
	}

	t.Run("escalates and weighs expert reviews", func(t *testing.T) {
		f := newFixture(t, cfg, map[string]int{"erin": 1500, "frank": 500})
		f.store.SetEligibleVoters(100)
		f.notifier.EXPECT().NotifyCommunity(mock.Anything, "d3", mock.Anything).Return(nil)
		f.notifier.EXPECT().NotifyExpert(mock.Anything, "erin", "d3").Return(nil)
		f.notifier.EXPECT().NotifyExpert(mock.Anything, "frank", "d3").Return(nil)

		round, err := f.coordinator.Open(ctx, highRisk, nil)
		require.NoError(t, err)
		assert.True(t, round.ExpertReviewRequired)
		assert.Equal(t, []string{"erin", "frank"}, round.RequestedExperts)
		assert.Equal(t, model.ApprovalRejected, round.AIReview.Status)

		approval, err := f.coordinator.SubmitExpertReview(ctx, round.ID, "erin", true, "reviewed the session handling")
		require.NoError(t, err)
		assert.NoError(t, approval.Validate())
		assert.Equal(t, 3.0, approval.VotingPower)

		_, err = f.coordinator.SubmitExpertReview(ctx, round.ID, "erin", false, "found an issue")
		require.NoError(t, err)

		tally, err := f.coordinator.Tally(ctx, round.ID)
		require.NoError(t, err)
		// the replacement is weighed with the credited reputation
		assert.InDelta(t, 3.03, tally.ExpertWeight, 0.001)
		assert.InDelta(t, 3.03, tally.RejectWeight, 0.001)
		assert.Zero(t, tally.ApproveWeight)
		assert.Equal(t, 0, tally.VotesCast)

		// credited once even though the review was replaced
		rep, err := f.ledger.Get(ctx, "erin")
		require.NoError(t, err)
		assert.Equal(t, 1515, rep.TotalScore)
		assert.Equal(t, 1, rep.CommunityLeadership)
	})

	t.Run("only configured experts", func(t *testing.T) {
		f := newFixture(t, cfg, nil)
		f.notifier.EXPECT().NotifyCommunity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.notifier.EXPECT().NotifyExpert(mock.Anything, mock.Anything, mock.Anything).Return(nil)
		round, err := f.coordinator.Open(ctx, highRisk, nil)
		require.NoError(t, err)

		_, err = f.coordinator.SubmitExpertReview(ctx, round.ID, "mallory", true, "")
		assert.ErrorIs(t, err, apierror.ErrForbidden)
	})

	t.Run("not requested for low risk", func(t *testing.T) {
		f := newFixture(t, cfg, nil)
		f.notifier.EXPECT().NotifyCommunity(mock.Anything, mock.Anything, mock.Anything).Return(nil)
		round, err := f.coordinator.Open(ctx, lowRisk("d4"), nil)
		require.NoError(t, err)

		_, err = f.coordinator.SubmitExpertReview(ctx, round.ID, "erin", true, "")
		assert.ErrorIs(t, err, apierror.ErrConflict)
	})
}

func TestCoordinator_Resume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, voting.DefaultConfig(), nil)

	round := model.VotingRound{
		ID:           "r1",
		DeploymentID: "d5",
		Status:       model.RoundOpen,
		OpenedAt:     testTime.Add(-25 * time.Hour),
		ClosesAt:     testTime.Add(-time.Hour),
	}
	require.NoError(t, f.store.SaveRound(ctx, round))

	d := &decisions{}
	require.NoError(t, f.coordinator.Resume(ctx, round.ID, d.record))
	assert.Eventually(t, func() bool { return len(d.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.TallyRejected, d.get()[0].Outcome)

	assert.ErrorIs(t, f.coordinator.Resume(ctx, round.ID, d.record), apierror.ErrConflict)
}
