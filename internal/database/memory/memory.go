// Package memory is an in-process store for tests and for running without a
// database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/model"
)

type voteKey struct {
	roundID string
	voter   string
}

type Store struct {
	mu          sync.RWMutex
	deployments map[string]model.Deployment
	rounds      map[string]model.VotingRound
	votes       map[voteKey]model.Vote
	reputations map[string]model.Reputation
	eligible    *int
}

func New() *Store {
	return &Store{
		deployments: map[string]model.Deployment{},
		rounds:      map[string]model.VotingRound{},
		votes:       map[voteKey]model.Vote{},
		reputations: map[string]model.Reputation{},
	}
}

// SetEligibleVoters overrides the eligible voter count, which otherwise is
// the number of users with a reputation record.
func (s *Store) SetEligibleVoters(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eligible = &n
}

func (s *Store) SaveDeployment(_ context.Context, d model.Deployment) error {
	if d.ID == "" {
		return fmt.Errorf("%w: deployment without id", apierror.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[d.ID] = d.Clone()
	return nil
}

func (s *Store) LoadDeployment(_ context.Context, id string) (model.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deployments[id]
	if !ok {
		return model.Deployment{}, fmt.Errorf("%w: deployment %s", apierror.ErrNotFound, id)
	}
	return d.Clone(), nil
}

// ListDeployments returns all deployments, newest first.
func (s *Store) ListDeployments(_ context.Context) ([]model.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]model.Deployment, 0, len(s.deployments))
	for _, d := range s.deployments {
		ret = append(ret, d.Clone())
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret, nil
}

func (s *Store) SaveRound(_ context.Context, round model.VotingRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = round.Clone()
	return nil
}

func (s *Store) LoadRound(_ context.Context, roundID string) (model.VotingRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return model.VotingRound{}, fmt.Errorf("%w: voting round %s", apierror.ErrNotFound, roundID)
	}
	return r.Clone(), nil
}

// SaveVote stores the vote, replacing any earlier vote by the same voter in
// the same round.
func (s *Store) SaveVote(_ context.Context, vote model.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[voteKey{roundID: vote.RoundID, voter: vote.Voter}] = vote
	return nil
}

// LoadVotesForDeployment returns the active votes of the deployment ordered
// by time of casting.
func (s *Store) LoadVotesForDeployment(_ context.Context, deploymentID string) ([]model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]model.Vote, 0)
	for _, v := range s.votes {
		if v.DeploymentID == deploymentID {
			ret = append(ret, v)
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Timestamp.Equal(ret[j].Timestamp) {
			return ret[i].Voter < ret[j].Voter
		}
		return ret[i].Timestamp.Before(ret[j].Timestamp)
	})
	return ret, nil
}

func (s *Store) SaveReputation(_ context.Context, rep model.Reputation) error {
	if rep.UserID == "" {
		return fmt.Errorf("%w: reputation without user id", apierror.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputations[rep.UserID] = rep.Clone()
	return nil
}

func (s *Store) LoadReputation(_ context.Context, userID string) (model.Reputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, ok := s.reputations[userID]
	if !ok {
		return model.Reputation{}, fmt.Errorf("%w: reputation for %s", apierror.ErrNotFound, userID)
	}
	return rep.Clone(), nil
}

func (s *Store) CountEligibleVoters(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eligible != nil {
		return *s.eligible, nil
	}
	return len(s.reputations), nil
}
