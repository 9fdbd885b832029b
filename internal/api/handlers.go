package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/deployment"
	"github.com/nais/deploy-governance/internal/model"
)

type createDeploymentRequest struct {
	Version string              `json:"version" validate:"omitempty,max=128"`
	Changes []model.Change      `json:"changes" validate:"required,min=1"`
	Targets []model.TargetRef   `json:"targets" validate:"required,min=1"`
	Signals model.ImpactSignals `json:"signals"`
}

type voteRequest struct {
	Choice model.VoteChoice `json:"choice" validate:"required,oneof=approve reject abstain"`
	Reason string           `json:"reason" validate:"max=2000"`
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason" validate:"max=2000"`
}

type rollbackRequest struct {
	Version string `json:"version" validate:"omitempty,max=128"`
}

type reputationResponse struct {
	Reputation  model.Reputation `json:"reputation"`
	VotingPower float64          `json:"votingPower"`
}

func (s *Server) createDeployment(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := createDeploymentRequest{}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	targets, err := s.Targets.Resolve(req.Targets)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.Orchestrator.Create(r.Context(), deployment.CreateRequest{
		Version:   req.Version,
		CreatedBy: user,
		Changes:   req.Changes,
		Targets:   targets,
		Signals:   req.Signals,
	})
	if err != nil {
		if d.ID != "" {
			s.writeErrorWith(w, r, err, d)
			return
		}
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, d)
}

func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		deployments, err := s.Orchestrator.List(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, deployments)
		return
	}

	results, err := s.Searcher.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ret := make([]model.Deployment, 0, len(results))
	for _, res := range results {
		ret = append(ret, res.Deployment)
	}
	s.writeJSON(w, http.StatusOK, ret)
}

func (s *Server) getDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := s.Orchestrator.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := voteRequest{}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	roundID, err := s.roundFor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	vote, err := s.Voting.SubmitVote(r.Context(), roundID, user, req.Choice, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, vote)
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := reviewRequest{}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	roundID, err := s.roundFor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	review, err := s.Voting.SubmitExpertReview(r.Context(), roundID, user, req.Approve, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, review)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.Orchestrator.Withdraw(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.Orchestrator.RetryFailedTargets(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		s.writeTargetError(w, r, err, d)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) rollback(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := rollbackRequest{}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.Orchestrator.Rollback(r.Context(), chi.URLParam(r, "id"), req.Version, user)
	if err != nil {
		s.writeTargetError(w, r, err, d)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) getReputation(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	rep, err := s.Ledger.Get(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	power, err := s.Ledger.VotingPower(r.Context(), user, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reputationResponse{Reputation: rep, VotingPower: power})
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Targets.HealthCheck(r.Context()))
}

// writeTargetError includes the updated deployment when targets failed to sync.
func (s *Server) writeTargetError(w http.ResponseWriter, r *http.Request, err error, d model.Deployment) {
	if errors.Is(err, apierror.ErrTargetSyncFailure) && d.ID != "" {
		s.writeErrorWith(w, r, err, d)
		return
	}
	s.writeError(w, r, err)
}

func (s *Server) roundFor(r *http.Request) (string, error) {
	d, err := s.Orchestrator.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return "", err
	}
	if d.VotingRoundID == "" {
		return "", fmt.Errorf("%w: deployment %s has no voting round", apierror.ErrVoteWindowClosed, d.ID)
	}
	return d.VotingRoundID, nil
}
