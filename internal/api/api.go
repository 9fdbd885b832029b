// Package api exposes the governance engine over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/auth"
	"github.com/nais/deploy-governance/internal/deployment"
	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/search"
)

type Orchestrator interface {
	Create(ctx context.Context, req deployment.CreateRequest) (model.Deployment, error)
	Get(ctx context.Context, id string) (model.Deployment, error)
	List(ctx context.Context) ([]model.Deployment, error)
	Withdraw(ctx context.Context, id, actor string) (model.Deployment, error)
	RetryFailedTargets(ctx context.Context, id, actor string) (model.Deployment, error)
	Rollback(ctx context.Context, id, version, actor string) (model.Deployment, error)
}

type Voting interface {
	SubmitVote(ctx context.Context, roundID, voter string, choice model.VoteChoice, reason string) (model.Vote, error)
	SubmitExpertReview(ctx context.Context, roundID, expert string, approve bool, reason string) (model.Approval, error)
}

type Ledger interface {
	Get(ctx context.Context, userID string) (model.Reputation, error)
	VotingPower(ctx context.Context, userID string, relevantContext []string) (float64, error)
}

type Targets interface {
	Resolve(requested []model.TargetRef) ([]model.TargetRef, error)
	HealthCheck(ctx context.Context) []model.TargetRef
}

type Searcher interface {
	Search(ctx context.Context, q string) ([]*search.Result, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Orchestrator Orchestrator
	Voting       Voting
	Ledger       Ledger
	Targets      Targets
	Searcher     Searcher
	Presenter    *apierror.Presenter
	Log          logrus.FieldLogger
}

// Router returns the API routes. The auth middleware decides who the acting
// user is.
func (s *Server) Router(authMW auth.Middleware, metrics *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(authMW)

	r.Route("/deployments", func(r chi.Router) {
		r.Post("/", s.createDeployment)
		r.Get("/", s.listDeployments)
		r.Get("/{id}", s.getDeployment)
		r.Post("/{id}/votes", s.castVote)
		r.Post("/{id}/reviews", s.submitReview)
		r.Post("/{id}/withdraw", s.withdraw)
		r.Post("/{id}/retry", s.retry)
		r.Post("/{id}/rollback", s.rollback)
	})
	r.Get("/reputation/{user}", s.getReputation)
	r.Get("/targets", s.listTargets)

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.WithError(err).Error("writing response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := s.Presenter.Present(r.Context(), err)
	s.writeJSON(w, status, resp)
}

// writeErrorWith reports err together with the deployment it concerns.
func (s *Server) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, d model.Deployment) {
	status, resp := s.Presenter.Present(r.Context(), err)
	s.writeJSON(w, status, struct {
		apierror.Response
		Deployment model.Deployment `json:"deployment"`
	}{resp, d})
}

var validate = validator.New()

// decode reads an optional JSON body into v and checks its validate tags.
func decode(r *http.Request, v any) error {
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: decoding request body: %v", apierror.ErrInvalidInput, err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", apierror.ErrInvalidInput, err)
	}
	return nil
}

func actor(r *http.Request) (string, error) {
	user, err := auth.GetUser(r.Context())
	if err != nil {
		return "", fmt.Errorf("%w: %v", apierror.ErrForbidden, err)
	}
	return user, nil
}
