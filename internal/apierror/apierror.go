package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/nais/deploy-governance/internal/model"
)

var (
	ErrValidation                 = errors.New("change set is not additive")
	ErrRiskThresholdExceeded      = errors.New("risk threshold exceeded")
	ErrVoteWindowClosed           = errors.New("voting window is closed")
	ErrQuorumNotMet               = errors.New("quorum not met")
	ErrTargetSyncFailure          = errors.New("target sync failure")
	ErrRollbackUnavailable        = errors.New("rollback unavailable")
	ErrConcurrentRollbackConflict = errors.New("rollback already in progress")
	ErrNotFound                   = errors.New("not found")
	ErrInvalidInput               = errors.New("invalid input")
	ErrForbidden                  = errors.New("forbidden")
	ErrConflict                   = errors.New("conflict")

	ErrInternal = Errorf("The server errored out while processing your request, and we didn't write a suitable error message. You might consider that a bug on our side. Please try again, and if the error persists, contact the platform team.")
	ErrDatabase = Errorf("The database system encountered an error while processing your request. This is probably a transient error, please try again.")
)

// Error is an error that can be presented to end-users
type Error struct {
	err error
}

func (e Error) Error() string {
	return e.err.Error()
}

// Errorf formats an error message for end-users. Remember not to leak sensitive information in error messages
func Errorf(format string, args ...any) Error {
	return Error{
		err: fmt.Errorf(format, args...),
	}
}

// ValidationError carries every violation found in a change set.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("additive-only validation failed: %s", strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// RiskThresholdError reports the environmental impact that breached the ceiling.
type RiskThresholdError struct {
	Impact    float64
	Threshold float64
}

func (e *RiskThresholdError) Error() string {
	return fmt.Sprintf("environmental impact threshold exceeded: %.2f > %.2f", e.Impact, e.Threshold)
}

func (e *RiskThresholdError) Unwrap() error {
	return ErrRiskThresholdExceeded
}

// SyncError is the structured partial-failure report for a target dispatch.
// Results contains every target, succeeded or not.
type SyncError struct {
	Results []model.TargetResult
}

func (e *SyncError) Failed() []model.TargetResult {
	ret := make([]model.TargetResult, 0)
	for _, r := range e.Results {
		if !r.Synced() {
			ret = append(ret, r)
		}
	}
	return ret
}

func (e *SyncError) Error() string {
	failed := e.Failed()
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, r.TargetID+": "+r.Reason)
	}
	return fmt.Sprintf("%d of %d targets failed to sync: %s", len(failed), len(e.Results), strings.Join(parts, ", "))
}

func (e *SyncError) Unwrap() error {
	return ErrTargetSyncFailure
}

// Response is the JSON body written for a failed request.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Presenter maps errors to HTTP responses. Errors that are not part of the
// taxonomy are logged with the original error attached and presented as
// internal errors.
type Presenter struct {
	log logrus.FieldLogger
}

func NewPresenter(log logrus.FieldLogger) *Presenter {
	return &Presenter{log: log}
}

func (p *Presenter) Present(ctx context.Context, err error) (int, Response) {
	var (
		validationErr *ValidationError
		thresholdErr  *RiskThresholdError
		syncErr       *SyncError
		userErr       Error
		pgErr         *pgconn.PgError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, Response{Code: "validation_error", Message: err.Error(), Details: validationErr.Violations}
	case errors.As(err, &thresholdErr):
		return http.StatusUnprocessableEntity, Response{Code: "risk_threshold_exceeded", Message: err.Error(), Details: map[string]float64{"impact": thresholdErr.Impact, "threshold": thresholdErr.Threshold}}
	case errors.As(err, &syncErr):
		return http.StatusBadGateway, Response{Code: "target_sync_failure", Message: err.Error(), Details: syncErr.Results}
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity, Response{Code: "validation_error", Message: err.Error()}
	case errors.Is(err, ErrRiskThresholdExceeded):
		return http.StatusUnprocessableEntity, Response{Code: "risk_threshold_exceeded", Message: err.Error()}
	case errors.Is(err, ErrVoteWindowClosed):
		return http.StatusConflict, Response{Code: "vote_window_closed", Message: err.Error()}
	case errors.Is(err, ErrRollbackUnavailable):
		return http.StatusConflict, Response{Code: "rollback_unavailable", Message: err.Error()}
	case errors.Is(err, ErrConcurrentRollbackConflict):
		return http.StatusConflict, Response{Code: "concurrent_rollback_conflict", Message: err.Error()}
	case errors.Is(err, ErrTargetSyncFailure):
		return http.StatusBadGateway, Response{Code: "target_sync_failure", Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, Response{Code: "not_found", Message: err.Error()}
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, Response{Code: "invalid_input", Message: err.Error()}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, Response{Code: "forbidden", Message: err.Error()}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, Response{Code: "conflict", Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return 499, Response{Code: "canceled", Message: "Request canceled."}
	case errors.As(err, &userErr):
		return http.StatusInternalServerError, Response{Code: "error", Message: userErr.Error()}
	case errors.As(err, &pgErr):
		p.log.WithError(err).Errorf("database error")
		return http.StatusInternalServerError, Response{Code: "database_error", Message: ErrDatabase.Error()}
	}

	p.log.WithError(err).Errorf("unhandled error in the error presenter")
	return http.StatusInternalServerError, Response{Code: "internal_error", Message: ErrInternal.Error()}
}
