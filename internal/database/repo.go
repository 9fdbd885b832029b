package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/model"
)

// Repo stores deployments, voting rounds, votes and reputation records in
// PostgreSQL. Aggregates are kept as JSONB documents next to the columns
// that are queried on.
type Repo struct {
	db  *pgxpool.Pool
	log logrus.FieldLogger

	errorCount metric.Int64Counter
}

func New(db *pgxpool.Pool, log logrus.FieldLogger) *Repo {
	return &Repo{
		db:  db,
		log: log,
	}
}

func (r *Repo) Metrics(meter metric.Meter) (err error) {
	r.errorCount, err = meter.Int64Counter("database_errors", metric.WithDescription("Number of failed database queries"))
	if err != nil {
		return fmt.Errorf("failed to create database_errors counter: %w", err)
	}
	return nil
}

func (r *Repo) Close() {
	r.db.Close()
}

func (r *Repo) SaveDeployment(ctx context.Context, d model.Deployment) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding deployment: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO deployments (id, status, created_by, created_at, updated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at, data = EXCLUDED.data`,
		d.ID, d.Status, d.CreatedBy, d.CreatedAt, d.UpdatedAt, data)
	return r.check(ctx, "save_deployment", err)
}

func (r *Repo) LoadDeployment(ctx context.Context, id string) (model.Deployment, error) {
	var d model.Deployment
	err := r.loadDocument(ctx, "load_deployment", `SELECT data FROM deployments WHERE id = $1`, id, &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Deployment{}, fmt.Errorf("%w: deployment %s", apierror.ErrNotFound, id)
	}
	return d, err
}

// ListDeployments returns every deployment, newest first.
func (r *Repo) ListDeployments(ctx context.Context) ([]model.Deployment, error) {
	rows, err := r.db.Query(ctx, `SELECT data FROM deployments ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, r.check(ctx, "list_deployments", err)
	}
	ret, err := pgx.CollectRows(rows, decodeRow[model.Deployment])
	if err != nil {
		return nil, r.check(ctx, "list_deployments", err)
	}
	return ret, nil
}

func (r *Repo) SaveRound(ctx context.Context, round model.VotingRound) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("encoding voting round: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO voting_rounds (id, deployment_id, status, closes_at, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, data = EXCLUDED.data`,
		round.ID, round.DeploymentID, round.Status, round.ClosesAt, data)
	return r.check(ctx, "save_round", err)
}

func (r *Repo) LoadRound(ctx context.Context, roundID string) (model.VotingRound, error) {
	var round model.VotingRound
	err := r.loadDocument(ctx, "load_round", `SELECT data FROM voting_rounds WHERE id = $1`, roundID, &round)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.VotingRound{}, fmt.Errorf("%w: voting round %s", apierror.ErrNotFound, roundID)
	}
	return round, err
}

// SaveVote stores the vote, replacing any earlier vote by the same voter in
// the same round.
func (r *Repo) SaveVote(ctx context.Context, vote model.Vote) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO votes (id, round_id, deployment_id, voter, choice, voting_power, reason, replaced, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (round_id, voter) DO UPDATE
		SET id = EXCLUDED.id,
			choice = EXCLUDED.choice,
			voting_power = EXCLUDED.voting_power,
			reason = EXCLUDED.reason,
			replaced = EXCLUDED.replaced,
			created_at = EXCLUDED.created_at`,
		vote.ID, vote.RoundID, vote.DeploymentID, vote.Voter, vote.Choice, vote.VotingPower, vote.Reason, vote.Replaced, vote.Timestamp)
	return r.check(ctx, "save_vote", err)
}

// LoadVotesForDeployment returns the current vote of every voter, oldest first.
func (r *Repo) LoadVotesForDeployment(ctx context.Context, deploymentID string) ([]model.Vote, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, deployment_id, round_id, voter, choice, voting_power, reason, replaced, created_at
		FROM votes
		WHERE deployment_id = $1
		ORDER BY created_at, id`, deploymentID)
	if err != nil {
		return nil, r.check(ctx, "load_votes", err)
	}
	ret, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Vote, error) {
		var (
			v  model.Vote
			ts time.Time
		)
		err := row.Scan(&v.ID, &v.DeploymentID, &v.RoundID, &v.Voter, &v.Choice, &v.VotingPower, &v.Reason, &v.Replaced, &ts)
		v.Timestamp = ts.UTC()
		return v, err
	})
	if err != nil {
		return nil, r.check(ctx, "load_votes", err)
	}
	return ret, nil
}

func (r *Repo) SaveReputation(ctx context.Context, rep model.Reputation) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding reputation: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO reputations (user_id, total_score, updated_at, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET total_score = EXCLUDED.total_score, updated_at = EXCLUDED.updated_at, data = EXCLUDED.data`,
		rep.UserID, rep.TotalScore, rep.UpdatedAt, data)
	return r.check(ctx, "save_reputation", err)
}

func (r *Repo) LoadReputation(ctx context.Context, userID string) (model.Reputation, error) {
	var rep model.Reputation
	err := r.loadDocument(ctx, "load_reputation", `SELECT data FROM reputations WHERE user_id = $1`, userID, &rep)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reputation{}, fmt.Errorf("%w: reputation for %s", apierror.ErrNotFound, userID)
	}
	return rep, err
}

// CountEligibleVoters is the number of users holding a reputation record.
func (r *Repo) CountEligibleVoters(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM reputations`).Scan(&n)
	return n, r.check(ctx, "count_eligible_voters", err)
}

func (r *Repo) loadDocument(ctx context.Context, op, query, id string, dst any) error {
	var data []byte
	if err := r.db.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return r.check(ctx, op, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", op, err)
	}
	return nil
}

func decodeRow[T any](row pgx.CollectableRow) (T, error) {
	var (
		ret  T
		data []byte
	)
	if err := row.Scan(&data); err != nil {
		return ret, err
	}
	err := json.Unmarshal(data, &ret)
	return ret, err
}

// check counts and logs failed queries. The error is returned unchanged so
// callers can inspect pgconn errors.
func (r *Repo) check(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if r.errorCount != nil {
		r.errorCount.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
	}
	r.log.WithError(err).WithField("operation", op).Error("database query failed")
	return err
}
