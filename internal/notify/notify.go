// Package notify tells the community and requested experts about new voting
// rounds.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	EventCommunityVote = "community_vote"
	EventExpertReview  = "expert_review"
)

type Event struct {
	Type         string `json:"type"`
	DeploymentID string `json:"deploymentId"`
	RoundID      string `json:"roundId,omitempty"`
	ExpertID     string `json:"expertId,omitempty"`
}

// Webhook posts events to a single endpoint.
type Webhook struct {
	endpoint   string
	httpClient *http.Client
	log        logrus.FieldLogger
	errors     metric.Int64Counter
}

func NewWebhook(token, endpoint string, errors metric.Int64Counter, log logrus.FieldLogger) *Webhook {
	return &Webhook{
		endpoint:   endpoint,
		httpClient: Transport{Token: token}.Client(),
		log:        log,
		errors:     errors,
	}
}

func (w *Webhook) NotifyCommunity(ctx context.Context, deploymentID, roundID string) error {
	return w.send(ctx, Event{Type: EventCommunityVote, DeploymentID: deploymentID, RoundID: roundID})
}

func (w *Webhook) NotifyExpert(ctx context.Context, expertID, deploymentID string) error {
	return w.send(ctx, Event{Type: EventExpertReview, DeploymentID: deploymentID, ExpertID: expertID})
}

func (w *Webhook) send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return w.error(ctx, err, "creating webhook request")
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return w.error(ctx, err, "posting webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return w.error(ctx, fmt.Errorf("webhook responded %v", resp.Status), "posting webhook")
	}
	return nil
}

func (w *Webhook) error(ctx context.Context, err error, msg string) error {
	if w.errors != nil {
		w.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "notify-webhook")))
	}
	w.log.WithError(err).Error(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// Log writes notifications to the log. It is used when no webhook is configured.
type Log struct {
	log logrus.FieldLogger
}

func NewLog(log logrus.FieldLogger) *Log {
	return &Log{log: log}
}

func (l *Log) NotifyCommunity(_ context.Context, deploymentID, roundID string) error {
	l.log.WithFields(logrus.Fields{"deployment_id": deploymentID, "round_id": roundID}).Info("voting round open for the community")
	return nil
}

func (l *Log) NotifyExpert(_ context.Context, expertID, deploymentID string) error {
	l.log.WithFields(logrus.Fields{"deployment_id": deploymentID, "expert": expertID}).Info("expert review requested")
	return nil
}
