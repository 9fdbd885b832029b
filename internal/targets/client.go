package targets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nais/deploy-governance/internal/model"
)

// Client talks to the release API of one target platform.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        logrus.FieldLogger
	errors     metric.Int64Counter
}

func New(psk, endpoint string, errors metric.Int64Counter, log logrus.FieldLogger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: Transport{PSK: psk}.Client(),
		log:        log,
		errors:     errors,
	}
}

type releaseRequest struct {
	DeploymentID string `json:"deploymentId"`
	TargetID     string `json:"targetId"`
	Platform     string `json:"platform"`
	Version      string `json:"version"`
}

// StatusResponse is returned by the platform for releases, rollbacks and
// health checks.
type StatusResponse struct {
	Status   string   `json:"status"`
	Health   string   `json:"health"`
	Version  string   `json:"version"`
	Message  string   `json:"message"`
	Warnings []string `json:"warnings"`
}

func (c *Client) Deploy(ctx context.Context, deploymentID, version string, target model.TargetRef) (model.TargetStatus, error) {
	return c.release(ctx, "/api/v1/releases", releaseRequest{
		DeploymentID: deploymentID,
		TargetID:     target.ID,
		Platform:     target.Platform,
		Version:      version,
	})
}

func (c *Client) Rollback(ctx context.Context, deploymentID string, target model.TargetRef, version string) (model.TargetStatus, error) {
	return c.release(ctx, "/api/v1/rollbacks", releaseRequest{
		DeploymentID: deploymentID,
		TargetID:     target.ID,
		Platform:     target.Platform,
		Version:      version,
	})
}

// HealthCheck never fails. An unreachable platform is reported as unhealthy.
func (c *Client) HealthCheck(ctx context.Context, target model.TargetRef) model.TargetStatus {
	q := url.Values{"target": {target.ID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/v1/health?"+q.Encode(), nil)
	if err != nil {
		return unhealthy(c.error(ctx, err, "creating health request"))
	}

	var resp StatusResponse
	if err := c.do(req, &resp); err != nil {
		return unhealthy(c.error(ctx, err, "checking target health"))
	}
	return toTargetStatus(resp)
}

func (c *Client) release(ctx context.Context, path string, body releaseRequest) (model.TargetStatus, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return model.TargetStatus{}, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(b))
	if err != nil {
		return model.TargetStatus{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp StatusResponse
	if err := c.do(req, &resp); err != nil {
		return model.TargetStatus{}, c.error(ctx, err, "calling "+path)
	}
	return toTargetStatus(resp), nil
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("target responded %v: %s", resp.Status, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding target response: %w", err)
	}
	return nil
}

func (c *Client) error(ctx context.Context, err error, msg string) error {
	if c.errors != nil {
		c.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "target-client")))
	}
	c.log.WithError(err).WithField("endpoint", c.endpoint).Error(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

func toTargetStatus(resp StatusResponse) model.TargetStatus {
	ret := model.TargetStatus{
		Sync:     model.SyncStatus(resp.Status),
		Health:   model.HealthStatus(resp.Health),
		Version:  resp.Version,
		Message:  resp.Message,
		Warnings: resp.Warnings,
	}
	switch ret.Sync {
	case model.SyncSynced, model.SyncFailed:
	default:
		ret.Sync = model.SyncUnknown
	}
	switch ret.Health {
	case model.HealthHealthy, model.HealthUnhealthy:
	default:
		ret.Health = model.HealthUnknown
	}
	return ret
}

func unhealthy(err error) model.TargetStatus {
	return model.TargetStatus{
		Sync:    model.SyncUnknown,
		Health:  model.HealthUnhealthy,
		Message: err.Error(),
	}
}
