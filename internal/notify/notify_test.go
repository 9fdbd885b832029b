package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/nais/deploy-governance/internal/notify"
	testhelper "github.com/nais/deploy-governance/internal/test"
)

const token = "token"

func TestWebhook(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	errors, err := metric.NewMeterProvider().Meter("test").Int64Counter("errors")
	require.NoError(t, err)

	t.Run("community and expert notifications", func(t *testing.T) {
		server := testhelper.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
				event := notify.Event{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
				assert.Equal(t, notify.Event{Type: notify.EventCommunityVote, DeploymentID: "dep-1", RoundID: "round-1"}, event)
				w.WriteHeader(http.StatusNoContent)
			},
			func(w http.ResponseWriter, r *http.Request) {
				event := notify.Event{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
				assert.Equal(t, notify.Event{Type: notify.EventExpertReview, DeploymentID: "dep-1", ExpertID: "erin"}, event)
				w.WriteHeader(http.StatusOK)
			},
		})

		webhook := notify.NewWebhook(token, server.URL, errors, log)
		assert.NoError(t, webhook.NotifyCommunity(ctx, "dep-1", "round-1"))
		assert.NoError(t, webhook.NotifyExpert(ctx, "erin", "dep-1"))
	})

	t.Run("failing endpoint", func(t *testing.T) {
		server := testhelper.NewHttpServerWithHandlers(t, []http.HandlerFunc{
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		})

		err := notify.NewWebhook(token, server.URL, errors, log).NotifyCommunity(ctx, "dep-1", "round-1")
		assert.ErrorContains(t, err, "502 Bad Gateway")
	})
}

func TestLog(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := notify.NewLog(log)

	require.NoError(t, n.NotifyCommunity(context.Background(), "dep-1", "round-1"))
	require.NoError(t, n.NotifyExpert(context.Background(), "erin", "dep-1"))

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "erin", hook.LastEntry().Data["expert"])
}
