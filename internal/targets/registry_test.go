package targets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/deployment"
	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/targets"
)

func TestRegistry(t *testing.T) {
	vercelClient := deployment.NewMockTargetClient(t)
	netlifyClient := deployment.NewMockTargetClient(t)

	registry := targets.NewRegistry()
	require.NoError(t, registry.Register(model.TargetRef{ID: "vercel", Platform: "vercel", Endpoint: "https://vercel.example"}, vercelClient))
	require.NoError(t, registry.Register(model.TargetRef{ID: "netlify", Platform: "netlify"}, netlifyClient))
	assert.Error(t, registry.Register(model.TargetRef{ID: "vercel"}, vercelClient))

	t.Run("client lookup", func(t *testing.T) {
		c, err := registry.Client(model.TargetRef{ID: "netlify"})
		require.NoError(t, err)
		assert.Same(t, netlifyClient, c)

		_, err = registry.Client(model.TargetRef{ID: "heroku"})
		assert.Error(t, err)
	})

	t.Run("resolve fills in registered fields", func(t *testing.T) {
		refs, err := registry.Resolve([]model.TargetRef{{ID: "vercel", CurrentVersion: "v1.0.0"}})
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "https://vercel.example", refs[0].Endpoint)
		assert.Equal(t, "v1.0.0", refs[0].CurrentVersion)
		assert.Equal(t, model.HealthUnknown, refs[0].Health)

		_, err = registry.Resolve([]model.TargetRef{{ID: "heroku"}})
		assert.ErrorIs(t, err, apierror.ErrInvalidInput)
	})

	t.Run("health check", func(t *testing.T) {
		vercelClient.EXPECT().HealthCheck(mock.Anything, mock.Anything).Return(model.TargetStatus{Health: model.HealthHealthy, Version: "v2.0.0"}).Once()
		netlifyClient.EXPECT().HealthCheck(mock.Anything, mock.Anything).Return(model.TargetStatus{Health: model.HealthUnhealthy}).Once()

		refs := registry.HealthCheck(context.Background())
		require.Len(t, refs, 2)
		assert.Equal(t, model.HealthHealthy, refs[0].Health)
		assert.Equal(t, "v2.0.0", refs[0].CurrentVersion)
		assert.Equal(t, model.HealthUnhealthy, refs[1].Health)
		assert.Equal(t, model.HealthUnknown, registry.Targets()[0].Health)
	})
}
