package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nais/deploy-governance/internal/model"
	"github.com/nais/deploy-governance/internal/search"
)

type listerFunc func(ctx context.Context) ([]model.Deployment, error)

func (f listerFunc) ListDeployments(ctx context.Context) ([]model.Deployment, error) {
	return f(ctx)
}

func deployments(d ...model.Deployment) search.Lister {
	return listerFunc(func(context.Context) ([]model.Deployment, error) { return d, nil })
}

func TestMatch(t *testing.T) {
	assert.Equal(t, 0, search.Match("widget", "Widget"))
	assert.Equal(t, -1, search.Match("widget", "button"))
	assert.Greater(t, search.Match("wdg", "src/components/Widget.tsx"), 0)
}

func TestDeployments_Search(t *testing.T) {
	ctx := context.Background()
	widget := model.Deployment{ID: "dep-1", Version: "v2.0.0", CreatedBy: "carol", Changes: []model.Change{{Path: "src/components/Widget.tsx"}}}
	button := model.Deployment{ID: "dep-2", Version: "v2.1.0", CreatedBy: "dave", Changes: []model.Change{{Path: "src/components/Button.tsx"}}}
	carol := model.Deployment{ID: "dep-3", Version: "v3.0.0", CreatedBy: "carol"}

	t.Run("matches on paths", func(t *testing.T) {
		results, err := search.New(search.NewDeployments(deployments(widget, button))).Search(ctx, "widget")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "dep-1", results[0].Deployment.ID)
	})

	t.Run("better matches first", func(t *testing.T) {
		results, err := search.New(search.NewDeployments(deployments(widget, carol))).Search(ctx, "carol")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 0, results[0].Rank)
		assert.Equal(t, 0, results[1].Rank)
	})

	t.Run("no matches", func(t *testing.T) {
		results, err := search.New(search.NewDeployments(deployments(widget, button))).Search(ctx, "zebra")
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("lister error", func(t *testing.T) {
		failing := listerFunc(func(context.Context) ([]model.Deployment, error) { return nil, errors.New("db down") })
		_, err := search.New(search.NewDeployments(failing)).Search(ctx, "carol")
		assert.EqualError(t, err, "db down")
	})
}
