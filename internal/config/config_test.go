package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nais/deploy-governance/internal/config"
)

func TestNewFromArgs(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.NewFromArgs(nil)
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.True(t, cfg.AdditiveOnly)
		assert.Equal(t, 100.0, cfg.EnvironmentalImpactThreshold)
		assert.Equal(t, 24*time.Hour, cfg.VotingWindow)
		assert.Equal(t, 51.0, cfg.QuorumPercentage)
		assert.Equal(t, 10.0, cfg.DecisiveMargin)
		assert.Equal(t, 0.8, cfg.MinAdditiveRatio)
		assert.Equal(t, 2.0, cfg.ExpertWeight)
		assert.Equal(t, 2*time.Minute, cfg.TargetTimeout)
		assert.Equal(t, 1, cfg.TargetRetries)
		assert.Equal(t, 4, cfg.MaxParallelTargets)
		assert.Empty(t, cfg.Targets)
		assert.Empty(t, cfg.Experts)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("GOVERNANCE_VOTING_WINDOW", "1h")
		t.Setenv("GOVERNANCE_ADDITIVE_ONLY", "false")
		t.Setenv("GOVERNANCE_EXPERTS", "erin:security+api,frank")
		t.Setenv("GOVERNANCE_TARGETS", "vercel|vercel|https://vercel.example/|psk1,netlify|netlify|https://netlify.example|")

		cfg, err := config.NewFromArgs(nil)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, cfg.VotingWindow)
		assert.False(t, cfg.AdditiveOnly)
		assert.Equal(t, []config.StaticExpert{
			{ID: "erin", Expertise: []string{"security", "api"}},
			{ID: "frank", Expertise: []string{}},
		}, cfg.Experts)
		assert.Equal(t, []string{"erin", "frank"}, cfg.ExpertIDs())
		require.Len(t, cfg.Targets, 2)
		assert.Equal(t, config.StaticTarget{ID: "vercel", Platform: "vercel", Endpoint: "https://vercel.example", PSK: "psk1"}, cfg.Targets[0])
		assert.Empty(t, cfg.Targets[1].PSK)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		cfg, err := config.NewFromArgs([]string{"--port", "3000", "--quorum-percentage", "60", "--database-dsn", config.MemoryDSN})
		require.NoError(t, err)
		assert.Equal(t, "3000", cfg.Port)
		assert.Equal(t, 60.0, cfg.QuorumPercentage)
		assert.Equal(t, config.MemoryDSN, cfg.DatabaseDSN)
	})

	t.Run("invalid environment", func(t *testing.T) {
		t.Setenv("GOVERNANCE_TARGET_RETRIES", "many")
		_, err := config.NewFromArgs(nil)
		assert.ErrorContains(t, err, "GOVERNANCE_TARGET_RETRIES")
	})

	t.Run("invalid target", func(t *testing.T) {
		_, err := config.NewFromArgs([]string{"--targets", "vercel|vercel"})
		assert.ErrorContains(t, err, "id|platform|endpoint|psk")
	})
}

func TestStaticTarget_Decode(t *testing.T) {
	target := &config.StaticTarget{}
	t.Run("empty string", func(t *testing.T) {
		assert.NoError(t, target.EnvDecode(""))
	})

	t.Run("empty id", func(t *testing.T) {
		err := target.EnvDecode("|vercel|https://vercel.example|psk")
		assert.ErrorContains(t, err, "ID must not be empty")
	})

	t.Run("empty platform", func(t *testing.T) {
		err := target.EnvDecode("vercel||https://vercel.example|psk")
		assert.ErrorContains(t, err, "Platform must not be empty")
	})

	t.Run("empty endpoint", func(t *testing.T) {
		err := target.EnvDecode("vercel|vercel||psk")
		assert.ErrorContains(t, err, "Endpoint must not be empty")
	})

	t.Run("valid string", func(t *testing.T) {
		err := target.EnvDecode("vercel|vercel|https://vercel.example|psk")
		assert.NoError(t, err)
		assert.Equal(t, "vercel", target.ID)
		assert.Equal(t, "https://vercel.example", target.Endpoint)
		assert.Equal(t, "psk", target.PSK)
	})
}

func TestStaticExpert_Decode(t *testing.T) {
	expert := &config.StaticExpert{}
	assert.NoError(t, expert.EnvDecode(""))
	assert.ErrorContains(t, expert.EnvDecode(":security"), "User must not be empty")

	require.NoError(t, expert.EnvDecode("erin:security+ +api"))
	assert.Equal(t, "erin", expert.ID)
	assert.Equal(t, []string{"security", "api"}, expert.Expertise)
}
