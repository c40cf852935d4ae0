package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Engine.ClosingSoonCutoff)
	assert.Equal(t, 15.0, cfg.Engine.ETAPrepMinutes)
	assert.Equal(t, 30.0, cfg.Engine.ETASpeedKmh)
	assert.Equal(t, 1.2, cfg.Engine.ETATrafficFactor)
	assert.Equal(t, 5, cfg.Engine.ETARoundTo)
	assert.Equal(t, "insertion", cfg.Engine.ZoneOrder)
	assert.Equal(t, 10*time.Minute, cfg.Locator.RefreshEvery)
	assert.Equal(t, "us", cfg.Maps.Region)
	assert.Empty(t, cfg.Payments.WebhookSecret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KNX_CLOSING_SOON_CUTOFF", "20m")
	t.Setenv("KNX_ZONE_ORDER", "priority")
	t.Setenv("KNX_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cfg.Engine.ClosingSoonCutoff)
	assert.Equal(t, "priority", cfg.Engine.ZoneOrder)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_RejectsUnknownZoneOrder(t *testing.T) {
	t.Setenv("KNX_ZONE_ORDER", "random")
	_, err := Load()
	assert.Error(t, err)
}
