package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Weather.CacheTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Analytics.SilentWindow)
	assert.Equal(t, 7, cfg.Analytics.DefaultWindowDays)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.Brokers)
	assert.False(t, cfg.Insights.Enabled)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("WEATHER_CACHE_TTL", "not-a-duration")
	v.Set("INSIGHTS_TIMEOUT", "3s")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := fromViper(v)

	assert.Equal(t, 30*time.Minute, cfg.Weather.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.Insights.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}
