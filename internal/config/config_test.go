package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("TEMPORAL_ADDRESS")
	os.Unsetenv("TASK_QUEUE")
	os.Unsetenv("HTTP_LISTEN_ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("AWS_REGION")
	os.Unsetenv("EVENT_BUS_NAME")
	os.Unsetenv("DEPLOYMENT_POLL_SECONDS")
	os.Unsetenv("DEPLOYMENT_RETENTION_DAYS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "localhost:7233", cfg.TemporalAddress)
	assert.Equal(t, "blueprint-deployments", cfg.TaskQueue)
	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "default", cfg.EventBusName)
	assert.Equal(t, 10, cfg.DeploymentPollSeconds)
	assert.Equal(t, 90, cfg.DeploymentRetentionDays)
}

func TestLoad_AllEnvVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/blueprints")
	t.Setenv("TEMPORAL_ADDRESS", "temporal.example.com:7233")
	t.Setenv("TASK_QUEUE", "custom-queue")
	t.Setenv("EVENT_BUS_NAME", "sandbox-leases")
	t.Setenv("DEPLOYMENT_POLL_SECONDS", "30")
	t.Setenv("DEPLOYMENT_RETENTION_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/blueprints", cfg.DatabaseURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalAddress)
	assert.Equal(t, "custom-queue", cfg.TaskQueue)
	assert.Equal(t, "sandbox-leases", cfg.EventBusName)
	assert.Equal(t, 30, cfg.DeploymentPollSeconds)
	assert.Equal(t, 30, cfg.DeploymentRetentionDays)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("DEPLOYMENT_POLL_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.DeploymentPollSeconds)
}

func TestValidate_Worker_MissingFields(t *testing.T) {
	cfg := &Config{TemporalAddress: "localhost:7233", EventBusName: "default"}
	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_API_MissingFields(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://localhost/blueprints"}
	cfg.TemporalAddress = ""
	err := cfg.Validate("blueprint-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEMPORAL_ADDRESS")
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := &Config{
		DatabaseURL:     "postgres://localhost/blueprints",
		TemporalAddress: "localhost:7233",
		HTTPListenAddr:  ":8090",
		EventBusName:    "default",
	}
	assert.NoError(t, cfg.Validate("worker"))
	assert.NoError(t, cfg.Validate("blueprint-api"))
}
