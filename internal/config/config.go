package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL     string
	TemporalAddress string
	TaskQueue       string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string
	ServiceName     string

	// AWSRegion is the home region for the CloudFormation and EventBridge
	// clients; target regions for a deployment come from each StackSet
	// configuration, not from here.
	AWSRegion    string
	EventBusName string

	// DeploymentPollSeconds is the interval between operation status polls
	// while a deployment is in flight.
	DeploymentPollSeconds int

	// DeploymentRetentionDays controls the expiry stamped on deployment
	// history records. Purging is handled outside this service.
	DeploymentRetentionDays int
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		TemporalAddress:         getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TaskQueue:               getEnv("TASK_QUEUE", "blueprint-deployments"),
		HTTPListenAddr:          getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:             getEnv("METRICS_ADDR", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		ServiceName:             getEnv("SERVICE_NAME", "blueprints"),
		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		EventBusName:            getEnv("EVENT_BUS_NAME", "default"),
		DeploymentPollSeconds:   getEnvInt("DEPLOYMENT_POLL_SECONDS", 10),
		DeploymentRetentionDays: getEnvInt("DEPLOYMENT_RETENTION_DAYS", 90),
	}

	return cfg, nil
}

// Validate checks that the fields required by the given service are set.
func (c *Config) Validate(service string) error {
	switch service {
	case "worker":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", service)
		}
		if c.TemporalAddress == "" {
			return fmt.Errorf("TEMPORAL_ADDRESS is required for %s", service)
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required for %s", service)
		}
	case "blueprint-api":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", service)
		}
		if c.TemporalAddress == "" {
			return fmt.Errorf("TEMPORAL_ADDRESS is required for %s", service)
		}
		if c.HTTPListenAddr == "" {
			return fmt.Errorf("HTTP_LISTEN_ADDR is required for %s", service)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
