package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type config struct {
	PostgresDSN       string
	RedisAddr         string
	StorageDir        string
	RepoRoot          string
	WorkerConcurrency int
	WorkerPollInterval time.Duration
	ResetInterval     time.Duration
	TipsScheduleInterval time.Duration
}

func loadConfig() config {
	return config{
		PostgresDSN:          mustGet("PRECISE_CODE_INTEL_POSTGRES_DSN"),
		RedisAddr:            getOrDefault("PRECISE_CODE_INTEL_REDIS_ADDR", "127.0.0.1:6379"),
		StorageDir:           getOrDefault("PRECISE_CODE_INTEL_BUNDLE_DIR", "/var/lib/precise-code-intel"),
		RepoRoot:             getOrDefault("PRECISE_CODE_INTEL_REPO_ROOT", "/repos"),
		WorkerConcurrency:    mustParseInt(getOrDefault("PRECISE_CODE_INTEL_WORKER_CONCURRENCY", "4")),
		WorkerPollInterval:   mustParseInterval(getOrDefault("PRECISE_CODE_INTEL_WORKER_POLL_INTERVAL", "1s")),
		ResetInterval:        mustParseInterval(getOrDefault("PRECISE_CODE_INTEL_RESET_INTERVAL", "30s")),
		TipsScheduleInterval: mustParseInterval(getOrDefault("PRECISE_CODE_INTEL_TIPS_SCHEDULE_INTERVAL", "5m")),
	}
}

func mustGet(name string) string {
	value := os.Getenv(name)
	if value == "" {
		fmt.Fprintf(os.Stderr, "invalid configuration: %s must be set\n", name)
		os.Exit(1)
	}
	return value
}

func getOrDefault(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

func mustParseInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %q is not an integer\n", value)
		os.Exit(1)
	}
	return n
}

func mustParseInterval(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %q is not a duration\n", value)
		os.Exit(1)
	}
	return d
}
