/*
Package jobqueue configuration - tunable parameters for the River queue.

Increase MaxWorkers for higher provisioning throughput; lower it to cut
database connection usage. MaxRetries trades reliability against how
long a broken panel keeps a reservation in pending. Failed jobs retain
error information in the River jobs table.
*/
package jobqueue

import (
	"os"
	"strconv"
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	// MaxWorkers is the number of concurrent workers processing jobs
	MaxWorkers int

	// MaxRetries is the maximum retry attempts per job before River
	// discards it
	MaxRetries int

	// JobTimeout is the maximum time a single job can run
	JobTimeout time.Duration

	// UsageSyncInterval is how often the periodic usage sweep runs
	UsageSyncInterval time.Duration
}

// GetQueueConfig returns the queue configuration with env overrides
func GetQueueConfig() *QueueConfig {
	config := &QueueConfig{
		MaxWorkers:        10,
		MaxRetries:        25,
		JobTimeout:        5 * time.Minute,
		UsageSyncInterval: time.Hour,
	}

	if v := os.Getenv("HOSTMARKET_QUEUE_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxWorkers = n
		}
	}

	if v := os.Getenv("HOSTMARKET_QUEUE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxRetries = n
		}
	}

	if v := os.Getenv("HOSTMARKET_QUEUE_JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.JobTimeout = d
		}
	}

	if v := os.Getenv("HOSTMARKET_QUEUE_USAGE_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.UsageSyncInterval = d
		}
	}

	return config
}

// RiverQueueConfig returns the queue configuration in River's format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: c.MaxWorkers},
	}
}
