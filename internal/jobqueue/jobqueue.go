/*
Package jobqueue provides a River-based job queue for deferred hosting
provisioning work: usage syncs and panel retries that should survive a
process restart instead of living in a request goroutine.

For tuning parameters see queue_config.go.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/hostmarket/internal/hosting"
	"github.com/hostmarket/pkg/models"
)

// ProvisionJobArgs asks the worker to confirm a reserved hosting account
// with the panel. Idempotent on domain: if the row already went active
// through another path the job is a no-op.
type ProvisionJobArgs struct {
	HostingAccountID int64  `json:"hosting_account_id"`
	Domain           string `json:"domain"`
	Username         string `json:"username"`
	DiskLimitMB      int    `json:"disk_limit_mb"`
	BandwidthLimitMB int    `json:"bandwidth_limit_mb"`
	RequestID        string `json:"request_id"`
}

// Kind returns the job kind for River
func (ProvisionJobArgs) Kind() string { return "panel_provision" }

// UsageSyncJobArgs asks the worker to refresh disk/bandwidth usage for a
// domain from the panel.
type UsageSyncJobArgs struct {
	Domain string `json:"domain"`
}

// Kind returns the job kind for River
func (UsageSyncJobArgs) Kind() string { return "usage_sync" }

// ProvisionWorker drives pending hosting accounts to active via the panel.
type ProvisionWorker struct {
	river.WorkerDefaults[ProvisionJobArgs]
	pool  *pgxpool.Pool
	panel hosting.PanelClient
}

// Work performs the panel provisioning call and records the outcome.
func (w *ProvisionWorker) Work(ctx context.Context, job *river.Job[ProvisionJobArgs]) error {
	args := job.Args

	var status string
	err := w.pool.QueryRow(ctx,
		"SELECT status FROM hosting_accounts WHERE id = $1", args.HostingAccountID).Scan(&status)
	if err == pgx.ErrNoRows {
		// Reservation was released; nothing to provision.
		log.Info().Str("domain", args.Domain).Msg("provision job skipped, reservation gone")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load hosting account: %w", err)
	}
	if status == models.HostingStatusActive {
		log.Info().Str("domain", args.Domain).Msg("provision job skipped, already active")
		return nil
	}

	err = w.panel.ProvisionAccount(ctx, hosting.ProvisionRequest{
		Domain:           args.Domain,
		Username:         args.Username,
		DiskLimitMB:      args.DiskLimitMB,
		BandwidthLimitMB: args.BandwidthLimitMB,
		RequestID:        args.RequestID,
	})
	if err != nil {
		// On the last attempt the reservation is released so the domain
		// name does not stay stranded in pending forever. Otherwise
		// returning the error lets River retry on its schedule.
		if job.Attempt >= job.MaxAttempts {
			if _, delErr := w.pool.Exec(ctx,
				"DELETE FROM hosting_accounts WHERE id = $1 AND status = 'pending'",
				args.HostingAccountID); delErr != nil {
				log.Error().Err(delErr).Str("domain", args.Domain).
					Msg("failed to release domain after exhausted retries")
			} else {
				log.Warn().Str("domain", args.Domain).
					Msg("panel provisioning exhausted retries, domain released")
			}
			return fmt.Errorf("panel provisioning failed: %w", err)
		}
		log.Warn().Err(err).Str("domain", args.Domain).Msg("panel provisioning failed, will retry")
		return fmt.Errorf("panel provisioning failed: %w", err)
	}

	_, err = w.pool.Exec(ctx, `
		UPDATE hosting_accounts SET status = 'active', updated_at = NOW() WHERE id = $1
	`, args.HostingAccountID)
	if err != nil {
		return fmt.Errorf("failed to activate hosting account: %w", err)
	}

	log.Info().Str("domain", args.Domain).Msg("hosting account provisioned by worker")
	return nil
}

// UsageSyncWorker refreshes quota usage for a domain.
type UsageSyncWorker struct {
	river.WorkerDefaults[UsageSyncJobArgs]
	pool  *pgxpool.Pool
	panel hosting.PanelClient
}

// Work pulls usage from the panel and suspends breached accounts.
func (w *UsageSyncWorker) Work(ctx context.Context, job *river.Job[UsageSyncJobArgs]) error {
	usage, err := w.panel.AccountUsage(ctx, job.Args.Domain)
	if err != nil {
		return fmt.Errorf("usage lookup failed: %w", err)
	}

	tag, err := w.pool.Exec(ctx, `
		UPDATE hosting_accounts
		SET disk_usage_mb = LEAST($1, disk_limit_mb),
		    bandwidth_used_mb = $2,
		    status = CASE
		        WHEN status = 'active' AND $1 > disk_limit_mb THEN 'suspended'
		        ELSE status
		    END,
		    updated_at = NOW()
		WHERE domain = $3
	`, usage.DiskUsageMB, usage.BandwidthUsedMB, job.Args.Domain)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Warn().Str("domain", job.Args.Domain).Msg("usage sync for unknown domain")
	}
	return nil
}

// UsageSweepJobArgs fans out one usage sync job per active or suspended
// hosting account. Scheduled periodically by the queue itself.
type UsageSweepJobArgs struct{}

// Kind returns the job kind for River
func (UsageSweepJobArgs) Kind() string { return "usage_sweep" }

// UsageSweepWorker enumerates accounts worth syncing and enqueues a
// per-domain usage sync for each.
type UsageSweepWorker struct {
	river.WorkerDefaults[UsageSweepJobArgs]
	pool *pgxpool.Pool
}

// Work enqueues usage sync jobs for every syncable domain.
func (w *UsageSweepWorker) Work(ctx context.Context, job *river.Job[UsageSweepJobArgs]) error {
	domains, err := syncableDomains(ctx, w.pool)
	if err != nil {
		return err
	}

	client := river.ClientFromContext[pgx.Tx](ctx)
	for _, domain := range domains {
		if _, err := client.Insert(ctx, UsageSyncJobArgs{Domain: domain}, nil); err != nil {
			return fmt.Errorf("failed to queue usage sync for %s: %w", domain, err)
		}
	}

	log.Info().Int("domains", len(domains)).Msg("usage sweep enqueued")
	return nil
}

// syncableDomains returns the domains whose panel usage is worth
// refreshing. Suspended accounts are included so their usage numbers
// stay current.
func syncableDomains(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT domain FROM hosting_accounts WHERE status IN ('active', 'suspended')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue creates a new job queue instance
func NewJobQueue(databaseURL string, panel hosting.PanelClient) (*JobQueue, error) {
	config := GetQueueConfig()

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &ProvisionWorker{pool: pool, panel: panel})
	river.AddWorker(workers, &UsageSyncWorker{pool: pool, panel: panel})
	river.AddWorker(workers, &UsageSweepWorker{pool: pool})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:      config.RiverQueueConfig(),
		Workers:     workers,
		MaxAttempts: config.MaxRetries,
		JobTimeout:  config.JobTimeout,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(config.UsageSyncInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return UsageSweepJobArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool, config: config}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	jq.pool.Close()
	return jq.client.Stop(ctx)
}

// EnqueueProvision queues a deferred panel provisioning job for a
// reserved hosting account.
func (jq *JobQueue) EnqueueProvision(ctx context.Context, args ProvisionJobArgs) error {
	if _, err := jq.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to queue provision job: %w", err)
	}
	return nil
}

// RecoverStalePending enqueues provision jobs for reservations that got
// stuck in pending, typically because the process died between the
// reservation insert and the panel call. Run once at startup; the
// threshold keeps it from racing reservations currently in flight.
func (jq *JobQueue) RecoverStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := staleProvisionArgs(ctx, jq.pool, olderThan)
	if err != nil {
		return 0, err
	}

	for _, args := range stale {
		if err := jq.EnqueueProvision(ctx, args); err != nil {
			return 0, fmt.Errorf("failed to queue recovery provision for %s: %w", args.Domain, err)
		}
		log.Info().Str("domain", args.Domain).Msg("re-queued stale pending reservation")
	}
	return len(stale), nil
}

// staleProvisionArgs loads pending reservations older than the threshold
// as ready-to-insert provision jobs.
func staleProvisionArgs(ctx context.Context, pool *pgxpool.Pool, olderThan time.Duration) ([]ProvisionJobArgs, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, domain, disk_limit_mb, bandwidth_limit_mb,
		       COALESCE(panel_request_id::text, '')
		FROM hosting_accounts
		WHERE status = 'pending' AND updated_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale reservations: %w", err)
	}
	defer rows.Close()

	var stale []ProvisionJobArgs
	for rows.Next() {
		var args ProvisionJobArgs
		var userID int64
		if err := rows.Scan(&args.HostingAccountID, &userID, &args.Domain,
			&args.DiskLimitMB, &args.BandwidthLimitMB, &args.RequestID); err != nil {
			return nil, fmt.Errorf("failed to scan stale reservation: %w", err)
		}
		args.Username = hosting.PanelUsername(args.Domain, userID)
		stale = append(stale, args)
	}
	return stale, rows.Err()
}
