// Package hosting allocates hosting accounts with disk/bandwidth quotas
// and drives the external control panel that actually creates them.
package hosting

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/hostmarket/internal/hosterrors"
	"github.com/hostmarket/internal/limits"
	"github.com/hostmarket/internal/retry"
	"github.com/hostmarket/pkg/models"
)

// pqUniqueViolation is the Postgres error code for unique constraint hits.
const pqUniqueViolation = "23505"

// RFC 1035 label: letters, digits, hyphens; starts with a letter, no
// trailing hyphen, at most 63 chars.
var subdomainPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Provisioner allocates hosting account records and coordinates with the
// panel API. State machine per account: pending -> active on panel
// confirmation, pending -> failed (domain released) on panel failure.
type Provisioner struct {
	db        *sql.DB
	panel     PanelClient
	evaluator *limits.Evaluator

	// BaseDomain is appended to requested subdomains ("myblog" ->
	// "myblog.<BaseDomain>").
	BaseDomain string

	// Default quotas assigned when no group override applies.
	DefaultDiskLimitMB      int
	DefaultBandwidthLimitMB int

	// RetryConfig governs panel-API retries.
	RetryConfig retry.Config
}

// NewProvisioner creates a new hosting account provisioner
func NewProvisioner(db *sql.DB, panel PanelClient, evaluator *limits.Evaluator, baseDomain string) *Provisioner {
	return &Provisioner{
		db:                      db,
		panel:                   panel,
		evaluator:               evaluator,
		BaseDomain:              baseDomain,
		DefaultDiskLimitMB:      models.DefaultDiskLimitMB,
		DefaultBandwidthLimitMB: models.DefaultBandwidthLimitMB,
		RetryConfig:             retry.PanelConfig(),
	}
}

// CreateHostingAccount reserves a domain for the user, asks the panel to
// provision it, and confirms or releases the reservation. A repeat call
// for a domain this user already holds active returns the existing
// record, making at-least-once retries safe.
func (p *Provisioner) CreateHostingAccount(ctx context.Context, userID int64, subdomain string) (*models.HostingAccount, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if !subdomainPattern.MatchString(subdomain) {
		return nil, hosterrors.ValidationError{Field: "subdomain", Reason: "must be a valid DNS label (letters, digits, hyphens)"}
	}
	domain := subdomain + "." + p.BaseDomain

	// Idempotency first: an earlier attempt may already have finished.
	if existing, err := p.byDomain(ctx, domain); err == nil {
		if existing.UserID == userID && existing.Status == models.HostingStatusActive {
			return existing, nil
		}
		return nil, hosterrors.ConflictError{Resource: "domain", Value: domain}
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check existing domain: %w", err)
	}

	check := p.evaluator.CanCreateHostingAccount(ctx, userID)
	if !check.CanCreate {
		return nil, hosterrors.LimitExceededError{
			Resource: "hosting account",
			Current:  check.CurrentAccounts,
			Max:      check.MaxAccounts,
		}
	}

	account, err := p.reserve(ctx, userID, domain)
	if err != nil {
		return nil, err
	}

	if err := p.confirmWithPanel(ctx, account); err != nil {
		return account, err
	}
	return account, nil
}

// reserve inserts the pending row. The UNIQUE constraint on domain is
// what decides concurrent claims; the loser gets ConflictError.
func (p *Provisioner) reserve(ctx context.Context, userID int64, domain string) (*models.HostingAccount, error) {
	account := &models.HostingAccount{
		UserID:           userID,
		Domain:           domain,
		DiskLimitMB:      p.DefaultDiskLimitMB,
		BandwidthLimitMB: p.DefaultBandwidthLimitMB,
		Status:           models.HostingStatusPending,
		PanelRequestID:   uuid.NewString(),
	}

	err := p.db.QueryRowContext(ctx, `
		INSERT INTO hosting_accounts (
			user_id, domain, disk_limit_mb, bandwidth_limit_mb, status,
			panel_request_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 'pending', $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, userID, domain, account.DiskLimitMB, account.BandwidthLimitMB,
		account.PanelRequestID).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			// Lost the race for the name. If the winner was an earlier
			// attempt by the same user that already went active, honor
			// idempotency; otherwise surface the conflict.
			if existing, lookupErr := p.byDomain(ctx, domain); lookupErr == nil &&
				existing.UserID == userID && existing.Status == models.HostingStatusActive {
				return existing, nil
			}
			return nil, hosterrors.ConflictError{Resource: "domain", Value: domain}
		}
		return nil, fmt.Errorf("failed to reserve domain: %w", err)
	}

	return account, nil
}

// confirmWithPanel drives the pending -> active transition. On panel
// failure the record moves to failed and the domain reservation is
// released so the name can be retried.
func (p *Provisioner) confirmWithPanel(ctx context.Context, account *models.HostingAccount) error {
	req := ProvisionRequest{
		Domain:           account.Domain,
		Username:         PanelUsername(account.Domain, account.UserID),
		DiskLimitMB:      account.DiskLimitMB,
		BandwidthLimitMB: account.BandwidthLimitMB,
		RequestID:        account.PanelRequestID,
	}

	result := retry.WithBackoff(ctx, p.RetryConfig, func() error {
		return p.panel.ProvisionAccount(ctx, req)
	})

	if !result.Success {
		log.Warn().Err(result.LastError).Str("domain", account.Domain).
			Int("attempts", result.Attempts).Msg("panel provisioning failed, releasing domain")

		account.Status = models.HostingStatusFailed
		if _, err := p.db.ExecContext(ctx,
			"DELETE FROM hosting_accounts WHERE id = $1", account.ID); err != nil {
			log.Error().Err(err).Str("domain", account.Domain).Msg("failed to release domain reservation")
		}

		return hosterrors.UpstreamUnavailableError{
			Upstream:  "hosting panel",
			Err:       result.LastError,
			Retryable: true,
		}
	}

	_, err := p.db.ExecContext(ctx, `
		UPDATE hosting_accounts SET status = 'active', updated_at = NOW() WHERE id = $1
	`, account.ID)
	if err != nil {
		return fmt.Errorf("failed to activate hosting account: %w", err)
	}

	account.Status = models.HostingStatusActive
	log.Info().Str("domain", account.Domain).Int64("user_id", account.UserID).
		Msg("hosting account active")
	return nil
}

// SyncUsage pulls current consumption from the panel and suspends the
// account when it breaches its disk quota.
func (p *Provisioner) SyncUsage(ctx context.Context, domain string) (*models.HostingAccount, error) {
	account, err := p.byDomain(ctx, domain)
	if err == sql.ErrNoRows {
		return nil, hosterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load hosting account: %w", err)
	}

	usage, err := p.panel.AccountUsage(ctx, domain)
	if err != nil {
		return nil, hosterrors.UpstreamUnavailableError{Upstream: "hosting panel", Err: err, Retryable: true}
	}

	status := account.Status
	if account.Status == models.HostingStatusActive && usage.DiskUsageMB > account.DiskLimitMB {
		status = models.HostingStatusSuspended
	}

	_, err = p.db.ExecContext(ctx, `
		UPDATE hosting_accounts
		SET disk_usage_mb = LEAST($1, disk_limit_mb), bandwidth_used_mb = $2,
		    status = $3, updated_at = NOW()
		WHERE id = $4
	`, usage.DiskUsageMB, usage.BandwidthUsedMB, status, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	account.DiskUsageMB = usage.DiskUsageMB
	if account.DiskUsageMB > account.DiskLimitMB {
		account.DiskUsageMB = account.DiskLimitMB
	}
	account.BandwidthUsedMB = usage.BandwidthUsedMB
	account.Status = status
	return account, nil
}

// ListForUser returns the user's hosting accounts, newest first.
func (p *Provisioner) ListForUser(ctx context.Context, userID int64) ([]*models.HostingAccount, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, domain, disk_usage_mb, disk_limit_mb,
		       bandwidth_used_mb, bandwidth_limit_mb, status,
		       COALESCE(panel_request_id::text, ''), created_at, updated_at
		FROM hosting_accounts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosting accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.HostingAccount
	for rows.Next() {
		a := &models.HostingAccount{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Domain, &a.DiskUsageMB, &a.DiskLimitMB,
			&a.BandwidthUsedMB, &a.BandwidthLimitMB, &a.Status,
			&a.PanelRequestID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hosting account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (p *Provisioner) byDomain(ctx context.Context, domain string) (*models.HostingAccount, error) {
	a := &models.HostingAccount{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, domain, disk_usage_mb, disk_limit_mb,
		       bandwidth_used_mb, bandwidth_limit_mb, status,
		       COALESCE(panel_request_id::text, ''), created_at, updated_at
		FROM hosting_accounts WHERE domain = $1
	`, domain).Scan(&a.ID, &a.UserID, &a.Domain, &a.DiskUsageMB, &a.DiskLimitMB,
		&a.BandwidthUsedMB, &a.BandwidthLimitMB, &a.Status,
		&a.PanelRequestID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// PanelUsername derives the panel-side account name from the domain,
// since panel usernames must be short and alphanumeric. Deterministic,
// so deferred provisioning jobs derive the same name as the inline path.
func PanelUsername(domain string, userID int64) string {
	label := strings.SplitN(domain, ".", 2)[0]
	label = strings.ReplaceAll(label, "-", "")
	if len(label) > 8 {
		label = label[:8]
	}
	return fmt.Sprintf("hm%s%d", label, userID%1000)
}
