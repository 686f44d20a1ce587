// Package limits decides whether a device or user may create another
// account or hosting resource. Checks are read-then-decide and fail
// open: when a count lookup fails the evaluator returns permissive
// defaults instead of blocking the user. That trade-off favors
// availability over strict enforcement and is deliberate; every
// fail-open is logged at warn so it stays visible in operations.
package limits

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/hostmarket/pkg/models"
)

// Evaluator performs limit checks against persisted counts.
type Evaluator struct {
	db *sql.DB

	// Defaults applied when no explicit group assignment exists.
	// Overridable from configuration.
	DefaultMaxDevices         int
	DefaultMaxHostingAccounts int
}

// NewEvaluator creates a new limit evaluator
func NewEvaluator(db *sql.DB) *Evaluator {
	return &Evaluator{
		db:                        db,
		DefaultMaxDevices:         models.DefaultMaxDevices,
		DefaultMaxHostingAccounts: models.DefaultMaxHostingAccounts,
	}
}

// RegisterCheck is the result of a device-limit check.
type RegisterCheck struct {
	CanRegister    bool `json:"canRegister"`
	CurrentDevices int  `json:"currentDevices"`
	MaxDevices     int  `json:"maxDevices"`
}

// HostingCheck is the result of a hosting-account-limit check.
type HostingCheck struct {
	CanCreate       bool `json:"canCreate"`
	CurrentAccounts int  `json:"currentAccounts"`
	MaxAccounts     int  `json:"maxAccounts"`
}

// CanRegisterAccount reports whether another account may be created from
// the given fingerprint. Denies strictly when current >= max, so a
// device sitting at max-1 still gets one more.
func (e *Evaluator) CanRegisterAccount(ctx context.Context, fingerprintHash string) RegisterCheck {
	maxDevices := e.maxDevicesFor(ctx, fingerprintHash)

	var current int
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM device_registrations WHERE fingerprint_hash = $1
	`, fingerprintHash).Scan(&current)
	if err != nil {
		log.Warn().Err(err).Msg("device count lookup failed, failing open")
		return RegisterCheck{CanRegister: true, CurrentDevices: 0, MaxDevices: e.DefaultMaxDevices}
	}

	return RegisterCheck{
		CanRegister:    current < maxDevices,
		CurrentDevices: current,
		MaxDevices:     maxDevices,
	}
}

// CanCreateHostingAccount reports whether the user may provision another
// hosting account. Suspended and pending accounts count against the
// ceiling; only failed ones do not.
func (e *Evaluator) CanCreateHostingAccount(ctx context.Context, userID int64) HostingCheck {
	maxAccounts := e.maxHostingAccountsFor(ctx, userID)

	var current int
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM hosting_accounts
		WHERE user_id = $1 AND status <> 'failed'
	`, userID).Scan(&current)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("hosting count lookup failed, failing open")
		return HostingCheck{CanCreate: true, CurrentAccounts: 0, MaxAccounts: e.DefaultMaxHostingAccounts}
	}

	return HostingCheck{
		CanCreate:       current < maxAccounts,
		CurrentAccounts: current,
		MaxAccounts:     maxAccounts,
	}
}

// GroupLimits returns the applicable ceilings plus current counts for the
// user's dashboard. The device count covers every registration sharing a
// fingerprint with this user, since limit buckets are per device, not
// per account.
func (e *Evaluator) GroupLimits(ctx context.Context, userID int64) models.GroupLimits {
	result := models.GroupLimits{
		MaxHostingAccounts: e.maxHostingAccountsFor(ctx, userID),
		MaxDevices:         e.DefaultMaxDevices,
	}

	var maxDevices sql.NullInt64
	err := e.db.QueryRowContext(ctx, `
		SELECT g.max_devices FROM users u
		JOIN user_groups g ON u.group_id = g.id
		WHERE u.id = $1
	`, userID).Scan(&maxDevices)
	if err == nil && maxDevices.Valid {
		result.MaxDevices = int(maxDevices.Int64)
	}

	err = e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM hosting_accounts
		WHERE user_id = $1 AND status <> 'failed'
	`, userID).Scan(&result.CurrentHostingAccounts)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("hosting count lookup failed for group limits")
		result.CurrentHostingAccounts = 0
	}

	err = e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM device_registrations
		WHERE fingerprint_hash IN (
			SELECT fingerprint_hash FROM device_registrations WHERE account_id = $1
		)
	`, userID).Scan(&result.CurrentDevices)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("device count lookup failed for group limits")
		result.CurrentDevices = 0
	}

	return result
}

// maxDevicesFor resolves the device ceiling for a fingerprint: the
// highest group ceiling among accounts already linked to it, else the
// default. Lookup failures fall back to the default.
func (e *Evaluator) maxDevicesFor(ctx context.Context, fingerprintHash string) int {
	var max sql.NullInt64
	err := e.db.QueryRowContext(ctx, `
		SELECT MAX(g.max_devices)
		FROM device_registrations dr
		JOIN users u ON u.id = dr.account_id
		JOIN user_groups g ON g.id = u.group_id
		WHERE dr.fingerprint_hash = $1
	`, fingerprintHash).Scan(&max)
	if err != nil || !max.Valid {
		return e.DefaultMaxDevices
	}
	return int(max.Int64)
}

// maxHostingAccountsFor resolves the hosting ceiling from the user's
// group, else the default.
func (e *Evaluator) maxHostingAccountsFor(ctx context.Context, userID int64) int {
	var max sql.NullInt64
	err := e.db.QueryRowContext(ctx, `
		SELECT g.max_hosting_accounts FROM users u
		JOIN user_groups g ON u.group_id = g.id
		WHERE u.id = $1
	`, userID).Scan(&max)
	if err != nil || !max.Valid {
		return e.DefaultMaxHostingAccounts
	}
	return int(max.Int64)
}
