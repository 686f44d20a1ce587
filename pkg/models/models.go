package models

import (
	"time"
)

// Account roles
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Hosting account lifecycle states
const (
	HostingStatusPending   = "pending"
	HostingStatusActive    = "active"
	HostingStatusSuspended = "suspended"
	HostingStatusFailed    = "failed"
)

// Default limits applied when a user has no explicit group assignment.
const (
	DefaultMaxDevices         = 2
	DefaultMaxHostingAccounts = 2
	DefaultDiskLimitMB        = 5120
	DefaultBandwidthLimitMB   = 10240
)

// Account represents a marketplace user, anonymous or named.
type Account struct {
	ID                 int64     `json:"id" db:"id"`
	Username           string    `json:"username" db:"username"`
	PasswordHash       string    `json:"-" db:"password_hash"` // Never expose hashes in JSON
	RecoveryPhraseHash string    `json:"-" db:"recovery_phrase_hash"`
	Role               string    `json:"role" db:"role"`
	IsAnonymous        bool      `json:"is_anonymous" db:"is_anonymous"`
	GroupID            *int64    `json:"group_id,omitempty" db:"group_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// UserGroup defines per-group resource ceilings.
type UserGroup struct {
	ID                 int64     `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	MaxHostingAccounts int       `json:"max_hosting_accounts" db:"max_hosting_accounts"`
	MaxDevices         int       `json:"max_devices" db:"max_devices"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// GroupLimits is the aggregate the UI renders on the account dashboard:
// the applicable ceilings plus the user's current counts.
type GroupLimits struct {
	MaxHostingAccounts     int `json:"maxHostingAccounts"`
	MaxDevices             int `json:"maxDevices"`
	CurrentHostingAccounts int `json:"currentHostingAccounts"`
	CurrentDevices         int `json:"currentDevices"`
}

// DeviceSignals is the canonical set of device/browser attributes a
// fingerprint is derived from. MACAddress and IPAddress are best-effort
// and omitted from the canonical form when empty.
type DeviceSignals struct {
	UserAgent        string `json:"userAgent"`
	ScreenResolution string `json:"screenResolution"` // "{width}x{height}"
	Timezone         string `json:"timezone"`         // IANA name
	Language         string `json:"language"`
	Platform         string `json:"platform"` // JSON blob of secondary attributes
	MACAddress       string `json:"macAddress,omitempty"`
	IPAddress        string `json:"ipAddress,omitempty"`
}

// DeviceFingerprint pairs a signal set with its derived stable hash.
type DeviceFingerprint struct {
	Hash    string        `json:"fingerprintHash"`
	Signals DeviceSignals `json:"signals"`
}

// DeviceRegistration links a fingerprint hash to an account created from it.
type DeviceRegistration struct {
	ID              int64     `json:"id" db:"id"`
	FingerprintHash string    `json:"fingerprint_hash" db:"fingerprint_hash"`
	AccountID       int64     `json:"account_id" db:"account_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// HostingAccount represents a provisioned (or in-flight) hosting resource.
type HostingAccount struct {
	ID               int64     `json:"id" db:"id"`
	UserID           int64     `json:"user_id" db:"user_id"`
	Domain           string    `json:"domain" db:"domain"`
	DiskUsageMB      int       `json:"disk_usage_mb" db:"disk_usage_mb"`
	DiskLimitMB      int       `json:"disk_limit_mb" db:"disk_limit_mb"`
	BandwidthUsedMB  int       `json:"bandwidth_used_mb" db:"bandwidth_used_mb"`
	BandwidthLimitMB int       `json:"bandwidth_limit_mb" db:"bandwidth_limit_mb"`
	Status           string    `json:"status" db:"status"`
	PanelRequestID   string    `json:"panel_request_id,omitempty" db:"panel_request_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AuthToken represents a stored session or refresh token (hash only).
type AuthToken struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	TokenType string    `json:"token_type" db:"token_type"` // "session" or "refresh"
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
