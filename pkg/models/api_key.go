package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a registered key for the public read API. The raw key is
// shown once at issuance; only the SHA3-256 digest is stored. KeyPrefix
// holds the first characters of the raw key for display in the issuance
// email and support conversations; it is too short to be reversible.
type APIKey struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	OwnerName     string     `db:"owner_name"     json:"owner_name"`
	OwnerEmail    string     `db:"owner_email"    json:"-"`
	KeyDigest     string     `db:"key_digest"     json:"-"`
	KeyPrefix     string     `db:"key_prefix"     json:"key_prefix"`
	Active        bool       `db:"active"         json:"active"`
	DailyQuota    int        `db:"daily_quota"    json:"daily_quota"`
	RequestsToday int        `db:"requests_today" json:"requests_today"`
	UsageDate     time.Time  `db:"usage_date"     json:"usage_date"`
	TotalRequests int64      `db:"total_requests" json:"total_requests"`
	LastUsedAt    *time.Time `db:"last_used_at"   json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"     json:"updated_at"`
}

// KeyUsage is the result of a successful atomic key charge.
type KeyUsage struct {
	KeyID      uuid.UUID
	DailyQuota int
	Remaining  int
}
