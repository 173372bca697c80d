package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tooldex/tooldex/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Key charge failure modes. UseAPIKey returns exactly one of these when
// the atomic charge does not go through.
var (
	ErrKeyNotFound   = errors.New("api key not found")
	ErrKeyDisabled   = errors.New("api key disabled")
	ErrQuotaExceeded = errors.New("api key daily quota exceeded")
)

// VoteOutcome is the result of an atomic vote insert.
type VoteOutcome string

const (
	OutcomeVoted        VoteOutcome = "voted"
	OutcomeAlreadyVoted VoteOutcome = "already_voted"
)

// Store is the data access interface. All database operations go through
// here. The store is the sole enforcer of one-vote-per-voter and
// N-requests-per-key-per-day; nothing above it may be trusted for either.
type Store interface {
	Ping(ctx context.Context) error

	// RecordVote inserts a (family, target, voter) tuple under the unique
	// index. A duplicate maps to OutcomeAlreadyVoted, not an error.
	RecordVote(ctx context.Context, family, targetID, voterID string) (VoteOutcome, error)
	VoteCounts(ctx context.Context, family string) (map[string]int64, error)

	// RecordView appends a view row. No dedup.
	RecordView(ctx context.Context, targetID string) error
	ViewCounts(ctx context.Context) (map[string]int64, error)

	// UseAPIKey charges one request against the key with the given digest
	// in a single transaction: active check, UTC daily reset, quota check,
	// usage increment.
	UseAPIKey(ctx context.Context, digest string) (*models.KeyUsage, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	HasActiveKeyForEmail(ctx context.Context, email string) (bool, error)
	DeactivateAPIKey(ctx context.Context, id uuid.UUID) error

	ListTools(ctx context.Context, filter ToolFilter) ([]*models.Tool, int, error)
	GetTool(ctx context.Context, slug string) (*models.Tool, error)
	CategoryStats(ctx context.Context) ([]*models.CategoryStat, error)
}

type ToolFilter struct {
	Category string
	Page     int
	Limit    int
}
