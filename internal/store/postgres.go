package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tooldex/tooldex/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Votes ---

// RecordVote attempts the insert under the (family, target_id, voter_id)
// unique index. Target existence is deliberately not checked; votes for
// unknown targets are accepted and simply never surface in listings.
func (s *PostgresStore) RecordVote(ctx context.Context, family, targetID, voterID string) (VoteOutcome, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO votes (family, target_id, voter_id, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (family, target_id, voter_id) DO NOTHING`,
		family, targetID, voterID)
	if err != nil {
		return "", fmt.Errorf("record vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return OutcomeAlreadyVoted, nil
	}
	return OutcomeVoted, nil
}

func (s *PostgresStore) VoteCounts(ctx context.Context, family string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, COUNT(*) FROM votes WHERE family = $1 GROUP BY target_id`, family)
	if err != nil {
		return nil, fmt.Errorf("vote counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var target string
		var n int64
		if err := rows.Scan(&target, &n); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}
		counts[target] = n
	}
	return counts, rows.Err()
}

// --- Views ---

func (s *PostgresStore) RecordView(ctx context.Context, targetID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO views (target_id, created_at) VALUES ($1, NOW())`, targetID)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

func (s *PostgresStore) ViewCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, COUNT(*) FROM views GROUP BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("view counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var target string
		var n int64
		if err := rows.Scan(&target, &n); err != nil {
			return nil, fmt.Errorf("scan view count: %w", err)
		}
		counts[target] = n
	}
	return counts, rows.Err()
}

// --- API Keys ---

// UseAPIKey charges one request in a single transaction. The row lock
// serializes concurrent charges for the same key so the quota check and
// the usage increment cannot race.
func (s *PostgresStore) UseAPIKey(ctx context.Context, digest string) (*models.KeyUsage, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin key charge: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id            uuid.UUID
		active        bool
		requestsToday int
		quota         int
		usageDate     time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT id, active, requests_today, daily_quota, usage_date
		 FROM api_keys WHERE key_digest = $1 FOR UPDATE`, digest,
	).Scan(&id, &active, &requestsToday, &quota, &usageDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	if !active {
		return nil, ErrKeyDisabled
	}

	// Daily counters reset at the UTC day boundary.
	today := utcDate(time.Now())
	if utcDate(usageDate).Before(today) {
		requestsToday = 0
	}
	if requestsToday >= quota {
		return nil, ErrQuotaExceeded
	}
	requestsToday++

	_, err = tx.Exec(ctx,
		`UPDATE api_keys
		 SET requests_today = $2, usage_date = $3, total_requests = total_requests + 1,
		     last_used_at = NOW(), updated_at = NOW()
		 WHERE id = $1`, id, requestsToday, today)
	if err != nil {
		return nil, fmt.Errorf("charge api key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit key charge: %w", err)
	}

	return &models.KeyUsage{
		KeyID:      id,
		DailyQuota: quota,
		Remaining:  quota - requestsToday,
	}, nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_name, owner_email, key_digest, key_prefix, active,
		                       daily_quota, requests_today, usage_date, total_requests, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, 0, $9, $10)`,
		key.ID, key.OwnerName, key.OwnerEmail, key.KeyDigest, key.KeyPrefix, key.Active,
		key.DailyQuota, utcDate(key.CreatedAt), key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasActiveKeyForEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM api_keys WHERE owner_email = $1 AND active)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check key for email: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeactivateAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Tools ---

func (s *PostgresStore) ListTools(ctx context.Context, filter ToolFilter) ([]*models.Tool, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, filter.Category)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM tools WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tools: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT slug, name, description, url, category, created_at, updated_at
		 FROM tools WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var tools []*models.Tool
	for rows.Next() {
		var t models.Tool
		if err := rows.Scan(&t.Slug, &t.Name, &t.Description, &t.URL, &t.Category,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan tool: %w", err)
		}
		tools = append(tools, &t)
	}
	return tools, total, rows.Err()
}

func (s *PostgresStore) GetTool(ctx context.Context, slug string) (*models.Tool, error) {
	var t models.Tool
	err := s.pool.QueryRow(ctx,
		`SELECT slug, name, description, url, category, created_at, updated_at
		 FROM tools WHERE slug = $1`, slug,
	).Scan(&t.Slug, &t.Name, &t.Description, &t.URL, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tool: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) CategoryStats(ctx context.Context) ([]*models.CategoryStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.category, COUNT(DISTINCT t.slug), COUNT(v.id)
		 FROM tools t
		 LEFT JOIN votes v ON v.family = 'tool' AND v.target_id = t.slug
		 GROUP BY t.category ORDER BY t.category`)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.CategoryStat
	for rows.Next() {
		var cs models.CategoryStat
		if err := rows.Scan(&cs.Category, &cs.ToolCount, &cs.VoteCount); err != nil {
			return nil, fmt.Errorf("scan category stat: %w", err)
		}
		stats = append(stats, &cs)
	}
	return stats, rows.Err()
}

// utcDate truncates a time to its UTC calendar date.
func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
