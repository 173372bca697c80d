package counter

import (
	"context"
	"errors"
	"regexp"

	"github.com/tooldex/tooldex/internal/config"
	"github.com/tooldex/tooldex/internal/metrics"
	"github.com/tooldex/tooldex/internal/store"
	"github.com/tooldex/tooldex/pkg/models"
)

// Validation failures. Rejected before any store access.
var (
	ErrInvalidVoterID  = errors.New("voter id must be a UUIDv4")
	ErrInvalidTargetID = errors.New("invalid target id")
	ErrInvalidFamily   = errors.New("unknown vote family")
)

// voterIDPattern is the strict UUIDv4 shape: canonical lowercase form
// only, version nibble 4, RFC 4122 variant. uuid.Parse is too lenient
// here (it accepts braces, URNs, and uppercase).
var voterIDPattern = regexp.MustCompile(
	`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// slugPattern covers tool slugs as used in directory URLs.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Cache resource names, also used as metric labels.
const (
	ResourceToolVotes    = "tool_votes"
	ResourceRequestVotes = "request_votes"
	ResourceViews        = "views"
	ResourceStats        = "category_stats"
)

// Service coordinates counter reads and writes: identifier validation,
// the atomic store operations, and the per-resource TTL caches.
type Service struct {
	store store.Store

	toolVotes    *Counts
	requestVotes *Counts
	views        *Counts
	stats        *Cache[[]*models.CategoryStat]
}

// NewService builds the service and its caches. TTLs are per resource:
// views churn fastest, category stats barely move.
func NewService(st store.Store, cfg config.CounterConfig, opts ...Option) *Service {
	s := &Service{store: st}

	s.toolVotes = NewCounts(ResourceToolVotes, cfg.VotesTTL, func(ctx context.Context) (map[string]int64, error) {
		return st.VoteCounts(ctx, models.VoteFamilyTool)
	}, opts...)
	s.requestVotes = NewCounts(ResourceRequestVotes, cfg.VotesTTL, func(ctx context.Context) (map[string]int64, error) {
		return st.VoteCounts(ctx, models.VoteFamilyRequest)
	}, opts...)
	s.views = NewCounts(ResourceViews, cfg.ViewsTTL, func(ctx context.Context) (map[string]int64, error) {
		return st.ViewCounts(ctx)
	}, opts...)
	s.stats = New(ResourceStats, cfg.StatsTTL, func(ctx context.Context) ([]*models.CategoryStat, error) {
		return st.CategoryStats(ctx)
	}, opts...)

	return s
}

// ToolVotes returns the cached tool vote counts.
func (s *Service) ToolVotes(ctx context.Context) (map[string]int64, bool, error) {
	return s.toolVotes.Get(ctx)
}

// RequestVotes returns the cached feature-request vote counts.
func (s *Service) RequestVotes(ctx context.Context) (map[string]int64, bool, error) {
	return s.requestVotes.Get(ctx)
}

// Views returns the cached view counts.
func (s *Service) Views(ctx context.Context) (map[string]int64, bool, error) {
	return s.views.Get(ctx)
}

// CategoryStats returns the cached category aggregates.
func (s *Service) CategoryStats(ctx context.Context) ([]*models.CategoryStat, bool, error) {
	return s.stats.Get(ctx)
}

// CastVote validates identifiers, records the vote atomically, and bumps
// the relevant cache only when the store reports a new row. An existing
// vote is an idempotent outcome, not an error: callers surface both as
// success with a discriminator.
func (s *Service) CastVote(ctx context.Context, family, targetID, voterID string) (store.VoteOutcome, error) {
	if !voterIDPattern.MatchString(voterID) {
		return "", ErrInvalidVoterID
	}
	if err := validateTarget(family, targetID); err != nil {
		return "", err
	}

	outcome, err := s.store.RecordVote(ctx, family, targetID, voterID)
	if err != nil {
		return "", err
	}

	metrics.VotesTotal.WithLabelValues(family, string(outcome)).Inc()
	if outcome == store.OutcomeVoted {
		switch family {
		case models.VoteFamilyTool:
			s.toolVotes.Bump(targetID, 1)
		case models.VoteFamilyRequest:
			s.requestVotes.Bump(targetID, 1)
		}
	}
	return outcome, nil
}

// AddView appends a view and bumps the view cache. Views carry no dedup
// obligation.
func (s *Service) AddView(ctx context.Context, targetID string) error {
	if !slugPattern.MatchString(targetID) {
		return ErrInvalidTargetID
	}
	if err := s.store.RecordView(ctx, targetID); err != nil {
		return err
	}
	metrics.ViewsTotal.Inc()
	s.views.Bump(targetID, 1)
	return nil
}

// InvalidateAll expires every cache so the next reads refetch. Driven by
// the content-sync webhook after out-of-band data changes.
func (s *Service) InvalidateAll() {
	s.toolVotes.Invalidate()
	s.requestVotes.Invalidate()
	s.views.Invalidate()
	s.stats.Invalidate()
}

// validateTarget applies the per-family identifier shape: tool targets
// are directory slugs, request targets are UUIDv4 like voter ids. Target
// existence is not checked; the store accepts votes for identifiers it
// has never seen.
func validateTarget(family, targetID string) error {
	switch family {
	case models.VoteFamilyTool:
		if !slugPattern.MatchString(targetID) {
			return ErrInvalidTargetID
		}
	case models.VoteFamilyRequest:
		if !voterIDPattern.MatchString(targetID) {
			return ErrInvalidTargetID
		}
	default:
		return ErrInvalidFamily
	}
	return nil
}
