package counterclient

import (
	"context"
	"sync"
)

// VoteState is the per-target vote lifecycle.
type VoteState int

const (
	StateIdle VoteState = iota
	StatePending
	StateSettled
	StateRolledBack
)

// VoteSender issues the network call for a vote. Implemented by Client;
// tests substitute a fake.
type VoteSender interface {
	CastVote(ctx context.Context, target, voterID string) (string, error)
}

// Optimistic applies a local increment immediately on user action and
// reconciles it against the server outcome: settle on success (including
// "already_voted"), roll the increment and the voted mark back on
// failure. At most one attempt per target is in flight at a time.
type Optimistic struct {
	mu       sync.Mutex
	sender   VoteSender
	identity *Identity
	counts   map[string]int64
	states   map[string]VoteState
}

// NewOptimistic creates the optimistic counter over a sender and identity.
func NewOptimistic(sender VoteSender, identity *Identity) *Optimistic {
	return &Optimistic{
		sender:   sender,
		identity: identity,
		counts:   make(map[string]int64),
		states:   make(map[string]VoteState),
	}
}

// Count returns the locally displayed aggregate for a target.
func (o *Optimistic) Count(target string) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[target]
}

// State returns the vote state for a target.
func (o *Optimistic) State(target string) VoteState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[target]
}

// Reconcile replaces the displayed aggregates with an authoritative
// snapshot from a poll.
func (o *Optimistic) Reconcile(counts map[string]int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts = make(map[string]int64, len(counts))
	for k, v := range counts {
		o.counts[k] = v
	}
}

// Vote runs the optimistic cycle for one target. A pending or settled
// target ignores the action; a target already in the persisted voted set
// settles without a network call. The returned error reports a rollback;
// the local state is already restored when it is returned.
func (o *Optimistic) Vote(ctx context.Context, target string) error {
	o.mu.Lock()
	switch o.states[target] {
	case StatePending, StateSettled:
		o.mu.Unlock()
		return nil
	}
	if o.identity.HasVoted(target) {
		o.states[target] = StateSettled
		o.mu.Unlock()
		return nil
	}

	o.states[target] = StatePending
	o.counts[target]++
	o.identity.MarkVoted(target)
	voterID := o.identity.VoterID()
	o.mu.Unlock()

	// The call is not cancellable once issued; a failure (including a
	// hung request timing out) resolves through rollback.
	_, err := o.sender.CastVote(ctx, target, voterID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.states[target] = StateRolledBack
		if o.counts[target] > 0 {
			o.counts[target]--
		}
		o.identity.UnmarkVoted(target)
		return err
	}

	// "voted" and "already_voted" are both a confirmed vote from the
	// client's perspective.
	o.states[target] = StateSettled
	return nil
}
