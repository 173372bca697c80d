package counterclient

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const (
	voterIDStorageKey  = "tooldex:voter_id"
	votedSetStorageKey = "tooldex:voted"
)

// Identity manages the self-issued anonymous voter token and the local
// voted-set projection. The token is created lazily on first use, never
// rotated, and persisted indefinitely. The voted set is the client's
// view of server truth and may drift; the server stays authoritative.
type Identity struct {
	mu      sync.Mutex
	storage Storage
}

// NewIdentity creates an Identity over the given storage.
func NewIdentity(s Storage) *Identity {
	return &Identity{storage: s}
}

// VoterID returns the durable voter token, minting one on first call.
func (i *Identity) VoterID() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if id, ok := i.storage.Get(voterIDStorageKey); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	i.storage.Set(voterIDStorageKey, id)
	return id
}

// HasVoted reports whether the target is in the local voted set.
func (i *Identity) HasVoted(target string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.votedSet()[target]
	return ok
}

// MarkVoted adds the target to the persisted voted set.
func (i *Identity) MarkVoted(target string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	set := i.votedSet()
	set[target] = struct{}{}
	i.saveVotedSet(set)
}

// UnmarkVoted removes the target, re-enabling a retry after a rollback.
func (i *Identity) UnmarkVoted(target string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	set := i.votedSet()
	delete(set, target)
	i.saveVotedSet(set)
}

func (i *Identity) votedSet() map[string]struct{} {
	set := make(map[string]struct{})
	raw, ok := i.storage.Get(votedSetStorageKey)
	if !ok || raw == "" {
		return set
	}
	var targets []string
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		// Corrupt local state; start over. The server still holds truth.
		return set
	}
	for _, t := range targets {
		set[t] = struct{}{}
	}
	return set
}

func (i *Identity) saveVotedSet(set map[string]struct{}) {
	targets := make([]string, 0, len(set))
	for t := range set {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	raw, _ := json.Marshal(targets)
	i.storage.Set(votedSetStorageKey, string(raw))
}
