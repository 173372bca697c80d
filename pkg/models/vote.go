package models

import (
	"time"
)

// Vote families. Tools and feature requests keep independent counters
// but share the same dedup machinery.
const (
	VoteFamilyTool    = "tool"
	VoteFamilyRequest = "request"
)

// Vote is a distinct (family, target, voter) record. At most one row may
// exist per tuple; the unique index in the store is the only thing that
// enforces one-vote-per-voter.
type Vote struct {
	ID        int64     `db:"id"         json:"id"`
	Family    string    `db:"family"     json:"family"`
	TargetID  string    `db:"target_id"  json:"target_id"`
	VoterID   string    `db:"voter_id"   json:"voter_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// View is an append-only page view record. Views are not deduplicated
// per viewer.
type View struct {
	ID        int64     `db:"id"         json:"id"`
	TargetID  string    `db:"target_id"  json:"target_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
