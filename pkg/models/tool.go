package models

import (
	"time"
)

// Tool is a directory listing for a third-party tool. The slug is the
// public identifier used by counter endpoints and the read API.
type Tool struct {
	Slug        string    `db:"slug"        json:"slug"`
	Name        string    `db:"name"        json:"name"`
	Description string    `db:"description" json:"description"`
	URL         string    `db:"url"         json:"url"`
	Category    string    `db:"category"    json:"category"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

// CategoryStat is an aggregate row for the read API: tools per category
// plus the summed vote count across those tools.
type CategoryStat struct {
	Category  string `db:"category"   json:"category"`
	ToolCount int64  `db:"tool_count" json:"tool_count"`
	VoteCount int64  `db:"vote_count" json:"vote_count"`
}
