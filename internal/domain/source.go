// Package domain provides the core data model for SemperVigil.
//
// All types here are storage-agnostic: the persistence layer (internal/repository)
// maps these to and from relational rows, and the ingest/cvesync/events/publish
// packages operate purely on these types.
package domain

import "time"

// SourceKind identifies how a Source's content is fetched and parsed.
type SourceKind string

const (
	SourceKindRSS      SourceKind = "rss"
	SourceKindAtom     SourceKind = "atom"
	SourceKindJSONFeed SourceKind = "jsonfeed"
	SourceKindHTML     SourceKind = "html"
)

// Source is one configured upstream feed or URL with ingestion rules.
type Source struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Kind            SourceKind `db:"kind" json:"kind"`
	URL             string     `db:"url" json:"url"`
	Enabled         bool        `db:"enabled" json:"enabled"`
	IntervalMinutes int         `db:"interval_minutes" json:"interval_minutes"`
	Tags            StringSlice `db:"tags" json:"tags,omitempty"`
	PauseUntil      *time.Time  `db:"pause_until" json:"pause_until,omitempty"`
	PausedReason    string      `db:"paused_reason" json:"paused_reason,omitempty"`

	// Per-source overrides.
	UserAgent          string      `db:"user_agent" json:"user_agent,omitempty"`
	Headers            JSONMap     `db:"headers" json:"headers,omitempty"`
	TimeoutSeconds     int         `db:"timeout_seconds" json:"timeout_seconds,omitempty"`
	AllowKeywords      StringSlice `db:"allow_keywords" json:"allow_keywords,omitempty"`
	DenyKeywords       StringSlice `db:"deny_keywords" json:"deny_keywords,omitempty"`
	RateLimitPerMinute int         `db:"rate_limit_per_minute" json:"rate_limit_per_minute,omitempty"`
	MinIntervalSeconds int         `db:"min_interval_seconds" json:"min_interval_seconds,omitempty"`
	MaxRetries         int         `db:"max_retries" json:"max_retries,omitempty"`
	BackoffSeconds     int         `db:"backoff_seconds" json:"backoff_seconds,omitempty"`
	HTMLSelector       string      `db:"html_selector" json:"html_selector,omitempty"`

	// HTTP caching round-trip (ETag/Last-Modified), per spec.md §6.
	LastETag         string `db:"last_etag" json:"-"`
	LastModifiedHTTP string `db:"last_modified_http" json:"-"`

	// Auto-pause bookkeeping (spec.md §4.C step 9).
	ConsecutiveZeroArticleRuns int `db:"consecutive_zero_article_runs" json:"-"`
	ConsecutiveErrors          int `db:"consecutive_errors" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsPaused reports whether the source must currently be skipped by the scheduler.
func (s *Source) IsPaused(now time.Time) bool {
	return s.PauseUntil != nil && s.PauseUntil.After(now)
}

// SourceHealth is an append-only per-run record of one ingest attempt.
type SourceHealth struct {
	ID             int64     `db:"id" json:"id"`
	SourceID       string    `db:"source_id" json:"source_id"`
	Ts             time.Time `db:"ts" json:"ts"`
	OK             bool      `db:"ok" json:"ok"`
	HTTPStatus     *int      `db:"http_status" json:"http_status,omitempty"`
	FoundCount     int       `db:"found_count" json:"found_count"`
	AcceptedCount  int       `db:"accepted_count" json:"accepted_count"`
	SeenCount      int       `db:"seen_count" json:"seen_count"`
	FilteredCount  int       `db:"filtered_count" json:"filtered_count"`
	DurationMs     int64     `db:"duration_ms" json:"duration_ms"`
	LastError      string    `db:"last_error" json:"last_error,omitempty"`
}

// Validate checks the SourceHealth invariants from spec.md §3.
func (h *SourceHealth) Validate() error {
	if h.AcceptedCount > h.FoundCount {
		return errInvalidHealth("accepted_count exceeds found_count")
	}
	if h.SeenCount+h.FilteredCount+h.AcceptedCount > h.FoundCount {
		return errInvalidHealth("seen+filtered+accepted exceeds found_count")
	}
	return nil
}

type healthError string

func (e healthError) Error() string { return string(e) }

func errInvalidHealth(msg string) error { return healthError("source health: " + msg) }
