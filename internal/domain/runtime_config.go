package domain

import "time"

// RuntimeConfig is the single-row, database-backed set of operational knobs
// an admin can adjust without a process restart (spec.md §3). Bootstrap
// process configuration (DSNs, bind addresses, pool sizes) lives in
// internal/config instead; this type only covers values the running
// pipeline consults on every pass.
//
// Defaults below resolve the three spec.md §9 Open Questions this codebase
// had to decide on: the event clustering window, the weak-evidence purge
// threshold, and fail-open vs fail-closed publishing after a summarization
// failure.
type RuntimeConfig struct {
	// ConsecutiveZeroArticleRunsToPause (Z) and ConsecutiveErrorsToPause (E)
	// are the auto-pause thresholds from spec.md §4.C step 9.
	ConsecutiveZeroArticleRunsToPause int `db:"consecutive_zero_article_runs_to_pause" json:"consecutive_zero_article_runs_to_pause"`
	ConsecutiveErrorsToPause          int `db:"consecutive_errors_to_pause" json:"consecutive_errors_to_pause"`
	AutoPauseDurationMinutes          int `db:"auto_pause_duration_minutes" json:"auto_pause_duration_minutes"`

	// EventClusteringWindow (W) bounds how far apart two CVEs' publish dates
	// may be and still cluster into the same event. Default 14 days.
	EventClusteringWindowHours int `db:"event_clustering_window_hours" json:"event_clustering_window_hours"`

	// EventPurgeMinArticles and EventPurgeMaxSeverity define the "weak
	// evidence" purge rule: an auto event with fewer than
	// EventPurgeMinArticles member articles AND severity below
	// EventPurgeMaxSeverity is dropped on the next purge pass. Defaults:
	// fewer than 2 articles, severity below HIGH.
	EventPurgeMinArticles int      `db:"event_purge_min_articles" json:"event_purge_min_articles"`
	EventPurgeMaxSeverity Severity `db:"event_purge_max_severity" json:"event_purge_max_severity"`

	// PublishOnSummarizationFailure selects fail-open (publish the article
	// without an LLM summary) vs fail-closed (withhold publishing until a
	// summary succeeds) behavior. Default: fail-open, since withholding
	// publication indefinitely on a transient LLM outage regresses the
	// primary goal of timely publishing more than a missing summary does.
	PublishOnSummarizationFailure bool `db:"publish_on_summarization_failure" json:"publish_on_summarization_failure"`

	PreferCVSSv4 bool `db:"prefer_cvss_v4" json:"prefer_cvss_v4"`

	DefaultSourceRateLimitPerMinute int `db:"default_source_rate_limit_per_minute" json:"default_source_rate_limit_per_minute"`

	BuildSiteDebounceSeconds int `db:"build_site_debounce_seconds" json:"build_site_debounce_seconds"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultRuntimeConfig returns the documented defaults used to seed the
// single RuntimeConfig row on first migration.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		ConsecutiveZeroArticleRunsToPause: 5,
		ConsecutiveErrorsToPause:          3,
		AutoPauseDurationMinutes:          12 * 60,
		EventClusteringWindowHours:        14 * 24,
		EventPurgeMinArticles:             2,
		EventPurgeMaxSeverity:             SeverityHigh,
		PublishOnSummarizationFailure:     true,
		PreferCVSSv4:                      false,
		DefaultSourceRateLimitPerMinute:   30,
		BuildSiteDebounceSeconds:          20,
	}
}

// EventClusteringWindow returns the configured clustering window as a
// time.Duration.
func (c *RuntimeConfig) EventClusteringWindow() time.Duration {
	return time.Duration(c.EventClusteringWindowHours) * time.Hour
}

// AutoPauseDuration returns the configured auto-pause duration as a
// time.Duration.
func (c *RuntimeConfig) AutoPauseDuration() time.Duration {
	return time.Duration(c.AutoPauseDurationMinutes) * time.Minute
}
