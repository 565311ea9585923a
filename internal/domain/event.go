package domain

import "time"

// EventKind distinguishes automatically clustered events from manually
// curated ones. Manual events are never touched by the purge operation
// (spec.md §4.D "manual events are never purged").
type EventKind string

const (
	EventKindAuto   EventKind = "auto"
	EventKindManual EventKind = "manual"
)

// EventStatus is the event lifecycle state (spec.md §4.D lifecycle state
// machine): proposed -> active -> updating -> dormant -> closed, with
// updating always returning to active once the rebuild that triggered it
// finishes.
type EventStatus string

const (
	EventStatusProposed EventStatus = "proposed"
	EventStatusActive   EventStatus = "active"
	EventStatusUpdating EventStatus = "updating"
	EventStatusDormant  EventStatus = "dormant"
	EventStatusClosed   EventStatus = "closed"
)

// validEventTransitions enumerates the lifecycle edges the state machine
// permits. Anything not listed here is rejected by CanTransition.
var validEventTransitions = map[EventStatus][]EventStatus{
	EventStatusProposed: {EventStatusActive, EventStatusClosed},
	EventStatusActive:   {EventStatusUpdating, EventStatusDormant, EventStatusClosed},
	EventStatusUpdating: {EventStatusActive, EventStatusClosed},
	EventStatusDormant:  {EventStatusActive, EventStatusClosed},
	EventStatusClosed:   {},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// in the event lifecycle state machine.
func CanTransition(from, to EventStatus) bool {
	for _, allowed := range validEventTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Event is a correlated cluster of CVEs, products, and supporting articles
// (spec.md §4.D). Auto events are produced deterministically by the
// clustering pass; manual events are admin-curated and exempt from purge.
type Event struct {
	ID          string      `db:"id" json:"id"`
	Kind        EventKind   `db:"kind" json:"kind"`
	Status      EventStatus `db:"status" json:"status"`
	Title       string      `db:"title" json:"title"`
	Summary     string      `db:"summary" json:"summary,omitempty"`
	Severity    Severity    `db:"severity" json:"severity"`
	WindowStart time.Time   `db:"window_start" json:"window_start"`
	WindowEnd   time.Time   `db:"window_end" json:"window_end"`

	LastRebuiltAt time.Time `db:"last_rebuilt_at" json:"last_rebuilt_at"`

	PublishedMDPath string `db:"published_md_path" json:"published_md_path,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsPurgeable reports whether an auto event meets the "weak evidence" purge
// criteria from spec.md §9 Open Questions: fewer than two member articles
// and severity below HIGH. Manual events are never purgeable regardless of
// membership.
func (e *Event) IsPurgeable(articleCount int, minSeverityToSurvive Severity) bool {
	if e.Kind == EventKindManual {
		return false
	}
	if articleCount >= 2 {
		return false
	}
	return severityRank[e.Severity] < severityRank[minSeverityToSurvive]
}

// EventCVELink ties an Event to one of its member CVEs.
type EventCVELink struct {
	EventID   string    `db:"event_id" json:"event_id"`
	CveID     string    `db:"cve_id" json:"cve_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EventProductLink ties an Event to one of its member products.
type EventProductLink struct {
	EventID    string    `db:"event_id" json:"event_id"`
	ProductKey string    `db:"product_key" json:"product_key"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// EventArticleLink ties an Event to a supporting Article, carrying forward
// the confidence/reasons from the originating ArticleCVELink (spec.md
// §4.D step 4: "confidence rolls up as the max over member links").
type EventArticleLink struct {
	EventID        string      `db:"event_id" json:"event_id"`
	ArticleID      string      `db:"article_id" json:"article_id"`
	Confidence     float64     `db:"confidence" json:"confidence"`
	ConfidenceBand string      `db:"confidence_band" json:"confidence_band"`
	Reasons        StringSlice `db:"reasons" json:"reasons,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
