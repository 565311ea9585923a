package events

import (
	"context"

	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/repository"
)

// Purger drops weak-evidence auto events after a rebuild pass (spec.md §9
// Open Questions: an auto event with fewer than 2 member articles and
// severity below the ceiling passed to Run is dropped). Manual events are
// never inspected.
type Purger struct {
	events *repository.EventRepository
}

// NewPurger builds a Purger over the event repository.
func NewPurger(events *repository.EventRepository) *Purger {
	return &Purger{events: events}
}

// PurgeResult summarizes one purge pass.
type PurgeResult struct {
	Inspected int
	Purged    int
}

// Run inspects every non-closed auto event and deletes those that fail the
// minimum-evidence threshold (domain.Event.IsPurgeable), using the
// caller-supplied maxSeverity as the severity ceiling.
func (p *Purger) Run(ctx context.Context, maxSeverity domain.Severity) (*PurgeResult, error) {
	result := &PurgeResult{}

	candidates, err := p.events.ListAutoCandidatesForPurge(ctx)
	if err != nil {
		return result, err
	}

	for i := range candidates {
		ev := &candidates[i]
		result.Inspected++

		count, err := p.events.ArticleCount(ctx, ev.ID)
		if err != nil {
			return result, err
		}
		if !ev.IsPurgeable(count, maxSeverity) {
			continue
		}

		if err := p.events.Delete(ctx, ev.ID); err != nil {
			return result, err
		}
		result.Purged++
	}

	return result, nil
}
