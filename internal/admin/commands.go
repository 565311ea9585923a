// Package admin implements the stable command surface spec.md §6 exposes to
// operators: enqueue-job, cancel-job, cancel-all, list-jobs, test-source,
// upsert-source, patch-runtime-config, run-cve-sync-now, rebuild-events,
// purge-events, and clear-content-by-type. Both the CLI (cmd/sempervigil)
// and the admin HTTP surface (internal/app/router.go) are thin adapters
// over this package; the commands themselves never know which one called
// them.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	river "github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"sempervigil.dev/sempervigil/internal/config"
	"sempervigil.dev/sempervigil/internal/cvesync"
	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/events"
	"sempervigil.dev/sempervigil/internal/ingest"
	"sempervigil.dev/sempervigil/internal/jobs"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/repository"
)

// Commands bundles every dependency an admin operation needs. It is built
// once in the composition root and shared by both the CLI and the admin
// HTTP router.
type Commands struct {
	River     *river.Client[pgx.Tx]
	Repos     *repository.Repositories
	Pipeline  *ingest.Pipeline
	Syncer    *cvesync.Syncer
	Rebuilder *events.Rebuilder
	Purger    *events.Purger
	Publish   config.PublishConfig
}

// New builds a Commands bundle.
func New(riverClient *river.Client[pgx.Tx], repos *repository.Repositories, pipeline *ingest.Pipeline, syncer *cvesync.Syncer, rebuilder *events.Rebuilder, purger *events.Purger, publish config.PublishConfig) *Commands {
	return &Commands{
		River:     riverClient,
		Repos:     repos,
		Pipeline:  pipeline,
		Syncer:    syncer,
		Rebuilder: rebuilder,
		Purger:    purger,
		Publish:   publish,
	}
}

// jobArgsBuilders maps a job_type command argument to a constructor that
// unmarshals a JSON payload into the matching river.JobArgs type. Adding a
// new job kind to internal/jobs means adding one line here.
var jobArgsBuilders = map[string]func(payload json.RawMessage) (river.JobArgs, error){
	"ingest_source": func(p json.RawMessage) (river.JobArgs, error) {
		var a jobs.IngestSourceArgs
		if err := unmarshalIfPresent(p, &a); err != nil {
			return nil, err
		}
		return a, nil
	},
	"ingest_due_sources": func(p json.RawMessage) (river.JobArgs, error) {
		return jobs.IngestDueSourcesArgs{}, nil
	},
	"fetch_article_content": func(p json.RawMessage) (river.JobArgs, error) {
		var a jobs.FetchArticleContentArgs
		if err := unmarshalIfPresent(p, &a); err != nil {
			return nil, err
		}
		return a, nil
	},
	"summarize_article_llm": func(p json.RawMessage) (river.JobArgs, error) {
		var a jobs.SummarizeArticleLLMArgs
		if err := unmarshalIfPresent(p, &a); err != nil {
			return nil, err
		}
		return a, nil
	},
	"write_article_markdown": func(p json.RawMessage) (river.JobArgs, error) {
		var a jobs.WriteArticleMarkdownArgs
		if err := unmarshalIfPresent(p, &a); err != nil {
			return nil, err
		}
		return a, nil
	},
	"cve_sync": func(p json.RawMessage) (river.JobArgs, error) {
		var a jobs.CVESyncArgs
		if err := unmarshalIfPresent(p, &a); err != nil {
			return nil, err
		}
		return a, nil
	},
	"events_rebuild": func(p json.RawMessage) (river.JobArgs, error) {
		var a jobs.EventsRebuildArgs
		if err := unmarshalIfPresent(p, &a); err != nil {
			return nil, err
		}
		return a, nil
	},
	"events_purge": func(p json.RawMessage) (river.JobArgs, error) {
		var a jobs.EventsPurgeArgs
		if err := unmarshalIfPresent(p, &a); err != nil {
			return nil, err
		}
		return a, nil
	},
	"build_site": func(p json.RawMessage) (river.JobArgs, error) {
		return jobs.BuildSiteArgs{}, nil
	},
}

func unmarshalIfPresent(payload json.RawMessage, dest river.JobArgs) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, dest)
}

// EnqueueJob inserts one job of the named kind with an optional JSON
// payload, for the `enqueue` CLI command and the enqueue-job admin command.
func (c *Commands) EnqueueJob(ctx context.Context, jobType string, payload json.RawMessage) (*rivertype.JobRow, error) {
	build, ok := jobArgsBuilders[jobType]
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown job_type %q", jobType))
	}
	args, err := build(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindValidation, apperrors.CodeInvalidRequestField, "decode job payload")
	}
	result, err := c.River.Insert(ctx, args, nil)
	if err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeValidationFailed, "enqueue job")
	}
	return result.Job, nil
}

// CancelJob cancels one queued or running job by ID.
func (c *Commands) CancelJob(ctx context.Context, jobID int64) (*rivertype.JobRow, error) {
	job, err := c.River.JobCancel(ctx, jobID)
	if err != nil {
		return nil, apperrors.NotFound(apperrors.CodeJobNotFound, fmt.Sprintf("job %d not found or already finished", jobID))
	}
	return job, nil
}

// CancelAll cancels every job currently available, scheduled, running, or
// retryable, and returns the number canceled.
func (c *Commands) CancelAll(ctx context.Context) (int, error) {
	active, err := c.ListJobs(ctx, ListJobsOptions{
		States: []river.JobState{
			river.JobStateAvailable,
			river.JobStateScheduled,
			river.JobStateRunning,
			river.JobStateRetryable,
		},
		Limit: 1000,
	})
	if err != nil {
		return 0, err
	}
	canceled := 0
	for _, job := range active {
		if _, err := c.River.JobCancel(ctx, job.ID); err != nil {
			continue
		}
		canceled++
	}
	return canceled, nil
}

// ListJobsOptions filters the list-jobs admin command.
type ListJobsOptions struct {
	States []river.JobState
	Kind   string
	Limit  int
}

// ListJobs returns a page of job rows matching the given filter.
func (c *Commands) ListJobs(ctx context.Context, opts ListJobsOptions) ([]*rivertype.JobRow, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	params := river.NewJobListParams().Limit(limit)
	if len(opts.States) > 0 {
		params = params.States(opts.States...)
	}
	if opts.Kind != "" {
		params = params.Kinds(opts.Kind)
	}
	result, err := c.River.JobList(ctx, params)
	if err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeJobNotFound, "list jobs")
	}
	return result.Jobs, nil
}

// TestSource runs a dry-run pass of one source without persisting any
// articles, for the test-source command (spec.md §6 CLI surface).
func (c *Commands) TestSource(ctx context.Context, sourceID string) (*ingest.TestSourceResult, error) {
	source, err := c.Repos.Sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return c.Pipeline.TestSource(ctx, source)
}

// UpsertSource creates or updates a source definition.
func (c *Commands) UpsertSource(ctx context.Context, source *domain.Source) error {
	return c.Repos.Sources.Upsert(ctx, source)
}

// RuntimeConfigPatch carries the subset of domain.RuntimeConfig fields an
// admin wants to change; nil fields are left at their current value.
type RuntimeConfigPatch struct {
	ConsecutiveZeroArticleRunsToPause *int
	ConsecutiveErrorsToPause          *int
	AutoPauseDurationMinutes          *int
	EventClusteringWindowHours        *int
	EventPurgeMinArticles             *int
	EventPurgeMaxSeverity             *domain.Severity
	PublishOnSummarizationFailure     *bool
	PreferCVSSv4                      *bool
	DefaultSourceRateLimitPerMinute   *int
	BuildSiteDebounceSeconds          *int
}

// PatchRuntimeConfig applies a partial update to the single RuntimeConfig
// row and returns the result.
func (c *Commands) PatchRuntimeConfig(ctx context.Context, patch RuntimeConfigPatch) (*domain.RuntimeConfig, error) {
	current, err := c.Repos.RuntimeConfig.Get(ctx)
	if err != nil {
		return nil, err
	}
	applyRuntimeConfigPatch(current, patch)
	if err := c.Repos.RuntimeConfig.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func applyRuntimeConfigPatch(c *domain.RuntimeConfig, p RuntimeConfigPatch) {
	if p.ConsecutiveZeroArticleRunsToPause != nil {
		c.ConsecutiveZeroArticleRunsToPause = *p.ConsecutiveZeroArticleRunsToPause
	}
	if p.ConsecutiveErrorsToPause != nil {
		c.ConsecutiveErrorsToPause = *p.ConsecutiveErrorsToPause
	}
	if p.AutoPauseDurationMinutes != nil {
		c.AutoPauseDurationMinutes = *p.AutoPauseDurationMinutes
	}
	if p.EventClusteringWindowHours != nil {
		c.EventClusteringWindowHours = *p.EventClusteringWindowHours
	}
	if p.EventPurgeMinArticles != nil {
		c.EventPurgeMinArticles = *p.EventPurgeMinArticles
	}
	if p.EventPurgeMaxSeverity != nil {
		c.EventPurgeMaxSeverity = *p.EventPurgeMaxSeverity
	}
	if p.PublishOnSummarizationFailure != nil {
		c.PublishOnSummarizationFailure = *p.PublishOnSummarizationFailure
	}
	if p.PreferCVSSv4 != nil {
		c.PreferCVSSv4 = *p.PreferCVSSv4
	}
	if p.DefaultSourceRateLimitPerMinute != nil {
		c.DefaultSourceRateLimitPerMinute = *p.DefaultSourceRateLimitPerMinute
	}
	if p.BuildSiteDebounceSeconds != nil {
		c.BuildSiteDebounceSeconds = *p.BuildSiteDebounceSeconds
	}
}

// RunCVESyncNow triggers an out-of-band cve_sync pass, bypassing the
// periodic schedule, for the `cve sync` CLI command and run-cve-sync-now
// admin command.
func (c *Commands) RunCVESyncNow(ctx context.Context, since time.Time) (*cvesync.Result, error) {
	return c.Syncer.Run(ctx, since)
}

// RebuildEvents triggers an out-of-band events_rebuild pass.
func (c *Commands) RebuildEvents(ctx context.Context, since time.Time) (*events.Result, error) {
	return c.Rebuilder.Run(ctx, since)
}

// PurgeEvents triggers an out-of-band events_purge pass.
func (c *Commands) PurgeEvents(ctx context.Context, maxSeverity domain.Severity) (*events.PurgeResult, error) {
	return c.Purger.Run(ctx, maxSeverity)
}

// contentTypeDirs maps a clear-content-by-type argument to the directory
// under site_src_dir/content it sweeps (spec.md §6: "site_src_dir holds
// content/{posts,events,cves}/*.md").
var contentTypeDirs = map[string]string{
	"posts":  "posts",
	"events": "events",
	"cves":   "cves",
}

// ClearContentByType deletes every generated Markdown file for one content
// type, for an operator recovering from a bad bulk publish. It does not
// touch database rows; the next write_article_markdown/events_rebuild pass
// regenerates the files it needs.
func (c *Commands) ClearContentByType(contentType string) (int, error) {
	dir, ok := contentTypeDirs[contentType]
	if !ok {
		return 0, apperrors.Validation(apperrors.CodeInvalidRequestField, fmt.Sprintf("unknown content type %q", contentType))
	}
	target := filepath.Join(c.Publish.SiteSrcDir, "content", dir)
	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, apperrors.WrapTransient(err, apperrors.CodePublishWriteFailed, "read content directory")
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		if err := os.Remove(filepath.Join(target, entry.Name())); err != nil {
			return removed, apperrors.WrapTransient(err, apperrors.CodePublishWriteFailed, "remove content file")
		}
		removed++
	}
	return removed, nil
}
