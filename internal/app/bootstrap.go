// Package app is the composition root: it wires configuration, the shared
// database pool, the repository layer, the LLM stack, the pipeline
// packages (ingest/cvesync/events/publish), the River job queue, and the
// admin command surface into one running process.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/admin"
	"sempervigil.dev/sempervigil/internal/api/middleware"
	"sempervigil.dev/sempervigil/internal/config"
	"sempervigil.dev/sempervigil/internal/cvesync"
	"sempervigil.dev/sempervigil/internal/events"
	"sempervigil.dev/sempervigil/internal/infrastructure"
	"sempervigil.dev/sempervigil/internal/ingest"
	"sempervigil.dev/sempervigil/internal/jobs"
	"sempervigil.dev/sempervigil/internal/llm"
	"sempervigil.dev/sempervigil/internal/llm/anthropicprovider"
	"sempervigil.dev/sempervigil/internal/llm/openaicompat"
	"sempervigil.dev/sempervigil/internal/migrations"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
	"sempervigil.dev/sempervigil/internal/pkg/worker"
	"sempervigil.dev/sempervigil/internal/publish"
	"sempervigil.dev/sempervigil/internal/repository"
	"sempervigil.dev/sempervigil/internal/secrets"
)

// defaultCVESyncLookback is used whenever a cve_sync job carries a zero
// Since, including the periodic tick (spec.md §4.D).
const defaultCVESyncLookback = 24 * time.Hour

// App holds every long-lived component the running process needs, built
// once at startup and torn down once at shutdown.
type App struct {
	Config  *config.Config
	DB      *infrastructure.DatabaseClients
	Repos   *repository.Repositories
	Pools   *worker.Pools
	Admin   *admin.Commands
	Runner  *llm.Runner
	Builder *publish.SiteBuilder
	Router  *gin.Engine
}

// Options narrows what Bootstrap wires up. The zero value wires everything.
type Options struct {
	// QueueClasses restricts the River client to the named queues (spec.md
	// §5: "fetch" and "llm" worker classes can run as separate processes).
	// Empty means both.
	QueueClasses []string
}

// Bootstrap loads configuration and wires every component. It does not
// start background work (River, periodic jobs); call (*App).Start for
// that once Bootstrap returns successfully.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database clients: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	repos := repository.New(db.SQLX)

	runtimeCfg, err := repos.RuntimeConfig.Get(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load runtime config: %w", err)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		FetchPoolSize: cfg.Worker.FetchPoolSize,
		LLMPoolSize:   cfg.Worker.LLMPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("worker pools: %w", err)
	}

	credentials, err := secrets.NewCredentialStore(cfg.Security.LLMMasterKey, repos.LLMRuns)
	if err != nil {
		pools.Shutdown()
		db.Close()
		return nil, fmt.Errorf("credential store: %w", err)
	}

	llmRouter := llm.NewRouter(cfg.LLM.StageRouting)
	for key, profile := range cfg.LLM.Profiles {
		provider, err := buildLLMProvider(ctx, key, profile, credentials)
		if err != nil {
			logger.Warn("skipping unconfigured llm profile", zap.String("profile", key), zap.Error(err))
			continue
		}
		llmRouter.AddProfile(key, provider, profile.Model, profile.MaxTokens, profile.Temperature)
	}
	runner := llm.NewRunner(llmRouter, repos.LLMRuns)
	llmRouted := cfg.LLM.StageRouting["summarize_article"] != ""

	fetcher := ingest.NewFetcher(runtimeCfg.DefaultSourceRateLimitPerMinute)
	pipeline := ingest.NewPipeline(repos.Sources, repos.Articles, repos.CVEs, fetcher).
		WithAutoPausePolicy(runtimeCfg.ConsecutiveZeroArticleRunsToPause, runtimeCfg.ConsecutiveErrorsToPause, runtimeCfg.AutoPauseDuration())

	nvdClient := cvesync.NewClient(cfg.NVD.BaseURL, cfg.NVD.APIKey, cfg.NVD.PageSize, cfg.NVD.RequestInterval, cfg.NVD.RequestTimeout)
	syncer := cvesync.NewSyncer(nvdClient, repos.CVEs, repos.Vendors, runtimeCfg.PreferCVSSv4)

	rebuilder := events.NewRebuilder(repos.CVEs, repos.Articles, repos.Events, runtimeCfg.EventClusteringWindow())
	purger := events.NewPurger(repos.Events)

	builder := publish.NewSiteBuilder(cfg.Publish)
	buildSiteDebounce := time.Duration(runtimeCfg.BuildSiteDebounceSeconds) * time.Second
	debouncer := jobs.NewBuildSiteDebouncer(buildSiteDebounce)

	workers := river.NewWorkers()
	registerWorkers(workers, repos, pipeline, fetcher, runner, llmRouted, runtimeCfg.PublishOnSummarizationFailure,
		syncer, rebuilder, purger, builder, debouncer, cfg.Publish.SiteSrcDir)

	queues := selectQueues(cfg.Worker, opts.QueueClasses)
	// Periodic jobs all insert into the fetch queue; only schedule them on a
	// process that actually runs it, so an llm-only worker process does not
	// also drive the scheduler.
	var periodicJobs []*river.PeriodicJob
	if _, ok := queues["fetch"]; ok {
		periodicJobs = jobs.PeriodicJobs(cfg.Worker.IngestTickInterval, cfg.Worker.CVESyncInterval)
	}
	if err := db.InitRiverClient(workers, cfg.River, queues, periodicJobs); err != nil {
		pools.Shutdown()
		db.Close()
		return nil, fmt.Errorf("init river client: %w", err)
	}

	adminCmds := admin.New(db.RiverClient, repos, pipeline, syncer, rebuilder, purger, cfg.Publish)

	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte(cfg.Security.AdminJWTSecret),
		Issuer:     "sempervigil",
		ExpiresIn:  24 * time.Hour,
	}
	router := newRouter(cfg, adminCmds, jwtCfg)

	return &App{
		Config:  cfg,
		DB:      db,
		Repos:   repos,
		Pools:   pools,
		Admin:   adminCmds,
		Runner:  runner,
		Builder: builder,
		Router:  router,
	}, nil
}

// selectQueues narrows the full fetch/llm queue set down to the classes a
// process was started with. An empty classes list wires both queues.
func selectQueues(workerCfg config.WorkerConfig, classes []string) map[string]river.QueueConfig {
	allQueues := map[string]river.QueueConfig{
		"fetch": {MaxWorkers: workerCfg.FetchPoolSize},
		"llm":   {MaxWorkers: workerCfg.LLMPoolSize},
	}
	if len(classes) == 0 {
		return allQueues
	}
	queues := make(map[string]river.QueueConfig, len(classes))
	for _, class := range classes {
		if qcfg, ok := allQueues[class]; ok {
			queues[class] = qcfg
		}
	}
	return queues
}

// buildLLMProvider resolves one configured profile to a concrete
// llm.Provider, reading the provider's API key from the sealed credential
// store rather than from bootstrap configuration (spec.md §6: stored LLM
// provider API keys are wrapped via AES-GCM).
func buildLLMProvider(ctx context.Context, key string, profile config.LLMProfile, credentials *secrets.CredentialStore) (llm.Provider, error) {
	apiKey, err := credentials.Get(ctx, profile.Provider)
	if err != nil {
		return nil, fmt.Errorf("load credential for profile %s: %w", key, err)
	}

	switch profile.Provider {
	case "anthropic":
		return llm.NewAnthropicProvider(anthropicprovider.NewClient(apiKey, profile.Timeout)), nil
	default:
		client := openaicompat.NewClient(profile.Provider, profile.BaseURL, apiKey, profile.Timeout)
		return llm.NewOpenAICompatProvider(client), nil
	}
}

// registerWorkers builds and registers every job worker (spec.md §4.C/D/E)
// on the given *river.Workers bundle. Workers no longer need a River client
// injected at construction time: a running job retrieves it from its own
// context via river.ClientFromContext (see internal/jobs/jobs.go).
// river.AddWorker panics on a duplicate kind registration rather than
// returning an error, so callers are not expected to handle a failure here.
func registerWorkers(
	workers *river.Workers,
	repos *repository.Repositories,
	pipeline *ingest.Pipeline,
	fetcher *ingest.Fetcher,
	runner *llm.Runner,
	llmRouted bool,
	publishOnSummarizationFailure bool,
	syncer *cvesync.Syncer,
	rebuilder *events.Rebuilder,
	purger *events.Purger,
	builder *publish.SiteBuilder,
	debouncer jobs.BuildSiteDebouncer,
	siteSrcDir string,
) {
	river.AddWorker(workers, jobs.NewIngestDueSourcesWorker(repos.Sources))
	river.AddWorker(workers, jobs.NewIngestSourceWorker(repos.Sources, pipeline))
	river.AddWorker(workers, jobs.NewFetchArticleContentWorker(repos.Articles, fetcher, llmRouted))
	river.AddWorker(workers, jobs.NewSummarizeArticleLLMWorker(repos.Articles, runner, publishOnSummarizationFailure))
	river.AddWorker(workers, jobs.NewWriteArticleMarkdownWorker(repos.Articles, repos.Sources, siteSrcDir, debouncer))
	river.AddWorker(workers, jobs.NewCVESyncWorker(syncer, defaultCVESyncLookback))
	river.AddWorker(workers, jobs.NewEventsRebuildWorker(rebuilder))
	river.AddWorker(workers, jobs.NewEventsPurgeWorker(purger))
	river.AddWorker(workers, jobs.NewBuildSiteWorker(builder))
}
