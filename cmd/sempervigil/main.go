// Package main is the SemperVigil CLI: it runs the HTTP admin API, the
// River job workers (optionally restricted to one class), and one-off
// operator commands (migrate, enqueue, test-source, cve sync, ...) over
// the same composition root (spec.md §6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	river "github.com/riverqueue/river"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/admin"
	"sempervigil.dev/sempervigil/internal/app"
	"sempervigil.dev/sempervigil/internal/config"
	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/infrastructure"
	"sempervigil.dev/sempervigil/internal/migrations"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `sempervigil - job orchestration and content pipeline for a vulnerability intelligence feed

Usage:
  sempervigil <command> [arguments]

Commands:
  serve                            Run the admin HTTP API and both worker classes
  worker [--class fetch|llm] [--once]
                                    Run job workers; --once drains the current
                                    backlog and exits instead of running forever
  migrate                          Apply pending database migrations and exit
  enqueue <job_type> [--payload JSON]
                                    Insert one job
  test-source <source_id>          Run a dry-run ingest pass without persisting
  cve sync                         Run an out-of-band cve_sync pass
  events rebuild                   Run an out-of-band events_rebuild pass
  events purge                     Run an out-of-band events_purge pass

`)
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing command")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "migrate":
		return runMigrate()
	case "serve":
		return runServe(rest)
	case "worker":
		return runWorker(rest)
	case "enqueue":
		return runEnqueue(rest)
	case "test-source":
		return runTestSource(rest)
	case "cve":
		return runCVE(rest)
	case "events":
		return runEvents(rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database clients: %w", err)
	}
	defer db.Close()

	return db.Migrate(ctx, migrations.FS, migrations.Dir)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	application, cancel, err := bootstrap(app.Options{})
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Shutdown()

	if err := application.Start(context.Background()); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", application.Config.Server.Port),
		Handler:      application.Router,
		ReadTimeout:  application.Config.Server.ReadTimeout,
		WriteTimeout: application.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("sempervigil serving", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), application.Config.Server.ShutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func runWorker(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	class := fs.String("class", "", "restrict to one worker class: fetch or llm (default: both)")
	once := fs.Bool("once", false, "drain the currently available backlog and exit")
	fs.Parse(args)

	opts := app.Options{}
	if *class != "" {
		opts.QueueClasses = []string{*class}
	}

	application, cancel, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Shutdown()

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}
	logger.Info("worker started", zap.Strings("queue_classes", opts.QueueClasses), zap.Bool("once", *once))

	if *once {
		return drainOnce(ctx, application)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")
	return nil
}

// drainOnce polls until no job is available, scheduled, or running, then
// returns. It is a best-effort batch mode for cron-driven deployments that
// would rather exit than hold a long-lived process.
func drainOnce(ctx context.Context, application *app.App) error {
	activeStates := admin.ListJobsOptions{
		States: []river.JobState{
			river.JobStateAvailable,
			river.JobStateScheduled,
			river.JobStateRunning,
			river.JobStateRetryable,
		},
		Limit: 1,
	}
	for {
		active, err := application.Admin.ListJobs(ctx, activeStates)
		if err != nil {
			return fmt.Errorf("poll job queue: %w", err)
		}
		if len(active) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func runEnqueue(args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	payload := fs.String("payload", "", "JSON payload for the job args")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: sempervigil enqueue <job_type> [--payload JSON]")
	}
	jobType := fs.Arg(0)

	application, cancel, err := bootstrap(app.Options{})
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Shutdown()

	job, err := application.Admin.EnqueueJob(context.Background(), jobType, json.RawMessage(*payload))
	if err != nil {
		return err
	}
	fmt.Printf("enqueued job %d (%s)\n", job.ID, job.Kind)
	return nil
}

func runTestSource(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sempervigil test-source <source_id>")
	}

	application, cancel, err := bootstrap(app.Options{})
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Shutdown()

	result, err := application.Admin.TestSource(context.Background(), args[0])
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runCVE(args []string) error {
	if len(args) < 1 || args[0] != "sync" {
		return fmt.Errorf("usage: sempervigil cve sync")
	}

	application, cancel, err := bootstrap(app.Options{})
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Shutdown()

	result, err := application.Admin.RunCVESyncNow(context.Background(), time.Time{})
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runEvents(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sempervigil events rebuild|purge")
	}

	application, cancel, err := bootstrap(app.Options{})
	if err != nil {
		return err
	}
	defer cancel()
	defer application.Shutdown()

	ctx := context.Background()
	switch args[0] {
	case "rebuild":
		result, err := application.Admin.RebuildEvents(ctx, time.Time{})
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	case "purge":
		result, err := application.Admin.PurgeEvents(ctx, domain.SeverityHigh)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	default:
		return fmt.Errorf("usage: sempervigil events rebuild|purge")
	}
}

// bootstrap wires the full application and returns a cancel func for the
// context passed to app.Bootstrap.
func bootstrap(opts app.Options) (*app.App, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())
	application, err := app.Bootstrap(ctx, opts)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	return application, cancel, nil
}
