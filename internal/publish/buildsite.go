package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"sempervigil.dev/sempervigil/internal/config"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

const tailLimit = 64 * 1024

// tailBuffer keeps only the last maxLen bytes written to it, matching
// spec.md §4.E's "captures stdout/stderr tails (last 64 KiB each)".
type tailBuffer struct {
	maxLen int
	buf    bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if excess := t.buf.Len() - t.maxLen; excess > 0 {
		t.buf.Next(excess)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }

// BuildResult is the outcome of one build_site invocation.
type BuildResult struct {
	ExitCode   int
	StdoutTail string
	StderrTail string
	Duration   time.Duration
}

// SiteBuilder invokes the external static site generator as a child
// process (spec.md §4.E, §6), honoring the configured command template and
// flags, and verifies index.html exists in the output directory on success.
type SiteBuilder struct {
	cfg config.PublishConfig
}

// NewSiteBuilder builds a SiteBuilder over the publish configuration.
func NewSiteBuilder(cfg config.PublishConfig) *SiteBuilder {
	return &SiteBuilder{cfg: cfg}
}

// Run executes the configured site-builder command with -s/-d/--baseURL/
// --minify/--gc/--cleanDestinationDir/--cacheDir flags appended, capturing
// output tails and the exit code.
func (b *SiteBuilder) Run(ctx context.Context) (*BuildResult, error) {
	if len(b.cfg.SiteBuilderCmd) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeBuildSiteFailed, "publish.site_builder_cmd is not configured")
	}

	timeout := b.cfg.BuildTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, b.cfg.SiteBuilderCmd[1:]...)
	args = append(args,
		"-s", b.cfg.SiteSrcDir,
		"-d", b.cfg.SitePublicDir,
		"--cacheDir", b.cfg.CacheDir,
		"--baseURL", b.cfg.BaseURL,
	)
	if b.cfg.Minify {
		args = append(args, "--minify")
	}
	if b.cfg.GC {
		args = append(args, "--gc")
	}
	if b.cfg.CleanDestination {
		args = append(args, "--cleanDestinationDir")
	}

	cmd := exec.CommandContext(runCtx, b.cfg.SiteBuilderCmd[0], args...)

	var stdout, stderr tailBuffer
	stdout.maxLen, stderr.maxLen = tailLimit, tailLimit
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &BuildResult{
		StdoutTail: stdout.String(),
		StderrTail: stderr.String(),
		Duration:   time.Since(start),
	}

	if err != nil {
		if runCtx.Err() != nil {
			return result, apperrors.Canceled(apperrors.CodeBuildSiteFailed, "site build timed out or was canceled")
		}
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return result, apperrors.WrapTransient(err, apperrors.CodeBuildSiteFailed, "failed to start site builder")
		}
		result.ExitCode = exitErr.ExitCode()
		return result, apperrors.Permanent(apperrors.CodeBuildSiteFailed, fmt.Sprintf(
			"site builder exited %d\nstdout tail:\n%s\nstderr tail:\n%s",
			result.ExitCode, clipLines(result.StdoutTail), clipLines(result.StderrTail)))
	}

	indexPath := filepath.Join(b.cfg.SitePublicDir, "index.html")
	if _, statErr := os.Stat(indexPath); statErr != nil {
		return result, apperrors.Permanent(apperrors.CodeBuildSiteFailed, "site builder exited 0 but "+indexPath+" is missing")
	}

	return result, nil
}

func clipLines(s string) string {
	const max = 2000
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}
