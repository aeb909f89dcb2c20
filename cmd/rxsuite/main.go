// Command rxsuite runs the Digital Rx Pro end-to-end suites in Chromium.
//
// Usage:
//
//	go run ./cmd/rxsuite                        # every suite against urls.baseUrl
//	go run ./cmd/rxsuite --suite login,patient  # selected suites
//	go run ./cmd/rxsuite --scenario TC-RX-01    # one scenario
//	go run ./cmd/rxsuite --stub --parallel 4    # against the in-process stub app
//	go run ./cmd/rxsuite --list                 # print the selection and exit
//	go run ./cmd/rxsuite --stub --verbose       # debug logs: fills (redacted), clicks, stub requests
//
// The exit status is 0 when nothing failed, 2 for configuration errors and 1 otherwise.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sumitdasdk/DRX-pro/internal/browser"
	"github.com/sumitdasdk/DRX-pro/internal/config"
	"github.com/sumitdasdk/DRX-pro/internal/email"
	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/fixtures"
	"github.com/sumitdasdk/DRX-pro/internal/logutil"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
	"github.com/sumitdasdk/DRX-pro/internal/pages"
	"github.com/sumitdasdk/DRX-pro/internal/report"
	"github.com/sumitdasdk/DRX-pro/internal/rxstub"
	"github.com/sumitdasdk/DRX-pro/internal/s3client"
	"github.com/sumitdasdk/DRX-pro/internal/scenario"
	"github.com/sumitdasdk/DRX-pro/internal/suites"
	"github.com/sumitdasdk/DRX-pro/internal/urlutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags, err := config.ParseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(errs.ConfigurationError)
	}
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(errs.CodeOf(err))
	}

	selected, err := scenario.Select(suites.All(), cfg.Suites, cfg.Scenario)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(errs.CodeOf(err))
	}
	if cfg.List {
		printList(stdout, selected)
		return 0
	}

	obs.Init()
	obs.SetLevel(cfg.SlogLevel())
	log := obs.Pkg("rxsuite")
	cfg.PrintStartupSummary(stdout)

	var s3 *s3client.Client
	if cfg.S3Enabled() {
		s3, err = s3client.New(ctx, cfg.S3Config())
		if err != nil {
			log.Error("s3 client", "error", err)
			return errs.ExitCode(errs.ConfigurationError)
		}
	}

	store, err := loadStore(ctx, cfg, s3)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(errs.CodeOf(err))
	}

	// The loaded store is shared and read-only; the target override goes on a copy.
	target := *store
	if cfg.Stub {
		stub, err := rxstub.Listen(rxstub.OptionsFromCredentials(store.LoginData()), "127.0.0.1:0")
		if err != nil {
			log.Error("start stub", "error", err)
			return errs.ExitCode(errs.Internal)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := stub.Close(shutdownCtx); err != nil {
				log.Warn("stub shutdown", "error", err)
			}
		}()
		target.URLs.BaseURL = stub.URL
	} else if cfg.BaseURL != "" {
		target.URLs.BaseURL = cfg.BaseURL
	}
	if target.URLs.BaseURL, err = urlutil.BaseURL(target.URLs.BaseURL); err != nil {
		fmt.Fprintln(stderr, errs.Wrap(errs.ConfigurationError, "target base URL", err))
		return errs.ExitCode(errs.ConfigurationError)
	}

	launcher := browser.NewLauncher(browser.Options{Headless: cfg.Headless, SlowMo: cfg.SlowMo})
	defer func() {
		if err := launcher.Close(); err != nil {
			log.Warn("browser shutdown", "error", err)
		}
	}()
	if err := launcher.Start(); err != nil {
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(errs.Internal)
	}

	runID := uuid.NewString()
	runner, err := scenario.NewRunner(launcher, scenario.Env{
		Store:       &target,
		Timeouts:    pages.TimeoutsFromStore(&target),
		SettleScale: cfg.SettleScale,
	}, scenario.Options{
		RunID:           runID,
		Parallel:        cfg.Parallel,
		StartsPerSecond: cfg.ScenarioRate,
		ArtifactDir:     filepath.Join(cfg.ReportDir, runID),
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(errs.CodeOf(err))
	}
	defer runner.Close()

	started := time.Now()
	results := runner.Run(ctx, selected)
	rep := report.New(runID, target.URLs.BaseURL, started, time.Now(), results)
	printResults(stdout, rep)

	var uploads *s3client.Client
	if s3 != nil && cfg.ReportBucket != "" {
		uploads = s3.ForBucket(cfg.ReportBucket)
	}
	published, err := report.NewPublisher(cfg.ReportDir, uploads).Publish(ctx, rep)
	if err != nil {
		log.Error("publish report", "error", err)
	} else {
		fmt.Fprintf(stdout, "Report: %s\n", filepath.Join(published.Dir, report.FileHTML))
		if published.ReportURL != "" {
			fmt.Fprintf(stdout, "Uploaded: %s\n", published.ReportURL)
		}
	}

	if cfg.EmailEnabled() {
		if err := report.Notify(mailer(cfg), cfg.ReportTo, rep, published.ReportURL); err != nil {
			log.Error("send run report", "to", cfg.ReportTo, "error", err)
		}
	}

	return exitCode(results)
}

func loadStore(ctx context.Context, cfg *config.Config, s3 *s3client.Client) (*fixtures.Store, error) {
	if _, _, ok := s3client.ParseURI(cfg.TestData); !ok {
		return fixtures.Default().Load(ctx)
	}
	src, err := fixtures.OpenSource(cfg.TestData, s3)
	if err != nil {
		return nil, err
	}
	return fixtures.NewLoader(src).Load(ctx)
}

func mailer(cfg *config.Config) report.RunReportSender {
	if cfg.MockEmail() {
		return email.NewMockEmailService(filepath.Join(cfg.ReportDir, "outbox"))
	}
	return email.NewResendEmailService(cfg.ResendAPIKey, cfg.ReportFrom)
}

func printList(w io.Writer, selected []scenario.Scenario) {
	for _, s := range selected {
		fmt.Fprintf(w, "%-14s %-13s %s\n", s.ID, s.Suite, s.Title)
	}
}

func printResults(w io.Writer, rep *report.Report) {
	fmt.Fprintln(w)
	for _, res := range rep.Results {
		label := "PASS"
		switch {
		case res.Failed():
			label = "FAIL"
		case res.Status == scenario.StatusSkipped:
			label = "SKIP"
		case res.Verification == scenario.VerificationUnverified:
			label = "PASS?"
		}
		fmt.Fprintf(w, "%-5s %-14s %s (%s)\n", label, res.ID, res.Title, res.Duration.Round(time.Millisecond))
		if res.Failed() {
			fmt.Fprintf(w, "      [%s] %s\n", res.ErrCode, logutil.TruncateForLog(res.Error, 300))
		}
		for _, a := range res.Annotations {
			fmt.Fprintf(w, "      %s: %s\n", a.Kind, a.Message)
		}
	}
	s := rep.Summary
	fmt.Fprintf(w, "\n%d scenarios: %d passed (%d unverified), %d failed, %d skipped\n", s.Total, s.Passed, s.Unverified, s.Failed, s.Skipped)
}

// exitCode is 0 without failures, 2 when any failure is a configuration error, else 1.
func exitCode(results []scenario.Result) int {
	code := 0
	for _, r := range results {
		if !r.Failed() {
			continue
		}
		if c := errs.ExitCode(r.ErrCode); c > code {
			code = c
		}
	}
	return code
}
