package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/sumitdasdk/DRX-pro/internal/config"
	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/scenario"
	"github.com/sumitdasdk/DRX-pro/internal/suites"
)

func TestRun_ListPrintsSelection(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--list", "--suite", "history"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 history scenarios, got %d:\n%s", len(lines), stdout.String())
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "TC-H-PAGE-0") {
			t.Fatalf("unexpected line %q", line)
		}
	}
}

func TestRun_ListSingleScenario(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--list", "--scenario", "tc-rx-01"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "TC-RX-01 ") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRun_ConfigurationErrorsExitTwo(t *testing.T) {
	cases := map[string][]string{
		"unknown suite":      {"--list", "--suite", "billing"},
		"unknown scenario":   {"--list", "--scenario", "TC-999"},
		"suite and scenario": {"--list", "--suite", "login", "--scenario", "TC-P01"},
		"bad flag":           {"--no-such-flag"},
		"stray argument":     {"--list", "extra"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), args, &stdout, &stderr); code != 2 {
				t.Fatalf("exit %d, want 2 (stderr=%s)", code, stderr.String())
			}
			if stderr.Len() == 0 {
				t.Fatal("expected an explanation on stderr")
			}
		})
	}
}

func TestKnownSuitesMatchCatalogue(t *testing.T) {
	if strings.Join(config.KnownSuites, ",") != strings.Join(suites.Names(), ",") {
		t.Fatalf("config knows %v, catalogue has %v", config.KnownSuites, suites.Names())
	}
}

func testExitCode_WorstFailureWins(t *rapid.T) {
	statuses := []scenario.Status{scenario.StatusPassed, scenario.StatusFailed, scenario.StatusSkipped}
	codes := []errs.Code{errs.NavigationTimeout, errs.ElementNotFound, errs.SearchMismatch, errs.ConfigurationError, errs.AssertionFailed, errs.Internal}

	n := rapid.IntRange(0, 10).Draw(t, "n")
	results := make([]scenario.Result, n)
	want := 0
	for i := range results {
		results[i].Status = rapid.SampledFrom(statuses).Draw(t, "status")
		results[i].ErrCode = rapid.SampledFrom(codes).Draw(t, "code")
		if results[i].Status != scenario.StatusFailed {
			continue
		}
		if results[i].ErrCode == errs.ConfigurationError {
			want = 2
		} else if want == 0 {
			want = 1
		}
	}
	if got := exitCode(results); got != want {
		t.Fatalf("exitCode = %d, want %d", got, want)
	}
}

func TestExitCode_WorstFailureWins(t *testing.T) {
	rapid.Check(t, testExitCode_WorstFailureWins)
}
