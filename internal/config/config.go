// Package config provides centralized configuration for the rxsuite runner.
// It loads configuration from CLI flags and environment variables, validates it,
// and provides sensible defaults.
//
// CLI flags select what to run (--suite, --scenario, --stub, --list) and how
// (--headed, --parallel, --report-dir). Environment variables provide the test
// data location, browser tuning, S3 report storage and Resend credentials.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/logutil"
	"github.com/sumitdasdk/DRX-pro/internal/s3client"
	"github.com/sumitdasdk/DRX-pro/internal/urlutil"
)

const (
	defaultAWSRegion  = "us-east-1"
	defaultReportDir  = "rx-reports"
	defaultReportFrom = "rxsuite@digital-rx-pro.test"
)

// KnownSuites lists the suites the runner can execute, in run order.
var KnownSuites = []string{"login", "patient", "prescription", "history"}

// Flags are the raw CLI flag values. Zero values mean "not set".
type Flags struct {
	Suites    []string
	Scenario  string
	Stub      bool
	Headed    bool
	Parallel  int
	ReportDir string
	List      bool
	Verbose   bool
}

// Config holds all runner configuration.
type Config struct {
	// Selection
	Suites   []string
	Scenario string
	List     bool

	// Target
	Stub     bool   // run against the in-process stub app (--stub)
	TestData string // RX_TESTDATA: local path or s3://bucket/key
	BaseURL  string // RX_BASE_URL: overrides urls.baseUrl

	// Logging
	LogLevel string // RX_LOG_LEVEL: debug, info, warn or error; --verbose forces debug

	// Browser
	Headless    bool
	SlowMo      time.Duration
	SettleScale float64 // scales settling delays; 0 disables them

	// Scheduling
	Parallel     int
	ScenarioRate float64 // scenario starts per second; 0 means unlimited

	// Reports
	ReportDir    string
	ReportBucket string // RX_REPORT_BUCKET
	ReportFrom   string // RX_REPORT_FROM
	ReportTo     string // RX_REPORT_TO

	// Resend Email
	ResendAPIKey string

	// S3 (AWS_ env vars)
	AWSEndpointS3      string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// suiteList is a flag.Value accepting repeated or comma-separated suite names.
type suiteList struct {
	names *[]string
}

func (s suiteList) String() string {
	if s.names == nil {
		return ""
	}
	return strings.Join(*s.names, ",")
}

func (s suiteList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s.names = append(*s.names, strings.ToLower(part))
		}
	}
	return nil
}

// ParseFlags parses args (without the program name) into Flags.
func ParseFlags(args []string, output io.Writer) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("rxsuite", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.Var(suiteList{names: &f.Suites}, "suite", "Suite to run (repeatable or comma-separated: "+strings.Join(KnownSuites, ",")+"; default all)")
	fs.StringVar(&f.Scenario, "scenario", "", "Run only the scenario with this id (e.g. TC-P01)")
	fs.BoolVar(&f.Stub, "stub", false, "Run against the in-process stub application")
	fs.BoolVar(&f.Headed, "headed", false, "Show the browser window (overrides RX_HEADLESS)")
	fs.IntVar(&f.Parallel, "parallel", 0, "Maximum concurrent scenarios (overrides RX_PARALLEL)")
	fs.StringVar(&f.ReportDir, "report-dir", "", "Directory for reports and screenshots (overrides RX_REPORT_DIR)")
	fs.BoolVar(&f.List, "list", false, "List the selected scenarios and exit")
	fs.BoolVar(&f.Verbose, "verbose", false, "Log driver actions at debug level (overrides RX_LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if fs.NArg() > 0 {
		return Flags{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables and CLI flag values.
// Flag values override their environment counterparts.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{}

	// Selection
	cfg.Suites = append([]string(nil), f.Suites...)
	if len(cfg.Suites) == 0 {
		cfg.Suites = append(cfg.Suites, KnownSuites...)
	}
	cfg.Scenario = strings.TrimSpace(f.Scenario)
	cfg.List = f.List

	// Target
	cfg.Stub = f.Stub
	cfg.TestData = getEnvOrDefault("RX_TESTDATA", "")
	cfg.BaseURL = getEnvOrDefault("RX_BASE_URL", "")

	// Logging
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("RX_LOG_LEVEL", "info"))
	if f.Verbose {
		cfg.LogLevel = "debug"
	}

	// Browser
	cfg.Headless = parseBoolOrDefault("RX_HEADLESS", true)
	if f.Headed {
		cfg.Headless = false
	}
	cfg.SlowMo = parseDurationOrDefault("RX_SLOW_MO", 0)
	cfg.SettleScale = parseFloat64OrDefault("RX_SETTLE_SCALE", 1)

	// Scheduling
	cfg.Parallel = parseIntOrDefault("RX_PARALLEL", 1)
	if f.Parallel != 0 {
		cfg.Parallel = f.Parallel
	}
	cfg.ScenarioRate = parseFloat64OrDefault("RX_SCENARIO_RATE", 0)

	// Reports
	cfg.ReportDir = getEnvOrDefault("RX_REPORT_DIR", defaultReportDir)
	if f.ReportDir != "" {
		cfg.ReportDir = f.ReportDir
	}
	cfg.ReportBucket = getEnvOrDefault("RX_REPORT_BUCKET", "")
	cfg.ReportFrom = getEnvOrDefault("RX_REPORT_FROM", defaultReportFrom)
	cfg.ReportTo = getEnvOrDefault("RX_REPORT_TO", "")

	// Resend Email
	cfg.ResendAPIKey = getEnvOrDefault("RESEND_API_KEY", "")

	// S3
	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultAWSRegion)
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")

	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.ConfigurationError, "load configuration", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent, reporting every problem at once.
func (c *Config) Validate() error {
	var problems []string

	for _, s := range c.Suites {
		if !isKnownSuite(s) {
			problems = append(problems, fmt.Sprintf("unknown suite %q (known: %s)", s, strings.Join(KnownSuites, ", ")))
		}
	}

	if c.Parallel < 1 {
		problems = append(problems, "RX_PARALLEL / --parallel must be at least 1")
	}
	if c.ScenarioRate < 0 {
		problems = append(problems, "RX_SCENARIO_RATE must not be negative")
	}
	if c.SettleScale < 0 {
		problems = append(problems, "RX_SETTLE_SCALE must not be negative")
	}
	if c.SlowMo < 0 {
		problems = append(problems, "RX_SLOW_MO must not be negative")
	}
	if c.BaseURL != "" {
		if _, err := urlutil.BaseURL(c.BaseURL); err != nil {
			problems = append(problems, "RX_BASE_URL must be an http(s) URL: "+err.Error())
		}
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		problems = append(problems, "RX_LOG_LEVEL must be debug, info, warn or error")
	}
	if c.ReportDir == "" {
		problems = append(problems, "RX_REPORT_DIR / --report-dir must not be empty")
	}

	if strings.HasPrefix(c.TestData, "s3://") {
		if _, _, ok := s3client.ParseURI(c.TestData); !ok {
			problems = append(problems, "RX_TESTDATA must look like s3://bucket/key")
		}
	}
	if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		problems = append(problems, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}

	if c.ReportTo != "" && c.ReportFrom == "" {
		problems = append(problems, "RX_REPORT_FROM is required when RX_REPORT_TO is set")
	}

	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// SlogLevel returns the minimum log level. Invalid values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	l, err := parseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(s))
	return l, err
}

// S3Enabled reports whether any feature needs an S3 client.
func (c *Config) S3Enabled() bool {
	return c.ReportBucket != "" || strings.HasPrefix(c.TestData, "s3://")
}

// S3Config returns the s3client configuration for the report bucket.
func (c *Config) S3Config() s3client.Config {
	return s3client.Config{
		Endpoint:        c.AWSEndpointS3,
		Region:          c.AWSRegion,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		BucketName:      c.ReportBucket,
		UsePathStyle:    c.AWSEndpointS3 != "",
	}
}

// EmailEnabled reports whether a report email should be sent.
func (c *Config) EmailEnabled() bool {
	return c.ReportTo != ""
}

// MockEmail reports whether report mail goes to the mock service (no Resend key).
func (c *Config) MockEmail() bool {
	return c.ResendAPIKey == ""
}

// PrintStartupSummary prints a human-readable summary of the configuration to w.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "rxsuite starting...")

	if c.Stub {
		fmt.Fprintln(w, "  Target:   in-process stub (--stub)")
	} else if c.BaseURL != "" {
		fmt.Fprintf(w, "  Target:   %s (RX_BASE_URL)\n", c.BaseURL)
	} else {
		fmt.Fprintln(w, "  Target:   urls.baseUrl from test data")
	}

	data := c.TestData
	if data == "" {
		data = "bundled test-data/TestData.json"
	}
	fmt.Fprintf(w, "  Data:     %s\n", data)
	fmt.Fprintf(w, "  Suites:   %s\n", strings.Join(c.Suites, ", "))
	if c.Scenario != "" {
		fmt.Fprintf(w, "  Scenario: %s\n", c.Scenario)
	}

	mode := "headless"
	if !c.Headless {
		mode = "headed"
	}
	fmt.Fprintf(w, "  Logging:  %s\n", c.SlogLevel())
	fmt.Fprintf(w, "  Browser:  chromium %s, slow-mo %s, settle x%.2g\n", mode, c.SlowMo, c.SettleScale)
	if c.ScenarioRate > 0 {
		fmt.Fprintf(w, "  Workers:  %d (%.2g starts/s)\n", c.Parallel, c.ScenarioRate)
	} else {
		fmt.Fprintf(w, "  Workers:  %d\n", c.Parallel)
	}

	fmt.Fprintf(w, "  Reports:  %s\n", c.ReportDir)
	if c.ReportBucket != "" {
		fmt.Fprintf(w, "  Upload:   s3://%s (endpoint: %s)\n", c.ReportBucket, orDefault(c.AWSEndpointS3, "aws"))
	}
	if c.EmailEnabled() {
		secrets := logutil.RedactEnv(map[string]string{"RESEND_API_KEY": c.ResendAPIKey})
		if c.MockEmail() {
			fmt.Fprintf(w, "  Email:    Mock (to: %s)\n", c.ReportTo)
		} else {
			fmt.Fprintf(w, "  Email:    Resend (to: %s, key: %s)\n", c.ReportTo, secrets["RESEND_API_KEY"])
		}
	}
	fmt.Fprintln(w, "")
}

func isKnownSuite(name string) bool {
	for _, s := range KnownSuites {
		if s == name {
			return true
		}
	}
	return false
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseDurationOrDefault accepts Go durations ("250ms") or bare milliseconds ("250").
func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
