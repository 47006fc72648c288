package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/trendbrief/trendbrief/pkg/briefing"
	"github.com/trendbrief/trendbrief/pkg/config"
	"github.com/trendbrief/trendbrief/pkg/content"
	"github.com/trendbrief/trendbrief/pkg/delivery"
	"github.com/trendbrief/trendbrief/pkg/feed"
	"github.com/trendbrief/trendbrief/pkg/history"
	"github.com/trendbrief/trendbrief/pkg/quota"
	"github.com/trendbrief/trendbrief/pkg/research"
	"github.com/trendbrief/trendbrief/pkg/scriptgen"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Mode   string `short:"m" long:"mode" env:"MODE" default:"briefing" choice:"briefing" choice:"aggregate" choice:"scripts" description:"operation mode"` //nolint:staticcheck // go-flags needs repeated choice tags

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)

	lgr.Printf("[INFO] starting trendbrief version %s, mode %s", revision, opts.Mode)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		lgr.Printf("[ERROR] failed to load config: %v", err)
		os.Exit(1)
	}

	// hide credentials from log output
	setupLog(opts.Debug, opts.NoColor, cfg.Research.APIKey, cfg.Scripts.APIKey,
		cfg.Delivery.Notion.Token, cfg.Delivery.Sheets.Token)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts.Mode, cfg); err != nil {
		if errors.Is(err, briefing.ErrBudgetExhausted) || errors.Is(err, scriptgen.ErrLimitReached) {
			lgr.Printf("[INFO] %v, nothing to do", err)
			return
		}
		lgr.Printf("[ERROR] run failed: %v", err)
		os.Exit(1)
	}

	lgr.Printf("[INFO] run complete")
}

// run dispatches to the selected operation mode
func run(ctx context.Context, mode string, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.State.Dir, 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	budget := quota.NewBudget(filepath.Join(cfg.State.Dir, "budget_tracking.json"), cfg.Limits.MonthlyBudget)
	limiter := quota.NewLimiter(filepath.Join(cfg.State.Dir, "usage_tracking.json"))
	hist := history.New(filepath.Join(cfg.State.Dir, "ideas_history.json"), history.DefaultCap)

	sink, err := delivery.New(delivery.Options{
		Method:         cfg.Delivery.Method,
		NotionToken:    cfg.Delivery.Notion.Token,
		NotionDatabase: cfg.Delivery.Notion.Database,
		DiscordWebhook: cfg.Delivery.Discord.WebhookURL,
		SheetsID:       cfg.Delivery.Sheets.SpreadsheetID,
		SheetsToken:    cfg.Delivery.Sheets.Token,
		Timeout:        cfg.Delivery.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create delivery sink: %w", err)
	}

	switch mode {
	case "briefing":
		return runBriefing(ctx, cfg, budget, hist, sink)
	case "aggregate":
		return runAggregate(ctx, cfg, limiter, hist, sink)
	case "scripts":
		return runScripts(ctx, cfg, limiter, sink)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// runBriefing executes one research-and-deliver briefing
func runBriefing(ctx context.Context, cfg *config.Config, budget *quota.Budget, hist *history.History, sink delivery.Sink) error {
	researcher := research.NewClient(research.Config{
		Endpoint:     cfg.Research.Endpoint,
		APIKey:       cfg.Research.APIKey,
		Model:        cfg.Research.Model,
		Temperature:  cfg.Research.Temperature,
		Timeout:      cfg.Research.Timeout,
		CostPerToken: cfg.Research.CostPerToken,
	})

	b := briefing.New(briefing.Params{
		Budget:     budget,
		History:    hist,
		Researcher: researcher,
		Sink:       sink,
		DeepDives:  cfg.Research.DeepDives,
	})
	return b.Run(ctx)
}

// runAggregate collects fresh RSS news and delivers the curated list
func runAggregate(ctx context.Context, cfg *config.Config, limiter *quota.Limiter, hist *history.History, sink delivery.Sink) error {
	agg := feed.NewAggregator(feed.AggregatorParams{
		Feeds:          cfg.Feeds.URLs,
		Parser:         feed.NewParser(cfg.Feeds.Timeout, cfg.Feeds.UserAgent),
		Limiter:        limiter,
		History:        hist,
		MaxAge:         time.Duration(cfg.Feeds.MaxAgeHours) * time.Hour,
		TopN:           cfg.Feeds.TopN,
		FetchesPerHour: cfg.Limits.FetchesPerHour,
	})

	items, err := agg.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect news: %w", err)
	}
	if len(items) == 0 {
		lgr.Printf("[INFO] no fresh news to deliver")
		return nil
	}

	delivered, err := sink.Deliver(ctx, items)
	if err != nil {
		return fmt.Errorf("deliver news: %w", err)
	}
	lgr.Printf("[INFO] delivered %d of %d news items", delivered, len(items))
	return nil
}

// runScripts scans the spreadsheet for approved items and writes scripts
func runScripts(ctx context.Context, cfg *config.Config, limiter *quota.Limiter, sink delivery.Sink) error {
	store, ok := sink.(*delivery.Sheets)
	if !ok {
		return fmt.Errorf("scripts mode needs delivery.method sheets, got %s", cfg.Delivery.Method)
	}

	writer := scriptgen.NewWriter(scriptgen.Config{
		Endpoint:      cfg.Scripts.Endpoint,
		APIKey:        cfg.Scripts.APIKey,
		Model:         cfg.Scripts.Model,
		MaxTokens:     cfg.Scripts.MaxTokens,
		Timeout:       cfg.Scripts.Timeout,
		ScriptsPerDay: cfg.Limits.ScriptsPerDay,
	}, limiter, content.NewExtractor(cfg.Scripts.Timeout))

	if _, err := scriptgen.ProcessApprovals(ctx, store, writer); err != nil {
		return fmt.Errorf("process approvals: %w", err)
	}
	return nil
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	secrets := make([]string, 0, len(secs))
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
