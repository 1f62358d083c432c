package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hyperjump/digest/internal/cli"
	"github.com/hyperjump/digest/internal/config"
	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/internal/notify"
	"github.com/hyperjump/digest/internal/pipeline"
	"github.com/hyperjump/digest/internal/publish"
	"github.com/hyperjump/digest/internal/sheets"
	"github.com/hyperjump/digest/internal/storage"
	"github.com/hyperjump/digest/pkg/utils"
)

type runOptions struct {
	keywords     []string
	source       string
	author       string
	estimateOnly bool
	yes          bool
	output       string
	noPublish    bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "digest <file> -k keyword [-k keyword...]",
		Short: "Extract keyword passages from a document into a spreadsheet",
		Long: `digest reads a PDF, EPUB or plain text document, finds the passages that mention
the given keywords, tags and deduplicates them, and appends them to a Google
sheet, a local workbook and the local ledger. Token usage is estimated and kept
within the configured budget.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, g, o, args[0])
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&o.keywords, "keywords", "k", nil, "keyword to extract (repeatable)")
	f.StringVarP(&o.source, "source", "s", "", "source name recorded on entries (default: file name)")
	f.StringVarP(&o.author, "author", "a", "", "author recorded on entries")
	f.BoolVar(&o.estimateOnly, "estimate-only", false, "estimate token usage and exit")
	f.BoolVar(&o.yes, "yes", false, "run even when the estimate exceeds the budget, without asking")
	f.StringVar(&o.output, "output", "text", "output format: text or json")
	f.BoolVar(&o.noPublish, "no-publish", false, "print results without writing sinks or sending notifications")
	_ = cmd.MarkFlagRequired("keywords")
	return cmd
}

// pipelineSettings maps the config onto run tunables.
func pipelineSettings(cfg *config.Config) pipeline.Settings {
	return pipeline.Settings{
		Budget:           cfg.Budget.MaxTokenBudget,
		WarningThreshold: cfg.Budget.TokenWarningThreshold,
		TokensPerWord:    cfg.Budget.TokensPerWord,
		MaxSegmentChars:  cfg.Extract.MaxSegmentChars,
		FuzzyThreshold:   cfg.Match.FuzzyThreshold,
		Transpositions:   cfg.Match.TranspositionsOrDefault(),
		Rules:            cfg.Categories,
		DefaultCategory:  cfg.DefaultCategory,
	}
}

// newGate picks the budget gate. With --yes the pre-pass gate approves without asking.
func newGate(cfg *config.Config, yes bool, prompt pipeline.Approver) pipeline.Gate {
	if cfg.Budget.Gate == config.GateLive {
		return pipeline.LiveGate{}
	}
	if yes {
		return pipeline.PrePassGate{Approver: cli.AutoApprover{}}
	}
	return pipeline.PrePassGate{Approver: prompt}
}

// sheetsAPIOptions replaces the OAuth token source when set.
var sheetsAPIOptions []option.ClientOption

// collaborators are the sinks of a run and the one sink whose ids count as already written.
type collaborators struct {
	ledger   *storage.Ledger
	sinks    []publish.Sink
	primary  publish.PriorSource
	sheetURL string
}

func (c *collaborators) Close() {
	if c.ledger != nil {
		_ = c.ledger.Close()
	}
}

// openCollaborators opens the ledger and, when configured, the Google sheet and local workbook.
// Sinks are ordered so that the spreadsheet count is the one reported as added. Prior state
// comes from the first sink only: the Google sheet, else the workbook, else the ledger. The
// others skip ids they already hold, so entries that missed the primary are offered again.
func openCollaborators(ctx context.Context, cfg *config.Config, logger *zap.Logger, apiOpts ...option.ClientOption) (*collaborators, error) {
	ledger, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	c := &collaborators{ledger: ledger}

	if cfg.Sheets.Enabled() {
		if len(apiOpts) == 0 {
			ts, err := sheets.TokenSource(ctx, cfg.Sheets.CredentialsPath, cfg.Sheets.TokenPath)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("google sheets credentials: %w", err)
			}
			apiOpts = append(apiOpts, option.WithTokenSource(ts))
		}
		limiter := sheets.NewRateLimiter(cfg.Sheets.RequestsPerSecond,
			sheets.WithMaxBackoff(publishTimeout(cfg)/2))
		client, err := sheets.NewClient(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName,
			sheets.WithLogger(logger),
			sheets.WithRateLimiter(limiter),
			sheets.WithAPIOptions(apiOpts...),
		)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.sinks = append(c.sinks, client)
		c.sheetURL = client.URL()
	}
	if cfg.Workbook.Path != "" {
		wb := sheets.NewWorkbook(cfg.Workbook.Path, cfg.Workbook.SheetName)
		c.sinks = append(c.sinks, wb)
	}
	c.sinks = append(c.sinks, ledger)
	c.primary = c.sinks[0].(publish.PriorSource)
	return c, nil
}

func publishTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Publish.TimeoutSeconds) * time.Second
}

func runDigest(cmd *cobra.Command, g *globalOptions, o *runOptions, path string) error {
	format, err := cli.ParseOutputFormat(o.output)
	if err != nil {
		return err
	}
	cfg, resolvedConfigPath, err := loadConfig(g.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || g.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", debugMode))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc := models.NewDocument(path, o.source, o.author)
	info, err := os.Stat(doc.Path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}

	collab := &collaborators{}
	if !o.estimateOnly {
		collab, err = openCollaborators(ctx, cfg, logger, sheetsAPIOptions...)
		if err != nil {
			return err
		}
		defer collab.Close()
	}

	var sinks []publish.Sink
	var notifier publish.Notifier
	if !o.noPublish {
		sinks = collab.sinks
		notifier = notify.NewWebhook(
			notify.Channel{URL: cfg.Notify.ResultsWebhook, ThreadID: cfg.Notify.ResultsThreadID},
			notify.Channel{URL: cfg.Notify.TokenWebhook, ThreadID: cfg.Notify.TokenThreadID},
			notify.WithLogger(logger),
			notify.WithHTTPClient(&http.Client{Timeout: publishTimeout(cfg)}),
		)
	}
	pub := publish.New(sinks, notifier,
		publish.WithLogger(logger),
		publish.WithTimeout(publishTimeout(cfg)),
		publish.WithSheetURL(collab.sheetURL),
	)

	reporter := cli.Reporter(cli.NopReporter{})
	if format == cli.OutputText {
		reporter = cli.NewReporter(cmd.ErrOrStderr())
	}
	prompt := cli.PromptApprover{Stdout: os.Stderr}
	popts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithGate(newGate(cfg, o.yes, prompt)),
		pipeline.WithObserver(cli.NewRunObserver(ctx, reporter, pub, logger)),
	}
	if collab.primary != nil {
		popts = append(popts, pipeline.WithPriorState(pub.Prior(collab.primary)))
	}
	p := pipeline.New(pipelineSettings(cfg), popts...)

	if !o.estimateOnly {
		_ = pub.NotifyResults(ctx, notify.FormatStart(doc, o.keywords))
	}
	res, err := p.Run(ctx, pipeline.Request{Document: doc, Keywords: o.keywords, EstimateOnly: o.estimateOnly})
	if err != nil {
		_ = pub.NotifyResults(ctx, notify.FormatFailure(doc, err))
		return err
	}

	out := cmd.OutOrStdout()
	if o.estimateOnly {
		_ = pub.NotifyTokens(ctx, notify.FormatEstimate(doc, info.Size(), res.Summary.FinalTokenEstimate))
		return cli.WriteEstimate(out, &res.Summary, info.Size(), format)
	}

	if !o.noPublish {
		report := pub.Publish(ctx, res)
		logger.Info("published", zap.Int("added", report.Added), zap.Strings("failed", report.Failed))
		if err := collab.ledger.RecordRun(ctx, res.Summary); err != nil {
			logger.Warn("record run failed", zap.String("run_id", res.Summary.RunID), zap.Error(err))
		}
	}
	return cli.WriteResult(out, res, format)
}
