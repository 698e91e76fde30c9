package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/config"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/bookmark"
	logpkg "github.com/kailas-cloud/stockmarks/internal/logger"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
	analysisrepo "github.com/kailas-cloud/stockmarks/internal/repository/analysis"
	analysisuc "github.com/kailas-cloud/stockmarks/internal/usecase/analysis"
	exportuc "github.com/kailas-cloud/stockmarks/internal/usecase/export"
)

var (
	flagQueries   []string
	flagOutput    string
	flagKeepGoing bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Analyze queries and write a bookmark file",
	Long: `Runs one analysis per query in-process, without a database, and writes the
merged bookmark file. Queries run in the order given; a product that several
queries classify keeps the folder from the first one.`,
	Example: `  stockmarks generate -q "apple watch" -q "iphone 16" -o bookmarks.html`,
	Args:    cobra.NoArgs,
	RunE:    runGenerate,
}

func init() {
	generateCmd.Flags().StringArrayVarP(&flagQueries, "query", "q", nil, "Search query (repeatable)")
	generateCmd.Flags().StringVarP(&flagOutput, "output", "o", bookmark.DefaultFileName, "Output file")
	generateCmd.Flags().BoolVar(&flagKeepGoing, "keep-going", false, "Skip failed queries instead of aborting")
	_ = generateCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(generateCmd)
}

// analyzer runs one analysis to completion.
type analyzer interface {
	Analyze(ctx context.Context, query string) (domanalysis.Analysis, error)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadClient(envName())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger("cli", cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	metrics.RegisterDomainMetrics()

	agg, err := buildAggregator(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("create search client: %w", err)
	}
	chain := buildClassifier(ctx, cfg, nil, logger)

	svc := analysisuc.New(agg, chain.classifier, analysisrepo.NewMemory(), logger).
		WithTimeout(time.Duration(cfg.Analysis.TimeoutSec) * time.Second).
		WithLocale(cfg.Analysis.Tag())

	linkBase := cfg.Bookmarks.LinkBaseURL
	if linkBase == "" {
		linkBase = bookmark.DefaultLinkBase
	}

	doc, err := generate(ctx, svc, flagQueries, flagKeepGoing, linkBase, logger)
	if err != nil {
		return err
	}

	if err := os.WriteFile(flagOutput, []byte(doc), 0o644); err != nil { //nolint:gosec // user-chosen output file
		return fmt.Errorf("write %s: %w", flagOutput, err)
	}
	logger.Info("Bookmark file written", zap.String("path", flagOutput), zap.Int("bytes", len(doc)))
	return nil
}

// generate analyzes each query in order and renders the completed ones.
// With keepGoing a failed query is logged and skipped; otherwise it aborts the run.
func generate(
	ctx context.Context, svc analyzer, queries []string, keepGoing bool, linkBase string, logger *zap.Logger,
) (string, error) {
	var (
		done   []domanalysis.Analysis
		failed []error
	)
	for _, q := range queries {
		a, err := svc.Analyze(ctx, q)
		if err != nil {
			if !keepGoing || ctx.Err() != nil {
				return "", fmt.Errorf("analyze %q: %w", q, err)
			}
			logger.Warn("Query skipped", zap.String("query", q), zap.Error(err))
			failed = append(failed, fmt.Errorf("%q: %w", q, err))
			continue
		}
		logger.Info("Query analyzed",
			zap.String("query", q),
			zap.String("analysis_id", a.ID()),
			zap.Int("products", a.ProductCount()),
		)
		// newest first, matching the service listing
		done = append([]domanalysis.Analysis{a}, done...)
	}

	doc, err := exportuc.Render(done, bookmark.WithLinkBase(linkBase))
	if err != nil {
		if len(failed) > 0 {
			return "", fmt.Errorf("render bookmarks: %w", errors.Join(append([]error{err}, failed...)...))
		}
		return "", fmt.Errorf("render bookmarks: %w", err)
	}
	return doc, nil
}
