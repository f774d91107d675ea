package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/vaultlynx/internal/analyzer"
	"github.com/bl4ck0w1/vaultlynx/internal/breach"
	"github.com/bl4ck0w1/vaultlynx/internal/domain"
	"github.com/bl4ck0w1/vaultlynx/internal/reporting"
	"github.com/bl4ck0w1/vaultlynx/internal/session"
	"github.com/bl4ck0w1/vaultlynx/internal/strength"
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

// App holds one fully wired analysis pipeline.
type App struct {
	Config   *models.Config
	Logger   *logrus.Logger
	Metrics  *utils.MetricsCollector
	Analyzer *analyzer.Analyzer
	Session  *session.Session
	Reports  *reporting.ReportGenerator
}

// Options override parts of the pipeline, mostly for tests.
type Options struct {
	Breach   analyzer.BreachChecker
	Strength analyzer.StrengthEvaluator
}

func New(cfg *models.Config, logger *logrus.Logger, opts Options) (*App, error) {
	if cfg == nil {
		cfg = models.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	var metrics *utils.MetricsCollector
	if cfg.Metrics.Enabled {
		metrics = utils.NewMetricsCollector(cfg.Metrics.RuntimeMetrics)
		if err := metrics.RegisterDefaults(); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	evaluator := opts.Strength
	if evaluator == nil {
		evaluator = strength.NewEvaluator(nil, logger)
	}

	// A typed nil would defeat the analyzer's "no breach checker" check.
	var checker analyzer.BreachChecker
	switch {
	case opts.Breach != nil:
		checker = opts.Breach
	case cfg.Breach.Enabled:
		client := breach.NewClient(breach.ClientConfig{
			Endpoint:  cfg.Breach.Endpoint,
			UserAgent: cfg.Breach.UserAgent,
			Padding:   cfg.Breach.Padding,
			Timeout:   cfg.Breach.Timeout,
		}, logger, metrics)
		checker = breach.NewBatchChecker(client, breach.BatchConfig{
			BatchSize:  cfg.Breach.BatchSize,
			Stagger:    cfg.Breach.Stagger,
			BatchPause: cfg.Breach.BatchPause,
		}, logger)
	default:
		logger.Warn("breach checks disabled, leak pass will report no leaks")
	}

	engine := analyzer.New(domain.NewExtractor(), evaluator, checker, analyzer.Config{
		UseItemContext: cfg.Analysis.UseItemContext,
	}, logger, metrics)

	reports, err := reporting.NewReportGenerator(reporting.ReportConfig{
		OutputDir:    cfg.Global.OutputDir,
		IncludeItems: cfg.Analysis.IncludeItems,
		TopDomains:   cfg.Analysis.TopDomains,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report generator: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Analyzer: engine,
		Session:  session.New(engine, logger, metrics),
		Reports:  reports,
	}, nil
}

// Report builds a report from the session's current state.
func (a *App) Report(snap session.Snapshot) (*models.SecurityReport, error) {
	if !snap.HasResults() {
		return nil, fmt.Errorf("no vault has been analyzed")
	}
	return a.Reports.GenerateReport(reporting.ReportInput{
		ID:             snap.ID,
		Source:         snap.Source,
		Items:          snap.Items,
		Summary:        *snap.Summary,
		LeakCheckError: snap.LeakCheckError,
	}), nil
}
