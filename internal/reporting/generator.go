package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

type ReportGenerator struct {
	formatters  map[string]Formatter
	logger      *logrus.Logger
	mu          sync.RWMutex
	config      ReportConfig
	templateMgr *TemplateManager
	clock       func() time.Time
}

type Formatter interface {
	Format(report *models.SecurityReport) ([]byte, error)
	FileExtension() string
}

type ReportConfig struct {
	OutputDir     string `yaml:"output_dir" json:"output_dir"`
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	IncludeItems  bool   `yaml:"include_items" json:"include_items"`
	TopDomains    int    `yaml:"top_domains" json:"top_domains"`
	Compress      bool   `yaml:"compress" json:"compress"`
	TemplateDir   string `yaml:"template_dir" json:"template_dir"`
}

// ReportInput is everything a report is built from.
type ReportInput struct {
	ID             string
	Source         string
	Items          []models.AnalyzedItem
	Summary        models.VaultAnalysisSummary
	LeakCheckError string
}

func NewReportGenerator(config ReportConfig, logger *logrus.Logger) (*ReportGenerator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if config.DefaultFormat == "" {
		config.DefaultFormat = models.ReportFormatText
	}
	if err := models.ValidateReportFormat(config.DefaultFormat); err != nil {
		return nil, err
	}
	if config.TopDomains <= 0 {
		config.TopDomains = DefaultTopDomains
	}

	rg := &ReportGenerator{
		formatters:  make(map[string]Formatter),
		logger:      logger,
		config:      config,
		templateMgr: NewTemplateManager(),
		clock:       time.Now,
	}
	if config.TemplateDir != "" {
		if err := rg.templateMgr.LoadDir(config.TemplateDir); err != nil {
			return nil, fmt.Errorf("failed to load report templates: %w", err)
		}
	}

	rg.RegisterFormatter(models.ReportFormatText, &TextFormatter{templates: rg.templateMgr})
	rg.RegisterFormatter(models.ReportFormatJSON, &JSONFormatter{})
	rg.RegisterFormatter(models.ReportFormatYAML, &YAMLFormatter{})
	return rg, nil
}

func (rg *ReportGenerator) RegisterFormatter(name string, formatter Formatter) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.formatters[name] = formatter
}

func (rg *ReportGenerator) SupportedFormats() []string {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	names := make([]string, 0, len(rg.formatters))
	for k := range rg.formatters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// GenerateReport derives scores, distributions and recommendations. Risk and age
// distributions are computed from the items; counters come from the summary.
func (rg *ReportGenerator) GenerateReport(in ReportInput) *models.SecurityReport {
	rg.mu.RLock()
	cfg := rg.config
	rg.mu.RUnlock()

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	score := ComputeSecurityScore(in.Summary)
	categories := ComputeCategoryScores(in.Summary)

	report := &models.SecurityReport{
		ID:               id,
		Source:           in.Source,
		GeneratedAt:      rg.clock().UTC(),
		Score:            score,
		ScoreLabel:       ScoreLabel(score),
		Categories:       categories,
		Recommendations:  BuildRecommendations(in.Summary, categories),
		TopDomains:       TopDomains(in.Items, cfg.TopDomains),
		RiskDistribution: RiskDistribution(in.Items),
		AgeDistribution:  AgeDistribution(in.Items),
		Summary:          in.Summary,
		LeakCheckError:   in.LeakCheckError,
	}
	if cfg.IncludeItems {
		report.Items = models.RedactSecrets(in.Items)
	}

	rg.logger.WithFields(logrus.Fields{
		"report_id": id,
		"score":     score,
		"label":     report.ScoreLabel,
	}).Debug("report generated")
	return report
}

func (rg *ReportGenerator) Render(w io.Writer, report *models.SecurityReport, format string) error {
	formatter, err := rg.formatter(format)
	if err != nil {
		return err
	}
	data, err := formatter.Format(report)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func (rg *ReportGenerator) formatter(format string) (Formatter, error) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	if format == "" {
		format = rg.config.DefaultFormat
	}
	format = strings.ToLower(strings.TrimSpace(format))
	formatter, exists := rg.formatters[format]
	if !exists {
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	return formatter, nil
}

// ExportReport writes the report to path, or into the output directory under a
// generated name when path is empty. A .gz suffix, or the compress setting,
// gzips the file.
func (rg *ReportGenerator) ExportReport(report *models.SecurityReport, format, path string) (string, error) {
	formatter, err := rg.formatter(format)
	if err != nil {
		return "", err
	}
	data, err := formatter.Format(report)
	if err != nil {
		return "", fmt.Errorf("failed to format report: %w", err)
	}

	if path == "" {
		rg.mu.RLock()
		cfg := rg.config
		rg.mu.RUnlock()
		path = filepath.Join(cfg.OutputDir, generateFilename(report, formatter.FileExtension()))
		if cfg.Compress {
			path += ".gz"
		}
	}

	if err := utils.WriteMaybeGzip(path, data); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	rg.logger.WithField("path", path).Info("report exported")
	return path, nil
}

func generateFilename(report *models.SecurityReport, ext string) string {
	tstamp := report.GeneratedAt.Format("20060102_150405")
	source := strings.TrimSuffix(filepath.Base(report.Source), filepath.Ext(report.Source))
	if source == "" || source == "." {
		source = "vault"
	}
	return fmt.Sprintf("vaultlynx_%s_%s.%s", sanitizeFilename(source), tstamp, ext)
}

func sanitizeFilename(s string) string {
	var out []rune
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

type TextFormatter struct {
	templates *TemplateManager
}

func (f *TextFormatter) Format(report *models.SecurityReport) ([]byte, error) {
	tpl, ok := f.templates.Get(TextReportTemplate)
	if !ok {
		return nil, fmt.Errorf("template not found: %s", TextReportTemplate)
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	if err := tpl.Execute(tw, report); err != nil {
		return nil, err
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *TextFormatter) FileExtension() string { return "txt" }

type JSONFormatter struct{}

func (JSONFormatter) Format(report *models.SecurityReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (JSONFormatter) FileExtension() string { return "json" }

type YAMLFormatter struct{}

func (YAMLFormatter) Format(report *models.SecurityReport) ([]byte, error) {
	return yaml.Marshal(report)
}

func (YAMLFormatter) FileExtension() string { return "yaml" }
