package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var ErrItemFailed = errors.New("vault item analysis failed")

type DomainExtractor interface {
	BaseDomain(raw string) string
}

type StrengthEvaluator interface {
	Evaluate(password string, userInputs []string) *models.PasswordStrength
}

type BreachChecker interface {
	BatchCheck(ctx context.Context, candidates []models.PasswordCandidate, progress func(done, total int)) (map[int]int, error)
}

type ProgressFunc func(done, total int)

type Config struct {
	// UseItemContext feeds item name, username and domain to the scorer as known words.
	UseItemContext bool
	Clock          func() time.Time
}

type Analyzer struct {
	domains  DomainExtractor
	strength StrengthEvaluator
	breach   BreachChecker
	cfg      Config
	logger   *logrus.Logger
	metrics  *utils.MetricsCollector
}

func New(domains DomainExtractor, strength StrengthEvaluator, breach BreachChecker, cfg Config, logger *logrus.Logger, metrics *utils.MetricsCollector) *Analyzer {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Analyzer{
		domains:  domains,
		strength: strength,
		breach:   breach,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Analyze runs the synchronous pass over export. It never fails: invalid records are
// counted and dropped, and a record that cannot be processed is skipped.
func (a *Analyzer) Analyze(export *models.VaultExport, progress ProgressFunc) models.AnalysisResult {
	result := models.AnalysisResult{Items: []models.AnalyzedItem{}}
	if export == nil || export.Items == nil {
		return result
	}
	start := time.Now()

	invalid := export.InvalidItems
	valid := make([]models.VaultRecord, 0, len(export.Items))
	for _, rec := range export.Items {
		if rec.Valid() {
			valid = append(valid, rec)
		} else {
			invalid++
		}
	}
	if invalid > 0 {
		a.logger.WithField("invalid_items", invalid).Warn("skipping vault records without id or name")
		a.metrics.IncCounter(utils.MetricItemsInvalid, float64(invalid), nil)
	}
	result.Summary.InvalidItems = invalid
	if len(valid) == 0 {
		return result
	}

	now := a.cfg.Clock()
	skipped := 0
	for i, rec := range valid {
		item, err := a.analyzeItem(rec, now)
		if err != nil {
			skipped++
			a.logger.WithError(err).WithField("item_id", rec.ID).Warn("skipping vault item")
		} else {
			result.Items = append(result.Items, item)
		}
		if progress != nil {
			progress(i+1, len(valid))
		}
	}
	if skipped > 0 {
		a.metrics.IncCounter(utils.MetricItemsSkipped, float64(skipped), nil)
	}

	markDuplicates(result.Items, rand.Uint64())

	result.Summary = Summarize(result.Items)
	result.Summary.InvalidItems = invalid
	result.Summary.SkippedItems = skipped

	for _, it := range result.Items {
		a.metrics.IncCounter(utils.MetricItemsAnalyzed, 1, prometheus.Labels{"risk": string(it.RiskLevel)})
	}
	a.metrics.ObserveSince(utils.MetricAnalysisDurationSec, start, prometheus.Labels{"pass": "sync"})
	a.logger.WithFields(logrus.Fields{
		"items":      result.Summary.TotalItems,
		"invalid":    invalid,
		"skipped":    skipped,
		"duplicates": result.Summary.PasswordStats.DuplicateCount,
		"critical":   result.Summary.PasswordStats.CriticalCount,
	}).Info("vault analysis complete")
	return result
}

func (a *Analyzer) analyzeItem(rec models.VaultRecord, now time.Time) (item models.AnalyzedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrItemFailed, r)
		}
	}()

	norm := Normalize(rec, now)
	pw := norm.Password()

	item = models.AnalyzedItem{VaultRecord: norm}
	item.BaseDomain = a.domains.BaseDomain(norm.PrimaryURI())
	item.PasswordStrength = a.strength.Evaluate(pw, a.userInputs(norm, item.BaseDomain))
	item.PasswordAgeDays = PasswordAgeDays(norm.RevisionDate, now)
	item.HasTOTP = norm.TOTP() != ""
	item.PasswordLength = utf8.RuneCountInString(pw)
	item.RiskLevel = ClassifyRisk(pw != "", item.PasswordLength, item.PasswordStrength)
	return item, nil
}

func (a *Analyzer) userInputs(rec models.VaultRecord, domain string) []string {
	if !a.cfg.UseItemContext {
		return nil
	}
	var inputs []string
	for _, s := range []string{rec.DisplayName(), rec.Username(), domain} {
		if s != "" && s != models.UnknownDomain {
			inputs = append(inputs, strings.ToLower(s))
		}
	}
	return inputs
}

// Normalize returns a copy of rec with defaults filled in. rec itself is left untouched.
func Normalize(rec models.VaultRecord, now time.Time) models.VaultRecord {
	out := rec.Clone()
	if out.Name == nil || strings.TrimSpace(*out.Name) == "" {
		name := fmt.Sprintf("Unnamed Item [%s]", idPrefix(out.ID, 8))
		out.Name = &name
	}
	if out.Login == nil {
		out.Login = &models.Login{URIs: []models.LoginURI{}}
	}
	stamp := now.UTC().Format(isoMillis)
	if out.RevisionDate == "" {
		out.RevisionDate = stamp
	}
	if out.CreationDate == "" {
		out.CreationDate = stamp
	}
	if out.Type == 0 {
		out.Type = 1
	}
	return out
}

func idPrefix(id string, n int) string {
	if utf8.RuneCountInString(id) <= n {
		return id
	}
	return string([]rune(id)[:n])
}

// PasswordAgeDays returns whole days elapsed since revision, or -1 when the date
// cannot be parsed or lies in the future.
func PasswordAgeDays(revision string, now time.Time) int {
	t, ok := parseTimestamp(revision)
	if !ok {
		return -1
	}
	diff := now.Sub(t)
	if diff < 0 {
		return -1
	}
	return int(diff / (24 * time.Hour))
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func markDuplicates(items []models.AnalyzedItem, seed uint64) {
	freq := make(map[string]int, len(items))
	for _, it := range items {
		if pw := it.Password(); pw != "" {
			freq[pw]++
		}
	}
	for i := range items {
		pw := items[i].Password()
		if pw == "" || freq[pw] < 2 {
			continue
		}
		items[i].IsDuplicate = true
		items[i].DuplicateGroup = fmt.Sprintf("%016x", xxh3.HashStringSeed(pw, seed))
	}
}

// AnalyzeLeaks cross-checks every item that has a password against the breach corpus.
// It returns a new slice; items is not modified. Lookup failures are counted in
// LeakResult.Errors and leave the item as it was.
func (a *Analyzer) AnalyzeLeaks(ctx context.Context, items []models.AnalyzedItem, progress ProgressFunc) (models.LeakResult, error) {
	out := models.LeakResult{Items: models.CloneItems(items)}
	if out.Items == nil {
		out.Items = []models.AnalyzedItem{}
	}

	candidates := make([]models.PasswordCandidate, 0, len(out.Items))
	for i, it := range out.Items {
		if pw := it.Password(); pw != "" {
			candidates = append(candidates, models.PasswordCandidate{Password: pw, Index: i})
		}
	}
	if len(candidates) == 0 || a.breach == nil {
		return out, nil
	}

	start := time.Now()
	counts, err := a.breach.BatchCheck(ctx, candidates, progress)
	for _, c := range candidates {
		count, ok := counts[c.Index]
		if !ok {
			continue
		}
		out.Checked++
		switch {
		case count > 0:
			ApplyLeak(&out.Items[c.Index], count)
			out.LeakedCount++
		case count < 0:
			out.Errors++
		}
	}
	a.metrics.ObserveSince(utils.MetricAnalysisDurationSec, start, prometheus.Labels{"pass": "leaks"})

	entry := a.logger.WithFields(logrus.Fields{
		"checked": out.Checked,
		"leaked":  out.LeakedCount,
		"errors":  out.Errors,
	})
	if err != nil {
		entry.WithError(err).Warn("breach check pass interrupted")
		return out, err
	}
	entry.Info("breach check pass complete")
	return out, nil
}
