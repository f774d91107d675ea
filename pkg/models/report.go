package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	ScoreLabelExcellent = "Excellent"
	ScoreLabelGood      = "Good"
	ScoreLabelFair      = "Fair"
	ScoreLabelWeak      = "Weak"
	ScoreLabelCritical  = "Critical"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	ReportFormatText = "text"
	ReportFormatJSON = "json"
	ReportFormatYAML = "yaml"

	AgeBucketRecent  = "<90d"
	AgeBucketAging   = "90d-1y"
	AgeBucketStale   = ">1y"
	AgeBucketUnknown = "unknown"
)

var allowedFormats = map[string]bool{ReportFormatText: true, ReportFormatJSON: true, ReportFormatYAML: true}

type CategoryScores struct {
	Strength   int `json:"strength" yaml:"strength"`
	Uniqueness int `json:"uniqueness" yaml:"uniqueness"`
	Breach     int `json:"breach" yaml:"breach"`
	TwoFactor  int `json:"twoFactor" yaml:"two_factor"`
}

type Recommendation struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title" yaml:"title"`
	Description   string `json:"description" yaml:"description"`
	Priority      string `json:"priority" yaml:"priority"`
	AffectedItems int    `json:"affectedItems" yaml:"affected_items"`
}

type DomainCount struct {
	Domain string `json:"domain" yaml:"domain"`
	Count  int    `json:"count" yaml:"count"`
}

type RiskCount struct {
	Level RiskLevel `json:"level" yaml:"level"`
	Count int       `json:"count" yaml:"count"`
}

type AgeBucket struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Count  int    `json:"count" yaml:"count"`
}

// SecurityReport is the rendered outcome of one analysis. RiskDistribution counts
// leaked passwords as critical, while Score and Categories use the strength-only
// counters in Summary.
type SecurityReport struct {
	ID               string               `json:"id" yaml:"id"`
	Source           string               `json:"source" yaml:"source"`
	GeneratedAt      time.Time            `json:"generatedAt" yaml:"generated_at"`
	Score            int                  `json:"score" yaml:"score"`
	ScoreLabel       string               `json:"scoreLabel" yaml:"score_label"`
	Categories       CategoryScores       `json:"categories" yaml:"categories"`
	Recommendations  []Recommendation     `json:"recommendations" yaml:"recommendations"`
	TopDomains       []DomainCount        `json:"topDomains" yaml:"top_domains"`
	RiskDistribution []RiskCount          `json:"riskDistribution" yaml:"risk_distribution"`
	AgeDistribution  []AgeBucket          `json:"ageDistribution" yaml:"age_distribution"`
	Summary          VaultAnalysisSummary `json:"summary" yaml:"summary"`
	LeakCheckError   string               `json:"leakCheckError,omitempty" yaml:"leak_check_error,omitempty"`
	Items            []AnalyzedItem       `json:"items,omitempty" yaml:"items,omitempty"`
}

func ValidateReportFormat(format string) error {
	f := strings.ToLower(strings.TrimSpace(format))
	if !allowedFormats[f] {
		return fmt.Errorf("unsupported report format %q (want text|json|yaml)", format)
	}
	return nil
}
