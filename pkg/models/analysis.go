package models

type RiskLevel string

const (
	RiskStrong   RiskLevel = "Strong"
	RiskModerate RiskLevel = "Moderate"
	RiskWeak     RiskLevel = "Weak"
	RiskCritical RiskLevel = "Critical"
	RiskEmpty    RiskLevel = "Empty"
)

// RiskLevels lists every level from best to worst.
var RiskLevels = []RiskLevel{RiskStrong, RiskModerate, RiskWeak, RiskCritical, RiskEmpty}

const UnknownDomain = "Unknown"

type PasswordStrength struct {
	Score            int      `json:"score" yaml:"score"`
	Feedback         *string  `json:"feedback" yaml:"feedback"`
	Suggestions      []string `json:"suggestions" yaml:"suggestions"`
	Warning          *string  `json:"warning" yaml:"warning"`
	CrackTimeDisplay string   `json:"crackTimeDisplay" yaml:"crack_time_display"`
}

type AnalyzedItem struct {
	VaultRecord `yaml:",inline"`

	BaseDomain       string            `json:"baseDomain" yaml:"base_domain"`
	PasswordStrength *PasswordStrength `json:"passwordStrength" yaml:"password_strength"`
	PasswordAgeDays  int               `json:"passwordAgeDays" yaml:"password_age_days"`
	IsLeaked         bool              `json:"isLeaked" yaml:"is_leaked"`
	LeakCount        int               `json:"leakCount" yaml:"leak_count"`
	RiskLevel        RiskLevel         `json:"riskLevel" yaml:"risk_level"`
	IsDuplicate      bool              `json:"isDuplicate" yaml:"is_duplicate"`
	DuplicateGroup   string            `json:"duplicateGroup,omitempty" yaml:"duplicate_group,omitempty"`
	HasTOTP          bool              `json:"hasTotp" yaml:"has_totp"`
	PasswordLength   int               `json:"passwordLength" yaml:"password_length"`
}

type PasswordStats struct {
	LeakedCount          int     `json:"leakedCount" yaml:"leaked_count"`
	DuplicateCount       int     `json:"duplicateCount" yaml:"duplicate_count"`
	WeakCount            int     `json:"weakCount" yaml:"weak_count"`
	CriticalCount        int     `json:"criticalCount" yaml:"critical_count"`
	EmptyCount           int     `json:"emptyCount" yaml:"empty_count"`
	ModerateCount        int     `json:"moderateCount" yaml:"moderate_count"`
	StrongCount          int     `json:"strongCount" yaml:"strong_count"`
	WithTOTPCount        int     `json:"withTotpCount" yaml:"with_totp_count"`
	AverageStrengthScore float64 `json:"averageStrengthScore" yaml:"average_strength_score"`
	AverageLength        float64 `json:"averageLength" yaml:"average_length"`
}

type VaultAnalysisSummary struct {
	TotalItems    int           `json:"totalItems" yaml:"total_items"`
	InvalidItems  int           `json:"invalidItems" yaml:"invalid_items"`
	SkippedItems  int           `json:"skippedItems" yaml:"skipped_items"`
	PasswordStats PasswordStats `json:"passwordStats" yaml:"password_stats"`
}

type AnalysisResult struct {
	Items   []AnalyzedItem       `json:"results" yaml:"results"`
	Summary VaultAnalysisSummary `json:"summary" yaml:"summary"`
}

// PasswordCandidate is one breach lookup keyed by the item's position in the analyzed slice.
type PasswordCandidate struct {
	Password string
	Index    int
}

type LeakResult struct {
	Items       []AnalyzedItem `json:"results" yaml:"results"`
	LeakedCount int            `json:"leakedCount" yaml:"leaked_count"`
	Checked     int            `json:"checked" yaml:"checked"`
	Errors      int            `json:"errors" yaml:"errors"`
}

// RedactSecrets copies items with passwords and TOTP seeds removed.
func RedactSecrets(items []AnalyzedItem) []AnalyzedItem {
	out := CloneItems(items)
	for i := range out {
		if out[i].Login != nil {
			out[i].Login.Password = nil
			out[i].Login.TOTP = nil
		}
	}
	return out
}

func CloneItems(items []AnalyzedItem) []AnalyzedItem {
	if items == nil {
		return nil
	}
	out := make([]AnalyzedItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].VaultRecord = it.VaultRecord.Clone()
		if it.PasswordStrength != nil {
			ps := *it.PasswordStrength
			ps.Feedback = cloneString(it.PasswordStrength.Feedback)
			ps.Warning = cloneString(it.PasswordStrength.Warning)
			ps.Suggestions = append(make([]string, 0, len(it.PasswordStrength.Suggestions)), it.PasswordStrength.Suggestions...)
			out[i].PasswordStrength = &ps
		}
	}
	return out
}
