package reporting

import (
	"math"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

const twoFactorTarget = 50

// Penalty weights applied to the strong-password ratio.
var scoreWeights = struct {
	duplicate, leaked, critical, empty float64
}{duplicate: 20, leaked: 30, critical: 30, empty: 20}

// ComputeSecurityScore condenses a summary into a 0..100 score. An empty vault scores 0.
func ComputeSecurityScore(summary models.VaultAnalysisSummary) int {
	total := float64(summary.TotalItems)
	if total == 0 {
		return 0
	}
	st := summary.PasswordStats
	score := float64(strongCount(summary))/total*100 -
		float64(st.DuplicateCount)/total*scoreWeights.duplicate -
		float64(st.LeakedCount)/total*scoreWeights.leaked -
		float64(st.CriticalCount)/total*scoreWeights.critical -
		float64(st.EmptyCount)/total*scoreWeights.empty
	return clamp(roundHalfUp(score), 0, 100)
}

func ComputeCategoryScores(summary models.VaultAnalysisSummary) models.CategoryScores {
	total := float64(summary.TotalItems)
	if total == 0 {
		return models.CategoryScores{}
	}
	st := summary.PasswordStats
	return models.CategoryScores{
		Strength:   roundHalfUp(float64(strongCount(summary)) / total * 100),
		Uniqueness: max(0, 100-roundHalfUp(float64(st.DuplicateCount)/total*100)),
		Breach:     max(0, 100-roundHalfUp(float64(st.LeakedCount)/total*100)),
		TwoFactor:  roundHalfUp(float64(st.WithTOTPCount) / total * 100),
	}
}

func ScoreLabel(score int) string {
	switch {
	case score >= 80:
		return models.ScoreLabelExcellent
	case score >= 60:
		return models.ScoreLabelGood
	case score >= 40:
		return models.ScoreLabelFair
	case score >= 20:
		return models.ScoreLabelWeak
	default:
		return models.ScoreLabelCritical
	}
}

// BuildRecommendations lists remediation steps, most urgent first.
func BuildRecommendations(summary models.VaultAnalysisSummary, categories models.CategoryScores) []models.Recommendation {
	st := summary.PasswordStats
	recs := []models.Recommendation{}

	if st.CriticalCount > 0 {
		recs = append(recs, models.Recommendation{
			ID:            "rec_critical_passwords",
			Title:         "Change critical passwords",
			Description:   "Prioritize replacing the passwords classified as critical.",
			Priority:      models.PriorityHigh,
			AffectedItems: st.CriticalCount,
		})
	}
	if st.LeakedCount > 0 {
		recs = append(recs, models.Recommendation{
			ID:            "rec_leaked_passwords",
			Title:         "Change leaked passwords",
			Description:   "Replace passwords that appear in known data breaches right away.",
			Priority:      models.PriorityHigh,
			AffectedItems: st.LeakedCount,
		})
	}
	if st.DuplicateCount > 0 {
		recs = append(recs, models.Recommendation{
			ID:            "rec_duplicate_passwords",
			Title:         "Eliminate duplicate passwords",
			Description:   "Use a unique password for every service so one breach cannot compromise several accounts.",
			Priority:      models.PriorityMedium,
			AffectedItems: st.DuplicateCount,
		})
	}
	if summary.TotalItems > 0 && categories.TwoFactor < twoFactorTarget {
		recs = append(recs, models.Recommendation{
			ID:            "rec_enable_2fa",
			Title:         "Enable two-factor authentication",
			Description:   "Add two-factor authentication to your most important accounts.",
			Priority:      models.PriorityMedium,
			AffectedItems: summary.TotalItems - st.WithTOTPCount,
		})
	}
	return recs
}

func strongCount(summary models.VaultAnalysisSummary) int {
	st := summary.PasswordStats
	return summary.TotalItems - st.WeakCount - st.CriticalCount - st.EmptyCount
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
