package analyzer

import (
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

// Summarize aggregates items. Averages are 0 when nothing qualifies.
func Summarize(items []models.AnalyzedItem) models.VaultAnalysisSummary {
	var (
		s                  models.VaultAnalysisSummary
		scoreSum, scoreCnt int
		lengthSum, lenCnt  int
	)
	s.TotalItems = len(items)
	st := &s.PasswordStats

	for _, it := range items {
		switch it.RiskLevel {
		case models.RiskEmpty:
			st.EmptyCount++
		case models.RiskCritical:
			st.CriticalCount++
		case models.RiskWeak:
			st.WeakCount++
		case models.RiskModerate:
			st.ModerateCount++
		case models.RiskStrong:
			st.StrongCount++
		}
		if it.IsDuplicate {
			st.DuplicateCount++
		}
		if it.IsLeaked {
			st.LeakedCount++
		}
		if it.HasTOTP {
			st.WithTOTPCount++
		}
		if it.PasswordStrength != nil {
			scoreSum += it.PasswordStrength.Score
			scoreCnt++
		}
		if it.Password() != "" {
			lengthSum += it.PasswordLength
			lenCnt++
		}
	}

	if scoreCnt > 0 {
		st.AverageStrengthScore = float64(scoreSum) / float64(scoreCnt)
	}
	if lenCnt > 0 {
		st.AverageLength = float64(lengthSum) / float64(lenCnt)
	}
	return s
}
