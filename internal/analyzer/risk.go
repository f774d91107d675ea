package analyzer

import (
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

const (
	MinPasswordLength  = 6
	WeakScoreThreshold = 2
	StrongScore        = 4
	moderateScore      = 3
)

// ClassifyRisk maps password presence, length and strength to a risk level.
// The checks run in a fixed order: a short password is Critical whatever its score.
func ClassifyRisk(hasPassword bool, length int, strength *models.PasswordStrength) models.RiskLevel {
	switch {
	case !hasPassword:
		return models.RiskEmpty
	case length < MinPasswordLength:
		return models.RiskCritical
	case strength != nil && strength.Score < WeakScoreThreshold:
		return models.RiskCritical
	case strength != nil && strength.Score < StrongScore:
		if strength.Score == moderateScore {
			return models.RiskModerate
		}
		return models.RiskWeak
	default:
		return models.RiskStrong
	}
}

// EscalateRisk moves a level one step toward Critical. It never downgrades.
func EscalateRisk(level models.RiskLevel) models.RiskLevel {
	switch level {
	case models.RiskStrong:
		return models.RiskModerate
	case models.RiskModerate:
		return models.RiskWeak
	default:
		return models.RiskCritical
	}
}

// ApplyLeak marks item as breached. Escalation happens only on the first application,
// so repeating it leaves the item unchanged.
func ApplyLeak(item *models.AnalyzedItem, count int) {
	if count <= 0 {
		return
	}
	if !item.IsLeaked {
		item.RiskLevel = EscalateRisk(item.RiskLevel)
	}
	item.IsLeaked = true
	item.LeakCount = count
}
