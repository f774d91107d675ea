package strength

import (
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

const (
	errorFeedback = "Error analyzing password."
	errorWarning  = "Scoring library error."
	unknownCrack  = "unknown"
)

var crackTimeLabels = map[int]string{
	0: "instant",
	1: "seconds/minutes",
	2: "hours/days",
	3: "months/years",
	4: "decades/centuries+",
}

type Evaluator struct {
	scorer Scorer
	logger *logrus.Logger
}

func NewEvaluator(scorer Scorer, logger *logrus.Logger) *Evaluator {
	if scorer == nil {
		scorer = ZxcvbnScorer{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{scorer: scorer, logger: logger}
}

func CrackTimeLabel(score int) string {
	if label, ok := crackTimeLabels[score]; ok {
		return label
	}
	return unknownCrack
}

// Degraded is the result reported when the scorer cannot rate a password.
func Degraded() *models.PasswordStrength {
	fb, warn := errorFeedback, errorWarning
	return &models.PasswordStrength{
		Score:            0,
		Feedback:         &fb,
		Suggestions:      []string{},
		Warning:          &warn,
		CrackTimeDisplay: unknownCrack,
	}
}

// Evaluate never panics and never fails: an empty password yields nil, a scorer
// failure yields Degraded().
func (e *Evaluator) Evaluate(password string, userInputs []string) (out *models.PasswordStrength) {
	if password == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("password scorer panicked, reporting degraded strength")
			out = Degraded()
		}
	}()

	res, err := e.scorer.Score(password, userInputs)
	if err != nil {
		e.logger.WithError(err).Warn("password scorer failed, reporting degraded strength")
		return Degraded()
	}

	fb := buildFeedback(res.Score, res.Matches)
	ps := &models.PasswordStrength{
		Score:            res.Score,
		Suggestions:      fb.suggestions,
		CrackTimeDisplay: CrackTimeLabel(res.Score),
	}
	if ps.Suggestions == nil {
		ps.Suggestions = []string{}
	}
	if fb.warning != "" {
		w, f := fb.warning, fb.warning
		ps.Warning = &w
		ps.Feedback = &f
	}
	return ps
}
