package strength

import (
	"github.com/nbutton23/zxcvbn-go"
)

type Match struct {
	Pattern    string
	Token      string
	Dictionary string
}

type ScoreResult struct {
	Score   int
	Matches []Match
}

type Scorer interface {
	Score(password string, userInputs []string) (ScoreResult, error)
}

// ZxcvbnScorer scores passwords with the zxcvbn pattern matcher.
type ZxcvbnScorer struct{}

func (ZxcvbnScorer) Score(password string, userInputs []string) (ScoreResult, error) {
	r := zxcvbn.PasswordStrength(password, userInputs)
	out := ScoreResult{Score: r.Score, Matches: make([]Match, 0, len(r.MatchSequence))}
	for _, m := range r.MatchSequence {
		out.Matches = append(out.Matches, Match{
			Pattern:    m.Pattern,
			Token:      m.Token,
			Dictionary: m.DictionaryName,
		})
	}
	return out, nil
}
