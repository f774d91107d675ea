package strength

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

type fakeScorer struct {
	result ScoreResult
	err    error
	panics bool
	calls  int
}

func (f *fakeScorer) Score(password string, userInputs []string) (ScoreResult, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func TestEvaluateEmptyPassword(t *testing.T) {
	scorer := &fakeScorer{}
	e := NewEvaluator(scorer, utils.NopLogger())
	assert.Nil(t, e.Evaluate("", nil))
	assert.Zero(t, scorer.calls)
}

func TestEvaluateCrackTimeTable(t *testing.T) {
	want := map[int]string{
		0: "instant",
		1: "seconds/minutes",
		2: "hours/days",
		3: "months/years",
		4: "decades/centuries+",
		7: "unknown",
	}
	for score, label := range want {
		e := NewEvaluator(&fakeScorer{result: ScoreResult{Score: score}}, utils.NopLogger())
		got := e.Evaluate("irrelevant", nil)
		require.NotNil(t, got)
		assert.Equal(t, score, got.Score)
		assert.Equal(t, label, got.CrackTimeDisplay)
	}
}

func TestEvaluateScorerFailureDegrades(t *testing.T) {
	for name, scorer := range map[string]*fakeScorer{
		"error": {err: errors.New("bad input")},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			got := NewEvaluator(scorer, utils.NopLogger()).Evaluate("secret", nil)
			require.NotNil(t, got)
			assert.Equal(t, 0, got.Score)
			require.NotNil(t, got.Feedback)
			assert.Equal(t, "Error analyzing password.", *got.Feedback)
			require.NotNil(t, got.Warning)
			assert.Equal(t, "Scoring library error.", *got.Warning)
			assert.Empty(t, got.Suggestions)
			assert.NotNil(t, got.Suggestions)
			assert.Equal(t, "unknown", got.CrackTimeDisplay)
		})
	}
}

func TestEvaluateFeedbackFromMatches(t *testing.T) {
	tests := []struct {
		name       string
		result     ScoreResult
		warning    string
		suggestion string
	}{
		{
			name:       "common password",
			result:     ScoreResult{Score: 0, Matches: []Match{{Pattern: "dictionary", Token: "password", Dictionary: "passwords"}}},
			warning:    "This is a very common password.",
			suggestion: suggestAnotherWord,
		},
		{
			name:       "keyboard row",
			result:     ScoreResult{Score: 1, Matches: []Match{{Pattern: "spatial", Token: "qwertyui"}}},
			warning:    "Straight rows of keys are easy to guess.",
			suggestion: suggestKeyboard,
		},
		{
			name:       "repeat",
			result:     ScoreResult{Score: 0, Matches: []Match{{Pattern: "repeat", Token: "aaaaaa"}}},
			warning:    `Repeats like "aaa" are easy to guess.`,
			suggestion: suggestRepeats,
		},
		{
			name: "sequence is the longest match",
			result: ScoreResult{Score: 1, Matches: []Match{
				{Pattern: "bruteforce", Token: "x"},
				{Pattern: "sequence", Token: "abcdef"},
			}},
			warning:    "Sequences like abc or 6543 are easy to guess.",
			suggestion: suggestSequences,
		},
		{
			name:       "date",
			result:     ScoreResult{Score: 1, Matches: []Match{{Pattern: "date", Token: "19901231"}}},
			warning:    "Dates are often easy to guess.",
			suggestion: suggestDates,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewEvaluator(&fakeScorer{result: tt.result}, utils.NopLogger()).Evaluate("pw", nil)
			require.NotNil(t, got)
			require.NotNil(t, got.Warning)
			assert.Equal(t, tt.warning, *got.Warning)
			assert.Equal(t, tt.warning, *got.Feedback)
			assert.Contains(t, got.Suggestions, tt.suggestion)
		})
	}
}

func TestEvaluateStrongScoreHasNoFeedback(t *testing.T) {
	got := NewEvaluator(&fakeScorer{result: ScoreResult{Score: 4, Matches: []Match{{Pattern: "bruteforce", Token: "x"}}}}, utils.NopLogger()).Evaluate("pw", nil)
	require.NotNil(t, got)
	assert.Nil(t, got.Warning)
	assert.Nil(t, got.Feedback)
	assert.Empty(t, got.Suggestions)
}

func TestZxcvbnScorer(t *testing.T) {
	e := NewEvaluator(nil, utils.NopLogger())

	weak := e.Evaluate("password", nil)
	require.NotNil(t, weak)
	assert.LessOrEqual(t, weak.Score, 1)

	strong := e.Evaluate("correct-Horse-battery-staple-91!x", nil)
	require.NotNil(t, strong)
	assert.GreaterOrEqual(t, strong.Score, 3)
}
