package analysis

import "math"

// LetterScore is the graded result of one capture. Every field is in [0, 100].
type LetterScore struct {
	Alignment int `json:"alignment"`
	Form      int `json:"form"`
	Overall   int `json:"overall"`
}

// NewLetterScore rounds the raw alignment and form scores and derives Overall from
// the rounded values, so Overall always equals Overall(Alignment, Form).
func NewLetterScore(alignment, form float64) LetterScore {
	a, f := roundScore(alignment), roundScore(form)
	return LetterScore{Alignment: a, Form: f, Overall: Overall(a, f)}
}

// Overall is round(0.4*alignment + 0.6*form). In tenths the sum 4a+6f is even, so
// it never lands on .5 and integer rounding is exact.
func Overall(alignment, form int) int {
	return (AlignmentWeightTenths*alignment + FormWeightTenths*form + 5) / 10
}

// Grade buckets an overall score the way the feedback overlay colors it.
type Grade int

const (
	GradePoor Grade = iota
	GradeFair
	GradeGood
)

// Grade thresholds
const (
	GoodThreshold = 70
	FairThreshold = 50
)

// Grade returns the feedback bucket of the score.
func (s LetterScore) Grade() Grade {
	switch {
	case s.Overall >= GoodThreshold:
		return GradeGood
	case s.Overall >= FairThreshold:
		return GradeFair
	default:
		return GradePoor
	}
}

// Feedback messages shown with a score
const (
	PassingFeedback   = "Great job!"
	KeepGoingFeedback = "Keep practicing!"
)

// Passing reports whether the score reaches the good grade.
func (s LetterScore) Passing() bool {
	return s.Grade() == GradeGood
}

// Feedback is the short message a learner sees next to the score.
func (s LetterScore) Feedback() string {
	if s.Passing() {
		return PassingFeedback
	}
	return KeepGoingFeedback
}

func (g Grade) String() string {
	return [...]string{"poor", "fair", "good"}[g]
}

func roundScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
