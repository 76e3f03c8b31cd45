package score

import (
	"github.com/shopspring/decimal"
)

var (
	basePoints     = decimal.NewFromInt(10)
	perSecondBonus = decimal.NewFromInt(5)
)

// Submission carries everything needed to score a single answer. It is
// consumed once and never stored.
type Submission struct {
	Answer        any
	CorrectAnswer any
	TimeTaken     decimal.Decimal
	TotalTime     decimal.Decimal
}

type Result struct {
	Correct bool
	Earned  decimal.Decimal
}

// Evaluate computes the points awarded for a submission. A correct answer
// earns 10 plus 5 per second of remaining time, never less than zero; an
// incorrect answer earns nothing. Correctness is exact equality, no partial
// credit.
func Evaluate(sub Submission) Result {
	if !equal(sub.Answer, sub.CorrectAnswer) {
		return Result{Correct: false, Earned: decimal.Zero}
	}

	earned := basePoints.Add(sub.TotalTime.Sub(sub.TimeTaken).Mul(perSecondBonus))
	if earned.IsNegative() {
		earned = decimal.Zero
	}

	return Result{Correct: true, Earned: earned}
}

// equal compares two decoded JSON values. Only scalars can match; a string
// never equals a number even if they print the same.
func equal(a, b any) bool {
	switch a.(type) {
	case string, float64, bool, nil:
	default:
		return false
	}
	switch b.(type) {
	case string, float64, bool, nil:
	default:
		return false
	}

	return a == b
}
