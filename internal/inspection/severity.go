package inspection

import (
	"slices"

	"github.com/vbonduro/sitecheck/internal/domain"
)

// worstOf returns the index of the most severe graded evaluation in evs.
// Among several records of the worst grade the first inserted wins.
func worstOf(evs []domain.Evaluation) (int, bool) {
	best, idx := 0, -1
	for i, ev := range evs {
		if p := ev.Grade.Priority(); p > best {
			best, idx = p, i
		}
	}
	return idx, idx >= 0
}

// gradesBelow lists the grades strictly milder than g, mildest first.
func gradesBelow(g domain.Grade) []domain.Grade {
	out := []domain.Grade{}
	for _, candidate := range domain.Grades {
		if candidate.Priority() < g.Priority() {
			out = append(out, candidate)
		}
	}
	return out
}

// hasDefect reports whether any record other than skip carries a defect grade.
func hasDefect(evs []domain.Evaluation, skip int) bool {
	for i, ev := range evs {
		if i != skip && ev.Grade.Defect() {
			return true
		}
	}
	return false
}

// without returns evs minus the record at skip. A negative skip returns evs.
func without(evs []domain.Evaluation, skip int) []domain.Evaluation {
	if skip < 0 || skip >= len(evs) {
		return evs
	}
	return slices.Delete(slices.Clone(evs), skip, skip+1)
}

// checkRegression rejects g when it is milder than the worst grade among evs.
func checkRegression(evs []domain.Evaluation, g domain.Grade) error {
	idx, ok := worstOf(evs)
	if !ok {
		return nil
	}
	worst := evs[idx].Grade
	if g.Priority() < worst.Priority() {
		return &regressionError{attempted: g, worst: worst}
	}
	return nil
}

type regressionError struct {
	attempted domain.Grade
	worst     domain.Grade
}

func (e *regressionError) Error() string {
	return "grade " + string(e.attempted) + " is milder than recorded grade " + string(e.worst)
}

func (e *regressionError) Unwrap() error { return ErrSeverityRegression }
