package inspection

import (
	"math"
	"slices"
	"strings"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
)

// EvaluationInput is a caller's answer for one item. Only the fields relevant
// to the item's kind are read; the rest are ignored.
type EvaluationInput struct {
	Grade           domain.Grade           `json:"grade,omitempty"`
	ManagementGrade domain.ManagementGrade `json:"managementGrade,omitempty"`
	Legal           domain.LegalFlag       `json:"legal,omitempty"`
	LegalDetail     string                 `json:"legalDetail,omitempty"`
	Text            string                 `json:"text,omitempty"`
	Memo            string                 `json:"memo,omitempty"`
	SurveyMethods   []string               `json:"surveyMethods,omitempty"`
	PitchMM         float64                `json:"pitchMm,omitempty"`
	Readings        []float64              `json:"readings,omitempty"`
}

// kindRule validates an input for one evaluation kind and copies the
// accepted value into the record.
type kindRule interface {
	validate(it checklist.Item, in EvaluationInput) error
	apply(in EvaluationInput, ev *domain.Evaluation)
}

func ruleFor(kind checklist.Kind) kindRule {
	switch kind {
	case checklist.KindSeverity:
		return severityRule{}
	case checklist.KindManagement:
		return managementRule{}
	case checklist.KindLegal:
		return legalRule{}
	case checklist.KindText:
		return textRule{}
	case checklist.KindRebarPitch:
		return rebarPitchRule{}
	case checklist.KindSchmidtHammer:
		return schmidtRule{}
	}
	return nil
}

type severityRule struct{}

func (severityRule) validate(it checklist.Item, in EvaluationInput) error {
	if !in.Grade.Valid() {
		return invalid("grade", "one of a, b1, b2, c is required")
	}
	return validateSurveyMethods(it, in.SurveyMethods)
}

func (severityRule) apply(in EvaluationInput, ev *domain.Evaluation) {
	ev.Grade = in.Grade
	ev.SurveyMethods = normalizeMethods(in.SurveyMethods)
}

type managementRule struct{}

func (managementRule) validate(_ checklist.Item, in EvaluationInput) error {
	if !in.ManagementGrade.Valid() {
		return invalid("managementGrade", "one of A, B, C is required")
	}
	return nil
}

func (managementRule) apply(in EvaluationInput, ev *domain.Evaluation) {
	ev.ManagementGrade = in.ManagementGrade
}

type legalRule struct{}

func (legalRule) validate(_ checklist.Item, in EvaluationInput) error {
	if !in.Legal.Valid() {
		return invalid("legal", "one of concern, no_concern is required")
	}
	return nil
}

func (legalRule) apply(in EvaluationInput, ev *domain.Evaluation) {
	ev.Legal = in.Legal
	ev.LegalDetail = strings.TrimSpace(in.LegalDetail)
}

type textRule struct{}

func (textRule) validate(_ checklist.Item, in EvaluationInput) error {
	if strings.TrimSpace(in.Text) == "" {
		return invalid("text", "must not be blank")
	}
	return nil
}

func (textRule) apply(in EvaluationInput, ev *domain.Evaluation) {
	ev.Text = strings.TrimSpace(in.Text)
}

type rebarPitchRule struct{}

func (rebarPitchRule) validate(it checklist.Item, in EvaluationInput) error {
	if !in.Grade.Valid() {
		return invalid("grade", "one of a, b1, b2, c is required")
	}
	if in.PitchMM <= 0 || math.IsNaN(in.PitchMM) || math.IsInf(in.PitchMM, 0) {
		return invalid("pitchMm", "must be a positive number")
	}
	return validateSurveyMethods(it, in.SurveyMethods)
}

func (rebarPitchRule) apply(in EvaluationInput, ev *domain.Evaluation) {
	ev.Grade = in.Grade
	ev.RebarPitch = &domain.RebarPitch{PitchMM: in.PitchMM}
	ev.SurveyMethods = normalizeMethods(in.SurveyMethods)
}

type schmidtRule struct{}

func (schmidtRule) validate(it checklist.Item, in EvaluationInput) error {
	if !in.Grade.Valid() {
		return invalid("grade", "one of a, b1, b2, c is required")
	}
	if len(in.Readings) > domain.MaxHammerReadings {
		return invalid("readings", "at most %d readings", domain.MaxHammerReadings)
	}
	nonZero := 0
	for _, r := range in.Readings {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return invalid("readings", "readings must be non-negative numbers")
		}
		if r != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		return invalid("readings", "at least one non-zero reading is required")
	}
	return validateSurveyMethods(it, in.SurveyMethods)
}

func (schmidtRule) apply(in EvaluationInput, ev *domain.Evaluation) {
	ev.Grade = in.Grade
	ev.SurveyMethods = normalizeMethods(in.SurveyMethods)
	h := &domain.SchmidtHammer{Readings: slices.Clone(in.Readings)}
	if result, ok := HammerResult(in.Readings); ok {
		h.Result = &result
	}
	ev.SchmidtHammer = h
}

// HammerResult derives the estimated strength from rebound readings. Zero
// readings are treated as blank. It returns false when no reading is set.
func HammerResult(readings []float64) (float64, bool) {
	var sum float64
	n := 0
	for _, r := range readings {
		if r == 0 {
			continue
		}
		sum += r
		n++
	}
	if n == 0 {
		return 0, false
	}
	v := 1.27*(sum/float64(n)) - 18.0
	return math.Round(v*100) / 100, true
}

func validateSurveyMethods(it checklist.Item, methods []string) error {
	for _, m := range methods {
		if !slices.Contains(domain.SurveyMethods, m) {
			return invalid("surveyMethods", "unknown survey method %q", m)
		}
	}
	if it.SurveyMethodRequired && len(methods) == 0 {
		return invalid("surveyMethods", "item %s requires at least one survey method", it.ID)
	}
	return nil
}

// normalizeMethods returns the methods deduplicated in their canonical order.
func normalizeMethods(methods []string) []string {
	if len(methods) == 0 {
		return nil
	}
	out := make([]string, 0, len(methods))
	for _, m := range domain.SurveyMethods {
		if slices.Contains(methods, m) {
			out = append(out, m)
		}
	}
	return out
}
