package domain

import (
	"slices"
	"time"
)

// Grade is a severity grade. Higher priority is more severe.
type Grade string

const (
	GradeA  Grade = "a"
	GradeB1 Grade = "b1"
	GradeB2 Grade = "b2"
	GradeC  Grade = "c"
)

// Grades lists severity grades from mildest to most severe.
var Grades = []Grade{GradeA, GradeB1, GradeB2, GradeC}

// Priority returns 1..4 for known grades and 0 otherwise.
func (g Grade) Priority() int {
	switch g {
	case GradeA:
		return 1
	case GradeB1:
		return 2
	case GradeB2:
		return 3
	case GradeC:
		return 4
	}
	return 0
}

func (g Grade) Valid() bool { return g.Priority() > 0 }

// Defect reports whether the grade triggers defect-photo capture.
func (g Grade) Defect() bool { return g == GradeB2 || g == GradeC }

type ManagementGrade string

const (
	ManagementA ManagementGrade = "A"
	ManagementB ManagementGrade = "B"
	ManagementC ManagementGrade = "C"
)

func (g ManagementGrade) Valid() bool {
	return g == ManagementA || g == ManagementB || g == ManagementC
}

type LegalFlag string

const (
	LegalConcern   LegalFlag = "concern"
	LegalNoConcern LegalFlag = "no_concern"
)

func (f LegalFlag) Valid() bool { return f == LegalConcern || f == LegalNoConcern }

// SurveyMethods are the accepted survey-method tags.
var SurveyMethods = []string{"visual", "palpation", "hammering", "measurement", "binoculars"}

type RebarPitch struct {
	PitchMM float64 `json:"pitchMm"`
}

// MaxHammerReadings is the number of rebound readings one test holds.
const MaxHammerReadings = 9

type SchmidtHammer struct {
	Readings []float64 `json:"readings"`
	Result   *float64  `json:"result,omitempty"`
}

// Evaluation is one recorded answer for an item. Which value fields are
// populated depends on the item's kind.
type Evaluation struct {
	ID              string          `json:"id"`
	Grade           Grade           `json:"grade,omitempty"`
	ManagementGrade ManagementGrade `json:"managementGrade,omitempty"`
	Legal           LegalFlag       `json:"legal,omitempty"`
	LegalDetail     string          `json:"legalDetail,omitempty"`
	Text            string          `json:"text,omitempty"`
	Memo            string          `json:"memo,omitempty"`
	SurveyMethods   []string        `json:"surveyMethods,omitempty"`
	RebarPitch      *RebarPitch     `json:"rebarPitch,omitempty"`
	SchmidtHammer   *SchmidtHammer  `json:"schmidtHammer,omitempty"`
	HasPhoto        bool            `json:"hasPhoto"`
	IsSimilar       bool            `json:"isSimilar"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (e Evaluation) Clone() Evaluation {
	out := e
	out.SurveyMethods = slices.Clone(e.SurveyMethods)
	if e.RebarPitch != nil {
		p := *e.RebarPitch
		out.RebarPitch = &p
	}
	if e.SchmidtHammer != nil {
		h := SchmidtHammer{Readings: slices.Clone(e.SchmidtHammer.Readings)}
		if e.SchmidtHammer.Result != nil {
			r := *e.SchmidtHammer.Result
			h.Result = &r
		}
		out.SchmidtHammer = &h
	}
	return out
}
