// Package inspection is the evaluation engine: it validates and records
// answers against a checklist and derives exclusions, progress and
// completion from the recorded state. An Engine is not safe for concurrent
// use; callers serialise access per property.
package inspection

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
)

type Engine struct {
	catalog *checklist.Catalog
	agg     *domain.Aggregate
	now     func() time.Time
	newID   func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New wraps agg. A nil agg starts an empty inspection for propertyID.
func New(catalog *checklist.Catalog, propertyID string, agg *domain.Aggregate, opts ...Option) *Engine {
	e := &Engine{catalog: catalog, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	if agg == nil {
		agg = domain.NewAggregate(propertyID, e.now())
	} else {
		agg.Normalize()
	}
	e.agg = agg
	return e
}

func (e *Engine) Catalog() *checklist.Catalog { return e.catalog }

// Aggregate returns the live state. Callers must not modify it; use Snapshot
// for a copy that can leave the engine.
func (e *Engine) Aggregate() *domain.Aggregate { return e.agg }

func (e *Engine) Snapshot() *domain.Aggregate { return e.agg.Clone() }

func (e *Engine) touch() { e.agg.UpdatedAt = e.now().UTC() }

// DefectCapture describes a recorded defect whose photo still has to be
// taken. ReturnPath is filled in by the caller that routes the capture.
type DefectCapture struct {
	PropertyID   string       `json:"propertyId"`
	ItemID       string       `json:"itemId"`
	ItemName     string       `json:"itemName"`
	EvaluationID string       `json:"evaluationId"`
	Grade        domain.Grade `json:"grade"`
	IsSimilar    bool         `json:"isSimilar"`
	ReturnPath   string       `json:"returnPath,omitempty"`
}

type AddResult struct {
	Applied    bool              `json:"applied"`
	Replaced   bool              `json:"replaced"`
	Evaluation domain.Evaluation `json:"evaluation"`
	// Capture is set when the new record needs a defect photo.
	Capture *DefectCapture `json:"capture,omitempty"`
}

// AddEvaluation validates in against the item's kind and records it.
// Schmidt hammer items hold one record that is replaced on every call.
// Unknown items are ignored.
func (e *Engine) AddEvaluation(itemID string, in EvaluationInput) (AddResult, error) {
	it, ok := e.catalog.Item(itemID)
	if !ok {
		return AddResult{}, nil
	}
	rule := ruleFor(it.Kind)
	if rule == nil {
		return AddResult{}, invalid("kind", "item %s has unsupported kind %q", it.ID, it.Kind)
	}
	if err := rule.validate(it, in); err != nil {
		return AddResult{}, err
	}

	current := e.agg.Evaluations[itemID]
	replaceIdx := -1
	if it.Kind == checklist.KindSchmidtHammer && len(current) > 0 {
		replaceIdx = 0
	}
	if it.Kind.Graded() {
		// A replaced record is being edited, so it does not count as history.
		if err := checkRegression(without(current, replaceIdx), in.Grade); err != nil {
			return AddResult{}, err
		}
	}

	ev := domain.Evaluation{
		ID:        e.newID(),
		Memo:      strings.TrimSpace(in.Memo),
		CreatedAt: e.now().UTC(),
	}
	if replaceIdx >= 0 {
		prev := current[replaceIdx]
		ev.ID, ev.CreatedAt, ev.HasPhoto = prev.ID, prev.CreatedAt, prev.HasPhoto
	}
	rule.apply(in, &ev)
	ev.IsSimilar = ev.Grade.Defect() && hasDefect(current, replaceIdx)

	res := AddResult{Applied: true, Evaluation: ev.Clone()}
	if replaceIdx >= 0 {
		updated := slices.Clone(current)
		updated[replaceIdx] = ev
		e.agg.Evaluations[itemID] = updated
		res.Replaced = true
	} else {
		e.agg.Evaluations[itemID] = append(slices.Clone(current), ev)
	}
	e.touch()

	if it.Kind == checklist.KindSeverity && ev.Grade.Defect() && !ev.HasPhoto {
		res.Capture = &DefectCapture{
			PropertyID:   e.agg.PropertyID,
			ItemID:       it.ID,
			ItemName:     it.Name,
			EvaluationID: ev.ID,
			Grade:        ev.Grade,
			IsSimilar:    ev.IsSimilar,
		}
	}
	return res, nil
}

// RemoveEvaluation deletes the record at index. It reports false when the
// item or index does not exist.
func (e *Engine) RemoveEvaluation(itemID string, index int) bool {
	current := e.agg.Evaluations[itemID]
	if index < 0 || index >= len(current) {
		return false
	}
	updated := slices.Delete(slices.Clone(current), index, index+1)
	if len(updated) == 0 {
		delete(e.agg.Evaluations, itemID)
	} else {
		e.agg.Evaluations[itemID] = updated
	}
	e.touch()
	return true
}

// MarkPhoto sets hasPhoto on an evaluation. Repeated calls are harmless; the
// result reports whether the evaluation exists.
func (e *Engine) MarkPhoto(itemID, evaluationID string) bool {
	current := e.agg.Evaluations[itemID]
	i := slices.IndexFunc(current, func(ev domain.Evaluation) bool { return ev.ID == evaluationID })
	if i < 0 {
		return false
	}
	if current[i].HasPhoto {
		return true
	}
	updated := slices.Clone(current)
	updated[i].HasPhoto = true
	e.agg.Evaluations[itemID] = updated
	e.touch()
	return true
}

func (e *Engine) Evaluations(itemID string) []domain.Evaluation {
	current := e.agg.Evaluations[itemID]
	out := make([]domain.Evaluation, len(current))
	for i, ev := range current {
		out[i] = ev.Clone()
	}
	return out
}

// WorstEvaluation returns the most severe graded evaluation of itemID.
func (e *Engine) WorstEvaluation(itemID string) (domain.Evaluation, bool) {
	current := e.agg.Evaluations[itemID]
	idx, ok := worstOf(current)
	if !ok {
		return domain.Evaluation{}, false
	}
	return current[idx].Clone(), true
}

// DisabledGrades lists the grades that can no longer be added to itemID.
// Schmidt hammer items never disable a grade since adding replaces the record.
func (e *Engine) DisabledGrades(itemID string) []domain.Grade {
	if it, ok := e.catalog.Item(itemID); ok && it.Kind == checklist.KindSchmidtHammer {
		return []domain.Grade{}
	}
	worst, ok := e.WorstEvaluation(itemID)
	if !ok {
		return []domain.Grade{}
	}
	return gradesBelow(worst.Grade)
}

func (e *Engine) Exclusion(itemID string) (Reason, bool) {
	return Excluded(e.catalog, e.agg, itemID)
}

func (e *Engine) CategorySkipped(categoryID string) bool {
	return categorySkipped(e.catalog, e.agg, categoryID)
}

func (e *Engine) CategoryProgress(categoryID string) Progress {
	return CategoryProgressOf(e.catalog, e.agg, categoryID)
}

func (e *Engine) TotalProgress() TotalProgress {
	return TotalProgressOf(e.catalog, e.agg)
}

func (e *Engine) Completion() CompletionReport {
	return Completion(e.catalog, e.agg)
}

// ItemState is everything a client needs to render one item.
type ItemState struct {
	Item           checklist.Item                `json:"item"`
	CategoryID     string                        `json:"categoryId"`
	Evaluations    []domain.Evaluation           `json:"evaluations"`
	WorstGrade     domain.Grade                  `json:"worstGrade,omitempty"`
	DisabledGrades []domain.Grade                `json:"disabledGrades"`
	Excluded       bool                          `json:"excluded"`
	Reasons        []Reason                      `json:"reasons,omitempty"`
	Options        map[string]domain.OptionValue `json:"options,omitempty"`
	SurveyStatus   *domain.SurveyStatus          `json:"surveyStatus,omitempty"`
}

func (e *Engine) ItemState(itemID string) (ItemState, bool) {
	it, ok := e.catalog.Item(itemID)
	if !ok {
		return ItemState{}, false
	}
	categoryID, _ := e.catalog.CategoryOf(itemID)
	st := ItemState{
		Item:           it,
		CategoryID:     categoryID,
		Evaluations:    e.Evaluations(itemID),
		DisabledGrades: e.DisabledGrades(itemID),
		Reasons:        Exclusions(e.catalog, e.agg, itemID),
		Options:        e.Options(itemID),
	}
	if worst, ok := e.WorstEvaluation(itemID); ok {
		st.WorstGrade = worst.Grade
	}
	st.Excluded = len(st.Reasons) > 0
	if e.catalog.Rules().HasItemSurvey(itemID) {
		s := e.ItemSurveyStatus(itemID)
		st.SurveyStatus = &s
	}
	return st, true
}
