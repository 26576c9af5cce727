package inspection

import (
	"maps"
	"slices"
	"strings"

	"github.com/vbonduro/sitecheck/internal/domain"
)

// CategorySurveyStatus returns the effective status of a category. Exempt
// categories always read as conducted.
func (e *Engine) CategorySurveyStatus(categoryID string) domain.SurveyStatus {
	if e.catalog.Rules().IsToggleExempt(categoryID) {
		return domain.DefaultSurveyStatus
	}
	if s, ok := e.agg.CategorySurveyStatus[categoryID]; ok {
		return s
	}
	return domain.DefaultSurveyStatus
}

// SetCategorySurveyStatus overwrites the stored status without checking the
// reason. Unknown and exempt categories are ignored.
func (e *Engine) SetCategorySurveyStatus(categoryID string, s domain.SurveyStatus) bool {
	if _, ok := e.catalog.Category(categoryID); !ok || e.catalog.Rules().IsToggleExempt(categoryID) {
		return false
	}
	e.agg.CategorySurveyStatus[categoryID] = cleanStatus(s)
	e.touch()
	return true
}

// CommitCategorySurveyStatus is SetCategorySurveyStatus for a finished edit:
// a not-conducted status must carry a reason.
func (e *Engine) CommitCategorySurveyStatus(categoryID string, s domain.SurveyStatus) (bool, error) {
	if err := requireReason(s); err != nil {
		return false, err
	}
	return e.SetCategorySurveyStatus(categoryID, s), nil
}

func (e *Engine) ItemSurveyStatus(itemID string) domain.SurveyStatus {
	if s, ok := e.agg.ItemSurveyStatus[itemID]; ok && e.catalog.Rules().HasItemSurvey(itemID) {
		return s
	}
	return domain.DefaultSurveyStatus
}

// SetItemSurveyStatus stores an item-level toggle. Only items designated for
// item-level surveys accept one.
func (e *Engine) SetItemSurveyStatus(itemID string, s domain.SurveyStatus) bool {
	if !e.catalog.Rules().HasItemSurvey(itemID) {
		return false
	}
	e.agg.ItemSurveyStatus[itemID] = cleanStatus(s)
	e.touch()
	return true
}

func (e *Engine) CommitItemSurveyStatus(itemID string, s domain.SurveyStatus) (bool, error) {
	if err := requireReason(s); err != nil {
		return false, err
	}
	return e.SetItemSurveyStatus(itemID, s), nil
}

func cleanStatus(s domain.SurveyStatus) domain.SurveyStatus {
	if s.Conducted {
		return domain.DefaultSurveyStatus
	}
	s.NotConductedReason = strings.TrimSpace(s.NotConductedReason)
	return s
}

func requireReason(s domain.SurveyStatus) error {
	if !s.Complete() {
		return invalid("notConductedReason", "required when the survey was not conducted")
	}
	return nil
}

// GroupExists returns the stored existence of a group. known is false when
// nothing was stored.
func (e *Engine) GroupExists(groupID string) (exists, known bool) {
	g, ok := e.agg.GroupExistence[groupID]
	return g.Exists, ok
}

func (e *Engine) SetGroupExistence(groupID string, exists bool) bool {
	if _, ok := e.catalog.Group(groupID); !ok {
		return false
	}
	e.agg.GroupExistence[groupID] = domain.GroupExistence{Exists: exists}
	e.touch()
	return true
}

func (e *Engine) FinishMaterials(groupID string) []string {
	return slices.Clone(e.agg.FinishMaterials[groupID])
}

// SetFinishMaterials replaces the selected finish materials of a group. An
// empty selection clears it, which re-enables every material.
func (e *Engine) SetFinishMaterials(groupID string, tags []string) (bool, error) {
	g, ok := e.catalog.Group(groupID)
	if !ok {
		return false, nil
	}
	selected := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(g.FinishMaterials) > 0 && !slices.Contains(g.FinishMaterials, t) {
			return false, invalid("finishMaterials", "%q is not a finish material of %s", t, groupID)
		}
		selected = append(selected, t)
	}
	slices.Sort(selected)
	selected = slices.Compact(selected)
	if len(selected) == 0 {
		delete(e.agg.FinishMaterials, groupID)
	} else {
		e.agg.FinishMaterials[groupID] = selected
	}
	e.touch()
	return true, nil
}

// Options returns a copy of the options stored for itemID.
func (e *Engine) Options(itemID string) map[string]domain.OptionValue {
	opts := e.agg.Options[itemID]
	if len(opts) == 0 {
		return nil
	}
	out := make(map[string]domain.OptionValue, len(opts))
	for label, v := range opts {
		if v.IsMulti() {
			out[label] = domain.MultiOption(v.Values()...)
		} else {
			out[label] = domain.SingleOption(v.String())
		}
	}
	return out
}

func (e *Engine) Option(itemID, label string) (domain.OptionValue, bool) {
	v, ok := e.agg.Options[itemID][label]
	return v, ok
}

// SetOption stores an option answer under label for itemID.
func (e *Engine) SetOption(itemID, label string, v domain.OptionValue) (bool, error) {
	if _, ok := e.catalog.Item(itemID); !ok {
		return false, nil
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return false, invalid("label", "must not be blank")
	}
	opts := maps.Clone(e.agg.Options[itemID])
	if opts == nil {
		opts = make(map[string]domain.OptionValue)
	}
	opts[label] = v
	e.agg.Options[itemID] = opts
	e.touch()
	return true, nil
}

func (e *Engine) ClearOption(itemID, label string) bool {
	opts := e.agg.Options[itemID]
	if _, ok := opts[label]; !ok {
		return false
	}
	opts = maps.Clone(opts)
	delete(opts, label)
	if len(opts) == 0 {
		delete(e.agg.Options, itemID)
	} else {
		e.agg.Options[itemID] = opts
	}
	e.touch()
	return true
}

func (e *Engine) MaintenanceStatus(id string) domain.MaintenanceStatus {
	if s, ok := e.agg.MaintenanceStatus[id]; ok {
		return s
	}
	return domain.DefaultMaintenanceStatus
}

// SetMaintenanceStatus records a maintenance answer. Blank parts read as
// unset. Ids outside the maintenance list are ignored.
func (e *Engine) SetMaintenanceStatus(id string, s domain.MaintenanceStatus) (bool, error) {
	if s.Need == "" {
		s.Need = domain.NeedUnset
	}
	if s.Condition == "" {
		s.Condition = domain.ConditionUnset
	}
	if !s.Need.Valid() {
		return false, invalid("need", "unknown value %q", s.Need)
	}
	if !s.Condition.Valid() {
		return false, invalid("condition", "unknown value %q", s.Condition)
	}
	if !e.catalog.Rules().IsMaintenanceID(id) {
		return false, nil
	}
	e.agg.MaintenanceStatus[id] = s
	e.touch()
	return true, nil
}
