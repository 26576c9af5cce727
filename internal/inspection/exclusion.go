package inspection

import (
	"slices"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
)

// Reason names why an item is excluded from evaluation and progress.
type Reason string

const (
	ReasonCategoryNotConducted     Reason = "category_not_conducted"
	ReasonItemNotConducted         Reason = "item_not_conducted"
	ReasonGroupAbsent              Reason = "group_absent"
	ReasonFinishMaterialUnselected Reason = "finish_material_unselected"
	ReasonOptionNotApplicable      Reason = "option_not_applicable"
)

type exclusionRule struct {
	reason  Reason
	applies func(c *checklist.Catalog, a *domain.Aggregate, categoryID string, it checklist.Item) bool
}

// exclusionRules are evaluated in order; the first match is the reported
// reason.
var exclusionRules = []exclusionRule{
	{ReasonCategoryNotConducted, categoryNotConducted},
	{ReasonItemNotConducted, itemNotConducted},
	{ReasonGroupAbsent, groupAbsent},
	{ReasonFinishMaterialUnselected, finishMaterialUnselected},
	{ReasonOptionNotApplicable, optionNotApplicable},
}

func categoryNotConducted(c *checklist.Catalog, a *domain.Aggregate, categoryID string, _ checklist.Item) bool {
	return categorySkipped(c, a, categoryID)
}

func itemNotConducted(c *checklist.Catalog, a *domain.Aggregate, _ string, it checklist.Item) bool {
	if !c.Rules().HasItemSurvey(it.ID) {
		return false
	}
	s, ok := a.ItemSurveyStatus[it.ID]
	return ok && !s.Conducted
}

func groupAbsent(c *checklist.Catalog, a *domain.Aggregate, _ string, it checklist.Item) bool {
	if it.GroupID == "" || c.Rules().IsLegacyGroup(it.GroupID) {
		return false
	}
	g, ok := a.GroupExistence[it.GroupID]
	return ok && !g.Exists
}

func finishMaterialUnselected(_ *checklist.Catalog, a *domain.Aggregate, _ string, it checklist.Item) bool {
	if it.FinishMaterial == "" || it.GroupID == "" {
		return false
	}
	selected := a.FinishMaterials[it.GroupID]
	return len(selected) > 0 && !slices.Contains(selected, it.FinishMaterial)
}

func optionNotApplicable(c *checklist.Catalog, a *domain.Aggregate, _ string, it checklist.Item) bool {
	gate := c.Rules().OptionGate
	if gate == nil || it.ID != gate.TargetItemID {
		return false
	}
	v, ok := a.Options[gate.SourceItemID][gate.Label]
	return ok && v.Equals(gate.Value)
}

func categorySkipped(c *checklist.Catalog, a *domain.Aggregate, categoryID string) bool {
	if c.Rules().IsToggleExempt(categoryID) {
		return false
	}
	s, ok := a.CategorySurveyStatus[categoryID]
	return ok && !s.Conducted
}

// Exclusions lists every rule that excludes itemID, in rule order. Unknown
// items are never excluded.
func Exclusions(c *checklist.Catalog, a *domain.Aggregate, itemID string) []Reason {
	it, ok := c.Item(itemID)
	if !ok {
		return nil
	}
	categoryID, _ := c.CategoryOf(itemID)
	var out []Reason
	for _, r := range exclusionRules {
		if r.applies(c, a, categoryID, it) {
			out = append(out, r.reason)
		}
	}
	return out
}

// Excluded reports whether itemID is disabled and, if so, the first reason.
func Excluded(c *checklist.Catalog, a *domain.Aggregate, itemID string) (Reason, bool) {
	it, ok := c.Item(itemID)
	if !ok {
		return "", false
	}
	categoryID, _ := c.CategoryOf(itemID)
	for _, r := range exclusionRules {
		if r.applies(c, a, categoryID, it) {
			return r.reason, true
		}
	}
	return "", false
}
