package inspection

import (
	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
)

type MissingItem struct {
	ItemID     string `json:"itemId"`
	No         int    `json:"no"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId"`
}

// MissingReason points at a not-conducted toggle that has no reason text.
type MissingReason struct {
	Scope string `json:"scope"`
	ID    string `json:"id"`
}

const (
	ScopeCategory = "category"
	ScopeItem     = "item"
)

// CompletionReport lists everything still blocking submission.
type CompletionReport struct {
	MissingItems     []MissingItem   `json:"missingItems"`
	UnsetMaintenance []string        `json:"unsetMaintenance"`
	MissingReasons   []MissingReason `json:"missingReasons"`
	Complete         bool            `json:"complete"`
}

// Completion collects enabled items without an evaluation, maintenance ids
// that are not fully answered, and not-conducted toggles lacking a reason.
func Completion(c *checklist.Catalog, a *domain.Aggregate) CompletionReport {
	r := CompletionReport{
		MissingItems:     []MissingItem{},
		UnsetMaintenance: []string{},
		MissingReasons:   []MissingReason{},
	}
	rules := c.Rules()
	for _, cat := range c.Categories() {
		if s, ok := a.CategorySurveyStatus[cat.ID]; ok && !rules.IsToggleExempt(cat.ID) && !s.Complete() {
			r.MissingReasons = append(r.MissingReasons, MissingReason{Scope: ScopeCategory, ID: cat.ID})
		}
		for _, it := range cat.Items {
			if _, excluded := Excluded(c, a, it.ID); excluded {
				continue
			}
			if len(a.Evaluations[it.ID]) == 0 {
				r.MissingItems = append(r.MissingItems, MissingItem{ItemID: it.ID, No: it.No, Name: it.Name, CategoryID: cat.ID})
			}
		}
	}
	for _, id := range rules.ItemSurveyItems {
		if s, ok := a.ItemSurveyStatus[id]; ok && !s.Complete() {
			r.MissingReasons = append(r.MissingReasons, MissingReason{Scope: ScopeItem, ID: id})
		}
	}
	for _, id := range rules.MaintenanceIDs {
		if !a.MaintenanceStatus[id].Set() {
			r.UnsetMaintenance = append(r.UnsetMaintenance, id)
		}
	}
	r.Complete = len(r.MissingItems) == 0 && len(r.UnsetMaintenance) == 0 && len(r.MissingReasons) == 0
	return r
}
