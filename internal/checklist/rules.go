package checklist

import "slices"

// OptionGate disables TargetItemID when SourceItemID's option Label is set to
// Value. Both items belong to GroupID.
type OptionGate struct {
	GroupID      string `json:"groupId"`
	SourceItemID string `json:"sourceItemId"`
	Label        string `json:"label"`
	Value        string `json:"value"`
	TargetItemID string `json:"targetItemId"`
}

// Rules carries the fixed id lists the engine consults on top of the catalog.
type Rules struct {
	// ToggleExemptCategories are always treated as conducted.
	ToggleExemptCategories []string `json:"toggleExemptCategories"`
	// ItemSurveyItems are the only items with an item-level survey toggle.
	ItemSurveyItems []string `json:"itemSurveyItems"`
	// LegacyGroups ignore the group-existence toggle.
	LegacyGroups   []string    `json:"legacyGroups"`
	OptionGate     *OptionGate `json:"optionGate,omitempty"`
	MaintenanceIDs []string    `json:"maintenanceIds"`
}

// DefaultRules returns the designations used with the embedded catalog. The
// legacy group list is kept as-is; those groups had their existence toggle
// retired and must stay enabled.
func DefaultRules() Rules {
	return Rules{
		ToggleExemptCategories: []string{"site", "management"},
		ItemSurveyItems:        []string{"structure_rebar_pitch", "structure_schmidt_hammer"},
		LegacyGroups:           []string{"fence", "retaining_wall", "parking", "bicycle_shelter"},
		OptionGate: &OptionGate{
			GroupID:      "drainage_pump",
			SourceItemID: "equipment_drainage_pump_type",
			Label:        "type",
			Value:        "not_applicable",
			TargetItemID: "equipment_drainage_pump_operation",
		},
		MaintenanceIDs: []string{"long_term_repair_plan", "repair_reserve_fund", "periodic_inspection_report"},
	}
}

func (r Rules) IsToggleExempt(categoryID string) bool {
	return slices.Contains(r.ToggleExemptCategories, categoryID)
}

func (r Rules) HasItemSurvey(itemID string) bool {
	return slices.Contains(r.ItemSurveyItems, itemID)
}

func (r Rules) IsLegacyGroup(groupID string) bool {
	return slices.Contains(r.LegacyGroups, groupID)
}

func (r Rules) IsMaintenanceID(id string) bool {
	return slices.Contains(r.MaintenanceIDs, id)
}
