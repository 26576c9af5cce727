package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// SurveyStatus is the conducted/not-conducted toggle of a category or item.
type SurveyStatus struct {
	Conducted          bool   `json:"conducted"`
	NotConductedReason string `json:"notConductedReason,omitempty"`
}

// DefaultSurveyStatus applies whenever no status has been stored.
var DefaultSurveyStatus = SurveyStatus{Conducted: true}

// Complete reports whether a not-conducted status carries a reason.
func (s SurveyStatus) Complete() bool {
	return s.Conducted || strings.TrimSpace(s.NotConductedReason) != ""
}

type GroupExistence struct {
	Exists bool `json:"exists"`
}

type MaintenanceNeed string

const (
	NeedUnset       MaintenanceNeed = "unset"
	NeedRequired    MaintenanceNeed = "required"
	NeedNotRequired MaintenanceNeed = "not_required"
)

func (n MaintenanceNeed) Valid() bool {
	return n == NeedUnset || n == NeedRequired || n == NeedNotRequired
}

type MaintenanceCondition string

const (
	ConditionUnset   MaintenanceCondition = "unset"
	ConditionGood    MaintenanceCondition = "good"
	ConditionNoIssue MaintenanceCondition = "no_issue"
)

func (c MaintenanceCondition) Valid() bool {
	return c == ConditionUnset || c == ConditionGood || c == ConditionNoIssue
}

type MaintenanceStatus struct {
	Need      MaintenanceNeed      `json:"need"`
	Condition MaintenanceCondition `json:"condition"`
}

// DefaultMaintenanceStatus applies whenever no status has been stored.
var DefaultMaintenanceStatus = MaintenanceStatus{Need: NeedUnset, Condition: ConditionUnset}

// Set reports whether both parts of the status have been answered.
func (m MaintenanceStatus) Set() bool {
	return m.Need != NeedUnset && m.Need != "" && m.Condition != ConditionUnset && m.Condition != ""
}

// OptionValue is a per-item option answer: either one string or a list.
type OptionValue struct {
	single string
	multi  []string
	isList bool
}

func SingleOption(v string) OptionValue { return OptionValue{single: v} }

func MultiOption(vs ...string) OptionValue {
	return OptionValue{multi: slices.Clone(vs), isList: true}
}

func (v OptionValue) IsMulti() bool { return v.isList }

// String returns the single value, or the list joined with commas.
func (v OptionValue) String() string {
	if v.isList {
		return strings.Join(v.multi, ",")
	}
	return v.single
}

func (v OptionValue) Values() []string {
	if v.isList {
		return slices.Clone(v.multi)
	}
	return []string{v.single}
}

// Equals reports whether the option holds exactly s as a single value, or
// contains s as a list.
func (v OptionValue) Equals(s string) bool {
	if v.isList {
		return slices.Contains(v.multi, s)
	}
	return v.single == s
}

func (v OptionValue) clone() OptionValue {
	v.multi = slices.Clone(v.multi)
	return v
}

func (v OptionValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		if v.multi == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.multi)
	}
	return json.Marshal(v.single)
}

func (v *OptionValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*v = MultiOption(list...)
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return err
	}
	*v = SingleOption(s)
	return nil
}
