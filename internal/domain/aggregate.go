// Package domain defines the per-property inspection aggregate exactly as it
// is persisted.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Aggregate is the complete inspection state of one property.
type Aggregate struct {
	PropertyID           string                            `json:"propertyId"`
	Evaluations          map[string][]Evaluation           `json:"evaluations"`
	Options              map[string]map[string]OptionValue `json:"options"`
	CategorySurveyStatus map[string]SurveyStatus           `json:"categorySurveyStatus,omitempty"`
	ItemSurveyStatus     map[string]SurveyStatus           `json:"itemSurveyStatus,omitempty"`
	GroupExistence       map[string]GroupExistence         `json:"groupExistence,omitempty"`
	FinishMaterials      map[string][]string               `json:"finishMaterials,omitempty"`
	MaintenanceStatus    map[string]MaintenanceStatus      `json:"maintenanceStatus,omitempty"`
	UpdatedAt            time.Time                         `json:"updatedAt"`
}

// NewAggregate returns the state of a property nobody has touched yet:
// nothing recorded and every survey conducted.
func NewAggregate(propertyID string, now time.Time) *Aggregate {
	a := &Aggregate{PropertyID: propertyID, UpdatedAt: now.UTC()}
	a.Normalize()
	return a
}

// Normalize allocates nil maps and drops empty evaluation lists so that
// absence and emptiness are indistinguishable.
func (a *Aggregate) Normalize() {
	if a.Evaluations == nil {
		a.Evaluations = make(map[string][]Evaluation)
	}
	if a.Options == nil {
		a.Options = make(map[string]map[string]OptionValue)
	}
	if a.CategorySurveyStatus == nil {
		a.CategorySurveyStatus = make(map[string]SurveyStatus)
	}
	if a.ItemSurveyStatus == nil {
		a.ItemSurveyStatus = make(map[string]SurveyStatus)
	}
	if a.GroupExistence == nil {
		a.GroupExistence = make(map[string]GroupExistence)
	}
	if a.FinishMaterials == nil {
		a.FinishMaterials = make(map[string][]string)
	}
	if a.MaintenanceStatus == nil {
		a.MaintenanceStatus = make(map[string]MaintenanceStatus)
	}
	maps.DeleteFunc(a.Evaluations, func(_ string, evs []Evaluation) bool { return len(evs) == 0 })
	maps.DeleteFunc(a.Options, func(_ string, o map[string]OptionValue) bool { return len(o) == 0 })
	maps.DeleteFunc(a.FinishMaterials, func(_ string, tags []string) bool { return len(tags) == 0 })
}

// Clone returns a deep copy that shares no memory with a.
func (a *Aggregate) Clone() *Aggregate {
	out := &Aggregate{
		PropertyID:           a.PropertyID,
		Evaluations:          make(map[string][]Evaluation, len(a.Evaluations)),
		Options:              make(map[string]map[string]OptionValue, len(a.Options)),
		CategorySurveyStatus: maps.Clone(a.CategorySurveyStatus),
		ItemSurveyStatus:     maps.Clone(a.ItemSurveyStatus),
		GroupExistence:       maps.Clone(a.GroupExistence),
		FinishMaterials:      make(map[string][]string, len(a.FinishMaterials)),
		MaintenanceStatus:    maps.Clone(a.MaintenanceStatus),
		UpdatedAt:            a.UpdatedAt,
	}
	for id, evs := range a.Evaluations {
		cp := make([]Evaluation, len(evs))
		for i, e := range evs {
			cp[i] = e.Clone()
		}
		out.Evaluations[id] = cp
	}
	for id, opts := range a.Options {
		cp := make(map[string]OptionValue, len(opts))
		for label, v := range opts {
			cp[label] = v.clone()
		}
		out.Options[id] = cp
	}
	for id, tags := range a.FinishMaterials {
		out.FinishMaterials[id] = slices.Clone(tags)
	}
	out.Normalize()
	return out
}

// ErrCodec marks an aggregate that could not be encoded or decoded.
var ErrCodec = errors.New("aggregate codec")

// Encode serialises the aggregate. Map keys are emitted in sorted order, so
// equal aggregates always encode to equal bytes.
func Encode(a *Aggregate) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode aggregate %s: %w: %w", a.PropertyID, ErrCodec, err)
	}
	return data, nil
}

func Decode(data []byte) (*Aggregate, error) {
	var a Aggregate
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode aggregate: %w: %w", ErrCodec, err)
	}
	a.Normalize()
	return &a, nil
}

// InspectionSummary is a row of the property listing.
type InspectionSummary struct {
	PropertyID string    `json:"propertyId"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
