package checklist

// Kind is the evaluation kind an item is answered with.
type Kind string

const (
	KindSeverity      Kind = "severity"
	KindManagement    Kind = "management"
	KindLegal         Kind = "legal"
	KindText          Kind = "text"
	KindRebarPitch    Kind = "rebar_pitch"
	KindSchmidtHammer Kind = "schmidt_hammer"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSeverity, KindManagement, KindLegal, KindText, KindRebarPitch, KindSchmidtHammer:
		return true
	}
	return false
}

// Graded reports whether evaluations of this kind carry a severity grade and
// are therefore subject to the non-regression rule.
func (k Kind) Graded() bool {
	return k == KindSeverity || k == KindRebarPitch || k == KindSchmidtHammer
}

type Item struct {
	ID                   string `yaml:"id" json:"id"`
	No                   int    `yaml:"no" json:"no"`
	Name                 string `yaml:"name" json:"name"`
	Kind                 Kind   `yaml:"kind" json:"kind"`
	GroupID              string `yaml:"group,omitempty" json:"groupId,omitempty"`
	FinishMaterial       string `yaml:"finish_material,omitempty" json:"finishMaterialKey,omitempty"`
	SurveyMethodRequired bool   `yaml:"survey_method_required,omitempty" json:"surveyMethodRequired,omitempty"`
}

type Category struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Items []Item `yaml:"items" json:"items"`
}

// Group names a cross-cutting sub-grouping. FinishMaterials, when present, is
// the set of tags a selection for this group may contain.
type Group struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	FinishMaterials []string `yaml:"finish_materials,omitempty" json:"finishMaterials,omitempty"`
}
