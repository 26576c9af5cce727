package inspection

import (
	"math"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
)

// Progress counts answered items against enabled items.
type Progress struct {
	Done    int  `json:"done"`
	Total   int  `json:"total"`
	Skipped bool `json:"skipped,omitempty"`
}

type CategoryProgress struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Progress
}

type TotalProgress struct {
	Done              int                `json:"done"`
	Total             int                `json:"total"`
	Percent           int                `json:"percent"`
	SkippedCategories int                `json:"skippedCategories"`
	Categories        []CategoryProgress `json:"categories"`
}

// CategoryProgressOf computes progress for one category. A skipped category
// reports 0/0. Unknown categories report 0/0 without being skipped.
func CategoryProgressOf(c *checklist.Catalog, a *domain.Aggregate, categoryID string) Progress {
	cat, ok := c.Category(categoryID)
	if !ok {
		return Progress{}
	}
	if categorySkipped(c, a, categoryID) {
		return Progress{Skipped: true}
	}
	var p Progress
	for _, it := range cat.Items {
		if _, excluded := Excluded(c, a, it.ID); excluded {
			continue
		}
		p.Total++
		if len(a.Evaluations[it.ID]) > 0 {
			p.Done++
		}
	}
	return p
}

// TotalProgressOf sums progress over all categories in checklist order.
func TotalProgressOf(c *checklist.Catalog, a *domain.Aggregate) TotalProgress {
	out := TotalProgress{Categories: make([]CategoryProgress, 0, len(c.Categories()))}
	for _, cat := range c.Categories() {
		p := CategoryProgressOf(c, a, cat.ID)
		if p.Skipped {
			out.SkippedCategories++
		}
		out.Done += p.Done
		out.Total += p.Total
		out.Categories = append(out.Categories, CategoryProgress{CategoryID: cat.ID, Name: cat.Name, Progress: p})
	}
	out.Percent = percent(out.Done, out.Total)
	return out
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
