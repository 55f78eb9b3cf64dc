// Package dataset holds the normalization, totalization and combined-view
// aggregation logic for registration-activity tables.
//
// The three categories carry different age-bucket schemas; this package is
// what makes them comparable. Every function takes a table value and returns
// a new one; inputs are never mutated.
package dataset

// Category describes one class of registration activity: which source
// columns carry its age-bucket counts and what its derived totals are named.
type Category struct {
	Name string

	// MetricCols are the expected numeric source columns, in summing order.
	// Absent columns count as zero.
	MetricCols []string

	// TotalCol is the output column for the single-category view.
	TotalCol string

	// CombinedCol is the per-category metric column in the combined view.
	CombinedCol string
}

var (
	Enrolment = Category{
		Name:        "enrolment",
		MetricCols:  []string{"age_0_5", "age_5_17", "age_18_greater"},
		TotalCol:    "total",
		CombinedCol: "enrol",
	}

	Demographic = Category{
		Name:        "demographic",
		MetricCols:  []string{"demo_age_5_17", "demo_age_17_"},
		TotalCol:    "total",
		CombinedCol: "demo",
	}

	Biometric = Category{
		Name:        "biometric",
		MetricCols:  []string{"bio_age_5_17", "bio_age_17_"},
		TotalCol:    "total",
		CombinedCol: "bio",
	}
)

// Categories lists all categories in combined-view join order.
func Categories() []Category {
	return []Category{Enrolment, Demographic, Biometric}
}

// ByName resolves a category by its Name. The second result is false for
// unknown names.
func ByName(name string) (Category, bool) {
	for _, c := range Categories() {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
