package model

import "regexp"

// MaxTestNameLength is the longest test name the store accepts, in characters.
const MaxTestNameLength = 255

// catalogIDPattern matches test and question ids. It also bounds them to the
// 64 characters the store keeps.
var catalogIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidCatalogID reports whether id can name a test or question.
func ValidCatalogID(id string) bool {
	return catalogIDPattern.MatchString(id)
}

// Test is a named questionnaire.
type Test struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogDocument is the seed source for the question catalog.
type CatalogDocument struct {
	Tests []CatalogTest `json:"tests"`
}

// CatalogTest is one test of a seed document together with its questions,
// listed in presentation order.
type CatalogTest struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// SeedResult summarizes a catalog re-seed.
type SeedResult struct {
	Tests             int `json:"tests"`
	Questions         int `json:"questions"`
	PrunedAssignments int `json:"pruned_assignments"`
	PrunedAnswers     int `json:"pruned_answers"`
}
