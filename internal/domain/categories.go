package domain

import (
	"strings"
)

// Categories is the canonical spending taxonomy. Storage accepts an open
// vocabulary, but the planner and the expense extractor normalize onto this
// set so filters and model output stay consistent.
var Categories = []string{
	"Food",
	"Transport",
	"Entertainment",
	"Shopping",
	"Bills",
	"Health",
	"Other",
}

// categorySynonyms maps normalized free-text terms onto canonical categories.
var categorySynonyms = map[string]string{
	"food":           "Food",
	"groceries":      "Food",
	"grocery":        "Food",
	"dining":         "Food",
	"restaurant":     "Food",
	"restaurants":    "Food",
	"lunch":          "Food",
	"dinner":         "Food",
	"eating":         "Food",
	"transport":      "Transport",
	"transportation": "Transport",
	"travel":         "Transport",
	"taxi":           "Transport",
	"uber":           "Transport",
	"bus":            "Transport",
	"train":          "Transport",
	"fuel":           "Transport",
	"gas":            "Transport",
	"entertainment":  "Entertainment",
	"movies":         "Entertainment",
	"movie":          "Entertainment",
	"games":          "Entertainment",
	"streaming":      "Entertainment",
	"shopping":       "Shopping",
	"clothes":        "Shopping",
	"clothing":       "Shopping",
	"electronics":    "Shopping",
	"bills":          "Bills",
	"bill":           "Bills",
	"rent":           "Bills",
	"utilities":      "Bills",
	"electricity":    "Bills",
	"internet":       "Bills",
	"phone":          "Bills",
	"health":         "Health",
	"medical":        "Health",
	"doctor":         "Health",
	"pharmacy":       "Health",
	"medicine":       "Health",
	"gym":            "Health",
	"other":          "Other",
}

// CanonicalCategory resolves a free-text term to its canonical category name.
// The boolean is false when the term is not part of the taxonomy.
func CanonicalCategory(term string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(term))
	cat, ok := categorySynonyms[normalized]
	return cat, ok
}

// ValidCategory reports whether name is exactly one of the canonical
// categories, ignoring case and surrounding whitespace.
func ValidCategory(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, c := range Categories {
		if strings.ToLower(c) == normalized {
			return true
		}
	}
	return false
}
