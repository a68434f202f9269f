// Package archetype holds the closed enumerations of the "24 animals × 4
// elements" system and the validation policy applied to resolved triples.
//
// The package is deliberately free of I/O: it is the single source of truth
// for which animal, element, and gender-form values exist, how display labels
// map back to canonical codes, and which fields are validated strictly versus
// leniently. Services and the generation layer both validate through it so
// that a triple accepted anywhere in the system is acceptable everywhere.
package archetype

import "errors"

// Validation errors for strict fields.
var (
	// ErrInvalidAnimal indicates an animal code outside the fixed set of 24.
	ErrInvalidAnimal = errors.New("invalid animal code")

	// ErrInvalidElement indicates an element that is neither a canonical code
	// nor a known display label in any supported language.
	ErrInvalidElement = errors.New("invalid element code")
)

// Canonical element codes. The system stores the Russian labels as canonical,
// matching the historical data; display labels per language map back to them.
const (
	ElementAir   = "Воздух"
	ElementWater = "Вода"
	ElementFire  = "Огонь"
	ElementEarth = "Земля"
)

// Gender forms. Unspecified doubles as the lenient default.
const (
	GenderMale        = "male"
	GenderFemale      = "female"
	GenderUnspecified = "unspecified"
)

// Animals is the fixed enumeration of the 24 animal codes.
var Animals = []string{
	"Wolf", "Lion", "Tiger", "Lynx", "Panther", "Bear",
	"Fox", "Wolverine", "Deer", "Monkey", "Rabbit", "Buffalo",
	"Ram", "Capybara", "Elephant", "Horse", "Eagle", "Owl",
	"Raven", "Parrot", "Snake", "Crocodile", "Turtle", "Lizard",
}

// Elements is the fixed enumeration of the 4 canonical element codes.
var Elements = []string{ElementAir, ElementWater, ElementFire, ElementEarth}

// GenderForms is the fixed enumeration of the 3 gender-form codes.
var GenderForms = []string{GenderMale, GenderFemale, GenderUnspecified}

var (
	animalSet  = toSet(Animals)
	elementSet = toSet(Elements)
	genderSet  = toSet(GenderForms)
)

func toSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// IsAnimal reports whether code is one of the 24 animal codes.
func IsAnimal(code string) bool { _, ok := animalSet[code]; return ok }

// IsElement reports whether code is a canonical element code.
func IsElement(code string) bool { _, ok := elementSet[code]; return ok }

// IsGenderForm reports whether code is one of the 3 gender-form codes.
func IsGenderForm(code string) bool { _, ok := genderSet[code]; return ok }

// Triple is a resolved archetype: animal code, canonical element code, and
// gender form.
type Triple struct {
	Animal     string `json:"animal"`
	Element    string `json:"element"`
	GenderForm string `json:"genderForm"`
}

// Policy names the asymmetric validation contract: Strict fields fail hard on
// out-of-enum values, Lenient fields are coerced to a default. The asymmetry
// (animal/element strict, genderForm lenient) matches the product behavior of
// trusting the model on soft presentation fields only.
type Policy struct {
	Strict  []string
	Lenient []string
}

// DefaultPolicy is the validation policy applied to every resolved triple.
var DefaultPolicy = Policy{
	Strict:  []string{"animal", "element"},
	Lenient: []string{"genderForm"},
}

// Validate checks t against the enumerations under p. Strict-field failures
// return ErrInvalidAnimal/ErrInvalidElement; the lenient genderForm is
// rewritten to GenderUnspecified when out of range. The returned triple has
// the element normalized to its canonical code (labels in any supported
// language are accepted on input).
func (p Policy) Validate(t Triple, lang string) (Triple, error) {
	if !IsAnimal(t.Animal) {
		return Triple{}, ErrInvalidAnimal
	}
	element, ok := NormalizeElement(t.Element, lang)
	if !ok {
		return Triple{}, ErrInvalidElement
	}
	t.Element = element
	if !IsGenderForm(t.GenderForm) {
		t.GenderForm = GenderUnspecified
	}
	return t, nil
}

// NormalizeElement maps an element given either as a canonical code or as a
// display label (preferring lang's labels, then Russian, then any language)
// back to the canonical code.
func NormalizeElement(element, lang string) (string, bool) {
	if IsElement(element) {
		return element, true
	}
	for _, labels := range []map[string]string{elementLabels[lang], elementLabels["ru"]} {
		for code, label := range labels {
			if element == label {
				return code, true
			}
		}
	}
	for _, labels := range elementLabels {
		for code, label := range labels {
			if element == label {
				return code, true
			}
		}
	}
	return "", false
}
