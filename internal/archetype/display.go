package archetype

import "strings"

// elementLabels maps language → canonical element code → display label.
var elementLabels = map[string]map[string]string{
	"ru": {
		ElementAir:   "Воздух",
		ElementWater: "Вода",
		ElementFire:  "Огонь",
		ElementEarth: "Земля",
	},
	"en": {
		ElementAir:   "Air",
		ElementWater: "Water",
		ElementFire:  "Fire",
		ElementEarth: "Earth",
	},
	"es": {
		ElementAir:   "Aire",
		ElementWater: "Agua",
		ElementFire:  "Fuego",
		ElementEarth: "Tierra",
	},
	"pt": {
		ElementAir:   "Ar",
		ElementWater: "Água",
		ElementFire:  "Fogo",
		ElementEarth: "Terra",
	},
}

// elementGenitiveRU is the Russian genitive form used on the archetype line
// ("Волк Огня" rather than "Волк Огонь").
var elementGenitiveRU = map[string]string{
	ElementAir:   "Воздуха",
	ElementWater: "Воды",
	ElementFire:  "Огня",
	ElementEarth: "Земли",
}

// elementSlug is the latin slug used in image keys.
var elementSlug = map[string]string{
	ElementAir:   "air",
	ElementWater: "water",
	ElementFire:  "fire",
	ElementEarth: "earth",
}

// animalNamesRU carries the gendered Russian display names. Only Russian has
// gendered forms; other languages display the same name for both.
var animalNamesRU = map[string][2]string{
	"Wolf":      {"Волк", "Волчица"},
	"Lion":      {"Лев", "Львица"},
	"Tiger":     {"Тигр", "Тигрица"},
	"Lynx":      {"Рысь", "Рысь"},
	"Panther":   {"Пантера", "Пантера"},
	"Bear":      {"Медведь", "Медведица"},
	"Fox":       {"Лис", "Лиса"},
	"Wolverine": {"Росомаха", "Росомаха"},
	"Deer":      {"Олень", "Лань"},
	"Monkey":    {"Обезьяна", "Обезьяна"},
	"Rabbit":    {"Кролик", "Крольчиха"},
	"Buffalo":   {"Буйвол", "Буйволица"},
	"Ram":       {"Баран", "Овца"},
	"Capybara":  {"Капибара", "Капибара"},
	"Elephant":  {"Слон", "Слониха"},
	"Horse":     {"Конь", "Лошадь"},
	"Eagle":     {"Орёл", "Орлица"},
	"Owl":       {"Филин", "Сова"},
	"Raven":     {"Ворон", "Ворона"},
	"Parrot":    {"Попугай", "Попугаиха"},
	"Snake":     {"Змей", "Змея"},
	"Crocodile": {"Крокодил", "Крокодилица"},
	"Turtle":    {"Черепаха", "Черепаха"},
	"Lizard":    {"Ящер", "Ящерица"},
}

var animalNamesES = map[string]string{
	"Wolf": "Lobo", "Lion": "León", "Tiger": "Tigre", "Lynx": "Lince",
	"Panther": "Pantera", "Bear": "Oso", "Fox": "Zorro", "Wolverine": "Glotón",
	"Deer": "Ciervo", "Monkey": "Mono", "Rabbit": "Conejo", "Buffalo": "Búfalo",
	"Ram": "Carnero", "Capybara": "Capibara", "Elephant": "Elefante",
	"Horse": "Caballo", "Eagle": "Águila", "Owl": "Búho", "Raven": "Cuervo",
	"Parrot": "Loro", "Snake": "Serpiente", "Crocodile": "Cocodrilo",
	"Turtle": "Tortuga", "Lizard": "Lagarto",
}

var animalNamesPT = map[string]string{
	"Wolf": "Lobo", "Lion": "Leão", "Tiger": "Tigre", "Lynx": "Lince",
	"Panther": "Pantera", "Bear": "Urso", "Fox": "Raposa", "Wolverine": "Carcaju",
	"Deer": "Cervo", "Monkey": "Macaco", "Rabbit": "Coelho", "Buffalo": "Búfalo",
	"Ram": "Carneiro", "Capybara": "Capivara", "Elephant": "Elefante",
	"Horse": "Cavalo", "Eagle": "Águia", "Owl": "Coruja", "Raven": "Corvo",
	"Parrot": "Papagaio", "Snake": "Serpente", "Crocodile": "Crocodilo",
	"Turtle": "Tartaruga", "Lizard": "Lagarto",
}

var animalEmoji = map[string]string{
	"Wolf": "🐺", "Lion": "🦁", "Tiger": "🐯", "Lynx": "🐱",
	"Panther": "🐆", "Bear": "🐻", "Fox": "🦊", "Wolverine": "🦡",
	"Deer": "🦌", "Monkey": "🐵", "Rabbit": "🐰", "Buffalo": "🐃",
	"Ram": "🐏", "Capybara": "🦫", "Elephant": "🐘", "Horse": "🐴",
	"Eagle": "🦅", "Owl": "🦉", "Raven": "🐦‍⬛", "Parrot": "🦜",
	"Snake": "🐍", "Crocodile": "🐊", "Turtle": "🐢", "Lizard": "🦎",
}

// AnimalDisplayName returns the localized display name for an animal code.
// Russian names carry gendered forms; gender forms other than female resolve
// to the male (neutral) form. Unknown codes fall back to the code itself.
func AnimalDisplayName(code, lang, genderForm string) string {
	switch lang {
	case "ru":
		forms, ok := animalNamesRU[code]
		if !ok {
			return code
		}
		if genderForm == GenderFemale {
			return forms[1]
		}
		return forms[0]
	case "es":
		if name, ok := animalNamesES[code]; ok {
			return name
		}
	case "pt":
		if name, ok := animalNamesPT[code]; ok {
			return name
		}
	}
	return code
}

// ElementDisplayName returns the localized label for a canonical element
// code. When genitive is true and lang is Russian, the genitive form used on
// the archetype line is returned instead of the nominative label.
func ElementDisplayName(code, lang string, genitive bool) string {
	if genitive && lang == "ru" {
		if g, ok := elementGenitiveRU[code]; ok {
			return g
		}
	}
	if labels, ok := elementLabels[lang]; ok {
		if label, ok := labels[code]; ok {
			return label
		}
	}
	if label, ok := elementLabels["ru"][code]; ok {
		return label
	}
	return code
}

// Emoji returns the emoji associated with an animal code, or a generic paw
// print for unknown codes.
func Emoji(animalCode string) string {
	if e, ok := animalEmoji[animalCode]; ok {
		return e
	}
	return "🐾"
}

// ImageKey builds the stable asset key for a resolved triple, e.g.
// "wolf_fire_male".
func ImageKey(animalCode, elementCode, genderForm string) string {
	slug, ok := elementSlug[elementCode]
	if !ok {
		slug = "unknown"
	}
	g := GenderMale
	if genderForm == GenderFemale {
		g = GenderFemale
	}
	return strings.ToLower(animalCode) + "_" + slug + "_" + g
}
