package genai

import (
	"fmt"
	"strings"
)

// CompatPromptVersion tags generated reports; it participates in the report
// cache key, so bumping it invalidates cached reports without deleting them.
const CompatPromptVersion = "v3"

// langInstructions pins the output language of every generation call.
var langInstructions = map[string]string{
	"ru": "Пиши весь текст СТРОГО на русском языке.",
	"en": "Write the entire response STRICTLY in English.",
	"es": "Escribe todo el texto ESTRICTAMENTE en español.",
	"pt": "Escreva todo o texto ESTRITAMENTE em português.",
}

func langInstruction(lang string) string {
	if s, ok := langInstructions[lang]; ok {
		return s
	}
	return langInstructions["ru"]
}

// shortPromptLabels / fullPromptLabels localize the section skeleton the
// profile prompts demand.
var shortPromptLabels = map[string]struct{ values, conclusion, point1, point2 string }{
	"ru": {"Ценности", "Заключение", "Пункт 1", "Пункт 2"},
	"en": {"Values", "Conclusion", "Point 1", "Point 2"},
	"es": {"Valores", "Conclusión", "Punto 1", "Punto 2"},
	"pt": {"Valores", "Conclusão", "Ponto 1", "Ponto 2"},
}

var fullPromptSections = map[string][]string{
	"ru": {
		"Общий психопрофиль", "Энергетический профиль", "Стиль мышления",
		"Социальное взаимодействие", "Конфликтность и поведение в напряжённых ситуациях",
		"Ценности", "Профессиональный стиль", "Сильные стороны",
		"Потенциальные слабые стороны", "Жизненный путь", "Итог",
	},
	"en": {
		"General psychological profile", "Energetic profile", "Thinking style",
		"Social interaction", "Conflict and behavior under tension",
		"Values", "Professional style", "Strengths",
		"Potential weaknesses", "Life path", "Conclusion",
	},
	"es": {
		"Perfil psicológico general", "Perfil energético", "Estilo de pensamiento",
		"Interacción social", "Conflicto y comportamiento bajo tensión",
		"Valores", "Estilo profesional", "Fortalezas",
		"Debilidades potenciales", "Camino de vida", "Conclusión",
	},
	"pt": {
		"Perfil psicológico geral", "Perfil energético", "Estilo de pensamento",
		"Interação social", "Conflito e comportamento sob tensão",
		"Valores", "Estilo profissional", "Pontos fortes",
		"Fraquezas potenciais", "Caminho de vida", "Conclusão",
	},
}

func shortLabels(lang string) struct{ values, conclusion, point1, point2 string } {
	if l, ok := shortPromptLabels[lang]; ok {
		return l
	}
	return shortPromptLabels["ru"]
}

func fullSections(lang string) []string {
	if s, ok := fullPromptSections[lang]; ok {
		return s
	}
	return fullPromptSections["ru"]
}

// resolverSystemPrompt is the strict JSON contract for the archetype
// resolver. Output fields are constrained to the closed enumerations; any
// deviation is caught by ParseTriple.
func resolverSystemPrompt(lang string) string {
	return strings.TrimSpace(langInstruction(lang) + `

Верни СТРОГО JSON. Запрещено добавлять любые поля, кроме перечисленных.

Ты аналитическая модель системы «24 зверя × 4 стихии».
❗ Используй ТОЛЬКО утверждённые архетипы.
❗ НЕ используй метафорические или альтернативные названия.
❗ НЕ добавляй текст вне JSON.

animal — один из:
Wolf, Lion, Tiger, Lynx, Panther, Bear, Fox, Wolverine, Deer,
Monkey, Rabbit, Buffalo, Ram, Capybara, Elephant, Horse,
Eagle, Owl, Raven, Parrot, Snake, Crocodile, Turtle, Lizard

element — строго одно из: Воздух | Вода | Огонь | Земля
genderForm — male | female | unspecified

Формат (СТРОГО):
{
  "animal": "Wolf",
  "element": "Огонь",
  "genderForm": "male"
}`)
}

func shortSystemPrompt(lang string) string {
	return strings.TrimSpace(langInstruction(lang) + `

Ты генерируешь КОРОТКИЙ результат по системе «24 зверя × 4 стихии».
Строго соблюдай структуру из промпта пользователя.
Не добавляй лишних блоков.`)
}

func fullSystemPrompt(lang string) string {
	return strings.TrimSpace(langInstruction(lang) + `

Ты формируешь ПОЛНЫЙ психологический профиль
в системе «24 зверя × 4 стихии».

❗ Архетип и стихия УЖЕ ЗАДАНЫ.
❗ НЕ изменяй архетип.
❗ НЕ добавляй новых животных.
❗ НЕ используй метафоры вместо названий.

СТРОГО соблюдай структуру полного профиля.`)
}

// CompatibilitySystemPromptV3 is the system prompt for pairwise reports. It
// forbids prompt echoing and fixes the two header lines plus six numbered
// sections per language.
const CompatibilitySystemPromptV3 = `You are generating a compatibility report for the “24 animals × 4 elements” system.

STRICT RULES:
1) Output ONLY the final report text. No JSON, no preface, no analysis, no prompt echoing.
2) Use the language specified by the ` + "`LANGUAGE:`" + ` tag in the user payload (ru/en/es/pt).
3) Use the names, animals, and elements exactly as provided in the payload.
4) The first two lines must be exactly:
   🟢 {nameA} — {animalA} {elementA}
   🔴 {nameB} — {animalB} {elementB}
5) Then output the following numbered section headings in the selected language and provide the content for each section.

SECTION HEADINGS BY LANGUAGE:
ru:
1) Основное сходство
2) Ключевые различия
3) Сильные стороны
4) Возможные сложности
5) Рекомендации
6) Итог

en:
1) Key similarities
2) Key differences
3) Strengths
4) Potential challenges
5) Recommendations
6) Summary

es:
1) Similitudes
2) Diferencias clave
3) Fortalezas
4) Dificultades
5) Recomendaciones
6) Resumen

pt:
1) Semelhanças
2) Diferenças-chave
3) Pontos fortes
4) Desafios
5) Recomendações
6) Resumo

Keep each section concise and focused on the provided data.`

// Answer is one questionId→answer pair as embedded into prompts.
type Answer struct {
	QuestionID int
	Text       string
}

// BuildAnswersText renders answers as "Q<n>: <answer>" lines, skipping
// blanks.
func BuildAnswersText(answers []Answer) string {
	var b strings.Builder
	for _, a := range answers {
		if a.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Q%d: %s", a.QuestionID, a.Text)
	}
	return b.String()
}

// BuildResolverPrompt assembles the user payload for the archetype resolver.
func BuildResolverPrompt(name, lang, gender, answersText string) string {
	return strings.TrimSpace(fmt.Sprintf(`Имя: %s
Язык: %s
Пол: %s

Ответы пользователя:
%s`, name, lang, gender, answersText))
}

// BuildShortPrompt assembles the user payload for the short profile call:
// the pinned animal/element, the language rule, the mandatory blocks, and the
// fixed output skeleton.
func BuildShortPrompt(name, lang, gender, animalDisplay, elementDisplay, answersText string) string {
	labels := shortLabels(lang)
	return strings.TrimSpace(fmt.Sprintf(`❗ ВАЖНО:
Используй ТОЛЬКО ЭТО животное:
%s

❌ Запрещено:
– заменять животное
– использовать других птиц или зверей
– вводить новые образы

❗ ЯЗЫК (ОБЯЗАТЕЛЬНО)
Пиши ВЕСЬ текст СТРОГО на языке: %s
Запрещено смешивать языки или добавлять перевод в скобках.

Пол НЕ влияет на анализ, только на форму названия архетипа.
Если пол не указан — используй мужскую (нейтральную) форму.
Пол: %s

ОБЯЗАТЕЛЬНЫЕ БЛОКИ:
– Архетип (животное + стихия)
– Краткое общее описание
– %s
– Два наиболее ярких пункта личности (%s, %s)
– %s

СТРОГАЯ СТРУКТУРА (НЕ МЕНЯТЬ):

%s — %s %s {ЗНАЧОК}
{Короткая строка-образ. 3–7 слов.}

{Краткое общее описание — 1–2 абзаца}

🧭 %s — «{3–4 ключевых слова}»
• …

🧩 %s
{Интегральный вывод}

СТИЛЬ: взрослый, спокойный, уверенный.
Запрещено: «возможно», «кажется», эзотерика, объяснение анализа.

Имя пользователя: %s
Язык: %s

Ответы пользователя:
%s`,
		animalDisplay, lang, gender,
		labels.values, labels.point1, labels.point2, labels.conclusion,
		name, animalDisplay, elementDisplay,
		labels.values, labels.conclusion,
		name, lang, answersText))
}

// BuildFullPrompt assembles the user payload for the full profile call with
// the ten-section skeleton and the mirroring rules.
func BuildFullPrompt(name, lang, gender, animalDisplay, elementLabel, elementDisplay, answersText string) string {
	sections := fullSections(lang)
	var numbered strings.Builder
	for i, s := range sections[:10] {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, s)
	}
	numbered.WriteString(sections[10])
	return strings.TrimSpace(fmt.Sprintf(`Ты — аналитическая ИИ-модель, формирующая полный психологический профиль личности
на основе заданного архетипа зверя, заданной стихии и ответов пользователя
в системе «24 зверя × 4 стихии».

Архетип зверя и стихия ЗАДАНЫ и НЕ ПЕРЕСМАТРИВАЮТСЯ.
Use ONLY this animal: %s
Use ONLY this element: %s

Архетип: %s
Стихия: %s
Пол: %s

Проанализируй ответы пользователя по 10 внутренним осям,
но не упоминай оси и не описывай механику.

Текст должен быть написан в ритме, интонации и плотности,
которые комфортны именно этому архетипу и этому человеку,
без искажения смысла и без изменения структуры.

Запрещено: «возможно», «кажется», «вероятно», эзотерика, диагнозы,
объяснение механики работы модели.

СТРОГАЯ СТРУКТУРА ВЫВОДА (НЕ МЕНЯТЬ):
%s — {Архетип (с учётом пола)} %s
(краткое описание архетипа в скобках)
%s

Язык: %s
Ответы пользователя:
%s`,
		animalDisplay, elementLabel,
		animalDisplay, elementLabel, gender,
		name, elementDisplay,
		numbered.String(),
		lang, answersText))
}

// Party is one side of a compatibility payload.
type Party struct {
	Name           string
	AnimalDisplay  string
	ElementDisplay string
	Emoji          string
	ProfileText    string
}

// HeaderLine renders the "emoji name — animal element" framing line for a
// party.
func (p Party) HeaderLine() string {
	return fmt.Sprintf("%s %s — %s %s", p.Emoji, p.Name, p.AnimalDisplay, p.ElementDisplay)
}

// BuildCompatibilityPayload assembles the user payload for the report call
// and returns it together with party A's header line (needed afterwards by
// StripPromptEcho).
func BuildCompatibilityPayload(lang string, a, b Party) (payload, lineA string) {
	lineA = a.HeaderLine()
	lineB := b.HeaderLine()
	payload = strings.TrimSpace(fmt.Sprintf(`LANGUAGE: %s
LINE_A: %s
LINE_B: %s

Человек A:
Имя: %s
Архетип: %s %s
Ответы:
%s

Человек B:
Имя: %s
Архетип: %s %s
Ответы:
%s`,
		strings.ToUpper(lang), lineA, lineB,
		a.Name, a.AnimalDisplay, a.ElementDisplay, a.ProfileText,
		b.Name, b.AnimalDisplay, b.ElementDisplay, b.ProfileText))
	return payload, lineA
}
