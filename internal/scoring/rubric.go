package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Rubric points: completeness 4, weather 2, format 3, clarity 2, priority 1.
// The weather points may push the raw total past 10; the value is capped at 1.
const maxPoints = 10.0

var (
	temperaturePattern  = regexp.MustCompile(`\d+°C`)
	countFormatPattern  = regexp.MustCompile(`Hoje você tem \d+ compromissos|Nenhum compromisso`)
	tempFormatPattern   = regexp.MustCompile(`[Mm]áx \d+°C, mín \d+°C`)
	priorityPattern     = regexp.MustCompile(`Sugestão|sugestão|Prioridade|prioridade`)
	noAppointmentPhrase = []string{"Nenhum compromisso", "nenhum compromisso"}
)

// Rubric grades a briefing against the data it was built from. It is pure.
type Rubric struct{}

var _ ports.Scorer = Rubric{}

func NewRubric() Rubric {
	return Rubric{}
}

func (Rubric) Score(message string, events []domain.CalendarEvent, weather domain.WeatherReport) domain.QualityScore {
	if message == "" {
		return domain.QualityScore{}
	}

	var (
		points  float64
		reasons []string
	)
	check := func(ok bool, weight float64, pass, fail string) {
		if ok {
			points += weight
			reasons = append(reasons, "✅ "+pass)
			return
		}
		reasons = append(reasons, "❌ "+fail)
	}

	if n := len(events); n > 0 {
		points += 2
		check(strings.Contains(message, strconv.Itoa(n)), 2,
			"Menciona corretamente a quantidade de compromissos",
			"Não menciona a quantidade de compromissos")
	} else {
		check(containsAny(message, noAppointmentPhrase), 4,
			"Menciona corretamente que não há compromissos",
			"Não menciona status dos compromissos")
	}

	if weather.Available() {
		points++
		check(temperaturePattern.MatchString(message), 1,
			"Inclui dados de temperatura",
			"Não inclui dados de temperatura")
	}

	check(countFormatPattern.MatchString(message), 1.5,
		"Segue formato de compromissos", "Não segue formato de compromissos")
	check(tempFormatPattern.MatchString(message), 1.5,
		"Segue formato de temperatura", "Não segue formato de temperatura")

	length := utf8.RuneCountInString(message)
	check(length >= 20 && length <= 300, 1, "Tamanho adequado", "Tamanho inadequado")
	parts := strings.Count(message, ".") + 1
	check(parts >= 2 && parts <= 5, 1, "Estrutura de frases adequada", "Estrutura de frases inadequada")

	check(priorityPattern.MatchString(message), 1,
		"Inclui sugestão de prioridade", "Não inclui sugestão de prioridade")

	value := math.Min(points/maxPoints, 1)
	rationale := fmt.Sprintf("Score: %.1f/10\n%s", value*maxPoints, strings.Join(reasons, "\n"))
	return domain.QualityScore{Value: value, Rationale: rationale}
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
