package normalize

import (
	"regexp"
	"strings"
)

// Seniority levels in descending priority. When a title mentions several
// levels the highest one wins, so "Tech Lead Pleno" is a Lead.
var seniorityLevels = []struct {
	level    string
	patterns []string
}{
	{"Principal", []string{"principal"}},
	{"Staff", []string{"staff"}},
	{"Lead", []string{"tech lead", "team lead", "lider tecnico", "lider tecnica", "lead"}},
	{"Senior", []string{"senior", "sr.", " sr ", " iii"}},
	{"Mid", []string{"pleno", "pl.", " pl ", " ii"}},
	// "intern" stays space-delimited so "international" never reads as Junior.
	{"Junior", []string{"junior", "jr.", " jr ", "estagio", "estagiario", "trainee", " intern ", " internship "}},
}

var wordBoundaryCleaner = regexp.MustCompile(`[\|\(\)\[\],/]+`)

// Seniority resolves the seniority level from the title and, failing that,
// from the minimum years of experience. Returns "Unspecified" when neither
// signal is present.
func Seniority(title string, yearsExperienceMin *int) string {
	// Pad so the space-delimited patterns can match at the edges.
	folded := " " + wordBoundaryCleaner.ReplaceAllString(fold(title), " ") + " "
	for _, lvl := range seniorityLevels {
		for _, p := range lvl.patterns {
			if strings.Contains(folded, p) {
				return lvl.level
			}
		}
	}
	if yearsExperienceMin != nil {
		switch y := *yearsExperienceMin; {
		case y <= 2:
			return "Junior"
		case y <= 5:
			return "Mid"
		default:
			return "Senior"
		}
	}
	return "Unspecified"
}
