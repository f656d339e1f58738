package regulatory

import "strings"

// classifyRule maps a set of tarja markers to the form they require.
// Rules are evaluated in order and the first match wins. The ordering is a
// policy choice inferred from ANVISA labeling practice, not a verified legal
// requirement; changes belong to a domain expert, not a refactor.
type classifyRule struct {
	form    Form
	markers []string
}

var classifyRules = []classifyRule{
	{FormAmarela, []string{"amarela", "a1", "a2", "a3"}},
	{FormAzul, []string{"azul", "b1", "b2"}},
	{FormRetinoides, []string{"c2", "retinóide", "retinoide"}},
	{FormTalidomida, []string{"c3", "talidomida"}},
	{FormControleEspecial, []string{"c1", "c5", "controle especial", "vermelha sob restrição", "vermelha sob restricao"}},
}

// Classify maps a medication's free-text regulatory marking (tarja) to the
// prescription form it requires. Matching is case-insensitive substring
// matching in rule order; unmatched input degrades to FormSimples, the least
// restrictive category. Classify never fails.
func Classify(tarja string) Form {
	t := strings.ToLower(tarja)
	for _, rule := range classifyRules {
		for _, marker := range rule.markers {
			if strings.Contains(t, marker) {
				return rule.form
			}
		}
	}
	return FormSimples
}

// MostRestrictive classifies every line and returns the strictest form among
// them, following the same rule ordering as Classify. An empty line set maps
// to FormSimples.
func MostRestrictive(lines []MedicationLine) Form {
	strictest := FormSimples
	rank := func(f Form) int {
		for i, rule := range classifyRules {
			if rule.form == f {
				return i
			}
		}
		return len(classifyRules)
	}

	for _, line := range lines {
		if f := Classify(line.Tarja); rank(f) < rank(strictest) {
			strictest = f
		}
	}
	return strictest
}
