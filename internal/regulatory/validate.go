package regulatory

import "fmt"

// ValidationResult is the outcome of validating a prescription draft.
// Warnings never block validity; Valid is true iff Errors is empty.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// lineLimits holds the maximum medication lines per form.
// Zero means unlimited.
var lineLimits = map[Form]int{
	FormAmarela:          1,
	FormAzul:             1,
	FormRetinoides:       1,
	FormTalidomida:       1,
	FormControleEspecial: 3,
	FormSimples:          0,
}

// Validate checks a prescription draft against the composition rules for the
// chosen form: line-count limits, per-line tarja compatibility, and the
// regulatory warnings that accompany each form. It is a pure function with no
// I/O; the caller decides whether errors block submission.
func Validate(form Form, lines []MedicationLine) ValidationResult {
	result := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	if limit := lineLimits[form]; limit > 0 && len(lines) > limit {
		switch form {
		case FormControleEspecial:
			result.Errors = append(result.Errors,
				"Receita de controle especial permite no máximo 3 medicamentos por receita")
		case FormAmarela, FormAzul:
			result.Errors = append(result.Errors,
				fmt.Sprintf("Receita %s permite apenas 1 medicamento por receita", form))
		case FormRetinoides, FormTalidomida:
			result.Errors = append(result.Errors,
				fmt.Sprintf("Receita de %s permite apenas 1 medicamento por receita", form))
		}
	}

	for _, line := range lines {
		required := Classify(line.Tarja)
		// Medications classified as simples are compatible with any form.
		if required != form && required != FormSimples {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"Medicamento %q (tarja: %s) requer receita do tipo %q, mas está sendo prescrito em receita %q",
				line.NomeProduto, line.Tarja, required, form))
		}
	}

	result.Warnings = append(result.Warnings, formWarnings(form)...)
	result.Valid = len(result.Errors) == 0
	return result
}

// formWarnings returns the regulatory reminders attached to each form.
// Warnings are informational and appended regardless of errors.
func formWarnings(form Form) []string {
	switch form {
	case FormRetinoides:
		return []string{
			"Lembre-se: paciente deve assinar Termo de Consentimento de Risco",
			"Validade: 30 dias",
			"Abrangência: apenas no Estado de emissão",
		}
	case FormTalidomida:
		return []string{
			"Lembre-se: paciente deve assinar Termo de Consentimento",
			"Validade: 15 dias",
			"Abrangência: apenas no Estado de emissão",
		}
	case FormAmarela, FormControleEspecial:
		return []string{
			"Validade: 30 dias",
			"Retenção: 1 via retida na farmácia",
		}
	case FormAzul:
		return []string{
			"Validade: 60 dias",
			"Retenção: 1 via retida na farmácia",
		}
	}
	return nil
}
