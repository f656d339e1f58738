// Package regulatory implements the Brazilian prescription compliance rules:
// schedule classification by tarja, per-form composition limits, and legal
// validity windows.
package regulatory

// Form represents the prescription form category (tipo de receituário)
type Form string

const (
	FormSimples          Form = "simples"
	FormControleEspecial Form = "controle_especial" // C1, C5
	FormAzul             Form = "azul"              // B1, B2
	FormAmarela          Form = "amarela"           // A1, A2, A3
	FormRetinoides       Form = "retinoides"        // C2
	FormTalidomida       Form = "talidomida"        // C3
)

// Forms lists every valid form category
var Forms = []Form{
	FormSimples,
	FormControleEspecial,
	FormAzul,
	FormAmarela,
	FormRetinoides,
	FormTalidomida,
}

// IsValid reports whether f is a known form category
func (f Form) IsValid() bool {
	switch f {
	case FormSimples, FormControleEspecial, FormAzul, FormAmarela, FormRetinoides, FormTalidomida:
		return true
	}
	return false
}

var descriptions = map[Form]string{
	FormSimples:          "Receita Simples (Branca)",
	FormControleEspecial: "Receita de Controle Especial (Branca - C1/C5)",
	FormAzul:             "Receita Azul (B1/B2 - Psicotrópicos)",
	FormAmarela:          "Receita Amarela (A1/A2/A3 - Entorpecentes)",
	FormRetinoides:       "Receita de Retinóides (C2)",
	FormTalidomida:       "Receita de Talidomida (C3)",
}

// Describe returns the human-readable label for a form category,
// used as the subtitle on rendered documents.
func Describe(f Form) string {
	return descriptions[f]
}

// MedicationLine is one medication entry submitted for validation
type MedicationLine struct {
	Tarja       string `json:"tarja"`
	NomeProduto string `json:"nomeProduto"`
}
