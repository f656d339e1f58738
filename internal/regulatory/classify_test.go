package regulatory

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		tarja string
		want  Form
	}{
		{"Tarja Amarela", FormAmarela},
		{"AMARELA", FormAmarela},
		{"Lista A1", FormAmarela},
		{"a2 entorpecente", FormAmarela},
		{"A3", FormAmarela},
		{"Tarja Azul", FormAzul},
		{"lista B1", FormAzul},
		{"B2 psicotrópico", FormAzul},
		{"C2 retinóide", FormRetinoides},
		{"retinoide sistêmico", FormRetinoides},
		{"C3", FormTalidomida},
		{"Talidomida", FormTalidomida},
		{"C1", FormControleEspecial},
		{"lista C5", FormControleEspecial},
		{"Controle Especial", FormControleEspecial},
		{"Vermelha sob restrição", FormControleEspecial},
		{"vermelha sob restricao", FormControleEspecial},
		{"Tarja Vermelha", FormSimples},
		{"isenta de prescrição", FormSimples},
		{"", FormSimples},
	}

	for _, tc := range cases {
		if got := Classify(tc.tarja); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.tarja, got, tc.want)
		}
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// First-match-wins over the documented rule order.
	cases := []struct {
		tarja string
		want  Form
	}{
		{"a1 azul", FormAmarela},             // amarela markers before azul
		{"azul c2", FormAzul},                // azul markers before retinoides
		{"c2 c3", FormRetinoides},            // retinoides markers before talidomida
		{"c3 c1", FormTalidomida},            // talidomida markers before controle especial
		{"c1 sem outra marca", FormControleEspecial},
	}

	for _, tc := range cases {
		if got := Classify(tc.tarja); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.tarja, got, tc.want)
		}
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	for _, tarja := range []string{"amarela", "Amarela", "AMARELA", "aMaReLa"} {
		if got := Classify(tarja); got != FormAmarela {
			t.Errorf("Classify(%q) = %s, want amarela", tarja, got)
		}
	}
}

func TestMostRestrictive(t *testing.T) {
	lines := []MedicationLine{
		{Tarja: "isenta", NomeProduto: "Dipirona"},
		{Tarja: "B1", NomeProduto: "Diazepam"},
		{Tarja: "c1", NomeProduto: "Fluoxetina"},
	}
	if got := MostRestrictive(lines); got != FormAzul {
		t.Errorf("MostRestrictive = %s, want azul", got)
	}

	if got := MostRestrictive(nil); got != FormSimples {
		t.Errorf("MostRestrictive(nil) = %s, want simples", got)
	}

	single := []MedicationLine{{Tarja: "talidomida", NomeProduto: "Talidomida"}}
	if got := MostRestrictive(single); got != FormTalidomida {
		t.Errorf("MostRestrictive = %s, want talidomida", got)
	}
}
