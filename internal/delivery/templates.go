package delivery

import "fmt"

// Patient-facing message bodies. Wording is part of the product surface and
// reviewed with the clinical team; change with care.

func prescriptionMessage(patientName, doctorName, pdfURL string) string {
	return fmt.Sprintf(`Olá %s!

O Dr(a). %s enviou uma prescrição médica para você.

Acesse o link abaixo para visualizar:
%s

Este documento é válido e pode ser apresentado em qualquer farmácia.

---
Medko - Sistema de Prescrição Médica Digital`, patientName, doctorName, pdfURL)
}

func certificateMessage(patientName, doctorName, pdfURL string) string {
	return fmt.Sprintf(`Olá %s!

O Dr(a). %s enviou um atestado médico para você.

Acesse o link abaixo para visualizar:
%s

---
Medko - Sistema de Prescrição Médica Digital`, patientName, doctorName, pdfURL)
}
