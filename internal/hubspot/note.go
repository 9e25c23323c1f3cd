package hubspot

import (
	"fmt"
	"strings"
	"time"
)

// CallNote is the content rendered into a call's body for sales follow-up.
type CallNote struct {
	ConversationID     string
	Date               time.Time
	Agent              string
	ConversationType   string
	Company            string
	Role               string
	PainPoint          string
	QualificationScore int
	FollowUpRequired   bool
	KeyInsights        []string
	NextSteps          []string
	Summary            string
	Transcript         string
}

// FormatCallBody renders the note as the plain-text call body.
func FormatCallBody(n CallNote) string {
	var b strings.Builder

	section := func(title string) {
		b.WriteString("\n")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", len([]rune(title))))
		b.WriteString("\n")
	}
	bullets := func(items []string, empty string) {
		if len(items) == 0 {
			b.WriteString("• " + empty + "\n")
			return
		}
		for _, it := range items {
			b.WriteString("• " + it + "\n")
		}
	}

	section("RESUMEN DE CONVERSACIÓN")
	fmt.Fprintf(&b, "Fecha: %s\n", n.Date.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Agente: %s\n", orNA(n.Agent))
	fmt.Fprintf(&b, "Tipo: %s\n", orNA(n.ConversationType))
	fmt.Fprintf(&b, "Puntuación: %d/10\n", n.QualificationScore)
	if n.FollowUpRequired {
		b.WriteString("Seguimiento requerido: Sí\n")
	} else {
		b.WriteString("Seguimiento requerido: No\n")
	}
	if n.ConversationID != "" {
		fmt.Fprintf(&b, "ID conversación: %s\n", n.ConversationID)
	}

	section("INFORMACIÓN DEL CONTACTO")
	fmt.Fprintf(&b, "• Empresa: %s\n", orNA(n.Company))
	fmt.Fprintf(&b, "• Cargo: %s\n", orNA(n.Role))

	section("DOLOR IDENTIFICADO")
	if n.PainPoint != "" {
		bullets([]string{n.PainPoint}, "")
	} else {
		bullets(nil, "No se identificaron puntos de dolor específicos")
	}

	section("INSIGHTS CLAVE")
	bullets(n.KeyInsights, "No se capturaron insights específicos")

	section("PRÓXIMOS PASOS")
	bullets(n.NextSteps, "No se definieron próximos pasos específicos")

	section("RESUMEN")
	b.WriteString(n.Summary)
	b.WriteString("\n")

	if strings.TrimSpace(n.Transcript) != "" {
		section("TRANSCRIPCIÓN")
		b.WriteString(n.Transcript)
		b.WriteString("\n")
	}

	return strings.TrimLeft(b.String(), "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
