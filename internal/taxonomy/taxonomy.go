package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// PainPoint is a canonical sales pain label as accepted by the CRM.
type PainPoint string

// Pain is one canonical pain point and the keywords that vote for it.
type Pain struct {
	Label    PainPoint `json:"label"`
	Keywords []string  `json:"keywords"`
}

// Alias maps a keyword found in free-form classifier output to a canonical label.
type Alias struct {
	Keyword string    `json:"keyword"`
	Label   PainPoint `json:"label"`
}

// Taxonomy is the closed catalog of pain points plus the tuning knobs of the
// keyword fallback. Declaration order of Pains and Aliases is significant.
type Taxonomy struct {
	Pains               []Pain    `json:"pains"`
	Aliases             []Alias   `json:"aliases"`
	Other               PainPoint `json:"other"`
	Default             PainPoint `json:"default"`
	MatchedConfidence   float64   `json:"matched_confidence"`
	UnmatchedConfidence float64   `json:"unmatched_confidence"`
	QualificationScore  int       `json:"qualification_score"`
}

const (
	PainSellerTime    PainPoint = "No se en que invierte el tiempo mis vendedores"
	PainNoCRM         PainPoint = "No tengo CRM o siento que no lo aprovecho lo suficiente"
	PainFollowUp      PainPoint = "El seguimiento a los prospectos y negocios es minimo"
	PainOperational   PainPoint = "El equipo de ventas gasta mucho tiempo en actividades operativas"
	PainLowRepurchase PainPoint = "Mi nivel de recompra es muy bajo"
	PainFewDeals      PainPoint = "Los negocios que generamos son muy pocos"
	PainOther         PainPoint = "otro"
)

// Default returns the taxonomy used by the CRM's dolores_de_venta property.
func Default() *Taxonomy {
	return &Taxonomy{
		Pains: []Pain{
			{Label: PainSellerTime, Keywords: []string{"tiempo", "vendedores", "actividades", "productividad"}},
			{Label: PainNoCRM, Keywords: []string{"crm", "sistema", "herramientas", "tecnología"}},
			{Label: PainFollowUp, Keywords: []string{"seguimiento", "prospectos", "negocios", "pipeline"}},
			{Label: PainOperational, Keywords: []string{"operativo", "tareas", "administrativo", "procesos"}},
			{Label: PainLowRepurchase, Keywords: []string{"recompra", "retention", "fidelización", "clientes"}},
			{Label: PainFewDeals, Keywords: []string{"negocios", "ventas", "generación", "demanda"}},
		},
		Aliases: []Alias{
			{Keyword: "crm", Label: PainNoCRM},
			{Keyword: "pipeline", Label: PainFollowUp},
			{Keyword: "seguimiento", Label: PainFollowUp},
			{Keyword: "follow-up", Label: PainFollowUp},
			{Keyword: "invierte el tiempo", Label: PainSellerTime},
			{Keyword: "invierten el tiempo", Label: PainSellerTime},
			{Keyword: "productividad", Label: PainSellerTime},
			{Keyword: "operativ", Label: PainOperational},
			{Keyword: "administrativ", Label: PainOperational},
			{Keyword: "recompra", Label: PainLowRepurchase},
			{Keyword: "retention", Label: PainLowRepurchase},
			{Keyword: "objeciones", Label: PainFewDeals},
			{Keyword: "cerrar", Label: PainFewDeals},
			{Keyword: "pocos", Label: PainFewDeals},
			// Broad seller-time words go last so specific rules win.
			{Keyword: "vendedores", Label: PainSellerTime},
			{Keyword: "tiempo", Label: PainSellerTime},
		},
		Other:               PainOther,
		Default:             PainNoCRM,
		MatchedConfidence:   0.7,
		UnmatchedConfidence: 0.3,
		QualificationScore:  7,
	}
}

// Load reads a taxonomy from a JSON file. An empty path yields Default.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	var t Taxonomy
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that the taxonomy is internally consistent.
func (t *Taxonomy) Validate() error {
	if len(t.Pains) == 0 {
		return fmt.Errorf("taxonomy has no pains")
	}
	if t.Other == "" {
		return fmt.Errorf("taxonomy has no other sentinel")
	}
	if !t.Accepted(t.Default) {
		return fmt.Errorf("default pain %q is not a canonical pain", t.Default)
	}
	for _, a := range t.Aliases {
		if !t.Accepted(a.Label) && a.Label != t.Other {
			return fmt.Errorf("alias %q targets unknown pain %q", a.Keyword, a.Label)
		}
	}
	if t.MatchedConfidence < 0 || t.MatchedConfidence > 1 || t.UnmatchedConfidence < 0 || t.UnmatchedConfidence > 1 {
		return fmt.Errorf("confidence values must be within [0,1]")
	}
	if t.QualificationScore < 1 || t.QualificationScore > 10 {
		return fmt.Errorf("qualification score must be within [1,10]")
	}
	return nil
}

// Labels returns the canonical labels in declaration order, without the sentinel.
func (t *Taxonomy) Labels() []PainPoint {
	labels := make([]PainPoint, len(t.Pains))
	for i, p := range t.Pains {
		labels[i] = p.Label
	}
	return labels
}

// Accepted reports whether p may be written to the CRM.
func (t *Taxonomy) Accepted(p PainPoint) bool {
	for _, pain := range t.Pains {
		if pain.Label == p {
			return true
		}
	}
	return false
}

// Canonicalize maps raw classifier output onto the taxonomy. Exact matches win,
// then the first alias whose keyword occurs in raw, then the other sentinel.
func (t *Taxonomy) Canonicalize(raw string) PainPoint {
	if PainPoint(raw) == t.Other || t.Accepted(PainPoint(raw)) {
		return PainPoint(raw)
	}
	lower := strings.ToLower(raw)
	for _, a := range t.Aliases {
		if strings.Contains(lower, strings.ToLower(a.Keyword)) {
			return a.Label
		}
	}
	return t.Other
}

// Score votes for a pain using keyword presence in text. Ties go to the pain
// declared first; with no votes the default pain is returned with score 0.
func (t *Taxonomy) Score(text string) (PainPoint, int) {
	lower := strings.ToLower(text)
	best, bestScore := t.Default, 0
	for _, pain := range t.Pains {
		score := 0
		for _, kw := range pain.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = pain.Label, score
		}
	}
	return best, bestScore
}
