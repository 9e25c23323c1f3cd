package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/triario/avatar-backend/internal/prospect"
	"github.com/triario/avatar-backend/internal/taxonomy"
)

// Analyzer turns a transcript into an Analysis. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, t Transcript, p prospect.Prospect) Analysis
	Mode() string
}

// Model is a text generation backend.
type Model interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// New returns a model-backed analyzer, or the keyword analyzer when model is nil.
func New(model Model, tax *taxonomy.Taxonomy, logger *slog.Logger) Analyzer {
	kw := NewKeyword(tax, logger)
	if model == nil {
		return kw
	}
	return &ModelAnalyzer{model: model, tax: tax, fallback: kw, logger: logger}
}

// KeywordAnalyzer is the deterministic analyzer used without a model and as
// the model analyzer's fallback.
type KeywordAnalyzer struct {
	tax    *taxonomy.Taxonomy
	logger *slog.Logger
}

func NewKeyword(tax *taxonomy.Taxonomy, logger *slog.Logger) *KeywordAnalyzer {
	return &KeywordAnalyzer{tax: tax, logger: logger}
}

func (k *KeywordAnalyzer) Mode() string { return "keyword" }

func (k *KeywordAnalyzer) Analyze(_ context.Context, t Transcript, p prospect.Prospect) Analysis {
	pain, score := k.tax.Score(t.Format())
	confidence := k.tax.UnmatchedConfidence
	if score > 0 {
		confidence = k.tax.MatchedConfidence
	}

	k.logger.Info("keyword analysis complete",
		"pain_point", pain,
		"keyword_hits", score,
		"utterances", len(t),
	)

	return Analysis{
		Summary: fmt.Sprintf("Conversación con %s de %s. El prospecto manifestó interés en mejorar sus procesos de ventas y marketing. Se identificaron desafíos en la gestión de clientes y procesos comerciales.",
			p.FullName(), p.Company),
		PainPoint:          pain,
		PainConfidence:     confidence,
		QualificationScore: k.tax.QualificationScore,
		KeyInsights: []string{
			"Prospecto interesado en optimización de procesos",
			fmt.Sprintf("%s en etapa de crecimiento", orEmpresa(p.Company)),
			"Necesidad de mejor gestión de clientes",
		},
		NextSteps: Steps{
			fmt.Sprintf("Agendar reunión de calificación con %s para evaluar necesidades específicas", p.FullName()),
			"Presentar propuesta personalizada",
		},
	}
}

func orEmpresa(company string) string {
	if strings.TrimSpace(company) == "" {
		return "Empresa"
	}
	return company
}

// ModelAnalyzer asks a language model for the analysis and falls back to
// keyword analysis when the call, the parse or the validation fails.
type ModelAnalyzer struct {
	model    Model
	tax      *taxonomy.Taxonomy
	fallback *KeywordAnalyzer
	logger   *slog.Logger
}

func (m *ModelAnalyzer) Mode() string { return "model" }

func (m *ModelAnalyzer) Analyze(ctx context.Context, t Transcript, p prospect.Prospect) Analysis {
	prompt := buildPrompt(m.tax, t, p)

	m.logger.Info("analyzing conversation",
		"company", p.Company,
		"utterances", len(t),
		"prompt_len", len(prompt),
	)

	raw, err := m.model.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		m.logger.Warn("model analysis failed, using keyword fallback", "error", err)
		return m.fallback.Analyze(ctx, t, p)
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		m.logger.Warn("model returned unusable analysis, using keyword fallback",
			"error", err,
			"raw", raw,
		)
		return m.fallback.Analyze(ctx, t, p)
	}

	m.logger.Info("model analysis complete",
		"pain_point", analysis.PainPoint,
		"qualification_score", analysis.QualificationScore,
	)
	return analysis
}

func parseAnalysis(raw string) (Analysis, error) {
	var a Analysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &a); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	if err := a.validate(); err != nil {
		return Analysis{}, err
	}
	if a.KeyInsights == nil {
		a.KeyInsights = []string{}
	}
	if a.NextSteps == nil {
		a.NextSteps = Steps{}
	}
	return a, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
