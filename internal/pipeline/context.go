package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/triario/avatar-backend/internal/analyzer"
	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/apollo"
	"github.com/triario/avatar-backend/internal/hubspot"
	"github.com/triario/avatar-backend/internal/prospect"
)

const defaultEngagementTitle = "Conversación con IA - Triario"

var (
	// ErrWebsiteRequired is returned by EnrichContext when the prospect has no
	// usable website URL.
	ErrWebsiteRequired = errors.New("websiteUrl is required")
	// ErrContactRequired is returned by LogEngagement without a contact id.
	ErrContactRequired = errors.New("contact_id is required")
)

// AgentContext is the outcome of a successful EnrichContext.
type AgentContext struct {
	Status  string          `json:"status"`
	Context string          `json:"context"`
	Company *apollo.Company `json:"enriched_data"`
}

// EnrichContext looks up the prospect's company and renders it as briefing
// text for the conversational agent. Unlike CreateProspect, an enrichment
// failure is returned to the caller.
func (p *Processor) EnrichContext(ctx context.Context, pr prospect.Prospect) (*AgentContext, error) {
	domain := pr.Domain()
	if domain == "" {
		return nil, ErrWebsiteRequired
	}
	if p.enricher == nil {
		return nil, &apierr.Error{Service: "apollo", Code: apierr.CodeNotConfigured, Message: "company enrichment is not configured"}
	}

	started := time.Now()
	company, err := p.enricher.Enrich(ctx, domain)
	p.metrics.ObserveDownstream("apollo", "enrich", apierr.CodeOf(err), started)
	if err != nil {
		p.logger.Warn("agent context enrichment failed", "domain", domain, "error", err)
		return nil, apierr.As("apollo", err)
	}

	p.logger.Info("agent context built", "domain", domain, "company", company.Name)
	return &AgentContext{
		Status:  StatusSuccess,
		Context: AgentBriefing(pr, company),
		Company: company,
	}, nil
}

// AgentBriefing renders the prospect and company as the plain-text context
// handed to the agent before a conversation. Empty company fields are skipped.
func AgentBriefing(pr prospect.Prospect, c *apollo.Company) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	b.WriteString("=== INFORMACIÓN DEL PROSPECTO ===\n")
	fmt.Fprintf(&b, "Nombre: %s\n", pr.FullName())
	fmt.Fprintf(&b, "Email: %s\n", pr.Email)
	fmt.Fprintf(&b, "Rol: %s\n", pr.Role)
	fmt.Fprintf(&b, "Empresa: %s\n\n", pr.Company)

	if c != nil {
		b.WriteString("=== INFORMACIÓN DE LA EMPRESA ===\n")
		line("Empresa", c.Name)
		line("Descripción", c.Description)
		line("Industria", c.Industry)
		if c.Employees > 0 {
			line("Número de empleados", fmt.Sprint(c.Employees))
		}
		if c.FoundedYear > 0 {
			line("Año de fundación", fmt.Sprint(c.FoundedYear))
		}
		line("Sitio web", c.Website)
		if c.LinkedIn != "" {
			line("Redes sociales", "LinkedIn: "+c.LinkedIn)
		}
		b.WriteString("\n")

		if rev := c.RevenueString(); rev != "" {
			b.WriteString("=== INFORMACIÓN FINANCIERA ===\n")
			line("Ingresos anuales", rev)
			b.WriteString("\n")
		}

		if c.Phone != "" || c.Address != "" {
			b.WriteString("=== INFORMACIÓN DE CONTACTO ===\n")
			line("Teléfono", c.Phone)
			line("Dirección", c.Address)
			b.WriteString("\n")
		}
	}

	b.WriteString("=== INSTRUCCIONES PARA EL AGENTE ===\n")
	b.WriteString("Usa esta información para personalizar la conversación y hacer referencias específicas a:\n")
	b.WriteString("- La industria y el tamaño de la empresa\n")
	b.WriteString("- La información financiera relevante\n")
	b.WriteString("- Los detalles específicos de la empresa\n")
	b.WriteString("Esto te ayudará a crear una conversación más relevante y personalizada.")
	return b.String()
}

// Engagement is a conversation summary logged against an existing contact by
// an external caller. Lists accept a single string or an array.
type Engagement struct {
	ConversationID   string         `json:"conversation_id"`
	Title            string         `json:"title"`
	DurationSeconds  int            `json:"duration"`
	ConversationType string         `json:"conversation_type"`
	Agent            string         `json:"ai_agent"`
	EngagementScore  int            `json:"engagement_score"`
	Company          string         `json:"company"`
	JobTitle         string         `json:"job_title"`
	PainPoints       analyzer.Steps `json:"pain_points"`
	KeyInsights      analyzer.Steps `json:"key_insights"`
	NextSteps        analyzer.Steps `json:"next_steps"`
	Summary          string         `json:"summary"`
	Transcript       string         `json:"transcript"`
	RecordingURL     string         `json:"recording_url"`
	FollowUpRequired bool           `json:"follow_up_required"`
}

// EngagementResult is the outcome of a successful LogEngagement.
type EngagementResult struct {
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	EngagementID string    `json:"engagement_id"`
	ContactID    string    `json:"contact_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// LogEngagement writes the engagement as a call record on the contact. The
// error is ErrContactRequired or an *apierr.Error from the CRM.
func (p *Processor) LogEngagement(ctx context.Context, contactID string, e Engagement) (*EngagementResult, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, ErrContactRequired
	}
	logger := p.logger.With("hubspot_id", contactID, "conversation_id", e.ConversationID)

	agent := e.Agent
	if agent == "" {
		agent = p.opts.AgentName
	}
	title := e.Title
	if title == "" {
		title = defaultEngagementTitle
	}

	now := p.now()
	body := hubspot.FormatCallBody(hubspot.CallNote{
		ConversationID:     e.ConversationID,
		Date:               now,
		Agent:              agent,
		ConversationType:   e.ConversationType,
		Company:            e.Company,
		Role:               e.JobTitle,
		PainPoint:          strings.Join(e.PainPoints, "; "),
		QualificationScore: e.EngagementScore,
		FollowUpRequired:   e.FollowUpRequired,
		KeyInsights:        e.KeyInsights,
		NextSteps:          e.NextSteps,
		Summary:            e.Summary,
		Transcript:         e.Transcript,
	})

	started := time.Now()
	callID, err := p.crm.CreateCall(ctx, contactID, hubspot.Call{
		Title:           title,
		Body:            body,
		DurationSeconds: e.DurationSeconds,
		RecordingURL:    e.RecordingURL,
		Timestamp:       now,
	})
	p.metrics.ObserveDownstream("hubspot", "create_call", apierr.CodeOf(err), started)
	if err != nil {
		logger.Error("failed to log engagement", "error", err)
		return nil, apierr.As("hubspot", err)
	}

	logger.Info("engagement logged", "call_id", callID)
	return &EngagementResult{
		Status:       StatusSuccess,
		Message:      "engagement logged",
		EngagementID: callID,
		ContactID:    contactID,
		Timestamp:    now,
	}, nil
}
