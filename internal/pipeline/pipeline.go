// Package pipeline joins conversation transcripts back to CRM contacts and
// writes the analysis results.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/triario/avatar-backend/internal/analyzer"
	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/apollo"
	"github.com/triario/avatar-backend/internal/hermes"
	"github.com/triario/avatar-backend/internal/hubspot"
	"github.com/triario/avatar-backend/internal/mailer"
	"github.com/triario/avatar-backend/internal/mapping"
	"github.com/triario/avatar-backend/internal/metrics"
	"github.com/triario/avatar-backend/internal/prospect"
	"github.com/triario/avatar-backend/internal/taxonomy"
)

const (
	// secondsPerUtterance estimates call duration from transcript length.
	secondsPerUtterance = 30
	followUpScore       = 7
)

// CRM is the subset of the CRM the pipeline writes to.
type CRM interface {
	UpsertContact(ctx context.Context, p prospect.Prospect, e *hubspot.Enrichment) (string, error)
	UpdateContactProperty(ctx context.Context, contactID, property, value string) error
	CreateCall(ctx context.Context, contactID string, call hubspot.Call) (string, error)
}

// Enricher looks up company data by domain.
type Enricher interface {
	Enrich(ctx context.Context, domain string) (*apollo.Company, error)
}

// Deps are the collaborators of a Processor. Enricher may be nil.
type Deps struct {
	Store    mapping.Store
	Analyzer analyzer.Analyzer
	Taxonomy *taxonomy.Taxonomy
	CRM      CRM
	Enricher Enricher
	Mailer   mailer.Sender
	Events   hermes.Publisher
	Metrics  *metrics.Metrics
}

// Options tune CRM field names and outbound content.
type Options struct {
	PainProperty string
	AgentName    string
	MeetingLinks map[string]string
}

// Processor orchestrates the prospect, transcript and tool call flows.
type Processor struct {
	store    mapping.Store
	analyzer analyzer.Analyzer
	tax      *taxonomy.Taxonomy
	crm      CRM
	enricher Enricher
	mailer   mailer.Sender
	events   hermes.Publisher
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func New(d Deps, opts Options, logger *slog.Logger) *Processor {
	if d.Events == nil {
		d.Events = hermes.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.DefaultMetrics
	}
	if opts.PainProperty == "" {
		opts.PainProperty = "dolores_de_venta"
	}
	return &Processor{
		store:    d.Store,
		analyzer: d.Analyzer,
		tax:      d.Taxonomy,
		crm:      d.CRM,
		enricher: d.Enricher,
		mailer:   d.Mailer,
		events:   d.Events,
		metrics:  d.Metrics,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Store exposes the mapping store for read-only endpoints.
func (p *Processor) Store() mapping.Store { return p.store }

// HandleTranscript analyzes a finished conversation and writes the pain point
// and a call record to the mapped contact. The two CRM writes are independent.
func (p *Processor) HandleTranscript(ctx context.Context, ev TranscriptEvent) TranscriptResult {
	logger := p.logger.With("conversation_id", ev.ConversationID)

	m, ok := p.store.Get(ctx, ev.ConversationID)
	p.metrics.MappingOps.WithLabelValues("get", metrics.Result(ok)).Inc()
	if !ok {
		logger.Warn("no mapping for conversation")
		p.metrics.TranscriptsProcessed.WithLabelValues(StatusWarning).Inc()
		return TranscriptResult{
			Status:         StatusWarning,
			Reason:         ReasonNotFound,
			Message:        "no prospect information for conversation " + ev.ConversationID,
			ConversationID: ev.ConversationID,
		}
	}
	logger = logger.With("hubspot_id", m.HubSpotID)

	analysis := p.analyzer.Analyze(ctx, ev.Transcript, m.Prospect)
	p.metrics.AnalysesTotal.WithLabelValues(p.analyzer.Mode()).Inc()

	pain := p.tax.Canonicalize(string(analysis.PainPoint))
	if !p.tax.Accepted(pain) {
		logger.Warn("pain point not accepted by CRM, using default",
			"raw_pain_point", analysis.PainPoint,
			"default", p.tax.Default,
		)
		pain = p.tax.Default
	}
	analysis.PainPoint = pain

	updates := &Updates{}

	started := time.Now()
	err := p.crm.UpdateContactProperty(ctx, m.HubSpotID, p.opts.PainProperty, string(pain))
	p.metrics.ObserveDownstream("hubspot", "update_property", apierr.CodeOf(err), started)
	if err != nil {
		logger.Error("failed to update pain field", "error", err)
		updates.PainFieldError = apierr.As("hubspot", err)
	} else {
		updates.PainFieldUpdated = true
		p.metrics.PainPoints.WithLabelValues(string(pain)).Inc()
	}

	now := p.now()
	body := hubspot.FormatCallBody(hubspot.CallNote{
		ConversationID:     ev.ConversationID,
		Date:               now,
		Agent:              p.opts.AgentName,
		ConversationType:   "video_call",
		Company:            m.Prospect.Company,
		Role:               m.Prospect.Role,
		PainPoint:          string(pain),
		QualificationScore: analysis.QualificationScore,
		FollowUpRequired:   analysis.QualificationScore >= followUpScore,
		KeyInsights:        analysis.KeyInsights,
		NextSteps:          analysis.NextSteps,
		Summary:            analysis.Summary,
		Transcript:         ev.Transcript.Format(),
	})

	started = time.Now()
	callID, err := p.crm.CreateCall(ctx, m.HubSpotID, hubspot.Call{
		Title:           "Conversación con " + m.Prospect.FullName(),
		Body:            body,
		DurationSeconds: len(ev.Transcript) * secondsPerUtterance,
		Timestamp:       now,
	})
	p.metrics.ObserveDownstream("hubspot", "create_call", apierr.CodeOf(err), started)
	if err != nil {
		logger.Error("failed to create call", "error", err)
		updates.CallError = apierr.As("hubspot", err)
	} else {
		updates.CallCreated = true
		updates.CallID = callID
	}

	status, message := outcome(updates)
	p.metrics.TranscriptsProcessed.WithLabelValues(status).Inc()

	attrs := map[string]any{
		"last_analyzed_at":    now.UTC().Format(time.RFC3339),
		"last_pain_point":     string(pain),
		"qualification_score": analysis.QualificationScore,
		"analyzer_mode":       p.analyzer.Mode(),
	}
	if updates.CallCreated {
		attrs["call_id"] = updates.CallID
	}
	stored := p.store.Update(ctx, ev.ConversationID, attrs)
	p.metrics.MappingOps.WithLabelValues("update", metrics.Result(stored)).Inc()

	p.publish(hermes.SubjectConversationAnalyzed, hermes.ConversationAnalyzed{
		ConversationID:     ev.ConversationID,
		HubSpotID:          m.HubSpotID,
		PainPoint:          string(pain),
		PainConfidence:     analysis.PainConfidence,
		QualificationScore: analysis.QualificationScore,
		AnalyzerMode:       p.analyzer.Mode(),
		PainFieldUpdated:   updates.PainFieldUpdated,
		CallCreated:        updates.CallCreated,
	})

	logger.Info("conversation processed",
		"status", status,
		"pain_point", pain,
		"qualification_score", analysis.QualificationScore,
		"pain_field_updated", updates.PainFieldUpdated,
		"call_created", updates.CallCreated,
	)

	return TranscriptResult{
		Status:         status,
		Message:        message,
		ConversationID: ev.ConversationID,
		HubSpotID:      m.HubSpotID,
		AnalyzerMode:   p.analyzer.Mode(),
		Analysis:       &analysis,
		Updates:        updates,
	}
}

func outcome(u *Updates) (string, string) {
	switch {
	case u.PainFieldUpdated && u.CallCreated:
		return StatusSuccess, "conversation processed"
	case u.PainFieldUpdated || u.CallCreated:
		return StatusPartial, "conversation processed with CRM write failures"
	default:
		return StatusFailed, "conversation analyzed but no CRM write succeeded"
	}
}

// CreateProspect writes the form submission to the CRM, enriched with company
// data when a website is given, and records the conversation mapping. The
// error is a *prospect.MissingFieldError for invalid input or an
// *apierr.Error when the CRM write fails.
func (p *Processor) CreateProspect(ctx context.Context, pr prospect.Prospect, conversationID string) (*ProspectResult, error) {
	if err := pr.Validate(); err != nil {
		p.metrics.ProspectsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	logger := p.logger.With("email", pr.Email, "conversation_id", conversationID)

	var (
		company    *apollo.Company
		enrichment *hubspot.Enrichment
	)
	if domain := pr.Domain(); domain != "" && p.enricher != nil {
		started := time.Now()
		c, err := p.enricher.Enrich(ctx, domain)
		p.metrics.ObserveDownstream("apollo", "enrich", apierr.CodeOf(err), started)
		if err != nil {
			logger.Warn("company enrichment failed", "domain", domain, "error", err)
		} else {
			company = c
			enrichment = &hubspot.Enrichment{
				Industry:      c.Industry,
				Phone:         c.Phone,
				Address:       c.Address,
				AnnualRevenue: c.RevenueString(),
			}
		}
	}

	started := time.Now()
	hubspotID, err := p.crm.UpsertContact(ctx, pr, enrichment)
	p.metrics.ObserveDownstream("hubspot", "upsert_contact", apierr.CodeOf(err), started)
	if err != nil {
		logger.Error("failed to create prospect in CRM", "error", err)
		p.metrics.ProspectsTotal.WithLabelValues("error").Inc()
		return nil, apierr.As("hubspot", err)
	}

	stored := false
	if conversationID != "" {
		stored = p.store.Put(ctx, conversationID, hubspotID, pr)
		p.metrics.MappingOps.WithLabelValues("put", metrics.Result(stored)).Inc()
		if !stored {
			logger.Warn("failed to store conversation mapping", "hubspot_id", hubspotID)
		}
	} else {
		logger.Info("prospect has no conversation id, mapping skipped")
	}

	p.metrics.ProspectsTotal.WithLabelValues("created").Inc()
	p.publish(hermes.SubjectProspectCreated, hermes.ProspectCreated{
		ConversationID: conversationID,
		HubSpotID:      hubspotID,
		Email:          pr.Email,
		Company:        pr.Company,
		Enriched:       company != nil,
		MappingStored:  stored,
	})

	logger.Info("prospect created", "hubspot_id", hubspotID, "enriched", company != nil)
	return &ProspectResult{
		Status:         StatusSuccess,
		Message:        "prospect created",
		HubSpotID:      hubspotID,
		ConversationID: conversationID,
		MappingStored:  stored,
		Prospect:       pr,
		Company:        company,
	}, nil
}

func (p *Processor) publish(subject string, data any) {
	if err := p.events.Publish(subject, hermes.NewEvent(subject, data)); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

