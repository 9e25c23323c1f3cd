package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/mailer"
)

// ToolScheduleMeeting emails the prospect a link to book a meeting.
const ToolScheduleMeeting = "schedule_meeting"

type scheduleMeetingArgs struct {
	Email    string `json:"email"`
	Language string `json:"language"`
}

// HandleToolCall executes a tool the agent invoked mid-conversation.
func (p *Processor) HandleToolCall(ctx context.Context, ev ToolCallEvent) ToolResult {
	switch ev.Name {
	case ToolScheduleMeeting:
		res := p.scheduleMeeting(ctx, ev)
		p.metrics.ToolCalls.WithLabelValues(ev.Name, res.Status).Inc()
		return res
	default:
		p.logger.Warn("unsupported tool call", "tool", ev.Name, "conversation_id", ev.ConversationID)
		p.metrics.ToolCalls.WithLabelValues("other", ToolStatusUnsupported).Inc()
		return ToolResult{
			Status:  ToolStatusUnsupported,
			Tool:    ev.Name,
			Message: fmt.Sprintf("tool %q is not implemented", ev.Name),
		}
	}
}

func (p *Processor) scheduleMeeting(ctx context.Context, ev ToolCallEvent) ToolResult {
	fail := func(msg string) ToolResult {
		return ToolResult{Status: StatusFailed, Tool: ev.Name, Message: msg}
	}

	var args scheduleMeetingArgs
	if err := decodeArguments(ev.Arguments, &args); err != nil {
		return fail(err.Error())
	}

	// The agent may not repeat the address; fall back to the form submission.
	if strings.TrimSpace(args.Email) == "" && ev.ConversationID != "" {
		if m, ok := p.store.Get(ctx, ev.ConversationID); ok {
			args.Email = m.Prospect.Email
		}
	}
	if strings.TrimSpace(args.Email) == "" {
		return fail("no email address provided")
	}

	lang := mailer.NormalizeLanguage(args.Language)
	link := p.opts.MeetingLinks[lang]
	if link == "" {
		link = p.opts.MeetingLinks[mailer.LangES]
	}
	if link == "" {
		return fail("no meeting link configured for language " + lang)
	}

	msg, err := mailer.MeetingInvite(args.Email, lang, link)
	if err != nil {
		return fail(err.Error())
	}

	started := time.Now()
	id, err := p.mailer.Send(ctx, msg)
	p.metrics.ObserveDownstream("resend", "send", apierr.CodeOf(err), started)
	if err != nil {
		p.logger.Error("failed to send meeting email", "to", args.Email, "error", err)
		return fail("failed to send email: " + err.Error())
	}

	p.logger.Info("meeting email sent",
		"to", args.Email,
		"language", lang,
		"conversation_id", ev.ConversationID,
	)
	return ToolResult{
		Status:    StatusSuccess,
		Tool:      ev.Name,
		Message:   fmt.Sprintf("meeting email sent to %s in language %s", args.Email, lang),
		MessageID: id,
	}
}

// decodeArguments accepts arguments as a JSON object or as a string holding
// a JSON object.
func decodeArguments(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}

