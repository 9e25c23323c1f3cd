package analyzer

import "strings"

// Format renders the transcript as speaker-labelled lines for prompts and
// CRM notes. System turns only contribute their tool calls.
func (t Transcript) Format() string {
	lines := make([]string, 0, len(t))
	for _, u := range t {
		switch u.Role {
		case RoleUser:
			lines = append(lines, "PROSPECT: "+u.Content)
		case RoleAssistant:
			lines = append(lines, "AGENT: "+u.Content)
		}
		for _, tc := range u.ToolCalls {
			name := tc.Function.Name
			if name == "" {
				name = "unknown"
			}
			lines = append(lines, "AGENT: [ran tool: "+name+"]")
		}
	}
	return strings.Join(lines, "\n")
}

// Spoken counts the utterances that carry speech.
func (t Transcript) Spoken() int {
	n := 0
	for _, u := range t {
		if (u.Role == RoleUser || u.Role == RoleAssistant) && strings.TrimSpace(u.Content) != "" {
			n++
		}
	}
	return n
}
