package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Language codes accepted by NormalizeLanguage.
const (
	LangES = "es"
	LangEN = "en"
)

// NormalizeLanguage maps "en"/"english" to LangEN and anything else to LangES.
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "english", "inglés", "ingles":
		return LangEN
	default:
		return LangES
	}
}

type meetingCopy struct {
	Subject  string
	Greeting string
	Thanks   string
	Prompt   string
	Button   string
	Fallback string
	Footer   string
	Link     string
}

var meetingCopies = map[string]meetingCopy{
	LangES: {
		Subject:  "Programar Reunión - Triario",
		Greeting: "¡Hola!",
		Thanks:   "Gracias por tu interés en programar una reunión con nosotros.",
		Prompt:   "Puedes agendar tu reunión haciendo clic en el siguiente enlace:",
		Button:   "Programar Reunión",
		Fallback: "O copia y pega este enlace en tu navegador:",
		Footer:   "Este email fue enviado automáticamente por Triario AI",
	},
	LangEN: {
		Subject:  "Schedule Meeting - Triario",
		Greeting: "Hello!",
		Thanks:   "Thank you for your interest in scheduling a meeting with us.",
		Prompt:   "You can schedule your meeting by clicking on the following link:",
		Button:   "Schedule Meeting",
		Fallback: "Or copy and paste this link into your browser:",
		Footer:   "This email was sent automatically by Triario AI",
	},
}

var meetingHTML = htmltemplate.Must(htmltemplate.New("meeting").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #ff433f; text-align: center;">{{.Greeting}}</h2>
    <p>{{.Thanks}}</p>
    <p>{{.Prompt}}</p>
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{.Link}}" style="background-color: #ff433f; color: white; padding: 15px 30px; text-decoration: none; border-radius: 5px; font-weight: bold; display: inline-block;">{{.Button}}</a>
    </div>
    <p>{{.Fallback}}</p>
    <p style="word-break: break-all; background-color: #f5f5f5; padding: 10px; border-radius: 3px; font-family: monospace;">{{.Link}}</p>
    <hr style="margin: 30px 0; border: none; border-top: 1px solid #eee;">
    <p style="font-size: 12px; color: #666; text-align: center;">{{.Footer}}</p>
  </div>
</body>
</html>
`))

var meetingText = texttemplate.Must(texttemplate.New("meeting").Parse(`{{.Greeting}}

{{.Thanks}}

{{.Prompt}}
{{.Link}}

{{.Footer}}
`))

// MeetingInvite builds the scheduling email for lang pointing at link.
func MeetingInvite(to, lang, link string) (Message, error) {
	c := meetingCopies[NormalizeLanguage(lang)]
	c.Link = link

	var html, text bytes.Buffer
	if err := meetingHTML.Execute(&html, c); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := meetingText.Execute(&text, c); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{To: to, Subject: c.Subject, HTML: html.String(), Text: text.String()}, nil
}
