package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

//go:embed templates
var templateFS embed.FS

// Template names double as the metrics label for sent emails.
const (
	TemplateVerification = "verification"
	TemplateWelcome      = "welcome"
	TemplateReset        = "reset"
)

type templatePair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

type templateData struct {
	Title    string
	Subtitle string
	AppName  string
	BaseURL  string
	To       string
	Name     string
	Link     string
	Expiry   string
	HasLogo  bool
	Year     int
}

func loadTemplates() (map[string]templatePair, error) {
	out := make(map[string]templatePair, 3)
	for _, name := range []string{TemplateVerification, TemplateWelcome, TemplateReset} {
		h, err := htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", name, err)
		}
		t, err := texttemplate.ParseFS(templateFS, "templates/"+name+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", name, err)
		}
		out[name] = templatePair{html: h, text: t}
	}
	return out, nil
}

func (p templatePair) render(data templateData) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := p.html.ExecuteTemplate(&hb, "layout", data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := p.text.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

// humanDuration renders a link lifetime for email copy.
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
