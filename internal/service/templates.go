package service

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Template names.
const (
	TemplateRFPInvite            = "rfp_invite"
	TemplateNegotiationRequest   = "negotiation_request"
	TemplateNegotiationResponse  = "negotiation_response"
	TemplateProposalSubmitted    = "proposal_submitted"
	TemplateInviteDeclined       = "invite_declined"
	TemplateNegotiationCancelled = "negotiation_cancelled"
)

// EmailData is the context every template renders against. Templates read only the fields they need.
type EmailData struct {
	RecipientName      string
	AdvisorCompany     string
	EntrepreneurName   string
	ProjectName        string
	RFPSubject         string
	Deadline           *time.Time
	DaysLeft           *int
	Message            string
	OldPrice           float64
	NewPrice           float64
	TargetPrice        *float64
	TargetReductionPct *float64
	PriceChangePct     *float64
	Link               string
	LinkLabel          string
}

// Templates holds one parsed template per email, each combined with the shared layout.
type Templates struct {
	set map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"money":   formatMoney,
	"percent": formatPercent,
	"date":    formatDate,
	"days":    formatDays,
}

func LoadTemplates() (*Templates, error) {
	layout, err := template.New("layout").Funcs(templateFuncs).ParseFS(templateFS, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	t := &Templates{set: make(map[string]*template.Template)}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		clone, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", file, err)
		}
		t.set[strings.TrimSuffix(path.Base(file), ".html")] = clone
	}
	return t, nil
}

// Has reports whether a template with this name was loaded.
func (t *Templates) Has(name string) bool {
	_, ok := t.set[name]
	return ok
}

// Render returns the subject line and HTML body for the named template.
func (t *Templates) Render(name string, data *EmailData) (string, string, error) {
	tmpl, ok := t.set[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return strings.TrimSpace(html.UnescapeString(subject.String())), body.String(), nil
}

func formatMoney(v any) string {
	var amount float64
	switch n := v.(type) {
	case float64:
		amount = n
	case *float64:
		if n == nil {
			return ""
		}
		amount = *n
	default:
		return fmt.Sprint(v)
	}

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	whole := strconv.FormatInt(int64(amount), 10)
	cents := int64((amount-float64(int64(amount)))*100 + 0.5)
	if cents == 100 {
		whole = strconv.FormatInt(int64(amount)+1, 10)
		cents = 0
	}

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	if cents == 0 {
		return sign + "₪" + grouped.String()
	}
	return fmt.Sprintf("%s₪%s.%02d", sign, grouped.String(), cents)
}

func formatPercent(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("02/01/2006 15:04 UTC")
}

func formatDays(d *int) string {
	if d == nil {
		return ""
	}
	if *d == 1 {
		return "1 day"
	}
	return strconv.Itoa(*d) + " days"
}
