package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

const templateSet = `
{{define "header"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;">
<h2 style="color:#1f2937;">{{.Heading}}</h2>{{end}}

{{define "footer"}}{{with .CompanyName}}<p style="color:#6b7280;font-size:12px;">Company: {{.}}</p>{{end}}
<p style="color:#6b7280;font-size:12px;">This is an automated message from Stockroom.</p>
</div>{{end}}

{{define "stock_request"}}{{template "header" .}}
<p><strong>{{.RequesterName}}</strong> requested stock for <strong>{{.ItemName}}</strong>.</p>
<p>Quantity requested: {{.Quantity}}</p>
{{with .Notes}}<p>Notes: {{.}}</p>{{end}}
{{template "footer" .}}{{end}}

{{define "purchase"}}{{template "header" .}}
<p>A purchase of <strong>{{.ItemName}}</strong> was recorded.</p>
<p>Quantity: {{.Quantity}}</p>
{{with .Supplier}}<p>Supplier: {{.}}</p>{{end}}
{{if .Total}}<p>Total: {{printf "%.2f" .Total}}</p>{{end}}
{{template "footer" .}}{{end}}

{{define "low_stock"}}{{template "header" .}}
<p>The item <strong>{{.ItemName}}</strong> is running low.</p>
<p>Current quantity: <strong>{{.Quantity}}</strong></p>
<p>Minimum quantity: {{.MinQuantity}}</p>
<p>Please restock soon.</p>
{{template "footer" .}}{{end}}

{{define "tech_low_stock"}}{{template "header" .}}
<p>Technician <strong>{{.TechEmail}}</strong> is running low on <strong>{{.ItemName}}</strong>.</p>
<p>Current quantity: <strong>{{.Quantity}}</strong></p>
<p>Minimum quantity: {{.MinQuantity}}</p>
{{template "footer" .}}{{end}}

{{define "user_activity"}}{{template "header" .}}
<p><strong>{{.UserName}}</strong>: {{.Activity}}</p>
{{template "footer" .}}{{end}}

{{define "test"}}{{template "header" .}}
<p>This is a test email. Your notification settings are working.</p>
{{template "footer" .}}{{end}}

{{define "default"}}{{template "header" .}}
<p>{{.Message}}</p>
{{template "footer" .}}{{end}}
`

var templates = template.Must(template.New("notify").Parse(templateSet))

type templateData struct {
	Request
	Heading string
}

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

// Render maps the request type to its subject line and HTML body. Unknown types use the
// default template, which is the only one honouring a caller supplied subject.
func Render(req Request) (Message, error) {
	name, subject := req.Type, ""
	switch req.Type {
	case TypeStockRequest:
		subject = fmt.Sprintf("New Stock Request: %s", req.ItemName)
	case TypePurchase:
		subject = fmt.Sprintf("Purchase Recorded: %s", req.ItemName)
	case TypeLowStock:
		subject = fmt.Sprintf("Low Stock Alert: %s", req.ItemName)
	case TypeTechLowStock:
		subject = fmt.Sprintf("Technician Low Stock Alert: %s", req.ItemName)
	case TypeUserActivity:
		subject = fmt.Sprintf("User Activity: %s", req.UserName)
	case TypeTest:
		subject = "Test Email from Stockroom"
	default:
		name = "default"
		subject = req.Subject
		if subject == "" {
			subject = "Notification from Stockroom"
		}
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, templateData{Request: req, Heading: subject}); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{Subject: subject, HTML: body.String()}, nil
}
