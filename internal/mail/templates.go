package mail

import (
	"fmt"

	"github.com/osteele/liquid"
)

// Default order-confirmation templates. The subject can be overridden from
// config; bodies are fixed platform copy.
const (
	defaultSubjectTemplate = "Your pattern order {{ order_number }} is ready"

	defaultHTMLTemplate = `<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Thanks for your order, {{ buyer_name | default: "there" }}!</h2>
  <p>Your order <strong>{{ order_number }}</strong> for
     <strong>{{ product_title }}</strong> is complete.</p>
  {% if attachment_count > 0 %}
  <p>Your files are attached to this email:</p>
  <ul>
  {% for name in attachment_names %}<li>{{ name }}</li>
  {% endfor %}</ul>
  <p>Each PDF is licensed for your personal use and stamped with your
     email address.</p>
  {% else %}
  <p>We had trouble attaching your files automatically. Don't worry -
     your order is confirmed, and our support team will send your files
     shortly.</p>
  {% endif %}
  <p>Happy stitching!<br>The Stitchfolk team</p>
</body>
</html>`

	defaultTextTemplate = `Thanks for your order, {{ buyer_name | default: "there" }}!

Your order {{ order_number }} for {{ product_title }} is complete.
{% if attachment_count > 0 %}
Your files are attached to this email:
{% for name in attachment_names %}  - {{ name }}
{% endfor %}
Each PDF is licensed for your personal use and stamped with your email
address.
{% else %}
We had trouble attaching your files automatically. Don't worry - your
order is confirmed, and our support team will send your files shortly.
{% endif %}
Happy stitching!
The Stitchfolk team`
)

// TemplateData feeds the confirmation templates.
type TemplateData struct {
	BuyerName       string
	OrderNumber     string
	ProductTitle    string
	AttachmentNames []string
}

// Templates renders the order-confirmation email with Liquid.
type Templates struct {
	engine  *liquid.Engine
	subject string
	html    string
	text    string
}

// NewTemplates creates the confirmation template set. subjectOverride
// replaces the default subject template when non-empty.
func NewTemplates(subjectOverride string) *Templates {
	engine := liquid.NewEngine()

	// Liquid's strict nil handling makes missing names render as empty;
	// "default" mirrors the storefront's filter so copy stays friendly.
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	subject := defaultSubjectTemplate
	if subjectOverride != "" {
		subject = subjectOverride
	}

	return &Templates{
		engine:  engine,
		subject: subject,
		html:    defaultHTMLTemplate,
		text:    defaultTextTemplate,
	}
}

// Render produces subject, HTML body and text body for a confirmation email.
func (t *Templates) Render(data TemplateData) (subject, html, text string, err error) {
	bindings := map[string]interface{}{
		"buyer_name":       data.BuyerName,
		"order_number":     data.OrderNumber,
		"product_title":    data.ProductTitle,
		"attachment_names": data.AttachmentNames,
		"attachment_count": len(data.AttachmentNames),
	}

	if subject, err = t.engine.ParseAndRenderString(t.subject, bindings); err != nil {
		return "", "", "", fmt.Errorf("rendering subject: %w", err)
	}
	if html, err = t.engine.ParseAndRenderString(t.html, bindings); err != nil {
		return "", "", "", fmt.Errorf("rendering html body: %w", err)
	}
	if text, err = t.engine.ParseAndRenderString(t.text, bindings); err != nil {
		return "", "", "", fmt.Errorf("rendering text body: %w", err)
	}
	return subject, html, text, nil
}
