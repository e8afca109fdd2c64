// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

// OrderInfo carries the fields the order email templates reference.
type OrderInfo struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	PaymentMethod string
	OrderDate     string
	Items         []OrderItem
	Total         string
	RefundAmount  string
	RefundReason  string
}

// OrderItem represents a single line item in an order email.
type OrderItem struct {
	Name       string
	Quantity   int
	TotalPrice string
}

type emailTemplate struct {
	Subject string
	Text    string
}

var orderTemplates = map[string]emailTemplate{
	"order_confirmation": {
		Subject: "Order Confirmed - %s",
		Text:    orderConfirmationText,
	},
	"order_delivered": {
		Subject: "Your Order Has Been Delivered - %s",
		Text:    orderDeliveredText,
	},
	"refund_processed": {
		Subject: "Refund Processed - %s",
		Text:    refundProcessedText,
	},
}

// Renderer provides methods to render email templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer creates a new email template renderer with built-in templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
	}

	tmpl := template.New("email").Funcs(funcMap)
	for key, t := range orderTemplates {
		if _, err := tmpl.New(key + "_text").Parse(t.Text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", key, err)
		}
	}

	return &Renderer{templates: tmpl}, nil
}

// Render renders an email template with the given data.
func (r *Renderer) Render(ctx context.Context, templateName string, data *OrderInfo) (*Email, error) {
	_ = ctx

	def, ok := orderTemplates[templateName]
	if !ok {
		return nil, fmt.Errorf("unknown email template: %s", templateName)
	}

	var textBuf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&textBuf, templateName+"_text", data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: fmt.Sprintf(def.Subject, data.OrderID),
		Text:    textBuf.String(),
	}, nil
}

// SendOrderConfirmation sends an order confirmation email with payment
// instructions.
func SendOrderConfirmation(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_confirmation", orderInfo)
}

// SendOrderDelivered sends an order delivered email.
func SendOrderDelivered(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "order_delivered", orderInfo)
}

// SendRefundProcessed sends a refund confirmation email.
func SendRefundProcessed(ctx context.Context, p Provider, orderInfo *OrderInfo) error {
	return send(ctx, p, "refund_processed", orderInfo)
}

func send(ctx context.Context, p Provider, templateName string, orderInfo *OrderInfo) error {
	if p == nil {
		return nil
	}

	renderer, err := NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	email, err := renderer.Render(ctx, templateName, orderInfo)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.SendEmail(ctx, email)
}

const orderConfirmationText = `Thank you for your order, {{.CustomerName}}!

Order: {{.OrderID}}
Order Date: {{.OrderDate}}

Items:
{{range .Items}}- {{.Name}} x{{.Quantity}} - {{.TotalPrice}}
{{end}}
Total: {{.Total}}

{{if eq .PaymentMethod "cod"}}You chose cash on delivery. Please have the total ready when your order arrives.
{{else}}We are waiting for your payment confirmation. Your order ships once payment is confirmed.
{{end}}
We'll send you another email when your order is on its way.
`

const orderDeliveredText = `Good news, {{.CustomerName}}!

Your order {{.OrderID}} has been delivered.

Once you have checked everything, please confirm receipt in your account so
we can close out the order.
`

const refundProcessedText = `Hello {{.CustomerName}},

Your refund for order {{.OrderID}} has been processed.

Refund amount: {{.RefundAmount}}
{{if .RefundReason}}Reason: {{.RefundReason}}
{{end}}
Depending on your payment provider it can take a few days for the amount to
show up.
`
