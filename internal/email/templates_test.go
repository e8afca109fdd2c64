package email

import (
	"context"
	"strings"
	"testing"
)

func TestRenderOrderConfirmation(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}

	info := &OrderInfo{
		OrderID:       "a1b2c3",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		PaymentMethod: "online",
		OrderDate:     "January 2, 2026",
		Items: []OrderItem{
			{Name: "Laptop", Quantity: 1, TotalPrice: "$999.00"},
		},
		Total: "$999.00",
	}

	email, err := renderer.Render(context.Background(), "order_confirmation", info)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if email.To != "ada@example.com" {
		t.Fatalf("To = %q, want ada@example.com", email.To)
	}
	if !strings.Contains(email.Subject, "a1b2c3") {
		t.Fatalf("subject missing order id: %q", email.Subject)
	}
	if !strings.Contains(email.Text, "Laptop x1") {
		t.Fatalf("body missing line item: %q", email.Text)
	}
	if !strings.Contains(email.Text, "waiting for your payment confirmation") {
		t.Fatalf("online order must carry payment instructions: %q", email.Text)
	}
}

func TestRenderCashOnDeliveryInstructions(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}

	info := &OrderInfo{
		OrderID:       "a1b2c3",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		PaymentMethod: "cod",
		Total:         "$42.00",
	}

	email, err := renderer.Render(context.Background(), "order_confirmation", info)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(email.Text, "cash on delivery") {
		t.Fatalf("cod order must carry cod instructions: %q", email.Text)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}

	if _, err := renderer.Render(context.Background(), "order_shipped", &OrderInfo{}); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestSendSkipsNilProvider(t *testing.T) {
	t.Parallel()

	if err := SendOrderConfirmation(context.Background(), nil, &OrderInfo{}); err != nil {
		t.Fatalf("nil provider must be a no-op, got %v", err)
	}
}
