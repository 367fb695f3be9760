// Package notifications sends transactional email. Sending is best-effort:
// settlement calls it after commit and logs failures without ever failing
// the order.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/atelier-nord/storefront-backend/pkg/config"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/units"
)

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Mailer sends order lifecycle email to customers.
type Mailer interface {
	// SendOrderConfirmation emails the order summary. skipped is true when
	// mail is not configured or the order carries no recipient.
	SendOrderConfirmation(ctx context.Context, order *models.Order) (skipped bool, err error)
}

type mailer struct {
	client   sender
	from     *mail.Email
	currency string
}

// NewMailer builds the SendGrid-backed mailer. An empty API key yields a
// mailer that skips every send, which keeps local development working
// without credentials.
func NewMailer(cfg config.SendgridConfig) Mailer {
	m := &mailer{}
	if strings.TrimSpace(cfg.APIKey) != "" && strings.TrimSpace(cfg.DefaultFrom) != "" {
		m.client = sendgrid.NewSendClient(cfg.APIKey)
		m.from = mail.NewEmail(cfg.FromName, cfg.DefaultFrom)
	}
	return m
}

func (m *mailer) SendOrderConfirmation(ctx context.Context, order *models.Order) (bool, error) {
	if m.client == nil {
		return true, nil
	}
	if order == nil || order.Customer == nil || strings.TrimSpace(order.Customer.Email) == "" {
		return true, nil
	}

	to := mail.NewEmail(recipientName(order.Customer), order.Customer.Email)
	subject := fmt.Sprintf("Order %s confirmed", order.PublicID)
	text, html := confirmationBody(order)

	resp, err := m.client.SendWithContext(ctx, mail.NewSingleEmail(m.from, subject, to, text, html))
	if err != nil {
		return false, err
	}
	if resp != nil && resp.StatusCode >= 400 {
		return false, fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return false, nil
}

func recipientName(customer *models.Customer) string {
	name := strings.TrimSpace(customer.FirstName + " " + customer.LastName)
	if name == "" {
		return customer.Email
	}
	return name
}

func confirmationBody(order *models.Order) (string, string) {
	var lines strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&lines, "%d x %s – %s %s\n", item.Qty, item.Title,
			units.CentsToDecimalString(item.UnitPriceCents), order.Currency)
	}
	total := units.CentsToDecimalString(order.TotalCents)

	text := fmt.Sprintf("Thank you for your order %s.\n\n%s\nTotal: %s %s\n",
		order.PublicID, lines.String(), total, order.Currency)
	html := fmt.Sprintf("<p>Thank you for your order <strong>%s</strong>.</p><p>Total: %s %s</p>",
		order.PublicID, total, order.Currency)
	return text, html
}
