package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-nord/storefront-backend/pkg/config"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
)

type stubSender struct {
	sent []*mail.SGMailV3
	resp *rest.Response
	err  error
}

func (s *stubSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	s.sent = append(s.sent, email)
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &rest.Response{StatusCode: 202}, nil
}

func confirmedOrder(email string) *models.Order {
	return &models.Order{
		PublicID:      "ORD-AB12CD34",
		Currency:      "EUR",
		SubtotalCents: 1999,
		TotalCents:    2589,
		Customer: &models.Customer{
			Email:     email,
			FirstName: "Anna",
			LastName:  "Berg",
		},
		Items: []models.OrderLineItem{
			{Title: "Oak Shelf", UnitPriceCents: 1999, Qty: 1},
		},
	}
}

func TestSendOrderConfirmation(t *testing.T) {
	t.Parallel()

	stub := &stubSender{}
	m := &mailer{client: stub, from: mail.NewEmail("Atelier Nord", "orders@example.com")}

	skipped, err := m.SendOrderConfirmation(context.Background(), confirmedOrder("anna@example.com"))
	require.NoError(t, err)
	assert.False(t, skipped)
	require.Len(t, stub.sent, 1)
	assert.Equal(t, "Order ORD-AB12CD34 confirmed", stub.sent[0].Subject)
}

func TestSendOrderConfirmationSkips(t *testing.T) {
	t.Parallel()

	// No API key configured: every send is skipped, never an error.
	unconfigured := NewMailer(config.SendgridConfig{})
	skipped, err := unconfigured.SendOrderConfirmation(context.Background(), confirmedOrder("anna@example.com"))
	require.NoError(t, err)
	assert.True(t, skipped)

	// Configured, but the order has no recipient.
	stub := &stubSender{}
	m := &mailer{client: stub, from: mail.NewEmail("Atelier Nord", "orders@example.com")}
	skipped, err = m.SendOrderConfirmation(context.Background(), confirmedOrder(""))
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Empty(t, stub.sent)
}

func TestSendOrderConfirmationReportsFailure(t *testing.T) {
	t.Parallel()

	m := &mailer{client: &stubSender{err: errors.New("network down")}, from: mail.NewEmail("Atelier Nord", "orders@example.com")}
	skipped, err := m.SendOrderConfirmation(context.Background(), confirmedOrder("anna@example.com"))
	require.Error(t, err)
	assert.False(t, skipped)

	m = &mailer{client: &stubSender{resp: &rest.Response{StatusCode: 401}}, from: mail.NewEmail("Atelier Nord", "orders@example.com")}
	_, err = m.SendOrderConfirmation(context.Background(), confirmedOrder("anna@example.com"))
	require.Error(t, err)
}
