package settlement

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/internal/catalog"
	"github.com/atelier-nord/storefront-backend/internal/customers"
	"github.com/atelier-nord/storefront-backend/internal/discounts"
	"github.com/atelier-nord/storefront-backend/internal/orders"
	"github.com/atelier-nord/storefront-backend/internal/payments"
	"github.com/atelier-nord/storefront-backend/internal/pricing"
	"github.com/atelier-nord/storefront-backend/internal/shippingrates"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

type stubTx struct {
	calls int
}

func (s *stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	return fn(nil)
}

type stubCartResolver struct {
	lines []pricing.Line
	err   error
}

func (s *stubCartResolver) ResolveCart(ctx context.Context, lines []catalog.CartLine) ([]pricing.Line, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lines, nil
}

type stubDiscounts struct {
	applied *discounts.Applied
	err     error
}

func (s *stubDiscounts) Resolve(ctx context.Context, code string, baseCents int64) (*discounts.Applied, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.applied != nil {
		return s.applied, nil
	}
	return &discounts.Applied{Code: strings.ToUpper(code), Kind: enums.DiscountKindFixed}, nil
}

type stubShipping struct {
	resolved *shippingrates.Resolved
	err      error
}

func (s *stubShipping) Resolve(ctx context.Context, in shippingrates.ResolveInput) (*shippingrates.Resolved, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resolved, nil
}

func (s *stubShipping) ActiveOptions(ctx context.Context) ([]models.ShippingOption, error) {
	return nil, nil
}

type stubRail struct {
	name   enums.PaymentRail
	status enums.OrderStatus
	facts  *payments.SettlementFacts
	err    error
	echo   bool
}

func (s *stubRail) Name() enums.PaymentRail {
	return s.name
}

func (s *stubRail) InitialStatus() enums.OrderStatus {
	return s.status
}

func (s *stubRail) Verify(ctx context.Context, reference string, expected payments.Expectation) (*payments.SettlementFacts, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.echo {
		return &payments.SettlementFacts{
			Succeeded:   true,
			AmountCents: expected.AmountCents,
			Currency:    expected.Currency,
		}, nil
	}
	return s.facts, nil
}

type stubCustomers struct {
	upserts  int
	customer *models.Customer
}

func (s *stubCustomers) WithTx(tx *gorm.DB) customers.Repository {
	return s
}

func (s *stubCustomers) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCustomers) UpsertByEmail(ctx context.Context, in customers.UpsertInput) (*models.Customer, error) {
	s.upserts++
	if s.customer != nil {
		return s.customer, nil
	}
	return &models.Customer{ID: uuid.New(), Email: strings.ToLower(in.Email)}, nil
}

type stubOrders struct {
	byReference  map[string]*models.Order
	created      []*models.Order
	items        []models.OrderLineItem
	createErr    error
	confirmed    []uuid.UUID
	lookupMisses int
}

func newStubOrders() *stubOrders {
	return &stubOrders{byReference: map[string]*models.Order{}}
}

func (s *stubOrders) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubOrders) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, exists := s.byReference[order.PaymentReference]; exists {
		return nil, fmt.Errorf("UNIQUE constraint failed: orders.payment_reference")
	}
	order.ID = uuid.New()
	s.byReference[order.PaymentReference] = order
	s.created = append(s.created, order)
	return order, nil
}

func (s *stubOrders) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	s.items = append(s.items, items...)
	return nil
}

func (s *stubOrders) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	if s.lookupMisses > 0 {
		s.lookupMisses--
		return nil, gorm.ErrRecordNotFound
	}
	if order, ok := s.byReference[reference]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrders) FindByPublicID(ctx context.Context, publicID string) (*models.Order, error) {
	for _, order := range s.byReference {
		if order.PublicID == publicID {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrders) List(ctx context.Context, filter orders.ListFilter) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrders) MarkFulfilled(ctx context.Context, orderID uuid.UUID, update orders.FulfillmentUpdate) error {
	return nil
}

func (s *stubOrders) MarkConfirmationSent(ctx context.Context, orderID uuid.UUID) error {
	s.confirmed = append(s.confirmed, orderID)
	return nil
}

type stubMailer struct {
	sent    int
	skipped bool
	err     error
}

func (s *stubMailer) SendOrderConfirmation(ctx context.Context, order *models.Order) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.skipped {
		return true, nil
	}
	s.sent++
	return false, nil
}

type fixture struct {
	svc       Service
	tx        *stubTx
	customers *stubCustomers
	orders    *stubOrders
	mailer    *stubMailer
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newFixture(t *testing.T, lines []pricing.Line, rails ...payments.Rail) *fixture {
	t.Helper()

	tx := &stubTx{}
	customersRepo := &stubCustomers{}
	ordersRepo := newStubOrders()
	mail := &stubMailer{}

	if len(rails) == 0 {
		rails = []payments.Rail{&stubRail{
			name:   enums.PaymentRailCard,
			status: enums.OrderStatusPaid,
			echo:   true,
		}}
	}

	svc, err := NewService(
		tx,
		&stubCartResolver{lines: lines},
		&stubDiscounts{},
		&stubShipping{resolved: &shippingrates.Resolved{ShippingCents: 590}},
		rails,
		customersRepo,
		ordersRepo,
		mail,
		nil,
		testLogger(),
		"EUR",
	)
	require.NoError(t, err)
	return &fixture{svc: svc, tx: tx, customers: customersRepo, orders: ordersRepo, mailer: mail}
}

func cartLines() []pricing.Line {
	return []pricing.Line{
		{ProductID: uuid.New(), Title: "Oak Shelf", UnitPriceCents: 1999, WeightGrams: 1200, Qty: 1},
	}
}

func settleInput(reference string) SettleInput {
	return SettleInput{
		QuoteInput: QuoteInput{
			Lines:   []catalog.CartLine{{ProductID: uuid.New(), Qty: 1}},
			Country: "NL",
		},
		Rail:             enums.PaymentRailCard,
		PaymentReference: reference,
		Customer:         CustomerInput{Email: "anna@example.com", FirstName: "Anna"},
		ShippingAddress: &types.Address{
			Line1:      "Keizersgracht 1",
			City:       "Amsterdam",
			PostalCode: "1015CS",
			Country:    "NL",
		},
	}
}

func TestSettleCreatesPaidOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cartLines())

	result, err := f.svc.Settle(context.Background(), settleInput("pi_123"))
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.False(t, result.Replayed)

	order := result.Order
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, "pi_123", order.PaymentReference)
	assert.Equal(t, int64(1999), order.SubtotalCents)
	assert.Equal(t, int64(590), order.ShippingCents)
	assert.Equal(t, int64(2589), order.TotalCents)
	assert.True(t, strings.HasPrefix(order.PublicID, "ORD-"))
	require.NotNil(t, order.PaidAt)

	require.Len(t, f.orders.items, 1)
	assert.Equal(t, "Oak Shelf", f.orders.items[0].Title)
	assert.Equal(t, int64(1999), f.orders.items[0].UnitPriceCents)
	assert.Equal(t, 1, f.customers.upserts)
	assert.Equal(t, 1, f.mailer.sent)
	require.Len(t, f.orders.confirmed, 1)
}

func TestSettleMismatchCreatesNothing(t *testing.T) {
	t.Parallel()

	// Provider settled 2400 where the cart computes 2589.
	short := &stubRail{
		name:   enums.PaymentRailCard,
		status: enums.OrderStatusPaid,
		facts:  &payments.SettlementFacts{Succeeded: true, AmountCents: 2400, Currency: "EUR"},
	}
	f := newFixture(t, cartLines(), short)

	_, err := f.svc.Settle(context.Background(), settleInput("pi_short"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeSettlementMismatch, typed.Code())

	assert.Empty(t, f.orders.created)
	assert.Zero(t, f.customers.upserts)
	assert.Zero(t, f.tx.calls)
	assert.Zero(t, f.mailer.sent)
}

func TestSettleUnsettledPaymentRejected(t *testing.T) {
	t.Parallel()

	pending := &stubRail{
		name:   enums.PaymentRailCard,
		status: enums.OrderStatusPaid,
		facts:  &payments.SettlementFacts{Succeeded: false},
	}
	f := newFixture(t, cartLines(), pending)

	_, err := f.svc.Settle(context.Background(), settleInput("pi_pending"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeSettlementMismatch, pkgerrors.As(err).Code())
	assert.Empty(t, f.orders.created)
}

func TestSettleReplaysExistingReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cartLines())

	first, err := f.svc.Settle(context.Background(), settleInput("pi_replay"))
	require.NoError(t, err)

	second, err := f.svc.Settle(context.Background(), settleInput("pi_replay"))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.PublicID, second.Order.PublicID)

	// Exactly one order and one snapshot row per original line.
	assert.Len(t, f.orders.created, 1)
	assert.Len(t, f.orders.items, 1)
	assert.Equal(t, 1, f.customers.upserts)
	assert.Equal(t, 1, f.mailer.sent)
}

func TestSettleManualRail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cartLines(), payments.NewManualRail())

	in := settleInput("")
	in.Rail = enums.PaymentRailManual
	result, err := f.svc.Settle(context.Background(), in)
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	assert.True(t, strings.HasPrefix(order.PaymentReference, "INV-"))
	assert.Nil(t, order.PaidAt)
}

func TestSettleUnsupportedRail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cartLines())

	in := settleInput("ref")
	in.Rail = enums.PaymentRailWallet
	_, err := f.svc.Settle(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSettleMissingReferenceRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cartLines())

	_, err := f.svc.Settle(context.Background(), settleInput(""))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSettleEmailFailureDoesNotFailOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cartLines())
	f.mailer.err = fmt.Errorf("smtp down")

	result, err := f.svc.Settle(context.Background(), settleInput("pi_mailfail"))
	require.NoError(t, err)
	assert.False(t, result.Order.ConfirmationSent)
	assert.Empty(t, f.orders.confirmed)
}

func TestQuoteAppliesDiscountOnSubtotalPlusShipping(t *testing.T) {
	t.Parallel()

	tx := &stubTx{}
	svc, err := NewService(
		tx,
		&stubCartResolver{lines: cartLines()},
		&stubDiscounts{applied: &discounts.Applied{Code: "SPRING10", Kind: enums.DiscountKindPercent, AmountCents: 259}},
		&stubShipping{resolved: &shippingrates.Resolved{ShippingCents: 590}},
		[]payments.Rail{payments.NewManualRail()},
		&stubCustomers{},
		newStubOrders(),
		&stubMailer{},
		nil,
		testLogger(),
		"EUR",
	)
	require.NoError(t, err)

	code := "spring10"
	quote, err := svc.Quote(context.Background(), QuoteInput{
		Lines:        []catalog.CartLine{{ProductID: uuid.New(), Qty: 1}},
		DiscountCode: &code,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1999), quote.Breakdown.SubtotalCents)
	assert.Equal(t, int64(259), quote.Breakdown.DiscountCents)
	assert.Equal(t, int64(2330), quote.Breakdown.TotalCents)
	require.NotNil(t, quote.DiscountCode)
	assert.Equal(t, "SPRING10", *quote.DiscountCode)
	assert.Equal(t, int64(1200), quote.WeightGrams)
}

func TestSettleConcurrentDuplicateConvergesOnReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cartLines())

	// Simulate losing the insert race: the in-transaction existence check
	// misses, the insert hits the unique index, and the winner's row is
	// visible on the follow-up lookup.
	existing := &models.Order{
		ID:               uuid.New(),
		PublicID:         NewPublicID(),
		Status:           enums.OrderStatusPaid,
		PaymentReference: "pi_race",
		TotalCents:       2589,
	}
	f.orders.byReference["pi_race"] = existing
	f.orders.lookupMisses = 1
	f.orders.createErr = fmt.Errorf(`duplicate key value violates unique constraint "uidx_orders_payment_reference"`)

	result, err := f.svc.Settle(context.Background(), settleInput("pi_race"))
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, existing.PublicID, result.Order.PublicID)
	assert.Empty(t, f.orders.created)
}
