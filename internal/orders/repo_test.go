package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	customers := `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  phone TEXT,
  address TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  public_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  customer_id TEXT NOT NULL,
  payment_rail TEXT NOT NULL,
  payment_reference TEXT NOT NULL UNIQUE,
  charge_id TEXT,
  currency TEXT NOT NULL DEFAULT 'EUR',
  subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  discount_code TEXT,
  shipping_line TEXT,
  service_point TEXT,
  shipping_address TEXT,
  risk_score INTEGER,
  risk_outcome TEXT,
  network_status TEXT,
  shipment_id INTEGER,
  tracking_number TEXT,
  tracking_url TEXT,
  label_url TEXT,
  delivery_status TEXT,
  confirmation_sent INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  fulfilled_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  title TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  qty INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(customers).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	return db
}

func createCustomer(t *testing.T, db *gorm.DB, email string) *models.Customer {
	t.Helper()

	customer := &models.Customer{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "Test",
		LastName:  "Customer",
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

func createTestOrder(t *testing.T, db *gorm.DB, repo Repository, customer *models.Customer, publicID, reference string, status enums.OrderStatus) *models.Order {
	t.Helper()

	now := time.Now().UTC()
	order := &models.Order{
		ID:               uuid.New(),
		PublicID:         publicID,
		Status:           status,
		CustomerID:       customer.ID,
		PaymentRail:      enums.PaymentRailCard,
		PaymentReference: reference,
		Currency:         "EUR",
		SubtotalCents:    1999,
		ShippingCents:    590,
		TotalCents:       2589,
		ShippingAddress: &types.Address{
			Line1:      "Keizersgracht 1",
			City:       "Amsterdam",
			PostalCode: "1015CS",
			Country:    "NL",
		},
		PaidAt: &now,
	}
	created, err := repo.Create(context.Background(), order)
	require.NoError(t, err)

	items := []models.OrderLineItem{
		{
			ID:             uuid.New(),
			OrderID:        created.ID,
			ProductID:      uuid.New(),
			Title:          "Oak Shelf",
			UnitPriceCents: 1999,
			WeightGrams:    1200,
			Qty:            1,
		},
	}
	require.NoError(t, repo.CreateLineItems(context.Background(), items))
	return created
}

func TestRepositoryFindByPaymentReference(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	customer := createCustomer(t, db, "find@example.com")

	created := createTestOrder(t, db, repo, customer, "ORD-AAAA1111", "pi_ref_1", enums.OrderStatusPaid)

	found, err := repo.FindByPaymentReference(context.Background(), "pi_ref_1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Oak Shelf", found.Items[0].Title)
	require.NotNil(t, found.Customer)
	assert.Equal(t, "find@example.com", found.Customer.Email)

	_, err = repo.FindByPaymentReference(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryPaymentReferenceUnique(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	customer := createCustomer(t, db, "unique@example.com")

	createTestOrder(t, db, repo, customer, "ORD-BBBB2222", "pi_dup", enums.OrderStatusPaid)

	duplicate := &models.Order{
		ID:               uuid.New(),
		PublicID:         "ORD-CCCC3333",
		Status:           enums.OrderStatusPaid,
		CustomerID:       customer.ID,
		PaymentRail:      enums.PaymentRailCard,
		PaymentReference: "pi_dup",
		Currency:         "EUR",
		SubtotalCents:    100,
		TotalCents:       100,
	}
	_, err := repo.Create(context.Background(), duplicate)
	require.Error(t, err)
}

func TestRepositoryList(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	customer := createCustomer(t, db, "list@example.com")

	createTestOrder(t, db, repo, customer, "ORD-DDDD4444", "pi_list_1", enums.OrderStatusPaid)
	createTestOrder(t, db, repo, customer, "ORD-EEEE5555", "pi_list_2", enums.OrderStatusFulfilled)

	all, err := repo.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	paid := enums.OrderStatusPaid
	filtered, err := repo.List(context.Background(), ListFilter{Status: &paid})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ORD-DDDD4444", filtered[0].PublicID)
}

func TestRepositoryMarkFulfilled(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	customer := createCustomer(t, db, "fulfill@example.com")

	created := createTestOrder(t, db, repo, customer, "ORD-FFFF6666", "pi_fulfill", enums.OrderStatusPaid)

	now := time.Now().UTC()
	err := repo.MarkFulfilled(context.Background(), created.ID, FulfillmentUpdate{
		ShipmentID:     987654,
		TrackingNumber: "3SABCD123456789",
		TrackingURL:    "https://tracking.example/3SABCD123456789",
		LabelURL:       "https://labels.example/987654.pdf",
		DeliveryStatus: "Ready to send",
		FulfilledAt:    now,
	})
	require.NoError(t, err)

	found, err := repo.FindByPublicID(context.Background(), "ORD-FFFF6666")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFulfilled, found.Status)
	require.NotNil(t, found.ShipmentID)
	assert.Equal(t, int64(987654), *found.ShipmentID)
	require.NotNil(t, found.TrackingNumber)
	assert.Equal(t, "3SABCD123456789", *found.TrackingNumber)
	require.NotNil(t, found.FulfilledAt)
}

func TestRepositoryMarkConfirmationSent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	customer := createCustomer(t, db, "confirm@example.com")

	created := createTestOrder(t, db, repo, customer, "ORD-GGGG7777", "pi_confirm", enums.OrderStatusPaid)
	require.NoError(t, repo.MarkConfirmationSent(context.Background(), created.ID))

	found, err := repo.FindByPublicID(context.Background(), "ORD-GGGG7777")
	require.NoError(t, err)
	assert.True(t, found.ConfirmationSent)
}
