package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/internal/fulfillment"
	ordersrepo "github.com/atelier-nord/storefront-backend/internal/orders"
	"github.com/atelier-nord/storefront-backend/internal/pricing"
	"github.com/atelier-nord/storefront-backend/internal/settlement"
	"github.com/atelier-nord/storefront-backend/pkg/config"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSettlement struct{}

func (stubSettlement) Quote(ctx context.Context, in settlement.QuoteInput) (*settlement.Quote, error) {
	return &settlement.Quote{
		Breakdown: pricing.Breakdown{SubtotalCents: 1000, TotalCents: 1000},
		Currency:  "EUR",
	}, nil
}

func (stubSettlement) Settle(ctx context.Context, in settlement.SettleInput) (*settlement.Result, error) {
	return &settlement.Result{Order: &models.Order{
		PublicID:         "ORD-TEST1234",
		Status:           enums.OrderStatusPaid,
		PaymentRail:      in.Rail,
		PaymentReference: in.PaymentReference,
		Currency:         "EUR",
		TotalCents:       1000,
	}}, nil
}

type stubFulfillment struct{}

func (stubFulfillment) Quotes(ctx context.Context, in fulfillment.QuotesInput) (*fulfillment.QuoteSet, error) {
	return &fulfillment.QuoteSet{WeightGrams: 1100}, nil
}

func (stubFulfillment) PurchaseLabel(ctx context.Context, in fulfillment.PurchaseInput) (*models.Order, error) {
	return &models.Order{PublicID: in.PublicID, Status: enums.OrderStatusFulfilled, Currency: "EUR"}, nil
}

type stubOrders struct {
	ordersrepo.Repository
}

func (s stubOrders) WithTx(tx *gorm.DB) ordersrepo.Repository {
	return s
}

func (stubOrders) FindByPublicID(ctx context.Context, publicID string) (*models.Order, error) {
	if publicID != "ORD-TEST1234" {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Order{ID: uuid.New(), PublicID: publicID, Status: enums.OrderStatusPaid, Currency: "EUR"}, nil
}

func (stubOrders) List(ctx context.Context, filter ordersrepo.ListFilter) ([]models.Order, error) {
	return []models.Order{{PublicID: "ORD-TEST1234", Status: enums.OrderStatusPaid, Currency: "EUR"}}, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Admin.APIKey = "sekrit"

	return NewRouter(Deps{
		Config:             cfg,
		Logger:             logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		DB:                 stubPinger{},
		SettlementService:  stubSettlement{},
		FulfillmentService: stubFulfillment{},
		OrdersRepo:         stubOrders{},
	})
}

func TestHealthLive(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := rec.Header().Get("X-Storefront-Env"); env != "test" {
		t.Fatalf("unexpected env header %q", env)
	}
}

func TestHealthReady(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"ready"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestOrderDetailRoute(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ORD-TEST1234", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ORD-TEST1234") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/ORD-MISSING1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", rec.Code)
	}
}

func TestCheckoutManualRoute(t *testing.T) {
	router := testRouter(t)

	body := `{"lines":[{"product_id":"` + uuid.NewString() + `","qty":1}],"customer":{"email":"anna@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/manual", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckoutQuoteRejectsBadPayload(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(`{"lines":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStripeIntentUnconfigured(t *testing.T) {
	router := testRouter(t)

	body := `{"lines":[{"product_id":"` + uuid.NewString() + `","qty":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/stripe/intent", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when card payments are not wired, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("X-Admin-Key", "sekrit")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminPurchaseLabelRoute(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/ORD-TEST1234/shipping/label", nil)
	req.Header.Set("X-Admin-Key", "sekrit")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ORD-TEST1234") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
