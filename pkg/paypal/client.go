package paypal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plutov/paypal/v4"

	"github.com/atelier-nord/storefront-backend/pkg/config"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/units"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errInvalidPayPalEnv    = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
)

// Client wraps the PayPal Orders API for the wallet settlement rail.
type Client struct {
	api         *paypal.Client
	environment string
}

// NewClient initializes the PayPal client and fetches an initial access
// token so credentials failures surface at boot rather than mid-checkout.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	apiBase := paypal.APIBaseSandBox
	if env == liveEnv {
		apiBase = paypal.APIBaseLive
	}

	api, err := paypal.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}
	if _, err := api.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("fetching paypal access token: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}

	return &Client{api: api, environment: env}, nil
}

// Environment reports the normalized PayPal environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateOrder registers an order for the computed total before customer
// approval. The returned id is the wallet-rail payment reference.
func (c *Client) CreateOrder(ctx context.Context, amountCents int64, currency string) (*paypal.Order, error) {
	purchaseUnits := []paypal.PurchaseUnitRequest{
		{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: strings.ToUpper(currency),
				Value:    units.CentsToDecimalString(amountCents),
			},
		},
	}
	return c.api.CreateOrder(ctx, paypal.OrderIntentCapture, purchaseUnits, nil, nil)
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureOrderResponse, error) {
	return c.api.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
}

// GetOrder fetches the authoritative provider state for an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*paypal.Order, error) {
	return c.api.GetOrder(ctx, orderID)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidPayPalEnv
	}
}
