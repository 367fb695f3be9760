package sendcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL               = "https://panel.sendcloud.sc/api/v2"
	errorBodyReadLimit     int64 = 64 * 1024
	servicePointInputNone        = "none"
)

var errCredentialsRequired = errors.New("sendcloud public and secret keys are required")

// Client talks to the Sendcloud panel API: sender addresses, shipping
// method quotes, and parcel/label creation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	publicKey  string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the panel base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds the Sendcloud client given the account's API key pair.
func NewClient(publicKey, secretKey string, opts ...Option) (*Client, error) {
	publicKey = strings.TrimSpace(publicKey)
	secretKey = strings.TrimSpace(secretKey)
	if publicKey == "" || secretKey == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		publicKey:  publicKey,
		secretKey:  secretKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// SenderAddress is the configured warehouse address labels ship from.
type SenderAddress struct {
	ID          int64  `json:"id"`
	CompanyName string `json:"company_name"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// Complete reports whether the sender address can back a label purchase.
func (a SenderAddress) Complete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.PostalCode) != "" &&
		strings.TrimSpace(a.City) != "" &&
		len(strings.TrimSpace(a.Country)) == 2
}

// ShippingMethod is one rate quote returned by the carrier.
type ShippingMethod struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Carrier           string  `json:"carrier"`
	MinWeight         string  `json:"min_weight"`
	MaxWeight         string  `json:"max_weight"`
	ServicePointInput string  `json:"service_point_input"`
	Price             float64 `json:"price"`
}

// RequiresServicePoint reports whether the method delivers to a service
// point instead of a door address.
func (m ShippingMethod) RequiresServicePoint() bool {
	return m.ServicePointInput != "" && m.ServicePointInput != servicePointInputNone
}

// ParcelRequest describes the parcel to purchase a label for.
type ParcelRequest struct {
	Name             string
	Email            string
	Phone            string
	Street           string
	City             string
	PostalCode       string
	Country          string
	WeightKilograms  string
	OrderNumber      string
	ShippingMethodID int64
	SenderAddressID  int64
	ToServicePointID string
	RequestLabel     bool
}

// Parcel is the carrier's record of a purchased shipment.
type Parcel struct {
	ID             int64  `json:"id"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
	Status         struct {
		ID      int64  `json:"id"`
		Message string `json:"message"`
	} `json:"status"`
	Label struct {
		LabelPrinter  string   `json:"label_printer"`
		NormalPrinter []string `json:"normal_printer"`
	} `json:"label"`
}

// LabelURL picks the best label document URL from the response.
func (p Parcel) LabelURL() string {
	if p.Label.LabelPrinter != "" {
		return p.Label.LabelPrinter
	}
	if len(p.Label.NormalPrinter) > 0 {
		return p.Label.NormalPrinter[0]
	}
	return ""
}

// SenderAddresses lists the account's configured sender addresses.
func (c *Client) SenderAddresses(ctx context.Context) ([]SenderAddress, error) {
	var payload struct {
		SenderAddresses []SenderAddress `json:"sender_addresses"`
	}
	if err := c.get(ctx, "/user/addresses", nil, &payload); err != nil {
		return nil, err
	}
	return payload.SenderAddresses, nil
}

// ShippingMethods fetches the rate quotes applicable to a destination
// country and parcel weight (kilograms, three decimals).
func (c *Client) ShippingMethods(ctx context.Context, toCountry, weightKilograms string) ([]ShippingMethod, error) {
	query := url.Values{}
	query.Set("to_country", strings.ToUpper(toCountry))
	if weightKilograms != "" {
		query.Set("weight", weightKilograms)
	}
	var payload struct {
		ShippingMethods []ShippingMethod `json:"shipping_methods"`
	}
	if err := c.get(ctx, "/shipping_methods", query, &payload); err != nil {
		return nil, err
	}
	return payload.ShippingMethods, nil
}

// CreateParcel announces a parcel and, when RequestLabel is set, buys the
// label in the same call.
func (c *Client) CreateParcel(ctx context.Context, req ParcelRequest) (*Parcel, error) {
	type shipmentRef struct {
		ID int64 `json:"id"`
	}
	body := map[string]any{
		"parcel": map[string]any{
			"name":           req.Name,
			"email":          req.Email,
			"telephone":      req.Phone,
			"address":        req.Street,
			"city":           req.City,
			"postal_code":    req.PostalCode,
			"country":        strings.ToUpper(req.Country),
			"weight":         req.WeightKilograms,
			"order_number":   req.OrderNumber,
			"request_label":  req.RequestLabel,
			"shipment":       shipmentRef{ID: req.ShippingMethodID},
			"sender_address": req.SenderAddressID,
		},
	}
	if req.ToServicePointID != "" {
		body["parcel"].(map[string]any)["to_service_point"] = req.ToServicePointID
	}

	var payload struct {
		Parcel Parcel `json:"parcel"`
	}
	if err := c.post(ctx, "/parcels", body, &payload); err != nil {
		return nil, err
	}
	return &payload.Parcel, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building carrier request")
	}
	return c.do(req, dest)
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding carrier request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building carrier request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	req.SetBasicAuth(c.publicKey, c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carrier unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.mapError(resp)
	}

	if dest == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding carrier response")
	}
	return nil
}

// mapError surfaces the carrier's own error message verbatim where the
// response carries one.
func (c *Client) mapError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	var payload struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	message := fmt.Sprintf("carrier returned status %d", resp.StatusCode)
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}

	code := pkgerrors.CodeDependency
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.New(code, message).WithDetails(map[string]any{
		"status": resp.StatusCode,
	})
}
