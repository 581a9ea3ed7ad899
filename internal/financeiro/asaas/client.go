// Package asaas wraps the Asaas payment-gateway REST API. Every call is
// keyed by the tenant's own API key; the client holds no credentials.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxAttempts = 3
	baseBackoff = 250 * time.Millisecond
)

// Client calls the Asaas API with bounded timeouts and limited retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// APIError is a non-retryable rejection from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asaas returned status %d: %s", e.StatusCode, e.Body)
}

// Customer is a provider-side payer record.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CpfCnpj string `json:"cpfCnpj,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"mobilePhone,omitempty"`
}

// CustomerInput creates a Customer.
type CustomerInput struct {
	Name    string `json:"name"`
	CpfCnpj string `json:"cpfCnpj,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"mobilePhone,omitempty"`
}

// ChargeInput creates a charge. ExternalReference carries the local
// charge id so webhook deliveries can be correlated back.
type ChargeInput struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference"`
}

// Charge is the provider's view of a charge.
type Charge struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	InvoiceURL  string `json:"invoiceUrl"`
	BankSlipURL string `json:"bankSlipUrl,omitempty"`
}

// PixQr is the PIX payment artifact for a charge.
type PixQr struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

// CreateCustomer registers a payer at the gateway.
func (c *Client) CreateCustomer(ctx context.Context, apiKey string, input CustomerInput) (Customer, error) {
	var out Customer
	err := c.do(ctx, apiKey, http.MethodPost, "/v3/customers", input, &out)
	return out, err
}

// CreateCharge creates a charge at the gateway.
func (c *Client) CreateCharge(ctx context.Context, apiKey string, input ChargeInput) (Charge, error) {
	var out Charge
	err := c.do(ctx, apiKey, http.MethodPost, "/v3/payments", input, &out)
	return out, err
}

// GetCharge fetches the provider state of a charge.
func (c *Client) GetCharge(ctx context.Context, apiKey, chargeID string) (Charge, error) {
	var out Charge
	err := c.do(ctx, apiKey, http.MethodGet, "/v3/payments/"+chargeID, nil, &out)
	return out, err
}

// CancelCharge removes a charge at the gateway. Used as the compensating
// action when the local insert failed after a successful create.
func (c *Client) CancelCharge(ctx context.Context, apiKey, chargeID string) error {
	return c.do(ctx, apiKey, http.MethodDelete, "/v3/payments/"+chargeID, nil, nil)
}

// GetPixQrCode fetches the PIX QR artifact for a charge.
func (c *Client) GetPixQrCode(ctx context.Context, apiKey, chargeID string) (PixQr, error) {
	var out PixQr
	err := c.do(ctx, apiKey, http.MethodGet, "/v3/payments/"+chargeID+"/pixQrCode", nil, &out)
	return out, err
}

// do runs one API call with up to maxAttempts tries. Transport errors and
// 5xx responses back off and retry; 4xx responses fail immediately.
func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("asaas: encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseBackoff << (attempt - 1)):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("access_token", apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode >= 500:
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
			continue
		case resp.StatusCode >= 400:
			return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("asaas: decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("asaas: %s %s failed after %d attempts: %w", method, path, maxAttempts, lastErr)
}
