package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// PayPalClient talks to the PayPal Orders v2 REST API. Only the calls the
// payment lifecycle needs are implemented: create order, capture order and
// webhook signature verification.
type PayPalClient struct {
	BaseURL   string
	ClientID  string
	Secret    string
	WebhookID string
	HTTP      *http.Client
}

// NewPayPalClientFromEnv builds the client from PAYPAL_* env vars. The
// sandbox endpoint is the default outside production.
func NewPayPalClientFromEnv() *PayPalClient {
	base := os.Getenv("PAYPAL_BASE_URL")
	if base == "" {
		if os.Getenv("APP_ENV") == "production" {
			base = "https://api-m.paypal.com"
		} else {
			base = "https://api-m.sandbox.paypal.com"
		}
	}
	return &PayPalClient{
		BaseURL:   base,
		ClientID:  os.Getenv("PAYPAL_CLIENT_ID"),
		Secret:    os.Getenv("PAYPAL_CLIENT_SECRET"),
		WebhookID: os.Getenv("PAYPAL_WEBHOOK_ID"),
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	if c.ClientID == "" || c.Secret == "" {
		return "", fmt.Errorf("paypal credentials not set")
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.BaseURL+"/v1/oauth2/token", strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token request failed: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.AccessToken, nil
}

func (c *PayPalClient) call(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("paypal %s %s failed: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// CreateOrder opens a gateway order for the booking total and returns the
// order id and the approval URL the payer is sent to. The booking id rides
// along as custom_id so the webhook can resolve the booking later.
func (c *PayPalClient) CreateOrder(ctx context.Context, amount float64, currency string, bookingID uint, returnURL, cancelURL string) (orderID, approvalURL string, err error) {
	if currency == "" {
		currency = "USD"
	}
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": fmt.Sprintf("%d", bookingID),
				"amount": map[string]string{
					"currency_code": currency,
					"value":         fmt.Sprintf("%.2f", amount),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": returnURL,
			"cancel_url": cancelURL,
		},
	}

	var out struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.call(ctx, "POST", "/v2/checkout/orders", payload, &out); err != nil {
		return "", "", err
	}
	for _, l := range out.Links {
		if l.Rel == "approve" {
			approvalURL = l.Href
		}
	}
	return out.ID, approvalURL, nil
}

// CaptureOrder captures an approved order and returns the capture id.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	var out struct {
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID string `json:"id"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := c.call(ctx, "POST", "/v2/checkout/orders/"+orderID+"/capture", struct{}{}, &out); err != nil {
		return "", err
	}
	for _, pu := range out.PurchaseUnits {
		for _, cap := range pu.Payments.Captures {
			if cap.ID != "" {
				return cap.ID, nil
			}
		}
	}
	return "", fmt.Errorf("paypal capture of order %s returned no capture id", orderID)
}

// VerifyWebhookSignature asks the gateway to verify a webhook delivery
// against the configured webhook id.
func (c *PayPalClient) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	if c.WebhookID == "" {
		return false, fmt.Errorf("PAYPAL_WEBHOOK_ID not set")
	}
	payload := map[string]interface{}{
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"webhook_id":        c.WebhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.call(ctx, "POST", "/v1/notifications/verify-webhook-signature", payload, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}
