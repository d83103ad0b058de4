package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LukasWeber/CardForge/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.paylane.example/v1"

// Client talks to the payment gateway's merchant API. It is only used at
// checkout time to create a bill and obtain the customer-facing pay URL;
// payment confirmation always arrives through the webhook, never by polling.
type Client struct {
	MerchantID  string
	APIKey      string
	APIBaseURL  string
	CallbackURL string

	HTTPClient *http.Client
}

type createBillRequest struct {
	BillID      string `json:"bill_id"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
}

type createBillResponse struct {
	BillID string `json:"bill_id"`
	PayURL string `json:"pay_url"`
	Status string `json:"status"`
}

func NewClientFromEnv() *Client {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	callbackURL := strings.TrimSpace(env.GetEnv("GATEWAY_CALLBACK_URL", ""))
	if callbackURL == "" && base != "" {
		callbackURL = base + "/api/v1/payments/webhook"
	}

	return &Client{
		MerchantID:  strings.TrimSpace(env.GetEnv("GATEWAY_MERCHANT_ID", "")),
		APIKey:      strings.TrimSpace(env.GetEnv("GATEWAY_API_KEY", "")),
		APIBaseURL:  strings.TrimSpace(env.GetEnv("GATEWAY_API_BASE_URL", defaultAPIBaseURL)),
		CallbackURL: callbackURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateBill registers a pending bill with the gateway and returns the URL
// the customer is redirected to for payment.
func (c *Client) CreateBill(ctx context.Context, billID string, amountCents int64, currency, description string) (string, error) {
	if strings.TrimSpace(c.MerchantID) == "" || strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("GATEWAY_MERCHANT_ID/GATEWAY_API_KEY are not configured")
	}
	if strings.TrimSpace(billID) == "" {
		return "", errors.New("bill id is required")
	}

	body, err := json.Marshal(createBillRequest{
		BillID:      billID,
		AmountCents: amountCents,
		Currency:    currency,
		Description: description,
		CallbackURL: c.CallbackURL,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/merchants/" + c.MerchantID + "/bills"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway bill creation failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out createBillResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.PayURL) == "" {
		return "", errors.New("gateway response has no pay_url")
	}
	return out.PayURL, nil
}
