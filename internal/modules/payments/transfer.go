// README: Provider REST client for fund transfers; every call is bounded by a timeout.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"freightly/internal/types"
)

// TransferClient talks to the payment provider's transfer API. The booking
// id doubles as the idempotency key so a retried call can never move money
// twice.
type TransferClient struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
	httpc     *http.Client
}

func NewTransferClient(baseURL, secretKey string, timeout time.Duration) *TransferClient {
	return &TransferClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		timeout:   timeout,
		httpc:     &http.Client{},
	}
}

type transferRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	BookingID   string `json:"booking_id"`
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type refundRequest struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	BookingID string `json:"booking_id"`
}

func (c *TransferClient) CreateTransfer(ctx context.Context, bookingID, driverID types.ID, amount types.Money) (string, error) {
	body, err := json.Marshal(transferRequest{
		Amount:      amount.Amount,
		Currency:    amount.Currency,
		Destination: string(driverID),
		BookingID:   string(bookingID),
	})
	if err != nil {
		return "", err
	}
	return c.post(ctx, "/v1/transfers", string(bookingID), body)
}

// CreateRefund asks the provider to refund (part of) a payment. The terminal
// outcome arrives later as a refund webhook.
func (c *TransferClient) CreateRefund(ctx context.Context, bookingID types.ID, paymentID string, amount int64) (string, error) {
	body, err := json.Marshal(refundRequest{
		PaymentID: paymentID,
		Amount:    amount,
		BookingID: string(bookingID),
	})
	if err != nil {
		return "", err
	}
	return c.post(ctx, "/v1/refunds", string(bookingID)+":refund", body)
}

func (c *TransferClient) post(ctx context.Context, path, idempotencyKey string, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("provider call failed: %s: %s", resp.Status, string(b))
	}

	var out transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}
