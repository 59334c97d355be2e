// README: Transfer client tests against a stub provider.
package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"freightly/internal/types"
)

func TestCreateTransfer(t *testing.T) {
	var gotKey, gotPath string
	var gotReq transferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		if user, _, ok := r.BasicAuth(); !ok || user != "sk_test" {
			t.Errorf("expected basic auth with secret key, got user %q", user)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(transferResponse{ID: "tr_1", Status: "pending"})
	}))
	defer srv.Close()

	c := NewTransferClient(srv.URL, "sk_test", 2*time.Second)
	id, err := c.CreateTransfer(context.Background(), "bk_1", "d_1", types.Money{Amount: 25000, Currency: "EUR"})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if id != "tr_1" {
		t.Fatalf("expected tr_1, got %s", id)
	}
	if gotPath != "/v1/transfers" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	// The booking id is the idempotency key.
	if gotKey != "bk_1" {
		t.Fatalf("expected idempotency key bk_1, got %s", gotKey)
	}
	if gotReq.Amount != 25000 || gotReq.Destination != "d_1" || gotReq.BookingID != "bk_1" {
		t.Fatalf("unexpected request body: %+v", gotReq)
	}
}

func TestCreateRefund(t *testing.T) {
	var gotKey string
	var gotReq refundRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		if r.URL.Path != "/v1/refunds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(transferResponse{ID: "re_1", Status: "pending"})
	}))
	defer srv.Close()

	c := NewTransferClient(srv.URL, "sk_test", 2*time.Second)
	id, err := c.CreateRefund(context.Background(), "bk_2", "pi_9", 5000)
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	if id != "re_1" {
		t.Fatalf("expected re_1, got %s", id)
	}
	if gotKey != "bk_2:refund" {
		t.Fatalf("expected idempotency key bk_2:refund, got %s", gotKey)
	}
	if gotReq.PaymentID != "pi_9" || gotReq.Amount != 5000 {
		t.Fatalf("unexpected request body: %+v", gotReq)
	}
}

func TestTransferProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient funds"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewTransferClient(srv.URL, "sk_test", 2*time.Second)
	if _, err := c.CreateTransfer(context.Background(), "bk_3", "d_3", types.Money{Amount: 100, Currency: "EUR"}); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
