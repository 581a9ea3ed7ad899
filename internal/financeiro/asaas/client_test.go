package asaas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateChargeRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key-123", r.Header.Get("access_token"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"PENDING","invoiceUrl":"https://pay.example/1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	charge, err := client.CreateCharge(context.Background(), "key-123", ChargeInput{
		Customer:          "cus_1",
		BillingType:       "PIX",
		Value:             99.90,
		DueDate:           "2026-09-15",
		ExternalReference: "ref-1",
	})
	require.NoError(t, err)
	require.Equal(t, "pay_1", charge.ID)
	require.EqualValues(t, 3, calls.Load())
}

func TestCreateChargeNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_value"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CreateCharge(context.Background(), "key-123", ChargeInput{Customer: "cus_1"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.EqualValues(t, 1, calls.Load())
}

func TestCreateChargeGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CreateCharge(context.Background(), "key-123", ChargeInput{Customer: "cus_1"})
	require.Error(t, err)
	require.EqualValues(t, maxAttempts, calls.Load())
}

func TestGetPixQrCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/payments/pay_1/pixQrCode", r.URL.Path)
		_, _ = w.Write([]byte(`{"encodedImage":"iVBOR","payload":"00020126"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	qr, err := client.GetPixQrCode(context.Background(), "key-123", "pay_1")
	require.NoError(t, err)
	require.Equal(t, "00020126", qr.Payload)
}
