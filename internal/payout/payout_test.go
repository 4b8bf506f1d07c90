package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookSend(t *testing.T) {
	var got webhookOrder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode order: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 5*time.Second)
	if err := w.Send(context.Background(), "p-1", "seller", 250); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got.PayoutID != "p-1" || got.Account != "seller" || got.Amount != 250 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestWebhookSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 5*time.Second)
	if err := w.Send(context.Background(), "p-1", "seller", 250); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestWebhookSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	if err := w.Send(context.Background(), "p-1", "seller", 250); err == nil {
		t.Fatal("expected error when gateway is unreachable")
	}
}

func TestNoopSend(t *testing.T) {
	if err := (Noop{}).Send(context.Background(), "p-1", "seller", 250); err != nil {
		t.Fatalf("noop must always succeed, got %v", err)
	}
}
