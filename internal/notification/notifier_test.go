package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

func TestWebhookNotifier_PostsEvent(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tx := model.Transaction{
		ID:          "tx-1",
		Amount:      decimal.NewFromInt(800),
		Direction:   model.Debit,
		Category:    model.CategoryWithdrawal,
		Description: "Withdraw: JazzCash",
		Date:        time.Now().UTC(),
	}
	if err := NewWebhookNotifier(srv.URL).Notify(context.Background(), EventFor("acc-1", "PKR", tx)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.AccountID != "acc-1" || got.Category != model.CategoryWithdrawal || !got.Amount.Equal(decimal.NewFromInt(800)) {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Notify(context.Background(), Event{}); err == nil {
		t.Error("expected error for 502")
	}
}
