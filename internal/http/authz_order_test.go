package handlers_test

import (
	"net/http"
	"testing"

	"aurelia/internal/domain"
	"aurelia/internal/payments"
)

// placeOrder drives the whole checkout path over HTTP: cart add, payment
// signature, order placement.
func placeOrder(t *testing.T, env *apiEnv, sid string) (orderID string, total float64) {
	t.Helper()
	env.Gateway.seed("rings", domain.CatalogItem{ID: "ring-aurora", Name: "Aurora Band", Price: 120, Stock: 10})

	resp := env.do(t, "POST", "/api/v1/cart/items", sid, map[string]any{
		"id": "ring-aurora", "name": "Aurora Band", "price": 120.0, "quantity": 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cart add: %d", resp.StatusCode)
	}

	sig := payments.Verifier{Secret: env.Cfg.PaymentSecret}.Sign("ord-1", "pay-1")
	respPlace := env.do(t, "POST", "/api/v1/orders", sid, map[string]any{
		"orderRef": "ord-1", "paymentId": "pay-1", "signature": sig,
		"total": 1.0, // a client-sent total is ignored
	})
	if respPlace.StatusCode != http.StatusCreated {
		t.Fatalf("place order: %d", respPlace.StatusCode)
	}
	var out struct {
		OrderID string  `json:"orderId"`
		Status  string  `json:"status"`
		Total   float64 `json:"total"`
	}
	decodeBody(t, respPlace, &out)
	if out.Status != domain.OrderPlaced {
		t.Fatalf("status: %+v", out)
	}
	return out.OrderID, out.Total
}

func TestOrderTotalsComputedServerSide(t *testing.T) {
	env := newAPIApp(t)
	_, total := placeOrder(t, env, "sid-owner")
	if total != 240 {
		t.Fatalf("expected server-side total 240, got %v", total)
	}
	// the stock pass ran against the gateway
	if got := env.Gateway.stockOf(t, "rings", "ring-aurora"); got != 8 {
		t.Fatalf("stock after order: want 8, got %d", got)
	}
}

func TestOrderOwnershipProbesDenied(t *testing.T) {
	env := newAPIApp(t)
	orderID, _ := placeOrder(t, env, "sid-owner")

	// A stranger probing the id reads 404, same as a missing order
	resp := env.do(t, "GET", "/api/v1/orders/"+orderID, "sid-other", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", resp.StatusCode)
	}

	// The placing session still sees it
	resp = env.do(t, "GET", "/api/v1/orders/"+orderID, "sid-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Order domain.Order `json:"order"`
		Items []struct {
			ProductID string  `json:"productId"`
			Subtotal  float64 `json:"subtotal"`
		} `json:"items"`
	}
	decodeBody(t, resp, &out)
	if out.Order.ID != orderID || len(out.Items) != 1 {
		t.Fatalf("order view: %+v", out)
	}

	// Admins see everything
	if err := env.Users.BindSession("sid-admin", "u-admin"); err != nil {
		t.Fatal(err)
	}
	resp = env.do(t, "GET", "/api/v1/orders/"+orderID, "sid-admin", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin expected 200, got %d", resp.StatusCode)
	}
}

func TestOrderHistoryFallsBackToSession(t *testing.T) {
	env := newAPIApp(t)
	orderID, _ := placeOrder(t, env, "sid-owner")

	// anonymous history is rejected
	resp := env.do(t, "GET", "/api/v1/orders", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous history, got %d", resp.StatusCode)
	}

	// after login the pre-login order is still reachable through the session
	if err := env.Users.BindSession("sid-owner", "u-maya"); err != nil {
		t.Fatal(err)
	}
	resp = env.do(t, "GET", "/api/v1/orders", "sid-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d", resp.StatusCode)
	}
	var out struct {
		Orders []domain.Order `json:"orders"`
	}
	decodeBody(t, resp, &out)
	if len(out.Orders) != 1 || out.Orders[0].ID != orderID {
		t.Fatalf("history should surface the session order: %+v", out.Orders)
	}
}
