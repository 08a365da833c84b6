package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"aurelia/internal/domain"
	"aurelia/internal/payments"
	"aurelia/internal/repos"
)

var (
	ErrCartEmpty        = errors.New("cart empty")
	ErrPaymentSignature = errors.New("payment signature mismatch")
)

// PlaceRequest carries the confirmed payment handed back by the provider.
type PlaceRequest struct {
	OrderRef  string
	PaymentID string
	Signature string
}

// PlacedOrder is the result of a successful placement. Outcomes report the
// stock pass per line; a shortfall downgrades Status but never blocks the
// order.
type PlacedOrder struct {
	OrderID  string
	Status   string
	Total    float64
	Outcomes []domain.StockOutcome
}

type OrderService struct {
	Cart     *ListManager
	Stock    *StockService
	Orders   *repos.OrderRepo
	Verifier payments.Verifier
}

// Place finalizes a paid checkout: verify the payment signature, snapshot
// the cart, run the stock pass, record the order with its outcomes, then
// clear the cart.
func (s *OrderService) Place(ctx context.Context, sc domain.SessionContext, req PlaceRequest) (*PlacedOrder, error) {
	if !s.Verifier.Verify(req.OrderRef, req.PaymentID, req.Signature) {
		return nil, ErrPaymentSignature
	}

	res, err := s.Cart.Items(ctx, sc)
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, ErrCartEmpty
	}

	total := 0.0
	lines := make([]domain.OrderLine, 0, len(res.Items))
	for _, it := range res.Items {
		total += it.Price * float64(it.Quantity)
		lines = append(lines, domain.OrderLine{ProductID: it.ID, Quantity: it.Quantity})
	}

	outcomes := s.Stock.ApplyOrder(ctx, lines)
	status := domain.OrderPlaced
	for _, oc := range outcomes {
		if !oc.OK {
			status = domain.OrderPlacedPartialStock
			break
		}
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		SessionID: sc.SessionID,
		UserID:    sc.UserID,
		PaymentID: req.PaymentID,
		Total:     total,
		Status:    status,
	}
	if err := s.Orders.Create(order, res.Items); err != nil {
		return nil, err
	}
	if err := s.Orders.RecordOutcomes(order.ID, outcomes); err != nil {
		return nil, err
	}

	_, _ = s.Cart.Clear(ctx, sc)

	return &PlacedOrder{OrderID: order.ID, Status: status, Total: total, Outcomes: outcomes}, nil
}
