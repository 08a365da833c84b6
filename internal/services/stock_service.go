package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"aurelia/internal/catalog"
	"aurelia/internal/domain"
	applog "aurelia/internal/log"
)

// LowStockThreshold is the stock level at or below which a decrement queues
// a low-stock alert. Zero always queues out-of-stock instead.
const LowStockThreshold = 5

// StockService decrements partition stock after payment confirmation and
// pushes threshold alerts to the gateway's notification log.
type StockService struct {
	Catalog    *catalog.Client
	Partitions *catalog.PartitionMap
	Retries    uint64 // version-race replays per line, 0 means 3
}

func (s *StockService) attempts() uint64 {
	if s.Retries == 0 {
		return 3
	}
	return s.Retries
}

func stockBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// CheckAvailability reads current stock for one product. Read-only; a later
// placement can still lose stock between this check and its decrement.
func (s *StockService) CheckAvailability(ctx context.Context, productID string, requested int) (domain.Availability, error) {
	if requested < 1 {
		requested = 1
	}
	category, _ := s.Partitions.Resolve(productID)
	doc, err := s.Catalog.FetchPartition(ctx, category)
	if err != nil {
		if errors.Is(err, domain.ErrPartitionNotFound) {
			return domain.Availability{Status: "OUT_OF_STOCK", Stock: 0}, nil
		}
		return domain.Availability{}, err
	}

	stock, found := 0, false
	for _, p := range doc.Products {
		if p.ID == productID {
			stock, found = p.Stock, true
			break
		}
	}
	if !found {
		return domain.Availability{Status: "OUT_OF_STOCK", Stock: 0}, nil
	}

	status := "OUT_OF_STOCK"
	switch {
	case stock > LowStockThreshold:
		status = "IN_STOCK"
	case stock > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Available: stock >= requested, Status: status, Stock: stock}, nil
}

// ApplyOrder runs the stock pass for a finalized order. Every line is
// processed on its own: a failed line is reported in its outcome and never
// rolls back or skips its siblings. At most one out-of-stock and one
// low-stock alert are pushed per order, each batching all affected products.
func (s *StockService) ApplyOrder(ctx context.Context, lines []domain.OrderLine) []domain.StockOutcome {
	outcomes := make([]domain.StockOutcome, 0, len(lines))
	var outOf, low []domain.AlertProduct

	for _, line := range lines {
		oc := s.applyLine(ctx, line)
		outcomes = append(outcomes, oc)
		if !oc.OK {
			applog.Error(nil, "stock.decrement.fail", errors.New(oc.Error), map[string]any{
				"product": oc.ProductID, "category": oc.Category, "attempts": oc.Attempts,
			})
			continue
		}
		switch {
		case oc.NewStock == 0:
			outOf = append(outOf, domain.AlertProduct{ID: oc.ProductID, Name: oc.Name, Stock: oc.NewStock})
		case oc.NewStock <= LowStockThreshold:
			low = append(low, domain.AlertProduct{ID: oc.ProductID, Name: oc.Name, Stock: oc.NewStock})
		}
	}

	now := time.Now().UTC()
	if len(outOf) > 0 {
		s.pushAlert(ctx, domain.StockAlert{
			ID: uuid.NewString(), Type: domain.AlertOutOfStock,
			Products: outOf, Timestamp: now, Priority: domain.PriorityHigh,
		})
	}
	if len(low) > 0 {
		s.pushAlert(ctx, domain.StockAlert{
			ID: uuid.NewString(), Type: domain.AlertLowStock,
			Products: low, Timestamp: now, Priority: domain.PriorityMedium,
		})
	}

	return outcomes
}

// applyLine is one bounded-retry decrement unit: read the whole partition,
// floor the product's stock at zero, write the partition back under its
// version. A lost version race re-reads and replays.
func (s *StockService) applyLine(ctx context.Context, line domain.OrderLine) domain.StockOutcome {
	oc := domain.StockOutcome{ProductID: line.ProductID, Requested: line.Quantity}

	category, matched := s.Partitions.Resolve(line.ProductID)
	if !matched {
		applog.Info(nil, "stock.partition.fallback", map[string]any{
			"product": line.ProductID, "category": category,
		})
	}
	oc.Category = category

	op := func() error {
		oc.Attempts++
		doc, err := s.Catalog.FetchPartition(ctx, category)
		if err != nil {
			if errors.Is(err, domain.ErrPartitionNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}

		idx := -1
		for i := range doc.Products {
			if doc.Products[i].ID == line.ProductID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return backoff.Permanent(domain.ErrProductNotFound)
		}

		prev := doc.Products[idx].Stock
		next := prev - line.Quantity
		if next < 0 {
			next = 0
		}
		doc.Products[idx].Stock = next
		doc.Products[idx].UpdatedAt = time.Now().UTC()

		err = s.Catalog.UpdateStock(ctx, domain.StockUpdateRequest{
			Category:        category,
			Products:        doc.Products,
			ProductID:       line.ProductID,
			PreviousStock:   prev,
			NewStock:        next,
			QuantityReduced: line.Quantity,
			Version:         doc.Version,
		})
		if err != nil {
			return err
		}

		oc.Name = doc.Products[idx].Name
		oc.PreviousStock = prev
		oc.NewStock = next
		oc.OK = true
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(stockBackoff(), s.attempts()), ctx)
	if err := backoff.Retry(op, b); err != nil {
		oc.Error = err.Error()
	}
	return oc
}

func (s *StockService) pushAlert(ctx context.Context, alert domain.StockAlert) {
	if err := s.Catalog.PushAlert(ctx, alert); err != nil {
		applog.Error(nil, "stock.alert.push", err, map[string]any{"type": alert.Type})
		return
	}
	applog.Audit(nil, "stock.alert", map[string]any{
		"type": alert.Type, "priority": alert.Priority, "products": len(alert.Products),
	})
}
