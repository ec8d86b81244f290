package cart

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/catalog"
	"github.com/shopworks/commerce-core/internal/stock"
)

// Stock is the slice of the reservation service the cart needs. The cart
// never touches ledger counters directly.
type Stock interface {
	Reserve(ctx context.Context, ref stock.UnitRef, quantity int) error
	Release(ctx context.Context, ref stock.UnitRef, quantity int) error
}

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Find(ctx context.Context, userID, productID, size string) (*Item, error)
	Get(ctx context.Context, itemID string) (Item, error)
	GetForUpdate(ctx context.Context, itemID string) (Item, error)
	ListByUser(ctx context.Context, userID string) ([]Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) error
	Delete(ctx context.Context, itemID string) error
}

// Service maps cart actions to reservation calls and keeps the cart-item to
// reservation linkage consistent.
type Service struct {
	store   Store
	stock   Stock
	catalog catalog.Lookup
}

func NewService(store Store, st Stock, cat catalog.Lookup) *Service {
	return &Service{store: store, stock: st, catalog: cat}
}

type AddItemInput struct {
	UserID     string
	ProductID  string
	Size       string
	Quantity   int
	Properties map[string]any
}

// AddItem reserves stock first; the cart item only exists once its units are
// withheld from other shoppers. On insufficient stock the cart is untouched
// and the error surfaces unchanged.
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (Item, error) {
	if in.Quantity <= 0 {
		return Item{}, stock.ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return Item{}, err
	}
	if product.HasSizes && in.Size == "" {
		return Item{}, stock.ErrSizeRequired
	}
	ref := stock.UnitRef{ProductID: in.ProductID, Size: in.Size}

	var result Item
	err = s.store.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.store.Find(txCtx, in.UserID, in.ProductID, in.Size)
		if err != nil {
			return err
		}

		// The delta is reserved before any cart write, so a failed reserve
		// leaves the cart exactly as it was.
		if err := s.stock.Reserve(txCtx, ref, in.Quantity); err != nil {
			return err
		}

		if existing != nil {
			newQty := existing.Quantity + in.Quantity
			if err := s.store.UpdateQuantity(txCtx, existing.ID, newQty); err != nil {
				return err
			}
			result = *existing
			result.Quantity = newQty
			return nil
		}

		item := Item{
			UserID:          in.UserID,
			ProductID:       in.ProductID,
			ProductName:     product.Name,
			Size:            in.Size,
			Properties:      in.Properties,
			Quantity:        in.Quantity,
			UnitPrice:       product.Price,
			ReservationHeld: true,
		}
		result, err = s.store.Create(txCtx, item)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return result, nil
}

// UpdateQuantity adjusts the reservation by the delta. Increases reserve,
// decreases release; the two are never merged into one signed operation so
// ledger auditing stays symmetric.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, newQuantity int) (Item, error) {
	if newQuantity <= 0 {
		return Item{}, stock.ErrInvalidQuantity
	}

	var result Item
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		item, err := s.store.Get(txCtx, itemID)
		if err != nil {
			return err
		}
		ref := stock.UnitRef{ProductID: item.ProductID, Size: item.Size}

		switch {
		case newQuantity > item.Quantity:
			if err := s.stock.Reserve(txCtx, ref, newQuantity-item.Quantity); err != nil {
				return err
			}
		case newQuantity < item.Quantity:
			if err := s.stock.Release(txCtx, ref, item.Quantity-newQuantity); err != nil {
				return err
			}
		default:
			result = item
			return nil
		}

		if err := s.store.UpdateQuantity(txCtx, itemID, newQuantity); err != nil {
			return err
		}
		result = item
		result.Quantity = newQuantity
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return result, nil
}

// RemoveItem releases the reservation best-effort: the item is removed even
// when the release fails, and the discrepancy is logged for reconciliation.
func (s *Service) RemoveItem(ctx context.Context, itemID string) error {
	item, err := s.store.Get(ctx, itemID)
	if err != nil {
		return err
	}

	if item.ReservationHeld {
		ref := stock.UnitRef{ProductID: item.ProductID, Size: item.Size}
		if err := s.stock.Release(ctx, ref, item.Quantity); err != nil {
			log.Warn().Err(err).
				Str("cart_item", itemID).
				Str("unit", ref.String()).
				Int("quantity", item.Quantity).
				Msg("release failed on cart remove, item removed anyway")
		}
	}
	return s.store.Delete(ctx, itemID)
}

// Clear releases every item's reservation, continuing on per-item failure.
func (s *Service) Clear(ctx context.Context, userID string) (ClearReport, error) {
	items, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return ClearReport{}, err
	}

	var report ClearReport
	for _, item := range items {
		if item.ReservationHeld {
			ref := stock.UnitRef{ProductID: item.ProductID, Size: item.Size}
			if err := s.stock.Release(ctx, ref, item.Quantity); err != nil {
				report.Failed = append(report.Failed, FailedRelease{ItemID: item.ID, Error: err.Error()})
			} else {
				report.Released++
			}
		}
		if err := s.store.Delete(ctx, item.ID); err != nil {
			log.Warn().Err(err).Str("cart_item", item.ID).Msg("delete failed during cart clear")
		}
	}
	return report, nil
}

func (s *Service) GetSummary(ctx context.Context, userID string) (Summary, error) {
	items, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Items: make([]SummaryItem, 0, len(items))}
	total := decimal.Zero
	for _, item := range items {
		summary.TotalItems += item.Quantity
		total = total.Add(item.Subtotal())
		summary.Items = append(summary.Items, SummaryItem{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Properties:  item.Properties,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    item.Subtotal().StringFixed(2),
		})
	}
	summary.TotalPrice = total.StringFixed(2)
	return summary, nil
}

// ItemsForCheckout returns the user's items for checkout validation.
func (s *Service) ItemsForCheckout(ctx context.Context, userID string) ([]Item, error) {
	items, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}
	return items, nil
}

// Item loads a single cart item (checkout_single entry point).
func (s *Service) Item(ctx context.Context, itemID string) (Item, error) {
	return s.store.Get(ctx, itemID)
}

// ItemForUpdate reloads a cart item under a row lock held until the
// surrounding transaction ends. Checkout calls it inside its transaction so a
// concurrent remove or clear cannot release the reservation between the cart
// snapshot and the order writes.
func (s *Service) ItemForUpdate(ctx context.Context, itemID string) (Item, error) {
	return s.store.GetForUpdate(ctx, itemID)
}

// DetachItems deletes checked-out items without releasing their
// reservations: bookkeeping ownership of the held stock moves to the orders
// created from them.
func (s *Service) DetachItems(ctx context.Context, itemIDs []string) error {
	for _, id := range itemIDs {
		if err := s.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
