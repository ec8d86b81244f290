package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/cart"
	"github.com/shopworks/commerce-core/internal/catalog"
	"github.com/shopworks/commerce-core/internal/clock"
	"github.com/shopworks/commerce-core/internal/payments"
	"github.com/shopworks/commerce-core/internal/stock"
)

// Stock is the slice of the reservation service the order core is allowed
// to use. All counter mutation funnels through here.
type Stock interface {
	Release(ctx context.Context, ref stock.UnitRef, quantity int) error
	Confirm(ctx context.Context, ref stock.UnitRef, quantity int) error
	Snapshot(ctx context.Context, ref stock.UnitRef) (stock.Unit, error)
}

// Carts is what checkout needs from the cart orchestrator.
type Carts interface {
	ItemsForCheckout(ctx context.Context, userID string) ([]cart.Item, error)
	Item(ctx context.Context, itemID string) (cart.Item, error)
	ItemForUpdate(ctx context.Context, itemID string) (cart.Item, error)
	DetachItems(ctx context.Context, itemIDs []string) error
}

// Payments records the payment bound to a checkout's orders.
type Payments interface {
	CreateForOrders(ctx context.Context, in payments.CreateInput) (payments.Payment, error)
	MarkCompleted(ctx context.Context, paymentHash string) error
	MarkExpired(ctx context.Context, paymentHash string) error
}

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	GetForUpdate(ctx context.Context, orderID string) (Order, error)
	ListByHashForUpdate(ctx context.Context, paymentHash string) ([]Order, error)
	Update(ctx context.Context, o Order) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Order, error)
	CountExpired(ctx context.Context, now time.Time) (int, error)
	CountUnderPayingByHash(ctx context.Context, paymentHash string) (int, error)
}

const DefaultPaymentTimeout = 15 * time.Minute

// CheckoutService converts cart items into orders sharing one payment
// identity and a payment deadline.
type CheckoutService struct {
	store    Store
	carts    Carts
	stock    Stock
	payments Payments
	catalog  catalog.Lookup
	clock    clock.Clock
	timeout  time.Duration
	events   EventSink
	currency string
}

func NewCheckoutService(store Store, carts Carts, st Stock, pay Payments, cat catalog.Lookup, clk clock.Clock, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		store:    store,
		carts:    carts,
		stock:    st,
		payments: pay,
		catalog:  cat,
		clock:    clk,
		timeout:  DefaultPaymentTimeout,
		currency: "USD",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CheckoutOption func(*CheckoutService)

func WithPaymentTimeout(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithEventPublisher(p EventSink) CheckoutOption {
	return func(s *CheckoutService) { s.events = p }
}

type CheckoutInput struct {
	UserID          string
	ShippingAddress string
	PaymentMethod   string
	CustomerNotes   string
}

type CheckoutResult struct {
	Orders               []Order
	Payment              payments.Payment
	PaymentHash          string
	ExpiresAt            time.Time
	TimeRemainingSeconds int64
}

// CheckoutAll converts every cart item into an order under one payment.
func (s *CheckoutService) CheckoutAll(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	if err := s.validateInput(in); err != nil {
		return CheckoutResult{}, err
	}
	items, err := s.carts.ItemsForCheckout(ctx, in.UserID)
	if err != nil {
		return CheckoutResult{}, err
	}
	return s.checkout(ctx, in, items)
}

// CheckoutSingle converts one cart item into an order with its own payment.
func (s *CheckoutService) CheckoutSingle(ctx context.Context, in CheckoutInput, cartItemID string) (CheckoutResult, error) {
	if err := s.validateInput(in); err != nil {
		return CheckoutResult{}, err
	}
	item, err := s.carts.Item(ctx, cartItemID)
	if err != nil {
		return CheckoutResult{}, err
	}
	return s.checkout(ctx, in, []cart.Item{item})
}

// ValidateForCheckout reports, per cart item, whether its reservation is
// still backed by real stock. Read-only; results may already be stale when
// returned, checkout re-checks inside its transaction.
func (s *CheckoutService) ValidateForCheckout(ctx context.Context, userID string) ([]ItemValidation, error) {
	items, err := s.carts.ItemsForCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ItemValidation, 0, len(items))
	for _, item := range items {
		v := ItemValidation{CartItemID: item.ID, ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity, OK: true}
		if !item.ReservationHeld {
			v.OK = false
			v.Reason = "no reservation held"
		} else if unit, err := s.stock.Snapshot(ctx, item.UnitRef()); err != nil {
			v.OK = false
			v.Reason = err.Error()
		} else if unit.Reserved < item.Quantity || unit.Quantity < item.Quantity {
			v.OK = false
			v.Reason = "reserved stock no longer available"
		}
		out = append(out, v)
	}
	return out, nil
}

type ItemValidation struct {
	CartItemID string `json:"cart_item_id"`
	ProductID  string `json:"product_id"`
	Size       string `json:"size,omitempty"`
	Quantity   int    `json:"quantity"`
	OK         bool   `json:"ok"`
	Reason     string `json:"reason,omitempty"`
}

// checkout runs the whole conversion in one transaction: any failure leaves
// no partial orders without a payment.
func (s *CheckoutService) checkout(ctx context.Context, in CheckoutInput, items []cart.Item) (CheckoutResult, error) {
	paymentHash := NewPaymentHash()
	paymentKey := NewPaymentKey()
	now := s.clock.Now()
	expiresAt := now.Add(s.timeout)

	var result CheckoutResult
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		created := make([]Order, 0, len(items))
		itemIDs := make([]string, 0, len(items))
		orderIDs := make([]string, 0, len(items))
		amount := decimal.Zero

		for _, snapshot := range items {
			// The cart list was read before the transaction; reload each item
			// under a row lock so a concurrent remove or clear cannot release
			// the reservation out from under this checkout.
			item, err := s.carts.ItemForUpdate(txCtx, snapshot.ID)
			if err != nil {
				if errors.Is(err, cart.ErrItemNotFound) {
					return fmt.Errorf("%w: cart item %s was removed during checkout", ErrReservationFailed, snapshot.ID)
				}
				return err
			}
			if !item.ReservationHeld {
				return fmt.Errorf("%w: cart item %s holds no reservation", ErrReservationFailed, item.ID)
			}
			unit, err := s.stock.Snapshot(txCtx, item.UnitRef())
			if err != nil {
				return err
			}
			if unit.Reserved < item.Quantity || unit.Quantity < item.Quantity {
				return fmt.Errorf("%w: unit %s cannot back %d reserved units", ErrReservationFailed, unit.Ref(), item.Quantity)
			}

			// Price and name are snapshotted now so later product edits
			// cannot retroactively change what was ordered.
			product, err := s.catalog.GetProduct(txCtx, item.ProductID)
			if err != nil {
				return err
			}
			total := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))

			deadline := expiresAt
			order := Order{
				ID:               NewOrderID(),
				UserID:           in.UserID,
				ProductID:        item.ProductID,
				ProductName:      product.Name,
				Size:             item.Size,
				Properties:       item.Properties,
				Quantity:         item.Quantity,
				UnitPrice:        product.Price,
				TotalPrice:       total,
				Status:           StatusUnderPaying,
				PaymentStatus:    PaymentPending,
				PaymentHash:      paymentHash,
				PaymentKey:       paymentKey,
				PaymentMethod:    in.PaymentMethod,
				PaymentExpiresAt: &deadline,
				ShippingAddress:  in.ShippingAddress,
				CustomerNotes:    in.CustomerNotes,
			}
			stored, err := s.store.Create(txCtx, order)
			if err != nil {
				return err
			}
			created = append(created, stored)
			itemIDs = append(itemIDs, item.ID)
			orderIDs = append(orderIDs, stored.ID)
			amount = amount.Add(total)
		}

		payment, err := s.payments.CreateForOrders(txCtx, payments.CreateInput{
			PaymentHash: paymentHash,
			UserID:      in.UserID,
			Amount:      amount,
			Currency:    s.currency,
			Method:      payments.Method(in.PaymentMethod),
			OrderIDs:    orderIDs,
		})
		if err != nil {
			return err
		}

		// The reservation now belongs to the orders, not the cart; items are
		// removed without releasing anything.
		if err := s.carts.DetachItems(txCtx, itemIDs); err != nil {
			return err
		}

		result = CheckoutResult{
			Orders:               created,
			Payment:              payment,
			PaymentHash:          paymentHash,
			ExpiresAt:            expiresAt,
			TimeRemainingSeconds: int64(s.timeout.Seconds()),
		}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	if s.events != nil {
		orderIDs := make([]string, 0, len(result.Orders))
		for _, o := range result.Orders {
			orderIDs = append(orderIDs, o.ID)
		}
		s.events.OrderCreated(OrderCreatedPayload{
			PaymentHash: paymentHash,
			UserID:      in.UserID,
			OrderIDs:    orderIDs,
			Amount:      result.Payment.Amount.StringFixed(2),
			Currency:    s.currency,
			ExpiresAt:   expiresAt,
		})
	}
	return result, nil
}

func (s *CheckoutService) validateInput(in CheckoutInput) error {
	if in.ShippingAddress == "" {
		return ErrShippingAddressRequired
	}
	if !payments.ValidMethod(payments.Method(in.PaymentMethod)) {
		return ErrInvalidPaymentMethod
	}
	return nil
}
