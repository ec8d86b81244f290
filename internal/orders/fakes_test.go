package orders

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/cart"
	"github.com/shopworks/commerce-core/internal/catalog"
	"github.com/shopworks/commerce-core/internal/payments"
	"github.com/shopworks/commerce-core/internal/stock"
)

// testClock is a hand-advanced clock for deadline tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeLedger implements the Stock slice the order core uses, with the same
// counter semantics as the real service.
type fakeLedger struct {
	units      map[stock.UnitRef]*stock.Unit
	confirmErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{units: make(map[stock.UnitRef]*stock.Unit)}
}

func (f *fakeLedger) put(ref stock.UnitRef, quantity, reserved int) {
	f.units[ref] = &stock.Unit{ID: "su-" + ref.String(), ProductID: ref.ProductID, Size: ref.Size, Quantity: quantity, Reserved: reserved}
}

func (f *fakeLedger) Snapshot(ctx context.Context, ref stock.UnitRef) (stock.Unit, error) {
	u, ok := f.units[ref]
	if !ok {
		return stock.Unit{}, stock.ErrUnitNotFound
	}
	return *u, nil
}

func (f *fakeLedger) Release(ctx context.Context, ref stock.UnitRef, quantity int) error {
	u, ok := f.units[ref]
	if !ok {
		return stock.ErrUnitNotFound
	}
	u.Reserved -= quantity
	if u.Reserved < 0 {
		u.Reserved = 0
	}
	return nil
}

func (f *fakeLedger) Confirm(ctx context.Context, ref stock.UnitRef, quantity int) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	u, ok := f.units[ref]
	if !ok {
		return stock.ErrUnitNotFound
	}
	if quantity > u.Quantity {
		return &stock.InsufficientStockError{Unit: ref, Requested: quantity, Available: u.Quantity}
	}
	u.Quantity -= quantity
	u.Reserved -= quantity
	if u.Reserved < 0 {
		u.Reserved = 0
	}
	return nil
}

func (f *fakeLedger) snapshotAll() map[stock.UnitRef]stock.Unit {
	out := make(map[stock.UnitRef]stock.Unit, len(f.units))
	for ref, u := range f.units {
		out[ref] = *u
	}
	return out
}

func (f *fakeLedger) restore(snap map[stock.UnitRef]stock.Unit) {
	f.units = make(map[stock.UnitRef]*stock.Unit, len(snap))
	for ref, u := range snap {
		cp := u
		f.units[ref] = &cp
	}
}

// fakeCarts backs the Carts interface with a plain slice.
type fakeCarts struct {
	items map[string]cart.Item
}

func newFakeCarts(items ...cart.Item) *fakeCarts {
	f := &fakeCarts{items: make(map[string]cart.Item)}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeCarts) ItemsForCheckout(ctx context.Context, userID string) ([]cart.Item, error) {
	var out []cart.Item
	for _, it := range f.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, cart.ErrCartEmpty
	}
	return out, nil
}

func (f *fakeCarts) Item(ctx context.Context, itemID string) (cart.Item, error) {
	it, ok := f.items[itemID]
	if !ok {
		return cart.Item{}, cart.ErrItemNotFound
	}
	return it, nil
}

func (f *fakeCarts) ItemForUpdate(ctx context.Context, itemID string) (cart.Item, error) {
	return f.Item(ctx, itemID)
}

func (f *fakeCarts) DetachItems(ctx context.Context, itemIDs []string) error {
	for _, id := range itemIDs {
		if _, ok := f.items[id]; !ok {
			return cart.ErrItemNotFound
		}
		delete(f.items, id)
	}
	return nil
}

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	created   []OrderCreatedPayload
	confirmed []PaymentConfirmedPayload
	expired   []OrderExpiredPayload
}

func (r *recordingSink) OrderCreated(p OrderCreatedPayload) { r.created = append(r.created, p) }

func (r *recordingSink) PaymentConfirmed(p PaymentConfirmedPayload) {
	r.confirmed = append(r.confirmed, p)
}

func (r *recordingSink) OrderExpired(p OrderExpiredPayload) { r.expired = append(r.expired, p) }

// fakePayments records payment rows by hash.
type fakePayments struct {
	byHash map[string]*payments.Payment
	nextID int
}

func newFakePayments() *fakePayments {
	return &fakePayments{byHash: make(map[string]*payments.Payment)}
}

func (f *fakePayments) CreateForOrders(ctx context.Context, in payments.CreateInput) (payments.Payment, error) {
	f.nextID++
	p := payments.Payment{
		ID:          "pay-" + strconv.Itoa(f.nextID),
		PaymentHash: in.PaymentHash,
		UserID:      in.UserID,
		Amount:      in.Amount,
		NetAmount:   in.Amount,
		Currency:    in.Currency,
		Method:      in.Method,
		Status:      payments.StatusPending,
		OrderIDs:    in.OrderIDs,
	}
	f.byHash[in.PaymentHash] = &p
	return p, nil
}

func (f *fakePayments) MarkCompleted(ctx context.Context, paymentHash string) error {
	if p, ok := f.byHash[paymentHash]; ok {
		p.Status = payments.StatusCompleted
	}
	return nil
}

func (f *fakePayments) MarkExpired(ctx context.Context, paymentHash string) error {
	if p, ok := f.byHash[paymentHash]; ok {
		p.Status = payments.StatusExpired
	}
	return nil
}

// fakeOrderStore holds orders in memory. WithTx snapshots the store plus the
// linked ledger and payments, restoring all three when the body errors, which
// mirrors every store joining one database transaction.
type fakeOrderStore struct {
	orders   map[string]Order
	ledger   *fakeLedger
	payments *fakePayments
}

func newFakeOrderStore(ledger *fakeLedger, pay *fakePayments) *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]Order), ledger: ledger, payments: pay}
}

func (s *fakeOrderStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ordersSnap := make(map[string]Order, len(s.orders))
	for id, o := range s.orders {
		ordersSnap[id] = o
	}
	var ledgerSnap map[stock.UnitRef]stock.Unit
	if s.ledger != nil {
		ledgerSnap = s.ledger.snapshotAll()
	}
	paySnap := make(map[string]payments.Payment)
	if s.payments != nil {
		for h, p := range s.payments.byHash {
			paySnap[h] = *p
		}
	}

	if err := fn(ctx); err != nil {
		s.orders = ordersSnap
		if s.ledger != nil {
			s.ledger.restore(ledgerSnap)
		}
		if s.payments != nil {
			s.payments.byHash = make(map[string]*payments.Payment, len(paySnap))
			for h, p := range paySnap {
				cp := p
				s.payments.byHash[h] = &cp
			}
		}
		return err
	}
	return nil
}

func (s *fakeOrderStore) Create(ctx context.Context, o Order) (Order, error) {
	s.orders[o.ID] = o
	return o, nil
}

func (s *fakeOrderStore) Get(ctx context.Context, orderID string) (Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *fakeOrderStore) GetForUpdate(ctx context.Context, orderID string) (Order, error) {
	return s.Get(ctx, orderID)
}

func (s *fakeOrderStore) ListByHashForUpdate(ctx context.Context, paymentHash string) ([]Order, error) {
	var out []Order
	for _, o := range s.orders {
		if o.PaymentHash == paymentHash {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) Update(ctx context.Context, o Order) error {
	if _, ok := s.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	s.orders[o.ID] = o
	return nil
}

func (s *fakeOrderStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	var out []Order
	for _, o := range s.orders {
		if o.Status == StatusUnderPaying && o.PaymentExpiresAt != nil && now.After(*o.PaymentExpiresAt) {
			out = append(out, o)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeOrderStore) CountExpired(ctx context.Context, now time.Time) (int, error) {
	list, _ := s.ListExpired(ctx, now, 1<<30)
	return len(list), nil
}

func (s *fakeOrderStore) CountUnderPayingByHash(ctx context.Context, paymentHash string) (int, error) {
	n := 0
	for _, o := range s.orders {
		if o.PaymentHash == paymentHash && o.Status == StatusUnderPaying {
			n++
		}
	}
	return n, nil
}

type fakeProducts struct {
	products map[string]catalog.Product
}

func (f *fakeProducts) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func testCatalog() *fakeProducts {
	return &fakeProducts{products: map[string]catalog.Product{
		"shirt": {ID: "shirt", Name: "Shirt", Price: decimal.NewFromInt(20), HasSizes: true},
		"mug":   {ID: "mug", Name: "Mug", Price: decimal.RequireFromString("7.50")},
	}}
}

func cartItem(id, userID, productID, size string, quantity int, price string) cart.Item {
	return cart.Item{
		ID:              id,
		UserID:          userID,
		ProductID:       productID,
		Size:            size,
		Quantity:        quantity,
		UnitPrice:       decimal.RequireFromString(price),
		ReservationHeld: true,
	}
}
