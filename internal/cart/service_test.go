package cart

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/catalog"
	"github.com/shopworks/commerce-core/internal/stock"
)

type fakeCartStore struct {
	items  map[string]Item
	nextID int
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{items: make(map[string]Item)}
}

func (s *fakeCartStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeCartStore) Find(ctx context.Context, userID, productID, size string) (*Item, error) {
	for _, it := range s.items {
		if it.UserID == userID && it.ProductID == productID && it.Size == size {
			cp := it
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeCartStore) Get(ctx context.Context, itemID string) (Item, error) {
	it, ok := s.items[itemID]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return it, nil
}

func (s *fakeCartStore) GetForUpdate(ctx context.Context, itemID string) (Item, error) {
	return s.Get(ctx, itemID)
}

func (s *fakeCartStore) ListByUser(ctx context.Context, userID string) ([]Item, error) {
	var out []Item
	for _, it := range s.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *fakeCartStore) Create(ctx context.Context, item Item) (Item, error) {
	s.nextID++
	item.ID = "ci-" + strconv.Itoa(s.nextID)
	s.items[item.ID] = item
	return item, nil
}

func (s *fakeCartStore) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	it, ok := s.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	it.Quantity = quantity
	s.items[itemID] = it
	return nil
}

func (s *fakeCartStore) Delete(ctx context.Context, itemID string) error {
	if _, ok := s.items[itemID]; !ok {
		return ErrItemNotFound
	}
	delete(s.items, itemID)
	return nil
}

// fakeStock records reserve/release calls against per-unit counters.
type fakeStock struct {
	available  map[stock.UnitRef]int
	reserved   map[stock.UnitRef]int
	releaseErr error
}

func newFakeStock() *fakeStock {
	return &fakeStock{
		available: make(map[stock.UnitRef]int),
		reserved:  make(map[stock.UnitRef]int),
	}
}

func (f *fakeStock) Reserve(ctx context.Context, ref stock.UnitRef, quantity int) error {
	if quantity > f.available[ref] {
		return &stock.InsufficientStockError{Unit: ref, Requested: quantity, Available: f.available[ref]}
	}
	f.available[ref] -= quantity
	f.reserved[ref] += quantity
	return nil
}

func (f *fakeStock) Release(ctx context.Context, ref stock.UnitRef, quantity int) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.reserved[ref] -= quantity
	if f.reserved[ref] < 0 {
		f.reserved[ref] = 0
	}
	f.available[ref] += quantity
	return nil
}

type fakeCatalog struct {
	products map[string]catalog.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func makeSvc() (*Service, *fakeCartStore, *fakeStock) {
	store := newFakeCartStore()
	st := newFakeStock()
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"shirt": {ID: "shirt", Name: "Shirt", Price: decimal.NewFromInt(20), HasSizes: true},
		"mug":   {ID: "mug", Name: "Mug", Price: decimal.RequireFromString("7.50")},
	}}
	return NewService(store, st, cat), store, st
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves then creates", func(t *testing.T) {
		svc, store, st := makeSvc()
		ref := stock.UnitRef{ProductID: "shirt", Size: "M"}
		st.available[ref] = 10

		item, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Size: "M", Quantity: 2})
		if err != nil {
			t.Fatal(err)
		}
		if !item.ReservationHeld {
			t.Fatal("item created without a held reservation")
		}
		if st.reserved[ref] != 2 {
			t.Fatalf("reserved=%d, want 2", st.reserved[ref])
		}
		if got, _ := store.Get(ctx, item.ID); got.ProductName != "Shirt" {
			t.Fatalf("product name not snapshotted: %q", got.ProductName)
		}
	})

	t.Run("size required for sized products", func(t *testing.T) {
		svc, _, st := makeSvc()
		st.available[stock.UnitRef{ProductID: "shirt"}] = 10
		_, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Quantity: 1})
		if !errors.Is(err, stock.ErrSizeRequired) {
			t.Fatalf("got %v, want ErrSizeRequired", err)
		}
	})

	t.Run("insufficient stock leaves cart unchanged", func(t *testing.T) {
		svc, store, st := makeSvc()
		ref := stock.UnitRef{ProductID: "mug"}
		st.available[ref] = 1

		_, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 5})
		if !stock.IsInsufficientStock(err) {
			t.Fatalf("got %v, want InsufficientStockError", err)
		}
		items, _ := store.ListByUser(ctx, "u1")
		if len(items) != 0 {
			t.Fatalf("cart has %d items after failed add, want 0", len(items))
		}
		if st.reserved[ref] != 0 {
			t.Fatalf("reserved=%d after failed add, want 0", st.reserved[ref])
		}
	})

	t.Run("same unit merges quantities", func(t *testing.T) {
		svc, store, st := makeSvc()
		ref := stock.UnitRef{ProductID: "shirt", Size: "M"}
		st.available[ref] = 10

		first, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Size: "M", Quantity: 2})
		if err != nil {
			t.Fatal(err)
		}
		second, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Size: "M", Quantity: 3})
		if err != nil {
			t.Fatal(err)
		}
		if second.ID != first.ID {
			t.Fatalf("merge created a new item: %s vs %s", second.ID, first.ID)
		}
		if second.Quantity != 5 {
			t.Fatalf("merged quantity=%d, want 5", second.Quantity)
		}
		if st.reserved[ref] != 5 {
			t.Fatalf("reserved=%d, want 5", st.reserved[ref])
		}
		items, _ := store.ListByUser(ctx, "u1")
		if len(items) != 1 {
			t.Fatalf("cart has %d items, want 1", len(items))
		}
	})

	t.Run("different sizes stay separate lines", func(t *testing.T) {
		svc, store, st := makeSvc()
		st.available[stock.UnitRef{ProductID: "shirt", Size: "M"}] = 10
		st.available[stock.UnitRef{ProductID: "shirt", Size: "L"}] = 10

		if _, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Size: "M", Quantity: 1}); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Size: "L", Quantity: 1}); err != nil {
			t.Fatal(err)
		}
		items, _ := store.ListByUser(ctx, "u1")
		if len(items) != 2 {
			t.Fatalf("cart has %d items, want 2", len(items))
		}
	})
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	ref := stock.UnitRef{ProductID: "mug"}

	seed := func(t *testing.T) (*Service, *fakeCartStore, *fakeStock, Item) {
		t.Helper()
		svc, store, st := makeSvc()
		st.available[ref] = 10
		item, err := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 4})
		if err != nil {
			t.Fatal(err)
		}
		return svc, store, st, item
	}

	t.Run("increase reserves the delta", func(t *testing.T) {
		svc, _, st, item := seed(t)
		got, err := svc.UpdateQuantity(ctx, item.ID, 6)
		if err != nil {
			t.Fatal(err)
		}
		if got.Quantity != 6 || st.reserved[ref] != 6 {
			t.Fatalf("quantity=%d reserved=%d, want 6/6", got.Quantity, st.reserved[ref])
		}
	})

	t.Run("decrease releases the delta", func(t *testing.T) {
		svc, _, st, item := seed(t)
		got, err := svc.UpdateQuantity(ctx, item.ID, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got.Quantity != 1 || st.reserved[ref] != 1 {
			t.Fatalf("quantity=%d reserved=%d, want 1/1", got.Quantity, st.reserved[ref])
		}
	})

	t.Run("zero or negative rejected", func(t *testing.T) {
		svc, _, _, item := seed(t)
		if _, err := svc.UpdateQuantity(ctx, item.ID, 0); !errors.Is(err, stock.ErrInvalidQuantity) {
			t.Fatalf("got %v, want ErrInvalidQuantity", err)
		}
	})

	t.Run("failed increase keeps old quantity", func(t *testing.T) {
		svc, store, st, item := seed(t)
		st.available[ref] = 1
		_, err := svc.UpdateQuantity(ctx, item.ID, 9)
		if !stock.IsInsufficientStock(err) {
			t.Fatalf("got %v, want InsufficientStockError", err)
		}
		got, _ := store.Get(ctx, item.ID)
		if got.Quantity != 4 {
			t.Fatalf("quantity=%d after failed update, want 4", got.Quantity)
		}
	})
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	ref := stock.UnitRef{ProductID: "mug"}

	t.Run("releases and deletes", func(t *testing.T) {
		svc, store, st := makeSvc()
		st.available[ref] = 10
		item, _ := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 3})

		if err := svc.RemoveItem(ctx, item.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Get(ctx, item.ID); !errors.Is(err, ErrItemNotFound) {
			t.Fatal("item still present after remove")
		}
		if st.reserved[ref] != 0 {
			t.Fatalf("reserved=%d after remove, want 0", st.reserved[ref])
		}
	})

	t.Run("deletes even when release fails", func(t *testing.T) {
		svc, store, st := makeSvc()
		st.available[ref] = 10
		item, _ := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 3})
		st.releaseErr = errors.New("ledger down")

		if err := svc.RemoveItem(ctx, item.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Get(ctx, item.ID); !errors.Is(err, ErrItemNotFound) {
			t.Fatal("item still present after remove")
		}
	})
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	t.Run("releases every item", func(t *testing.T) {
		svc, store, st := makeSvc()
		st.available[stock.UnitRef{ProductID: "mug"}] = 10
		st.available[stock.UnitRef{ProductID: "shirt", Size: "M"}] = 10
		svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 2})
		svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Size: "M", Quantity: 1})

		report, err := svc.Clear(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if report.Released != 2 || len(report.Failed) != 0 {
			t.Fatalf("report=%+v, want 2 released, 0 failed", report)
		}
		items, _ := store.ListByUser(ctx, "u1")
		if len(items) != 0 {
			t.Fatalf("cart has %d items after clear", len(items))
		}
	})

	t.Run("continues past a failed release", func(t *testing.T) {
		svc, store, st := makeSvc()
		st.available[stock.UnitRef{ProductID: "mug"}] = 10
		svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 2})
		st.releaseErr = errors.New("ledger down")

		report, err := svc.Clear(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Failed) != 1 {
			t.Fatalf("failed=%d, want 1", len(report.Failed))
		}
		items, _ := store.ListByUser(ctx, "u1")
		if len(items) != 0 {
			t.Fatal("items not removed despite failed release")
		}
	})
}

func TestGetSummary(t *testing.T) {
	ctx := context.Background()
	svc, _, st := makeSvc()
	st.available[stock.UnitRef{ProductID: "mug"}] = 10
	st.available[stock.UnitRef{ProductID: "shirt", Size: "M"}] = 10
	svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 2})
	svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "shirt", Size: "M", Quantity: 1})

	summary, err := svc.GetSummary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalItems != 3 {
		t.Fatalf("total items=%d, want 3", summary.TotalItems)
	}
	// 2 * 7.50 + 1 * 20.00
	if summary.TotalPrice != "35.00" {
		t.Fatalf("total price=%s, want 35.00", summary.TotalPrice)
	}
}

func TestItemsForCheckout(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := makeSvc()
	if _, err := svc.ItemsForCheckout(ctx, "nobody"); !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("got %v, want ErrCartEmpty", err)
	}
}

func TestDetachItems(t *testing.T) {
	ctx := context.Background()
	ref := stock.UnitRef{ProductID: "mug"}

	t.Run("removes without releasing", func(t *testing.T) {
		svc, store, st := makeSvc()
		st.available[ref] = 10
		item, _ := svc.AddItem(ctx, AddItemInput{UserID: "u1", ProductID: "mug", Quantity: 3})

		if err := svc.DetachItems(ctx, []string{item.ID}); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Get(ctx, item.ID); !errors.Is(err, ErrItemNotFound) {
			t.Fatal("item still present after detach")
		}
		// Detach must NOT release; the orders own the reservation now.
		if st.reserved[ref] != 3 {
			t.Fatalf("reserved=%d after detach, want 3", st.reserved[ref])
		}
	})

	t.Run("vanished item fails the detach", func(t *testing.T) {
		svc, _, _ := makeSvc()
		if err := svc.DetachItems(ctx, []string{"ci-gone"}); !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("got %v, want ErrItemNotFound", err)
		}
	})
}

func TestItemUnitRef(t *testing.T) {
	sized := Item{ProductID: "shirt", Size: "M"}
	if got := sized.UnitRef(); got != (stock.UnitRef{ProductID: "shirt", Size: "M"}) {
		t.Fatalf("unit ref=%+v", got)
	}
	plain := Item{ProductID: "mug"}
	if got := plain.UnitRef(); got != (stock.UnitRef{ProductID: "mug"}) {
		t.Fatalf("unit ref=%+v", got)
	}
}
