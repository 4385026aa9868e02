package core_test

import (
	"context"
	"sync"
	"testing"

	"ecommerce-support-agent/internal/core"

	"github.com/shopspring/decimal"
)

func findProductByName(t *testing.T, s *core.Store, ctx context.Context, name string) core.Product {
	t.Helper()
	products, err := s.ListProducts(ctx, "", name, nil, "")
	if err != nil || len(products) == 0 {
		t.Fatalf("could not find seeded product %q: %v", name, err)
	}
	return products[0]
}

func TestStore_CreateOrder_ComputesTotalAndDecrementsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(pool)
	ctx := context.Background()

	jacket := findProductByName(t, s, ctx, "Summit")

	cust := core.CustomerFields{Name: "Jordan Lee", Email: "jordan@example.com", Phone: "555-0100"}
	addr := core.AddressFields{Street: "1 Market St", City: "San Francisco", State: "CA", Zip: "94107"}

	orderID, err := s.CreateOrder(ctx, cust, addr, []int{jacket.ID}, []int{2})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.Status != core.OrderPending {
		t.Errorf("expected pending status, got %s", order.Status)
	}
	wantTotal := jacket.Price.Mul(decimal.NewFromInt(2))
	if !order.TotalAmount.Equal(wantTotal) {
		t.Errorf("expected total %s, got %s", wantTotal, order.TotalAmount)
	}

	stock, err := s.CheckStock(ctx, jacket.ID)
	if err != nil {
		t.Fatalf("CheckStock failed: %v", err)
	}
	if stock != jacket.Stock-2 {
		t.Errorf("expected stock %d, got %d", jacket.Stock-2, stock)
	}
}

func TestStore_CreateOrder_RejectsInsufficientStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(pool)
	ctx := context.Background()

	jacket := findProductByName(t, s, ctx, "Summit")
	cust := core.CustomerFields{Name: "A", Email: "a@example.com"}
	addr := core.AddressFields{Street: "x", City: "x", State: "CA", Zip: "94107"}

	_, err := s.CreateOrder(ctx, cust, addr, []int{jacket.ID}, []int{jacket.Stock + 1})
	if err == nil {
		t.Fatal("expected out-of-stock error")
	}
	if core.KindOf(err) != core.KindOutOfStock {
		t.Errorf("expected KindOutOfStock, got %v", core.KindOf(err))
	}

	stock, _ := s.CheckStock(ctx, jacket.ID)
	if stock != jacket.Stock {
		t.Errorf("stock must be unchanged after a failed order, got %d want %d", stock, jacket.Stock)
	}
}

func TestStore_CreateOrder_MismatchedLengthsRejected(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(pool)
	ctx := context.Background()

	cust := core.CustomerFields{Name: "A", Email: "a@example.com"}
	addr := core.AddressFields{Street: "x", City: "x", State: "CA", Zip: "94107"}

	_, err := s.CreateOrder(ctx, cust, addr, []int{1, 2}, []int{1})
	if core.KindOf(err) != core.KindInvalidArguments {
		t.Errorf("expected KindInvalidArguments, got %v", core.KindOf(err))
	}
}

func TestStore_CreateOrder_ConcurrentOrdersCannotOversell(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(pool)
	ctx := context.Background()

	pole := findProductByName(t, s, ctx, "Carbon Trekking Pole")
	cust := core.CustomerFields{Name: "A", Email: "a@example.com"}
	addr := core.AddressFields{Street: "x", City: "x", State: "CA", Zip: "94107"}

	var wg sync.WaitGroup
	successes := make(chan int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateOrder(ctx, cust, addr, []int{pole.ID}, []int{pole.Stock}); err == nil {
				successes <- 1
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly one of two concurrent full-stock orders to succeed, got %d", count)
	}

	stock, _ := s.CheckStock(ctx, pole.ID)
	if stock < 0 {
		t.Errorf("stock went negative: %d", stock)
	}
}

func TestStore_GetOrderWithProductNames(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(pool)
	ctx := context.Background()

	jacket := findProductByName(t, s, ctx, "Summit")
	cust := core.CustomerFields{Name: "A", Email: "a@example.com"}
	addr := core.AddressFields{Street: "x", City: "x", State: "CA", Zip: "94107"}

	orderID, err := s.CreateOrder(ctx, cust, addr, []int{jacket.ID}, []int{1})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	order, err := s.GetOrderWithProductNames(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrderWithProductNames failed: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].ProductName != jacket.Name {
		t.Errorf("expected joined product name %q, got %+v", jacket.Name, order.Items)
	}
}

func TestStore_ListOrders_FiltersByStatus(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(pool)
	ctx := context.Background()

	jacket := findProductByName(t, s, ctx, "Summit")
	cust := core.CustomerFields{Name: "A", Email: "a@example.com"}
	addr := core.AddressFields{Street: "x", City: "x", State: "CA", Zip: "94107"}

	orderID, err := s.CreateOrder(ctx, cust, addr, []int{jacket.ID}, []int{1})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if err := s.UpdateOrderStatus(ctx, orderID, core.OrderShipped); err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}

	shipped, err := s.ListOrders(ctx, string(core.OrderShipped))
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(shipped) != 1 || shipped[0].ID != orderID {
		t.Errorf("expected exactly the shipped order, got %+v", shipped)
	}

	pending, err := s.ListOrders(ctx, string(core.OrderPending))
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending orders, got %d", len(pending))
	}
}
