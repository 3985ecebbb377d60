package cart

import (
	"math/rand"
	"testing"

	"github.com/askgroup/dealerportal/api"
)

func sumQuantities(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func TestAddSameProductAccumulates(t *testing.T) {
	c := New()
	for _, q := range []int{1, 4, 2} {
		c.Add(Item{ProductID: "p1", Name: "Soap", Quantity: q, UnitPrice: 10})
	}

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected one entry, got %d", len(items))
	}
	if items[0].Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", items[0].Quantity)
	}
	if c.ItemCount() != 7 {
		t.Fatalf("expected item count 7, got %d", c.ItemCount())
	}
}

func TestAddPreservesInsertionOrder(t *testing.T) {
	c := New()
	c.Add(Item{ProductID: "b", Quantity: 1})
	c.Add(Item{ProductID: "a", Quantity: 1})
	c.Add(Item{ProductID: "b", Quantity: 1})

	items := c.Items()
	if items[0].ProductID != "b" || items[1].ProductID != "a" {
		t.Fatalf("unexpected order %+v", items)
	}
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	c := New()
	c.Remove("missing")
	if c.Len() != 0 || c.ItemCount() != 0 {
		t.Fatal("expected empty cart after remove on empty cart")
	}

	c.Add(Item{ProductID: "p1", Quantity: 2})
	c.Remove("missing")
	if c.Len() != 1 || c.ItemCount() != 2 {
		t.Fatalf("expected cart unchanged, len=%d count=%d", c.Len(), c.ItemCount())
	}

	c.Remove("p1")
	if c.Len() != 0 || c.ItemCount() != 0 {
		t.Fatalf("expected empty cart, len=%d count=%d", c.Len(), c.ItemCount())
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Add(Item{ProductID: "p1", Quantity: 2})
	c.Add(Item{ProductID: "p2", Quantity: 3})
	c.Clear()
	if c.Len() != 0 || c.ItemCount() != 0 || c.Total() != 0 {
		t.Fatal("expected empty cart after Clear")
	}
}

func TestItemCountMatchesQuantitiesAfterEveryMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids := []string{"p1", "p2", "p3", "p4"}
	c := New()

	for step := 0; step < 500; step++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(10) {
		case 0:
			c.Clear()
		case 1, 2, 3:
			c.Remove(id)
		default:
			c.Add(Item{ProductID: id, Quantity: 1 + rng.Intn(5)})
		}

		items := c.Items()
		if got, want := c.ItemCount(), sumQuantities(items); got != want {
			t.Fatalf("step %d: item count %d != sum of quantities %d", step, got, want)
		}
		seen := map[string]bool{}
		for _, item := range items {
			if seen[item.ProductID] {
				t.Fatalf("step %d: duplicate entry for %s", step, item.ProductID)
			}
			seen[item.ProductID] = true
		}
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	c := New()
	c.Add(Item{ProductID: "p1", Quantity: 1})
	items := c.Items()
	items[0].Quantity = 99
	if c.Items()[0].Quantity != 1 {
		t.Fatal("mutating the returned slice must not affect the cart")
	}
}

func TestTotalsAndOrderItems(t *testing.T) {
	c := New()
	c.Add(FromProduct(api.Product{ProductID: "p1", Name: "Soap", TradePriceInclVAT: 2.5}, 4))
	c.Add(Item{ProductID: "p2", Name: "Oil", Quantity: 1, UnitPrice: 10})

	if c.Total() != 20 {
		t.Fatalf("expected total 20, got %v", c.Total())
	}

	lines := c.OrderItems()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != (api.PurchaseOrderItemCreate{ProductID: "p1", Quantity: 4, UnitPrice: 2.5}) {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
}
