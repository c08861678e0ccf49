package scheduler

import (
	"context"
	"testing"

	"brigade/internal/config"
	"brigade/internal/modules/catalog"
	"brigade/internal/modules/history"
	"brigade/internal/modules/order"
	"brigade/internal/modules/staff"
	"brigade/internal/modules/stock"
	"brigade/internal/types"
)

// testCatalog:
//
//	PROP1 Burger  Grill, Plate   bun, patty
//	PROP2 Fries   Fry            potato
//	PROP3 Water   (no stages)    water
//	PROP4 Double  Fry            potato, potato
//	MENU1 Combo   PROP2, PROP1
//	MENU2 Drinks  PROP3
func testCatalog() *catalog.MemoryStore {
	c := catalog.NewMemoryStore()
	price, _ := types.NewMoney("5.00")
	ing := func(names ...string) []catalog.Ingredient {
		out := make([]catalog.Ingredient, len(names))
		for i, n := range names {
			out[i] = catalog.Ingredient{Name: n}
		}
		return out
	}
	c.PutProposal(catalog.Proposal{ID: "PROP1", Name: "Burger", Price: price, Stages: []string{"Grill", "Plate"}, Ingredients: ing("bun", "patty")})
	c.PutProposal(catalog.Proposal{ID: "PROP2", Name: "Fries", Price: price, Stages: []string{"Fry"}, Ingredients: ing("potato")})
	c.PutProposal(catalog.Proposal{ID: "PROP3", Name: "Water", Price: price, Ingredients: ing("water")})
	c.PutProposal(catalog.Proposal{ID: "PROP4", Name: "Double fries", Price: price, Stages: []string{"Fry"}, Ingredients: ing("potato", "potato")})
	c.PutMenu(catalog.Menu{ID: "MENU1", Name: "Combo", Price: price, Proposals: []types.ID{"PROP2", "PROP1"}})
	c.PutMenu(catalog.Menu{ID: "MENU2", Name: "Drinks", Price: price, Proposals: []types.ID{"PROP3"}})
	return c
}

type fixture struct {
	svc     *Service
	pending *order.Pending
	orders  *order.MemoryStore
	stock   *stock.MemoryStore
	staff   *staff.MemoryStore
	archive *history.MemoryStore
	events  *history.MemoryPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		pending: order.NewPending(),
		orders:  order.NewMemoryStore(),
		stock:   stock.NewMemoryStore(),
		staff:   staff.NewMemoryStore(),
		archive: history.NewMemoryStore(),
		events:  &history.MemoryPublisher{},
	}
	f.staff.AddRestaurant(staff.Restaurant{ID: "R1", Name: "Central"})
	f.staff.AddRestaurant(staff.Restaurant{ID: "R2", Name: "Harbour"})
	f.staff.AddEmployee(staff.Employee{ID: "E1", RestaurantID: "R1", Name: "Ana", Role: staff.RoleChef, Duty: "grill"})
	f.staff.AddEmployee(staff.Employee{ID: "E2", RestaurantID: "R1", Name: "Rui", Role: staff.RoleStaff, Duty: "Plate"})
	f.staff.AddEmployee(staff.Employee{ID: "E3", RestaurantID: "R1", Name: "Iva", Role: staff.RoleStaff, Duty: "fry"})

	f.svc = NewService(Deps{
		Pending: f.pending,
		Orders:  f.orders,
		Catalog: testCatalog(),
		Stock:   f.stock,
		Staff:   f.staff,
		History: f.archive,
		Events:  f.events,
	}, config.KitchenConfig{RestockQty: 5, DelayPenaltyMin: 5.0})
	return f
}

func (f *fixture) stockUp(t *testing.T, rid types.ID, qty map[string]int) {
	t.Helper()
	for ing, n := range qty {
		if err := f.stock.SetQuantity(context.Background(), rid, ing, n); err != nil {
			t.Fatalf("stock %s: %v", ing, err)
		}
	}
}

// register creates, fills and registers an order in one go.
func (f *fixture) register(t *testing.T, rid types.ID, proposals, menus []types.ID) *order.Order {
	t.Helper()
	id := f.pending.Create(rid)
	err := f.pending.Update(id, rid, func(o *order.Order) error {
		o.Proposals = append(o.Proposals, proposals...)
		o.Menus = append(o.Menus, menus...)
		return nil
	})
	if err != nil {
		t.Fatalf("fill order: %v", err)
	}
	o, err := f.svc.Register(context.Background(), id, rid)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return o
}

func (f *fixture) stored(t *testing.T, id types.ID) *order.Order {
	t.Helper()
	o, err := f.orders.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return o
}

func ids(v ...types.ID) []types.ID { return v }

func menuRef(id types.ID) *types.ID { return &id }
