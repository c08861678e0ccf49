// README: End-to-end handler tests over in-memory collaborators.
package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"brigade/internal/config"
	"brigade/internal/logger"
	"brigade/internal/modules/catalog"
	"brigade/internal/modules/history"
	"brigade/internal/modules/kitchen"
	"brigade/internal/modules/order"
	"brigade/internal/modules/scheduler"
	"brigade/internal/modules/staff"
	"brigade/internal/modules/stock"
	"brigade/internal/types"
)

type testAPI struct {
	router *gin.Engine
	stock  *stock.MemoryStore
	events *history.MemoryPublisher
}

func buildTestRouter(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := catalog.NewMemoryStore()
	burger, _ := types.NewMoney("8.50")
	combo, _ := types.NewMoney("11.00")
	cat.PutProposal(catalog.Proposal{
		ID: "PROP1", Name: "Burger", Price: burger, Stages: []string{"Grill", "Plate"},
		Ingredients: []catalog.Ingredient{{Name: "bun", Allergens: []string{"gluten"}}, {Name: "patty"}},
	})
	cat.PutProposal(catalog.Proposal{
		ID: "PROP2", Name: "Salad", Price: burger, Stages: []string{"Plate"},
		Ingredients: []catalog.Ingredient{{Name: "lettuce"}},
	})
	cat.PutMenu(catalog.Menu{ID: "MENU1", Name: "Combo", Price: combo, Proposals: []types.ID{"PROP2"}})

	directory := staff.NewMemoryStore()
	directory.AddRestaurant(staff.Restaurant{ID: "R1", Name: "Central"})
	directory.AddEmployee(staff.Employee{ID: "E1", RestaurantID: "R1", Duty: "grill"})
	directory.AddEmployee(staff.Employee{ID: "E2", RestaurantID: "R1", Duty: "plate"})

	api := &testAPI{stock: stock.NewMemoryStore(), events: &history.MemoryPublisher{}}
	pending := order.NewPending()
	orders := order.NewMemoryStore()
	archive := history.NewMemoryStore()
	cfg := config.KitchenConfig{RestockQty: 5, DelayPenaltyMin: 5}
	sched := scheduler.NewService(scheduler.Deps{
		Pending: pending,
		Orders:  orders,
		Catalog: cat,
		Stock:   api.stock,
		Staff:   directory,
		History: archive,
		Events:  api.events,
	}, cfg)

	api.router = NewRouter(RouterDeps{
		Order:     order.NewService(pending, cat),
		Orders:    orders,
		Scheduler: sched,
		Driver:    kitchen.NewDriver(sched, cfg, nil),
		Stock:     api.stock,
		History:   archive,
		Log:       logger.Nop(),
	})
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (a *testAPI) expect(t *testing.T, method, path string, body any, code int) map[string]any {
	t.Helper()
	w, out := a.do(t, method, path, body)
	if w.Code != code {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, code, w.Code, w.Body.String())
	}
	return out
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := buildTestRouter(t)
	base := "/api/restaurants/R1"

	created := a.expect(t, http.MethodPost, base+"/orders", nil, http.StatusCreated)
	id, _ := created["order_id"].(string)
	if id == "" {
		t.Fatalf("no order id: %v", created)
	}
	orderPath := base + "/orders/" + id

	a.expect(t, http.MethodPost, orderPath+"/items", map[string]any{"kind": "proposal", "id": "PROP1"}, http.StatusOK)
	a.expect(t, http.MethodPost, orderPath+"/items", map[string]any{"kind": "menu", "id": "MENU1"}, http.StatusOK)
	a.expect(t, http.MethodPost, orderPath+"/notes", map[string]any{"note": "well done"}, http.StatusOK)
	a.expect(t, http.MethodPut, orderPath+"/service-type", map[string]any{"service_type": "takeaway"}, http.StatusOK)
	got := a.expect(t, http.MethodPut, orderPath+"/taxpayer", map[string]any{"number": "501234567"}, http.StatusOK)
	if got["service_type"] != "takeaway" || got["notes"] != "well done" || got["taxpayer_number"] != "501234567" {
		t.Fatalf("order = %v", got)
	}

	sum := a.expect(t, http.MethodGet, orderPath+"/summary", nil, http.StatusOK)
	if sum["total"] != "19.50" || sum["currency"] != "EUR" {
		t.Fatalf("summary = %v", sum)
	}

	reg := a.expect(t, http.MethodPost, orderPath+"/register", nil, http.StatusOK)
	if reg["status"] != "queued" {
		t.Fatalf("registered = %v", reg)
	}
	q := a.expect(t, http.MethodGet, base+"/queue", nil, http.StatusOK)
	if queued, _ := q["queued"].([]any); len(queued) != 1 || queued[0] != id {
		t.Fatalf("queue = %v", q)
	}

	// nothing stocked: the first run is delayed and restocks
	a.expect(t, http.MethodPost, base+"/kitchen/run", nil, http.StatusAccepted)
	stockView := a.expect(t, http.MethodGet, base+"/stock", nil, http.StatusOK)
	if levels, _ := stockView["stock"].(map[string]any); levels["bun"] != float64(5) {
		t.Fatalf("stock = %v", stockView)
	}

	start := a.expect(t, http.MethodPost, base+"/kitchen/start", nil, http.StatusOK)
	if start["order_id"] != id {
		t.Fatalf("started = %v", start)
	}
	next := a.expect(t, http.MethodGet, base+"/kitchen/next", nil, http.StatusOK)
	if step, _ := next["step"].(map[string]any); step["stage"] != "Grill" {
		t.Fatalf("next = %v", next)
	}
	step := a.expect(t, http.MethodPost, base+"/kitchen/step", nil, http.StatusOK)
	if step["employee_id"] != "E1" || step["proposal_done"] != false {
		t.Fatalf("step = %v", step)
	}
	a.expect(t, http.MethodPost, base+"/kitchen/complete", nil, http.StatusConflict)

	// lettuce is still missing for the menu salad
	a.expect(t, http.MethodPost, base+"/kitchen/step", nil, http.StatusOK)
	a.expect(t, http.MethodPost, base+"/kitchen/step", nil, http.StatusAccepted)

	run := a.expect(t, http.MethodPost, base+"/kitchen/run", nil, http.StatusOK)
	if run["completed"] != true {
		t.Fatalf("run = %v", run)
	}
	final := a.expect(t, http.MethodGet, orderPath, nil, http.StatusOK)
	if final["status"] != "completed" {
		t.Fatalf("final = %v", final)
	}
	if n := len(a.events.Types()); n == 0 {
		t.Fatal("no kitchen events published")
	}
	hist := a.expect(t, http.MethodGet, base+"/history?limit=5", nil, http.StatusOK)
	if recs, _ := hist["orders"].([]any); len(recs) != 1 || recs[0].(map[string]any)["order_id"] != id {
		t.Fatalf("history = %v", hist)
	}
}

func TestErrorMapping(t *testing.T) {
	a := buildTestRouter(t)
	base := "/api/restaurants/R1"
	created := a.expect(t, http.MethodPost, base+"/orders", nil, http.StatusCreated)
	orderPath := base + "/orders/" + created["order_id"].(string)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"unknown order", http.MethodGet, base + "/orders/nope", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, base + "/orders/bad$id", nil, http.StatusBadRequest},
		{"unknown item", http.MethodPost, orderPath + "/items", map[string]any{"kind": "menu", "id": "MENU9"}, http.StatusUnprocessableEntity},
		{"bad item kind", http.MethodPost, orderPath + "/items", map[string]any{"kind": "drink", "id": "PROP1"}, http.StatusBadRequest},
		{"bad service type", http.MethodPut, orderPath + "/service-type", map[string]any{"service_type": "drone"}, http.StatusBadRequest},
		{"missing wait time", http.MethodPut, orderPath + "/wait-time", map[string]any{}, http.StatusBadRequest},
		{"wait time of pending order", http.MethodPut, orderPath + "/wait-time", map[string]any{"wait_time": 3}, http.StatusNotFound},
		{"start on empty queue", http.MethodPost, base + "/kitchen/start", nil, http.StatusConflict},
		{"next without order", http.MethodGet, base + "/kitchen/next", nil, http.StatusConflict},
		{"step without order", http.MethodPost, base + "/kitchen/step", nil, http.StatusConflict},
		{"negative stock", http.MethodPut, base + "/stock/bun", map[string]any{"quantity": -1}, http.StatusBadRequest},
		{"bad history limit", http.MethodGet, base + "/history?limit=abc", nil, http.StatusBadRequest},
		{"set stock", http.MethodPut, base + "/stock/bun", map[string]any{"quantity": 3}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a.expect(t, tc.method, tc.path, tc.body, tc.code)
		})
	}

	a.expect(t, http.MethodDelete, orderPath, nil, http.StatusNoContent)
	a.expect(t, http.MethodGet, orderPath, nil, http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	a := buildTestRouter(t)
	w, _ := a.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("health = %d %q", w.Code, w.Body.String())
	}
}
