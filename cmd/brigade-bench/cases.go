// README: Bench cases: environment, migration, seed data, kitchen flow over HTTP, concurrency and load.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"brigade/internal/modules/stock"
	"brigade/internal/types"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// order id carried between flow cases
	orderID string
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) restaurantURL() string {
	return r.cfg.BaseURL + "/api/restaurants/" + r.cfg.Restaurant
}

func (r *Runner) cases() []TestCase {
	base := r.restaurantURL()
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusFail, Note: "db not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusFail, Note: "redis not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: tablesExist},
		{Name: "Seed: catalog and staff", Run: seedCatalog},
		{Name: "Seed: stock ledger", Run: seedStock},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			status, latency, _, err := r.call(ctx, http.MethodGet, r.cfg.BaseURL+"/health", nil)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return expectStatus(status, latency, http.StatusOK)
		}},

		{Name: "Order: create pending", Run: func(ctx context.Context, r *Runner) Result {
			status, latency, body, err := r.call(ctx, http.MethodPost, base+"/orders", nil)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			r.orderID, _ = body["order_id"].(string)
			if r.orderID == "" {
				return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d no order id", status)}
			}
			return expectStatus(status, latency, http.StatusCreated)
		}},
		r.orderCase("Order: add standalone proposal", http.MethodPost, "/items", map[string]any{"kind": "proposal", "id": "BENCH-P1"}, http.StatusOK),
		r.orderCase("Order: add menu", http.MethodPost, "/items", map[string]any{"kind": "menu", "id": "BENCH-M1"}, http.StatusOK),
		r.orderCase("Order: unknown item -> 422", http.MethodPost, "/items", map[string]any{"kind": "menu", "id": "NOPE"}, http.StatusUnprocessableEntity),
		r.orderCase("Order: service type", http.MethodPut, "/service-type", map[string]any{"service_type": "dine_in"}, http.StatusOK),
		r.orderCase("Order: summary", http.MethodGet, "/summary", nil, http.StatusOK),
		r.orderCase("Order: register", http.MethodPost, "/register", nil, http.StatusOK),
		httpCase("Kitchen: queue", http.MethodGet, base+"/queue", nil, http.StatusOK),
		httpCase("Kitchen: run order", http.MethodPost, base+"/kitchen/run", nil, http.StatusOK, http.StatusAccepted),
		httpCase("Kitchen: start on empty queue -> 409", http.MethodPost, base+"/kitchen/start", nil, http.StatusConflict, http.StatusOK),

		{Name: "Concurrency: parallel runs on one restaurant", Run: func(ctx context.Context, r *Runner) Result {
			return concurrentRuns(ctx, r, base)
		}},
		{Name: "Perf: pending order creation throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, base+"/orders")
		}},
	}
}

func (r *Runner) orderCase(name, method, suffix string, body any, ok ...int) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		if r.orderID == "" {
			return Result{Status: statusSkip, Note: "no order created"}
		}
		status, latency, _, err := r.call(ctx, method, r.restaurantURL()+"/orders/"+r.orderID+suffix, body)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		return expectStatus(status, latency, ok...)
	}}
}

func httpCase(name, method, url string, body any, ok ...int) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		status, latency, _, err := r.call(ctx, method, url, body)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		return expectStatus(status, latency, ok...)
	}}
}

func (r *Runner) call(ctx context.Context, method, url string, body any) (int, time.Duration, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)

	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, latency, out, nil
}

func expectStatus(status int, latency time.Duration, ok ...int) Result {
	note := fmt.Sprintf("status=%d", status)
	for _, s := range ok {
		if s == status {
			return Result{Status: statusPass, Latency: latency, Note: note}
		}
	}
	return Result{Status: statusFail, Latency: latency, Note: note}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

// seedCatalog upserts one restaurant with a grill/plate/fry brigade and a small catalog.
func seedCatalog(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	rid := r.cfg.Restaurant
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO restaurants (id, name) VALUES ($1, 'Bench kitchen') ON CONFLICT (id) DO NOTHING`, []any{rid}},
		{`INSERT INTO employees (id, restaurant_id, name, role, duty) VALUES
			($1 || '-E1', $1, 'Grill cook', 'chef', 'Grill'),
			($1 || '-E2', $1, 'Plater', 'staff', 'Plate'),
			($1 || '-E3', $1, 'Fry cook', 'staff', 'Fry')
			ON CONFLICT (id) DO NOTHING`, []any{rid}},
		{`INSERT INTO ingredients (name, allergens) VALUES
			('bun', '{gluten}'), ('patty', '{}'), ('potato', '{}')
			ON CONFLICT (name) DO NOTHING`, nil},
		{`INSERT INTO proposals (id, name, price, stages) VALUES
			('BENCH-P1', 'Burger', 8.50, '{Grill,Plate}'),
			('BENCH-P2', 'Fries', 2.75, '{Fry}')
			ON CONFLICT (id) DO NOTHING`, nil},
		{`INSERT INTO proposal_ingredients (proposal_id, position, ingredient) VALUES
			('BENCH-P1', 0, 'bun'), ('BENCH-P1', 1, 'patty'), ('BENCH-P2', 0, 'potato')
			ON CONFLICT (proposal_id, position) DO NOTHING`, nil},
		{`INSERT INTO menus (id, name, price, proposal_ids) VALUES
			('BENCH-M1', 'Combo', 10.00, '{BENCH-P2,BENCH-P1}')
			ON CONFLICT (id) DO NOTHING`, nil},
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(ctx, s.sql, s.args...); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func seedStock(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ledger := stock.NewStore(r.redis)
	rid := types.ID(r.cfg.Restaurant)
	for _, ing := range []string{"bun", "patty", "potato"} {
		if err := ledger.SetQuantity(ctx, rid, ing, 100); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

// concurrentRuns fires parallel kitchen runs; the driver must let at most one through.
func concurrentRuns(ctx context.Context, r *Runner, base string) Result {
	var wg sync.WaitGroup
	var succ, busy atomic.Int32
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _, err := r.call(ctx, http.MethodPost, base+"/kitchen/run", nil)
			if err != nil {
				return
			}
			switch status {
			case http.StatusOK, http.StatusAccepted:
				succ.Add(1)
			case http.StatusConflict:
				busy.Add(1)
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d", succ.Load(), busy.Load())
	if succ.Load() <= 1 {
		return Result{Status: statusPass, Note: note}
	}
	return Result{Status: statusFail, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, url string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.call(ctx, http.MethodPost, url, nil)
				if err != nil || status != http.StatusCreated {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
