package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fleetnav/internal/config"
	"fleetnav/internal/grid"
	"fleetnav/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sm, err := config.DefaultScenario().Build()
	if err != nil {
		t.Fatalf("build scenario: %v", err)
	}
	return New(sm)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestGridAndObstacles(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/v1/grid", nil)
	if rr.Code != 200 {
		t.Fatalf("grid: %d", rr.Code)
	}
	g := decode[model.GridOut](t, rr)
	if g.Width != 10 || g.Height != 10 || len(g.Obstacles) != 3 || g.FreeCells != 97 {
		t.Fatalf("unexpected grid %+v", g)
	}

	rr = do(t, h, http.MethodPost, "/v1/grid/obstacles", map[string]int{"x": 1, "y": 1})
	if rr.Code != 200 {
		t.Fatalf("obstacle: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPost, "/v1/grid/obstacles", map[string]int{"x": 10, "y": 1})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("out of bounds obstacle: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/grid/obstacles", map[string]int{"x": 1})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing y: %d", rr.Code)
	}
	g = decode[model.GridOut](t, do(t, h, http.MethodGet, "/v1/grid", nil))
	if len(g.Obstacles) != 4 {
		t.Fatalf("want 4 obstacles, got %d", len(g.Obstacles))
	}
}

func TestRobotsCreateListRecharge(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodPost, "/v1/robots", map[string]any{"id": 3, "position": map[string]int{"x": 5, "y": 5}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPost, "/v1/robots", map[string]any{"id": 3, "position": map[string]int{"x": 1, "y": 1}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/robots", map[string]any{"id": 4})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing position: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/robots", map[string]any{"id": 5, "position": map[string]int{"x": 1, "y": 1}, "speed": 2})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", rr.Code)
	}

	list := decode[struct {
		Items []struct {
			ID int `json:"id"`
		} `json:"items"`
	}](t, do(t, h, http.MethodGet, "/v1/robots", nil))
	if len(list.Items) != 3 || list.Items[2].ID != 3 {
		t.Fatalf("unexpected robots %+v", list.Items)
	}

	if rr = do(t, h, http.MethodPost, "/v1/robots/3/recharge", nil); rr.Code != 200 {
		t.Fatalf("recharge: %d", rr.Code)
	}
	if rr = do(t, h, http.MethodPost, "/v1/robots/42/recharge", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("recharge unknown: %d", rr.Code)
	}
	if rr = do(t, h, http.MethodPost, "/v1/robots/abc/recharge", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("recharge bad id: %d", rr.Code)
	}
	if rr = do(t, h, http.MethodPost, "/v1/robots/3/launch", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown action: %d", rr.Code)
	}
}

func TestAssignPersistsAndPublishes(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	ch := s.Broker.Subscribe(Topic)
	defer s.Broker.Unsubscribe(Topic, ch)

	rr := do(t, h, http.MethodPost, "/v1/assign", nil)
	if rr.Code != 200 {
		t.Fatalf("assign: %d %s", rr.Code, rr.Body.String())
	}
	run := decode[model.DispatchRun](t, rr)
	if run.ID == "" || run.Policy != "greedy" {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(run.Assignments) != 2 || run.TotalCost != 18 || len(run.Pending) != 0 {
		t.Fatalf("unexpected outcome %+v", run)
	}
	if run.Assignments[0].RobotID != 1 || run.Assignments[0].OrderID != 1 {
		t.Fatalf("robot 1 should take order 1: %+v", run.Assignments[0])
	}

	// 2 assigned + 2 moved + 1 completed
	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	if len(types) != 5 || types[4] != EventRunCompleted {
		t.Fatalf("unexpected events %v", types)
	}

	got := decode[model.DispatchRun](t, do(t, h, http.MethodGet, "/v1/runs/"+run.ID, nil))
	if got.TotalCost != 18 {
		t.Fatalf("stored run %+v", got)
	}
	if rr = do(t, h, http.MethodGet, "/v1/runs/nope", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing run: %d", rr.Code)
	}

	// second round with nothing queued is still recorded
	if rr = do(t, h, http.MethodPost, "/v1/assign", nil); rr.Code != 200 {
		t.Fatalf("assign 2: %d", rr.Code)
	}
	page := decode[struct {
		Items      []model.DispatchRun `json:"items"`
		NextCursor string              `json:"nextCursor"`
	}](t, do(t, h, http.MethodGet, "/v1/runs?limit=1", nil))
	if len(page.Items) != 1 || page.NextCursor != run.ID {
		t.Fatalf("unexpected page %+v", page)
	}
	if rr = do(t, h, http.MethodGet, "/v1/runs?limit=x", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rr.Code)
	}
	if rr = do(t, h, http.MethodGet, "/v1/runs?cursor=stale", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("stale cursor: %d", rr.Code)
	}
}

func TestOrdersQueueAndPending(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodPost, "/v1/orders", map[string]any{"destination": map[string]int{"x": 5, "y": 5}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("order: %d %s", rr.Code, rr.Body.String())
	}
	if rr = do(t, h, http.MethodPost, "/v1/orders", map[string]any{"destination": map[string]int{"x": -1, "y": 0}}); rr.Code != http.StatusBadRequest {
		t.Fatalf("out of bounds order: %d", rr.Code)
	}
	if rr = do(t, h, http.MethodPost, "/v1/orders", map[string]any{}); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing destination: %d", rr.Code)
	}

	run := decode[model.DispatchRun](t, do(t, h, http.MethodPost, "/v1/assign", nil))
	if len(run.Assignments) != 2 || len(run.Pending) != 1 {
		t.Fatalf("want 2 assigned and 1 pending, got %+v", run)
	}
	list := decode[struct {
		Items []struct {
			ID int `json:"id"`
		} `json:"items"`
	}](t, do(t, h, http.MethodGet, "/v1/orders", nil))
	if len(list.Items) != 1 || list.Items[0].ID != 3 {
		t.Fatalf("pending orders %+v", list.Items)
	}
}

func TestPaths(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodPost, "/v1/paths", map[string]any{"start": map[string]int{"x": 0, "y": 0}, "goal": map[string]int{"x": 9, "y": 9}})
	if rr.Code != 200 {
		t.Fatalf("paths: %d", rr.Code)
	}
	res := decode[model.PathResponse](t, rr)
	if !res.Found || res.Cost != 18 || len(res.Path) != 19 {
		t.Fatalf("unexpected path %+v", res)
	}

	rr = do(t, h, http.MethodPost, "/v1/paths", map[string]any{"start": map[string]int{"x": 4, "y": 5}, "goal": map[string]int{"x": 0, "y": 0}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("start on obstacle: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/paths", map[string]any{"start": map[string]int{"x": 0, "y": 0}, "goal": map[string]int{"x": 10, "y": 0}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("out of bounds: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/paths", map[string]any{"start": map[string]int{"x": 0, "y": 0}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing goal: %d", rr.Code)
	}

	// budget too small reports not found rather than an error
	rr = do(t, h, http.MethodPost, "/v1/paths", map[string]any{"start": map[string]int{"x": 0, "y": 0}, "goal": map[string]int{"x": 9, "y": 9}, "maxExpansions": 3})
	res = decode[model.PathResponse](t, rr)
	if rr.Code != 200 || res.Found || res.Reason == "" {
		t.Fatalf("budget: %d %+v", rr.Code, res)
	}
}

func TestPathsUnreachable(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	for _, p := range [][2]int{{8, 9}, {9, 8}} {
		if rr := do(t, h, http.MethodPost, "/v1/grid/obstacles", map[string]int{"x": p[0], "y": p[1]}); rr.Code != 200 {
			t.Fatalf("obstacle: %d", rr.Code)
		}
	}
	rr := do(t, h, http.MethodPost, "/v1/paths", map[string]any{"start": map[string]int{"x": 0, "y": 0}, "goal": map[string]int{"x": 9, "y": 9}})
	res := decode[model.PathResponse](t, rr)
	if rr.Code != 200 || res.Found {
		t.Fatalf("walled goal: %d %+v", rr.Code, res)
	}
}

func TestDebugAndMetrics(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/debug/info", nil)
	if rr.Code != 200 {
		t.Fatalf("debug: %d", rr.Code)
	}
	info := decode[map[string]any](t, rr)
	if _, ok := info["build"]; !ok {
		t.Fatalf("missing build info: %v", info)
	}
	if rr = do(t, h, http.MethodGet, "/metrics", nil); rr.Code != 200 {
		t.Fatalf("metrics: %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t).Routes()
	for _, c := range []struct{ method, path string }{
		{http.MethodGet, "/v1/assign"},
		{http.MethodDelete, "/v1/robots"},
		{http.MethodPost, "/v1/grid"},
		{http.MethodGet, "/v1/paths"},
	} {
		if rr := do(t, h, c.method, c.path, nil); rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: got %d", c.method, c.path, rr.Code)
		}
	}
}

func TestRobotMovedFromMatchesPathStartUnderConcurrentRounds(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	ch := s.Broker.Subscribe(Topic)
	defer s.Broker.Unsubscribe(Topic, ch)

	var events []SSEEvent
	done := make(chan struct{})
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for {
			select {
			case evt := <-ch:
				events = append(events, evt)
			case <-done:
				for len(ch) > 0 {
					events = append(events, <-ch)
				}
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			do(t, h, http.MethodPost, "/v1/orders", map[string]any{"destination": map[string]int{"x": i + 1, "y": 2}})
			do(t, h, http.MethodPost, "/v1/assign", nil)
		}(i)
	}
	wg.Wait()
	close(done)
	<-collected

	var paths [][]grid.Position
	robots := map[int][]int{}
	for _, evt := range events {
		if evt.Type == EventOrderAssigned {
			robots[evt.Data["robotId"].(int)] = append(robots[evt.Data["robotId"].(int)], len(paths))
			paths = append(paths, evt.Data["path"].([]grid.Position))
		}
	}
	moved := 0
	for _, evt := range events {
		if evt.Type != EventRobotMoved {
			continue
		}
		moved++
		ok := false
		for _, k := range robots[evt.Data["robotId"].(int)] {
			p := paths[k]
			if evt.Data["from"] == p[0] && evt.Data["to"] == p[len(p)-1] {
				ok = true
				break
			}
		}
		if !ok {
			t.Fatalf("robot.moved %v matches no assigned path", evt.Data)
		}
	}
	if moved == 0 {
		t.Fatal("no robot.moved events")
	}
}

func TestRobotMovedFromIsPreviousDestination(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	first := decode[model.DispatchRun](t, do(t, h, http.MethodPost, "/v1/assign", nil))
	if len(first.Assignments) == 0 {
		t.Fatalf("first round assigned nothing: %+v", first)
	}
	end := first.Assignments[0].To

	ch := s.Broker.Subscribe(Topic)
	defer s.Broker.Unsubscribe(Topic, ch)
	do(t, h, http.MethodPost, "/v1/orders", map[string]any{"destination": map[string]int{"x": end.X, "y": 1}})
	second := decode[model.DispatchRun](t, do(t, h, http.MethodPost, "/v1/assign", nil))
	if len(second.Assignments) != 1 {
		t.Fatalf("second round %+v", second)
	}
	for len(ch) > 0 {
		evt := <-ch
		if evt.Type != EventRobotMoved {
			continue
		}
		var prev grid.Position
		for _, a := range first.Assignments {
			if a.RobotID == evt.Data["robotId"] {
				prev = a.To
			}
		}
		if evt.Data["from"] != prev {
			t.Fatalf("robot %v moved from %v, want %v", evt.Data["robotId"], evt.Data["from"], prev)
		}
	}
}

func TestGaugesFollowMutations(t *testing.T) {
	h := newTestServer(t).Routes()
	if rr := do(t, h, http.MethodPost, "/v1/robots", map[string]any{"id": 3, "position": map[string]int{"x": 5, "y": 5}}); rr.Code != http.StatusCreated {
		t.Fatalf("create robot: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/orders", map[string]any{"destination": map[string]int{"x": 2, "y": 2}}); rr.Code != http.StatusCreated {
		t.Fatalf("create order: %d", rr.Code)
	}
	body := do(t, h, http.MethodGet, "/metrics", nil).Body.String()
	for _, want := range []string{"fleet_robots 3", "fleet_pending_orders 3"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}
