package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"callbingo/internal/cache"
	"callbingo/internal/core"
	"callbingo/internal/effects"
	"callbingo/internal/kv/memory"
	applog "callbingo/internal/log"
	"callbingo/internal/services"
	"callbingo/internal/state"
)

type identityShuffle struct{}

func (identityShuffle) Shuffle(int, func(i, j int)) {}

type firstPick struct{}

func (firstPick) IntN(int) int { return 0 }

type testServer struct {
	*Server
	standings *cache.LRUCache[core.Standings]
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	repo := state.NewRepository(memory.New())
	standings := cache.NewLRUCache[core.Standings](4, time.Minute)
	svc := Services{
		Game:   services.NewGameService(core.DefaultPhrases, core.DefaultCenterPhrase, identityShuffle{}, effects.Discard{}),
		Ledger: services.NewLedgerService(repo, core.DefaultInitialFunds(), nil, standings),
		Goal:   services.NewGoalService(repo, []string{"keep dialing"}, firstPick{}, effects.Discard{}),
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Output: &bytes.Buffer{}})
	}
	opts.StandingsCache = standings
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, standings: standings}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{core.DefaultCenterPhrase, "¥4,900", "theme-default"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" || rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("security or trace headers missing: %v", rec.Header())
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/static/app.css"} {
		if rec := ts.do(t, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
	}
	if rec := ts.do(t, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rec.Code)
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	ts := newTestServer(t, Options{ReadinessChecks: map[string]ReadinessCheck{
		"store": func(context.Context) error { return errors.New("connection refused") },
	}})
	rec := ts.do(t, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("readyz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestBoardFlow(t *testing.T) {
	ts := newTestServer(t, Options{})

	board := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/board", nil))
	if board["version"] != float64(1) || board["pachinko"] != false {
		t.Fatalf("unexpected board %v", board)
	}
	if _, ok := board["stats"].(map[string]any)["bingoCount"]; !ok {
		t.Fatalf("board stats missing bingoCount: %v", board)
	}

	var last updateJSON
	for _, id := range []string{"0", "4", "8"} {
		rec := ts.do(t, http.MethodPost, "/api/board/cells/"+id+"/increment", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("increment %s status=%d", id, rec.Code)
		}
		last = decode[updateJSON](t, rec)
	}
	if last.Gained != 1 || last.Board.Lines != 1 || !last.Board.Pachinko || last.Board.Stats.MarkedCount != 3 {
		t.Fatalf("diagonal should complete one line: %+v", last)
	}

	for _, id := range []string{"9", "-1", "abc"} {
		if rec := ts.do(t, http.MethodPost, "/api/board/cells/"+id+"/increment", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("increment %s status=%d, want 404", id, rec.Code)
		}
	}

	reset := decode[updateJSON](t, ts.do(t, http.MethodPost, "/api/board/reset", nil))
	if reset.Lost != 1 || reset.Board.Lines != 0 {
		t.Fatalf("reset should report the lost line: %+v", reset)
	}

	shuffled := decode[updateJSON](t, ts.do(t, http.MethodPost, "/api/board/shuffle", nil))
	if shuffled.Board.Version != 2 {
		t.Fatalf("shuffle version = %d", shuffled.Board.Version)
	}

	if rec := ts.do(t, http.MethodGet, "/api/board/reset", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on reset status=%d", rec.Code)
	}
}

func TestEditCells(t *testing.T) {
	ts := newTestServer(t, Options{})

	text := "  新しい\x07フレーズ "
	zero := 0
	rec := ts.do(t, http.MethodPut, "/api/board/cells", []core.CellEdit{{ID: 1, Text: &text, TargetCount: &zero}})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status=%d body=%s", rec.Code, rec.Body.String())
	}
	u := decode[updateJSON](t, rec)
	if c := u.Board.Grid[1]; c.Text != "新しいフレーズ" || c.TargetCount != 1 {
		t.Fatalf("unexpected edited cell %+v", c)
	}

	if rec := ts.do(t, http.MethodPut, "/api/board/cells", []core.CellEdit{{ID: 12}}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown cell edit status=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/board/cells", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d", rr.Code)
	}
}

func TestLedgerEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPost, "/api/ledger", map[string]any{"mode": "bingo", "lines": 2, "date": "2025-03-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record status=%d body=%s", rec.Code, rec.Body.String())
	}
	tx := decode[core.Transaction](t, rec)
	if tx.Amount != 200 || tx.Date != "2025-03-01" || tx.Type != core.Income {
		t.Fatalf("unexpected tx %+v", tx)
	}

	for name, body := range map[string]any{
		"bad lines": map[string]any{"mode": "bingo", "lines": 9},
		"bad mode":  map[string]any{"mode": "jackpot"},
		"bad date":  map[string]any{"mode": "penalty", "date": "03/01/2025"},
	} {
		if rec := ts.do(t, http.MethodPost, "/api/ledger", body); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status=%d, want 422", name, rec.Code)
		}
	}

	view := decode[services.LedgerView](t, ts.do(t, http.MethodGet, "/api/ledger", nil))
	if len(view.History) != 1 || view.Standings.MainFunds != 5100 || view.Standings.Payee1Funds != 4800 {
		t.Fatalf("unexpected view %+v", view)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/ledger/424242", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("delete unknown status=%d", rec.Code)
	}
	path := "/api/ledger/" + jsonNumber(tx.ID)
	if rec := ts.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rec.Code)
	}
	if st := ts.standings.Stats(); st.Misses == 0 {
		t.Fatalf("standings cache was never consulted: %+v", st)
	}
}

func TestPlayersEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPut, "/api/players", map[string]string{"opponent1": " 佐藤 ", "opponent2": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d", rec.Code)
	}
	p := decode[core.Players](t, rec)
	want := core.Players{Me: "萩尾", Opponent1: "佐藤", Opponent2: "下田"}
	if p != want {
		t.Fatalf("players = %+v, want %+v", p, want)
	}
	if got := decode[core.Players](t, ts.do(t, http.MethodGet, "/api/players", nil)); got != want {
		t.Fatalf("GET players = %+v", got)
	}
}

func TestGoalEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodPut, "/api/goal", map[string]int{"year": 2025, "month": 14, "targetCount": 200, "currentCount": 50})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d", rec.Code)
	}
	g := decode[services.GoalView](t, rec)
	if g.Month != 12 || g.TargetCount != 200 || g.Progress != 25 {
		t.Fatalf("unexpected goal %+v", g)
	}

	rec = ts.do(t, http.MethodPost, "/api/goal/calls", map[string]int{"count": 50})
	if rec.Code != http.StatusOK {
		t.Fatalf("add calls status=%d", rec.Code)
	}
	res := decode[addCallsResponse](t, rec)
	if res.Goal.CurrentCount != 100 || res.Quote != "keep dialing" {
		t.Fatalf("unexpected add calls response %+v", res)
	}

	for _, n := range []int{0, -3} {
		if rec := ts.do(t, http.MethodPost, "/api/goal/calls", map[string]int{"count": n}); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("count %d status=%d, want 422", n, rec.Code)
		}
	}
	if got := decode[services.GoalView](t, ts.do(t, http.MethodGet, "/api/goal", nil)); got.CurrentCount != 100 {
		t.Fatalf("rejected calls must not change the goal: %+v", got)
	}
}

func TestFormPostRedirects(t *testing.T) {
	ts := newTestServer(t, Options{})

	form := url.Values{"mode": {"bingo"}, "lines": {"3"}, "date": {"2025-06-01"}}
	req := httptest.NewRequest(http.MethodPost, "/api/ledger", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("form post = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if view := ts.svc.Ledger.View(context.Background()); len(view.History) != 1 || view.History[0].Amount != 300 {
		t.Fatalf("form entry not recorded: %+v", view.History)
	}
}

func postForm(ts *testServer, method, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func TestFormFieldsFollowDestinationTypes(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := postForm(ts, http.MethodPut, "/api/players", url.Values{"me": {"007"}, "opponent1": {"42"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("numeric player names status=%d body=%s", rec.Code, rec.Body)
	}
	if p := decode[core.Players](t, rec); p.Me != "007" || p.Opponent1 != "42" {
		t.Fatalf("players = %+v", p)
	}

	rec = postForm(ts, http.MethodPut, "/api/goal", url.Values{"targetCount": {"300"}, "unknown": {"x"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("goal form status=%d body=%s", rec.Code, rec.Body)
	}
	if g := decode[services.GoalView](t, rec); g.TargetCount != 300 {
		t.Fatalf("goal = %+v", g)
	}

	rec = postForm(ts, http.MethodPost, "/api/goal/calls", url.Values{"count": {"ten"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric count status=%d, want 400", rec.Code)
	}
}

func TestLongPlayerNamesAreRejected(t *testing.T) {
	ts := newTestServer(t, Options{})

	long := strings.Repeat("あ", 100)
	rec := ts.do(t, http.MethodPut, "/api/players", map[string]string{"opponent1": long, "opponent2": long})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("long names status=%d, want 422", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/ledger", map[string]string{"mode": "penalty"}); rec.Code != http.StatusCreated {
		t.Fatalf("penalty after rejected names status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestPenaltyWithOversizedStoredNames(t *testing.T) {
	long := strings.Repeat("あ", 100)
	players, _ := json.Marshal(core.Players{Me: "萩尾", Opponent1: long, Opponent2: long})
	repo := state.NewRepository(memory.NewWithValues(map[string]string{state.KeyPlayers: string(players)}))
	srv := NewServer(":0", Services{
		Game:   services.NewGameService(core.DefaultPhrases, core.DefaultCenterPhrase, identityShuffle{}, effects.Discard{}),
		Ledger: services.NewLedgerService(repo, core.DefaultInitialFunds(), nil, nil),
		Goal:   services.NewGoalService(repo, []string{"keep dialing"}, firstPick{}, effects.Discard{}),
	}, Options{Logger: applog.New(applog.Config{Output: &bytes.Buffer{}})})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	ts := &testServer{Server: srv}

	rec := ts.do(t, http.MethodPost, "/api/ledger", map[string]string{"mode": "penalty"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422 body=%s", rec.Code, rec.Body)
	}
	if body := decode[ErrorBody](t, rec); !strings.Contains(body.Message, "too long") {
		t.Fatalf("error body = %+v", body)
	}
}

func TestMetricsExposition(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.do(t, http.MethodGet, "/api/ledger", nil)
	ts.do(t, http.MethodGet, "/.env", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE callbingo_http_requests_total counter",
		"callbingo_standings_cache_misses_total 1",
		"callbingo_suspicious_requests_total 1",
		"callbingo_rate_limit_active_clients",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rec := ts.do(t, http.MethodPost, "/api/board/reset", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rec.Code)
		}
	}
	rec := ts.do(t, http.MethodPost, "/api/board/reset", nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("third mutation = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/board", nil); rec.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rec.Code)
	}
}

func TestFormatYen(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "¥0"},
		{400, "¥400"},
		{4900, "¥4,900"},
		{-400, "-¥400"},
		{1234567, "¥1,234,567"},
	}
	for _, tt := range tests {
		if got := formatYen(tt.in); got != tt.want {
			t.Errorf("formatYen(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := signedYen(200); got != "+¥200" {
		t.Errorf("signedYen(200) = %q", got)
	}
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
