package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"zenith/internal/ai"
	"zenith/internal/core"
	"zenith/internal/storage/memory"
	"zenith/internal/transactions"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeGen struct {
	answer string
	err    error
}

func (f fakeGen) Generate(context.Context, ai.Request) (string, error) { return f.answer, f.err }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Store == nil {
		store := transactions.NewStore(memory.New(),
			transactions.WithSeed(false),
			transactions.WithClock(func() time.Time { return testNow }))
		if err := store.Load(context.Background()); err != nil {
			t.Fatalf("load store: %v", err)
		}
		deps.Store = store
	}
	deps.Now = func() time.Time { return testNow }
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, form url.Values, htmx bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return req
}

func validForm() url.Values {
	return url.Values{
		"date":        {"2024-03-10"},
		"description": {"Weekly groceries"},
		"amount":      {"85.30"},
		"type":        {"expense"},
		"category":    {"cat_expense_groceries"},
	}
}

func mustCreate(t *testing.T, srv *Server) core.Transaction {
	t.Helper()
	d, err := ParseDraft(validForm())
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	tx, err := srv.store.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return tx
}

func TestDashboardAndHealth(t *testing.T) {
	srv := newTestServer(t, Deps{})
	mustCreate(t, srv)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Expenses by category") {
		t.Fatalf("dashboard body missing breakdown heading")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestDashboardPartial(t *testing.T) {
	srv := newTestServer(t, Deps{})
	req := httptest.NewRequest(http.MethodGet, "/ui/dashboard", nil)
	req.Header.Set("HX-Request", "true")
	rr := serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<html") {
		t.Fatalf("partial should not contain the layout")
	}
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rr := serve(srv, postForm("/transactions", validForm(), false))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/transactions" {
		t.Fatalf("redirect=%q", loc)
	}
	if srv.store.Len() != 1 {
		t.Fatalf("stored=%d", srv.store.Len())
	}

	rr = serve(srv, postForm("/transactions", validForm(), true))
	if rr.Code != http.StatusOK {
		t.Fatalf("htmx create status=%d", rr.Code)
	}
	trig := rr.Header().Get("HX-Trigger")
	for _, ev := range []string{EventTransactionCreated, EventFormReset, EventShowNotification} {
		if !strings.Contains(trig, ev) {
			t.Fatalf("HX-Trigger %q missing %s", trig, ev)
		}
	}
	if srv.store.Len() != 2 {
		t.Fatalf("stored=%d", srv.store.Len())
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t, Deps{})
	cases := map[string]func(url.Values){
		"zero amount":    func(v url.Values) { v.Set("amount", "0") },
		"bad date":       func(v url.Values) { v.Set("date", "yesterday") },
		"no description": func(v url.Values) { v.Set("description", "  ") },
		"wrong category": func(v url.Values) { v.Set("category", "cat_income_salary") },
		"bad type":       func(v url.Values) { v.Set("type", "transfer") },
	}
	for name, mutate := range cases {
		form := validForm()
		mutate(form)

		rr := serve(srv, postForm("/transactions", form, false))
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status=%d", name, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `class="error"`) {
			t.Fatalf("%s: form should show the error", name)
		}

		rr = serve(srv, postForm("/transactions", form, true))
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s (htmx): status=%d", name, rr.Code)
		}
	}
	if srv.store.Len() != 0 {
		t.Fatalf("invalid input was stored: %d", srv.store.Len())
	}
}

func TestUpdateTransaction(t *testing.T) {
	srv := newTestServer(t, Deps{})
	tx := mustCreate(t, srv)

	form := validForm()
	form.Set("amount", "90")
	rr := serve(srv, postForm("/transactions/"+tx.ID, form, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventTransactionUpdated) {
		t.Fatalf("missing update trigger")
	}
	got, err := srv.store.Get(tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 9000 {
		t.Fatalf("amount=%d", got.Amount.Cents)
	}

	rr = serve(srv, postForm("/transactions/missing", validForm(), false))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing update status=%d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/transactions/missing/edit", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing edit status=%d", rr.Code)
	}
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/transactions/"+tx.ID+"/edit", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Weekly groceries") {
		t.Fatalf("edit page status=%d", rr.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, Deps{})
	tx := mustCreate(t, srv)
	path := "/transactions/" + tx.ID + "/delete"

	rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm page status=%d", rr.Code)
	}

	rr = serve(srv, postForm(path, url.Values{}, true))
	if rr.Code != http.StatusConflict {
		t.Fatalf("unconfirmed status=%d", rr.Code)
	}
	if srv.store.Len() != 1 {
		t.Fatalf("unconfirmed delete removed the transaction")
	}

	rr = serve(srv, postForm(path, url.Values{"confirm": {"yes"}}, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("confirmed status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventTransactionDeleted) {
		t.Fatalf("missing delete trigger")
	}
	if srv.store.Len() != 0 {
		t.Fatalf("transaction not removed")
	}

	// Deleting again is a no-op.
	rr = serve(srv, postForm(path, url.Values{"confirm": {"yes"}}, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("repeat delete status=%d", rr.Code)
	}
	if strings.Contains(rr.Header().Get("HX-Trigger"), EventTransactionDeleted) {
		t.Fatalf("repeat delete should not announce a deletion")
	}

	rr = serve(srv, httptest.NewRequest(http.MethodPut, path, nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT status=%d", rr.Code)
	}
}

func TestListFilter(t *testing.T) {
	srv := newTestServer(t, Deps{})
	mustCreate(t, srv)
	form := validForm()
	form.Set("type", "income")
	form.Set("category", "cat_income_salary")
	form.Set("description", "March salary")
	d, _ := ParseDraft(form)
	if _, err := srv.store.Create(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/transactions?type=income", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "transaction-rows")
	rr := serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "March salary") || strings.Contains(body, "Weekly groceries") {
		t.Fatalf("filter not applied: %s", body)
	}
}

func TestImportCSV(t *testing.T) {
	srv := newTestServer(t, Deps{})
	csv := "date,description,amount,type,category\n" +
		"2024-03-01,Salary,5200,income,Salário\n" +
		"2024-03-02,Bus pass,45.50,expense,cat_expense_transport\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "march.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte(csv))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/transactions/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Imported int      `json:"imported"`
		IDs      []string `json:"ids"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Imported != 2 || len(out.IDs) != 2 {
		t.Fatalf("imported=%d ids=%v", out.Imported, out.IDs)
	}
	for _, tx := range srv.store.List() {
		if !tx.Imported {
			t.Fatalf("transaction %s not flagged as imported", tx.ID)
		}
	}
}

func TestImportJSONIsAllOrNothing(t *testing.T) {
	srv := newTestServer(t, Deps{})
	body := `[{"date":"2024-03-01","description":"ok","amount":10,"type":"income","category":"Freelance"},
		{"date":"2024-03-02","description":"bad","amount":-3,"type":"expense","category":"Compras"}]`
	req := httptest.NewRequest(http.MethodPost, "/transactions/import?format=json", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(srv, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if srv.store.Len() != 0 {
		t.Fatalf("partial import stored %d rows", srv.store.Len())
	}

	req = httptest.NewRequest(http.MethodPost, "/transactions/import", strings.NewReader("???"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rr = serve(srv, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown format status=%d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, Deps{})
	mustCreate(t, srv)

	for format, ctype := range map[string]string{"json": "application/json", "csv": "text/csv", "yaml": "yaml"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions/export?format="+format, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", format, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, ctype) {
			t.Fatalf("%s content-type=%q", format, ct)
		}
		want := "zenith-transactions-2024-03-15." + format
		if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, want) {
			t.Fatalf("%s disposition=%q", format, cd)
		}
		if !strings.Contains(rr.Body.String(), "Weekly groceries") {
			t.Fatalf("%s body missing transaction", format)
		}
	}

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions/export?format=xml", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("xml status=%d", rr.Code)
	}
}

func TestReports(t *testing.T) {
	srv := newTestServer(t, Deps{})
	mustCreate(t, srv)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/reports?period=currentMonth", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("reports status=%d", rr.Code)
	}
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/reports?period=fortnight", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad period status=%d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/reports/statement.pdf", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("pdf status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("pdf content-type=%q", ct)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a PDF")
	}
}

func suggestRequest(session string, seq int, desc string) *http.Request {
	body := `{"session":"` + session + `","seq":` + strconv.Itoa(seq) +
		`,"type":"expense","description":"` + desc + `"}`
	req := httptest.NewRequest(http.MethodPost, "/suggest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSuggest(t *testing.T) {
	srv := newTestServer(t, Deps{})
	rr := serve(srv, suggestRequest("s1", 1, "bus ticket"))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("no suggester status=%d", rr.Code)
	}

	srv = newTestServer(t, Deps{Suggester: ai.NewSuggester(fakeGen{answer: "Transporte"})})
	rr = serve(srv, suggestRequest("s1", 2, "bus ticket"))
	if rr.Code != http.StatusOK {
		t.Fatalf("suggest status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got suggestResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CategoryID != "cat_expense_transport" || got.Stale {
		t.Fatalf("unexpected suggestion %+v", got)
	}

	// An older sequence number arriving late is reported stale.
	rr = serve(srv, suggestRequest("s1", 1, "bus"))
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusOK || !got.Stale {
		t.Fatalf("expected stale answer, got %d %+v", rr.Code, got)
	}

	rr = serve(srv, suggestRequest("s1", 3, ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty description status=%d", rr.Code)
	}

	srv = newTestServer(t, Deps{Suggester: ai.NewSuggester(fakeGen{err: errors.New("quota")}, ai.WithBackoff(time.Millisecond))})
	rr = serve(srv, suggestRequest("s2", 1, "cinema"))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("failing model status=%d", rr.Code)
	}
}

var formSessionRe = regexp.MustCompile(`data-session="([^"]+)"`)

func renderFormSession(t *testing.T, srv *Server) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/transactions/new", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "browser-1"})
	rr := serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("form status=%d", rr.Code)
	}
	m := formSessionRe.FindStringSubmatch(rr.Body.String())
	if m == nil {
		t.Fatal("form carries no suggestion session")
	}
	return m[1]
}

func TestSuggestSequenceIsScopedPerForm(t *testing.T) {
	srv := newTestServer(t, Deps{Suggester: ai.NewSuggester(fakeGen{answer: "Transporte"})})

	first := renderFormSession(t, srv)
	for seq := 1; seq <= 3; seq++ {
		if rr := serve(srv, suggestRequest(first, seq, "bus ticket")); rr.Code != http.StatusOK {
			t.Fatalf("first form seq %d status=%d", seq, rr.Code)
		}
	}

	// Same browser, a fresh form whose counter starts again at 1.
	second := renderFormSession(t, srv)
	if second == first {
		t.Fatalf("both forms share session %q", first)
	}
	rr := serve(srv, suggestRequest(second, 1, "metro card"))
	var got suggestResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Stale || got.CategoryID != "cat_expense_transport" {
		t.Fatalf("first request of a new form was dropped: %+v", got)
	}
}

func TestChat(t *testing.T) {
	srv := newTestServer(t, Deps{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/chat", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("chat page status=%d", rr.Code)
	}
	rr = serve(srv, postForm("/chat", url.Values{"question": {"How much did I spend?"}}, true))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("no assistant status=%d", rr.Code)
	}

	srv = newTestServer(t, Deps{Assistant: ai.NewAssistant(fakeGen{answer: "You spent R$ 85,30."})})
	req := postForm("/chat", url.Values{"question": {"How much did I spend?"}}, true)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "chat-session"})
	rr = serve(srv, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("chat status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "You spent") {
		t.Fatalf("answer not rendered: %s", rr.Body.String())
	}
	history, ok := srv.chats.Get("chat-session")
	if !ok || len(history) != 2 {
		t.Fatalf("history=%v", history)
	}

	req = postForm("/chat", url.Values{"question": {"  "}}, true)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "chat-session"})
	if rr := serve(srv, req); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty question status=%d", rr.Code)
	}
}

func TestCategoriesAndSummaryAPI(t *testing.T) {
	srv := newTestServer(t, Deps{})
	mustCreate(t, srv)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/categories?type=income", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("categories status=%d", rr.Code)
	}
	var cats []core.Category
	if err := json.Unmarshal(rr.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) != 5 {
		t.Fatalf("income categories=%d", len(cats))
	}
	for _, c := range cats {
		if c.Type != core.Income {
			t.Fatalf("category %s has type %s", c.ID, c.Type)
		}
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/categories?type=loan", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad type status=%d", rr.Code)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "85.3") {
		t.Fatalf("summary status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{})
	serve(srv, postForm("/transactions", validForm(), false))

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"transactions_created_total 1", "transactions_stored 1", "# TYPE http_requests_total counter"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestPersistFailureStillSaves(t *testing.T) {
	store := transactions.NewStore(&failingSlot{Slot: memory.New()}, transactions.WithSeed(false))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := newTestServer(t, Deps{Store: store})

	rr := serve(srv, postForm("/transactions", validForm(), true))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "warning") {
		t.Fatalf("expected a warning notification, got %q", rr.Header().Get("HX-Trigger"))
	}
	if store.Len() != 1 {
		t.Fatalf("transaction should stay in memory")
	}
}

type failingSlot struct{ *memory.Slot }

func (f *failingSlot) Write(context.Context, string, []byte) error {
	return errors.New("disk full")
}
