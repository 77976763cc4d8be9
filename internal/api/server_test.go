package api

import (
	"bytes"
	"encoding/json"
	mathrand "math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"finsim/internal/questions"
	"finsim/internal/session"
	"finsim/internal/sim"
	"finsim/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	bank, err := questions.Load(mathrand.New(mathrand.NewSource(1)))
	if err != nil {
		t.Fatalf("load question bank: %v", err)
	}
	svc := session.NewService(store.NewMemory(), bank, sim.NewEngine(sim.DefaultParams()), nil)
	ts := httptest.NewServer(New(nil, svc, bank).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode response from %s %s: %v", method, url, err)
		}
	}
	return resp, payload
}

func createSession(t *testing.T, ts *httptest.Server, names ...string) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", map[string]any{"company_names": names})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status=%d body=%v", resp.StatusCode, body)
	}
	return body
}

func TestCreateAndFetchSession(t *testing.T) {
	ts := newTestServer(t)

	created := createSession(t, ts, "Acme Corp", "Beta Industries")
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("missing session id in %v", created)
	}
	if created["status"] != "Q1" {
		t.Fatalf("status=%v want Q1", created["status"])
	}
	companies, _ := created["companies"].(map[string]any)
	if len(companies) != 2 {
		t.Fatalf("companies=%v want 2 entries", companies)
	}

	resp, fetched := doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch status=%d", resp.StatusCode)
	}
	if fetched["id"] != id || fetched["join_code"] != created["join_code"] {
		t.Fatalf("fetched session differs: %v vs %v", fetched, created)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/sessions/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session status=%d want 404", resp.StatusCode)
	}
}

func TestFetchQuestionOmitsImpacts(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/questions/q01", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("question status=%d", resp.StatusCode)
	}
	if body["prompt"] == "" {
		t.Fatalf("question missing prompt: %v", body)
	}
	options, _ := body["options"].([]any)
	if len(options) != 3 {
		t.Fatalf("options=%v want 3", options)
	}
	for _, raw := range options {
		option := raw.(map[string]any)
		if _, leaked := option["impact"]; leaked {
			t.Fatalf("option impact leaked to the wire: %v", option)
		}
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/questions/q99", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown question status=%d want 404", resp.StatusCode)
	}
}

func TestSubmitDecisionsAndAnswer(t *testing.T) {
	ts := newTestServer(t)
	created := createSession(t, ts, "Acme")
	id := created["id"].(string)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/decisions", map[string]any{
		"company_id": "acme",
		"production": 1200,
		"price":      48,
		"marketing":  1500,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("decisions status=%d want 204", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/decisions", map[string]any{
		"company_id": "acme",
		"production": -1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative decision status=%d want 400, body=%v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/answer", map[string]any{
		"company_id": "acme",
		"option_id":  "B",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("answer status=%d want 204", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/answer", map[string]any{
		"company_id": "acme",
		"option_id":  "Z",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad option status=%d want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/decisions", map[string]any{
		"company_id": "ghost",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown company status=%d want 404", resp.StatusCode)
	}
}

func TestCloseQuarterEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := createSession(t, ts, "Acme")
	id := created["id"].(string)

	resp, closed := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/close", map[string]any{"quarter": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status=%d body=%v", resp.StatusCode, closed)
	}
	if closed["status"] != "Q2" || closed["current_quarter"] != float64(2) {
		t.Fatalf("close did not advance: %v/%v", closed["status"], closed["current_quarter"])
	}
	companies := closed["companies"].(map[string]any)
	acme := companies["acme"].(map[string]any)
	financials := acme["financials"].([]any)
	if len(financials) != 2 {
		t.Fatalf("financials=%d want 2 after one close", len(financials))
	}
	if acme["active_question_id"] == "" || acme["active_question_id"] == nil {
		t.Fatalf("no new question assigned after close: %v", acme)
	}

	// A racing timer still aiming at quarter 1 is a no-op, not an error.
	resp, again := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/close", map[string]any{"quarter": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redundant close status=%d want 200", resp.StatusCode)
	}
	if again["current_quarter"] != float64(2) {
		t.Fatalf("redundant close advanced the session: %v", again["current_quarter"])
	}

	for q := 2; q <= 4; q++ {
		resp, closed = doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/close", map[string]any{"quarter": q})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("close Q%d status=%d", q, resp.StatusCode)
		}
	}
	if closed["status"] != "Finished" {
		t.Fatalf("status=%v want Finished after four closes", closed["status"])
	}

	// Terminal: closing again reports the finished state.
	resp, final := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions/"+id+"/close", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finished close status=%d want 200", resp.StatusCode)
	}
	if final["status"] != "Finished" {
		t.Fatalf("finished close status field=%v", final["status"])
	}
}

func TestCreateSessionValidation(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", map[string]any{"company_names": []string{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty names status=%d want 400, body=%v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", map[string]any{
		"company_names": []string{"Acme"},
		"starting_cash": -5,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative seed status=%d want 400, body=%v", resp.StatusCode, body)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("healthz status=%d body=%v", resp.StatusCode, body)
	}
}
