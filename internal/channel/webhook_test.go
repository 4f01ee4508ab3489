package channel

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postWebhook(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/agent/webhook", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	return serve(h, req)
}

func TestWebhook_RoundTrip(t *testing.T) {
	a := &testAgent{fragments: textFragments("Echo: ", "hi")}
	h := newTestHandler(&testSettings{webhookEnabled: true}, a)

	rr := postWebhook(h, `{"message": "hi", "user_id": "u1", "session_id": "s1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSONBody(t, rr)
	if resp["response"] != "Echo: hi" {
		t.Errorf("unexpected response %v", resp["response"])
	}
	if resp["session_id"] != "s1" {
		t.Errorf("expected session id echoed, got %v", resp["session_id"])
	}
	if a.lastQuery.Message != "hi" || a.lastQuery.UserID != "u1" || a.lastQuery.SessionID != "s1" {
		t.Errorf("unexpected query %+v", a.lastQuery)
	}
	if a.lastQuery.Extra["channel"] != "webhook" {
		t.Errorf("unexpected extras: %v", a.lastQuery.Extra)
	}
}

func TestWebhook_NullSessionID(t *testing.T) {
	a := &testAgent{fragments: textFragments("ok")}
	h := newTestHandler(&testSettings{webhookEnabled: true}, a)

	rr := postWebhook(h, `{"message": "hi"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeJSONBody(t, rr)
	val, present := resp["session_id"]
	if !present {
		t.Fatal("session_id key must be present")
	}
	if val != nil {
		t.Errorf("expected null session_id, got %v", val)
	}
}

func TestWebhook_Disabled(t *testing.T) {
	h := newTestHandler(&testSettings{}, &testAgent{})

	rr := postWebhook(h, `{"message": "hi"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not enabled") {
		t.Errorf("expected not-enabled error, got %s", rr.Body.String())
	}
}

func TestWebhook_MissingMessage(t *testing.T) {
	h := newTestHandler(&testSettings{webhookEnabled: true}, &testAgent{})

	rr := postWebhook(h, `{"user_id": "u1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["error"]; got != "Message is required" {
		t.Errorf("unexpected error %v", got)
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	h := newTestHandler(&testSettings{webhookEnabled: true}, &testAgent{})

	rr := postWebhook(h, `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["error"]; got != "Invalid JSON" {
		t.Errorf("unexpected error %v", got)
	}
}

func TestWebhook_AgentError(t *testing.T) {
	a := &testAgent{err: errors.New("model unavailable")}
	h := newTestHandler(&testSettings{webhookEnabled: true}, a)

	rr := postWebhook(h, `{"message": "hi"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on agent failure, got %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["error"]; got != "model unavailable" {
		t.Errorf("expected error detail, got %v", got)
	}
}

func TestWebhook_HistoryAccumulates(t *testing.T) {
	a := &testAgent{fragments: textFragments("reply")}
	h := newTestHandler(&testSettings{webhookEnabled: true}, a)

	rr := postWebhook(h, `{"message": "first", "session_id": "s1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(a.lastQuery.History) != 0 {
		t.Fatalf("expected empty history on first turn, got %d", len(a.lastQuery.History))
	}

	rr = postWebhook(h, `{"message": "second", "session_id": "s1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	history := a.lastQuery.History
	if len(history) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(history))
	}
	if history[0].Content != "first" || history[1].Content != "reply" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestWebhook_SessionsAreIsolated(t *testing.T) {
	a := &testAgent{fragments: textFragments("reply")}
	h := newTestHandler(&testSettings{webhookEnabled: true}, a)

	if rr := postWebhook(h, `{"message": "first", "session_id": "s1"}`); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := postWebhook(h, `{"message": "other", "session_id": "s2"}`); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(a.lastQuery.History) != 0 {
		t.Errorf("expected s2 to start empty, got %+v", a.lastQuery.History)
	}
}

func TestWebhook_Status(t *testing.T) {
	h := newTestHandler(&testSettings{webhookEnabled: true}, &testAgent{})
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/agent/webhook", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decodeJSONBody(t, rr)["status"]; got != "ok" {
		t.Errorf("expected ok status, got %v", got)
	}
}

func TestWebhook_RateLimited(t *testing.T) {
	a := &testAgent{fragments: textFragments("ok")}
	h := newTestHandlerLimited(&testSettings{webhookEnabled: true}, a, 2)

	for i := 0; i < 2; i++ {
		if rr := postWebhook(h, `{"message": "hi"}`); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}

	rr := postWebhook(h, `{"message": "hi"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After header, got %q", rr.Header().Get("Retry-After"))
	}
	if !strings.Contains(rr.Body.String(), "Rate limit exceeded") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}
