package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("a"), mw("b"), mw("c"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := "a,b,c,handler"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	var ctxID string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if ctxID == "" {
		t.Fatal("no request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != ctxID {
		t.Errorf("header = %q, context = %q", got, ctxID)
	}
}

func TestRequestIDHonorsClientHeader(t *testing.T) {
	var ctxID string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-Request-ID", "client-chosen")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if ctxID != "client-chosen" {
		t.Errorf("context ID = %q, want client-chosen", ctxID)
	}
	if rec.Header().Get("X-Request-ID") != "client-chosen" {
		t.Errorf("header = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	handler := Recovery()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body struct {
		Error struct {
			Code   int    `json:"code"`
			Status string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshaling error body: %v", err)
	}
	if body.Error.Code != 500 || body.Error.Status != "INTERNAL" {
		t.Errorf("error body = %+v", body.Error)
	}
}

func TestWriteErrorShape(t *testing.T) {
	tests := []struct {
		code   int
		status string
	}{
		{http.StatusBadRequest, "INVALID_ARGUMENT"},
		{http.StatusNotFound, "NOT_FOUND"},
		{http.StatusTooManyRequests, "RESOURCE_EXHAUSTED"},
		{http.StatusInternalServerError, "INTERNAL"},
		{http.StatusServiceUnavailable, "UNAVAILABLE"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteError(rec, tt.code, "msg")

		if rec.Code != tt.code {
			t.Errorf("code %d: status = %d", tt.code, rec.Code)
		}
		var body errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("code %d: unmarshal: %v", tt.code, err)
		}
		if body.Error.Status != tt.status || body.Error.Code != tt.code || body.Error.Message != "msg" {
			t.Errorf("code %d: body = %+v", tt.code, body.Error)
		}
	}
}
