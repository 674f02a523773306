// Package testutil holds fixtures shared by package tests: a kitchen scene of
// annotated actors, and helpers that drive HTTP handlers in-process.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Serve runs one request without a body through h.
func Serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// AssertStatus reports a mismatched status code along with the body, which
// usually carries the handler's error message.
func AssertStatus(t testing.TB, rec *httptest.ResponseRecorder, want int) bool {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
		return false
	}
	return true
}

// DecodeJSON unmarshals the recorded body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}
