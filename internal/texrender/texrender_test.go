package texrender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRenderReturnsImageBytes(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, 160)
	raw, err := c.Render(context.Background(), `x^2`)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(raw) != "png-bytes" {
		t.Fatalf("image mismatch: got %q", raw)
	}
	decoded, err := url.QueryUnescape(gotQuery)
	if err != nil {
		t.Fatalf("QueryUnescape() error = %v", err)
	}
	if !strings.Contains(decoded, `\dpi{160}`) {
		t.Fatalf("query missing dpi: %q", decoded)
	}
	if !strings.Contains(decoded, `\bg{transparent}`) {
		t.Fatalf("query missing background: %q", decoded)
	}
	if !strings.HasSuffix(decoded, "x^2") {
		t.Fatalf("query missing formula: %q", decoded)
	}
}

func TestRenderRetriesServerErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, 0)
	raw, err := c.Render(context.Background(), `a+b`)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(raw) != "ok" {
		t.Fatalf("image mismatch: got %q", raw)
	}
	if calls != 2 {
		t.Fatalf("calls mismatch: got %d want 2", calls)
	}
}

func TestRenderDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, 0)
	if _, err := c.Render(context.Background(), `a+b`); err == nil {
		t.Fatalf("Render() expected error")
	}
	if calls != 1 {
		t.Fatalf("calls mismatch: got %d want 1", calls)
	}
}

func TestRenderRejectsEmptyFormula(t *testing.T) {
	t.Parallel()

	c := New(nil, "", 0)
	if _, err := c.Render(context.Background(), "  "); err == nil {
		t.Fatalf("Render() expected error for empty formula")
	}
}
