package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndex(t *testing.T) {
	page, err := Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !strings.Contains(string(page), `src="/static/app.js"`) {
		t.Error("expected index to load app.js")
	}
}

func TestHandlerServesAssets(t *testing.T) {
	h, err := Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	srv := httptest.NewServer(http.StripPrefix("/static", h))
	defer srv.Close()

	for _, name := range []string{"app.js", "style.css"} {
		resp, err := http.Get(srv.URL + "/static/" + name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || len(body) == 0 {
			t.Errorf("%s: expected 200 with content, got %d (%d bytes)", name, resp.StatusCode, len(body))
		}
	}
}
