package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRespondJSONWithETag(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/doc", func(ctx *gin.Context) {
		RespondJSONWithETag(ctx, http.StatusOK, gin.H{"title": "Backend Engineer"})
	})

	get := func(ifNoneMatch string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/doc", nil)
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := get("")
	etag := first.Header().Get("ETag")
	if first.Code != http.StatusOK || etag == "" {
		t.Fatalf("first response: %d etag=%q", first.Code, etag)
	}
	if first.Header().Get("Cache-Control") != "private, no-cache" {
		t.Fatalf("unexpected Cache-Control %q", first.Header().Get("Cache-Control"))
	}

	tests := map[string]int{
		etag:               http.StatusNotModified,
		"W/" + etag:        http.StatusNotModified,
		`"other", ` + etag: http.StatusNotModified,
		"*":                http.StatusNotModified,
		`"stale"`:          http.StatusOK,
	}
	for header, want := range tests {
		if got := get(header).Code; got != want {
			t.Fatalf("If-None-Match %s: got %d want %d", header, got, want)
		}
	}
}
