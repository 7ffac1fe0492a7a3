package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/geocoder89/resumeforge/internal/breaker"
)

func TestSummarize(t *testing.T) {
	var got chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Seasoned engineer.  "}}]}`))
	}))
	defer srv.Close()

	s := NewSummarizer(srv.Client(), Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)

	text, err := s.Summarize(context.Background(), json.RawMessage(`{"skills":["go"]}`))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if text != "Seasoned engineer." {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != DefaultModel || got.MaxTokens != 120 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Messages) != 1 || !strings.Contains(got.Messages[0].Content, `{"skills":["go"]}`) {
		t.Fatalf("prompt must embed the input, got %+v", got.Messages)
	}
}

func TestSummarizeRejectsEmptyInput(t *testing.T) {
	s := NewSummarizer(http.DefaultClient, Config{APIKey: "sk-test"}, nil)

	for _, in := range []string{"", "null", `""`} {
		if _, err := s.Summarize(context.Background(), json.RawMessage(in)); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("input %q: expected ErrEmptyInput, got %v", in, err)
		}
	}
}

func TestSummarizeOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSummarizer(srv.Client(), Config{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Breaker: breaker.Config{FailureThreshold: 2},
	}, nil)

	in := json.RawMessage(`"five years of go"`)
	for i := 0; i < 2; i++ {
		if _, err := s.Summarize(context.Background(), in); err == nil || errors.Is(err, breaker.ErrOpen) {
			t.Fatalf("call %d: expected provider error, got %v", i, err)
		}
	}

	if _, err := s.Summarize(context.Background(), in); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", calls.Load())
	}
}

func TestSummarizeNotConfigured(t *testing.T) {
	s := NewSummarizer(nil, Config{}, nil)
	if _, err := s.Summarize(context.Background(), json.RawMessage(`"x"`)); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
