package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/geocoder89/resumeforge/internal/actorctx"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromCounters(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	p.ObserveAuth("login", "ok")
	p.ObserveAuth("login", "ok")
	p.ObserveAuth("login", "unauthorized")
	p.ObserveWebhook("checkout.session.completed", "applied")
	p.ObserveSweep(3)
	p.ObserveSweep(0)
	p.ObserveExternal("openai", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(p.AuthResults.WithLabelValues("login", "ok")); got != 2 {
		t.Fatalf("login ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.AuthResults.WithLabelValues("login", "unauthorized")); got != 1 {
		t.Fatalf("login unauthorized = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.TokensSwept); got != 3 {
		t.Fatalf("swept = %v, want 3", got)
	}
	if got := testutil.ToFloat64(p.ExternalCalls.WithLabelValues("openai", "error")); got != 1 {
		t.Fatalf("external errors = %v, want 1", got)
	}
}

func TestObserveDBClassifiesErrors(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("users.get", func() error { return context.DeadlineExceeded })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected error to pass through, got %v", err)
	}
	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.get", "timeout")); got != 1 {
		t.Fatalf("timeout class = %v, want 1", got)
	}

	_ = p.ObserveDB("users.get", func() error { return fmt.Errorf("scan: %w", pgx.ErrNoRows) })
	_ = p.ObserveDB("users.create", func() error { return &pgconn.PgError{Code: "23505"} })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation")); got != 1 {
		t.Fatalf("unique_violation = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 2 {
		t.Fatalf("a missing row must not count as an error, got %d series", got)
	}
}

func TestContextHandlerAddsRequestScope(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = actorctx.WithIdentity(ctx, user.Identity{UserID: "u-1"})
	log.InfoContext(ctx, "resume created")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["request_id"] != "req-1" || line["user_id"] != "u-1" {
		t.Fatalf("missing request scope in %v", line)
	}
}

func TestLoggerAddsServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	log.Debug("hidden")
	log.Info("hello", "k", "v")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "resumeforge" || line["msg"] != "hello" {
		t.Fatalf("unexpected log line %v", line)
	}
}
