package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pass(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, h *Handler, req *http.Request) (int, Report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, rep
}

func TestHealthz(t *testing.T) {
	// Failing checks do not affect liveness.
	h := New(Checker{Name: "store", Check: failWith("down")})
	code, rep := serve(t, h, httptest.NewRequest("GET", "/healthz", nil))
	if code != http.StatusOK || rep.Status != StatusOK {
		t.Errorf("got %d %q, want 200 ok", code, rep.Status)
	}
	if len(rep.Checks) != 0 {
		t.Errorf("liveness should not run checks, got %v", rep.Checks)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
			wantChecks: map[string]string{},
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "store", Check: pass},
				{Name: "translator", Check: pass},
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
			wantChecks: map[string]string{"store": "ok", "translator": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "store", Check: failWith("database is locked")},
				{Name: "translator", Check: pass},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusFail,
			wantChecks: map[string]string{"store": "fail: database is locked", "translator": "ok"},
		},
		{
			name: "all fail",
			checkers: []Checker{
				{Name: "session", Check: failWith("no conversation session loaded")},
				{Name: "translator", Check: failWith("translator not configured")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusFail,
			wantChecks: map[string]string{
				"session":    "fail: no conversation session loaded",
				"translator": "fail: translator not configured",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, rep := serve(t, New(tt.checkers...), httptest.NewRequest("GET", "/readyz", nil))
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if rep.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", rep.Status, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if rep.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, rep.Checks[name], want)
				}
			}
		})
	}
}

func TestEvaluate_CancelledContext(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := h.Evaluate(ctx)
	if rep.OK() {
		t.Fatal("expected failure when the context is cancelled")
	}
	if rep.Checks["slow"] != "fail: context canceled" {
		t.Errorf("slow = %q", rep.Checks["slow"])
	}
}

func TestNew_CopiesCheckers(t *testing.T) {
	checkers := []Checker{{Name: "store", Check: pass}}
	h := New(checkers...)
	checkers[0] = Checker{Name: "store", Check: failWith("mutated")}

	if rep := h.Evaluate(context.Background()); !rep.OK() {
		t.Errorf("handler saw caller mutation: %v", rep.Checks)
	}
}
