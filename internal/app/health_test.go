package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"vitrine/api/internal/session"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decodeMap(t, rr)["ok"]; ok != true {
		t.Fatalf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpointOK(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	if payload["status"] != "ready" {
		t.Fatalf("expected status ready, got %v", payload["status"])
	}
	checks, ok := payload["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks object, got %T", payload["checks"])
	}
	for _, name := range []string{"sessions", "data"} {
		check, _ := checks[name].(map[string]any)
		if check["status"] != "ok" {
			t.Fatalf("expected %s ok, got %v", name, checks[name])
		}
	}
}

func TestReadyEndpointSessionStoreDown(t *testing.T) {
	memory := session.NewMemoryStore(time.Hour)
	env := newTestEnv(t, withSessions(failingSessions{Store: memory, err: errors.New("connection refused")}))

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	payload := decodeMap(t, rr)
	if payload["status"] != "not_ready" {
		t.Fatalf("expected status not_ready, got %v", payload["status"])
	}
	checks, _ := payload["checks"].(map[string]any)
	sessions, _ := checks["sessions"].(map[string]any)
	if sessions["status"] != "error" || sessions["error"] != "connection refused" {
		t.Fatalf("unexpected sessions check: %v", sessions)
	}
}

func TestRedisSessionsEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewRedisStoreWithClient(client, time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	env := newTestEnv(t, withSessions(store))
	cookie := env.login(t)
	if !checkAuth(t, env, cookie) {
		t.Fatal("expected authenticated via redis session")
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("expected one session key, got %v", mr.Keys())
	}

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready with redis up, got %d", rr.Code)
	}

	mr.FastForward(2 * time.Hour)
	if checkAuth(t, env, cookie) {
		t.Fatal("expected session to expire with its redis key")
	}

	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if ready, _ := env.service.Ready(ctx); ready {
		t.Fatal("expected not ready once redis is gone")
	}
}
