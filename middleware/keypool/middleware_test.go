package keypool

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"keypool-gateway/middleware/keypool/infra"
)

func TestMiddleware_InjectsBearerAndRotates(t *testing.T) {
	keys := []string{"key-a", "key-b"}
	selector, err := infra.NewRoundRobin(keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admitter := infra.NewWindowStore(keys, 15, 60*time.Second)

	var seen []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Selector:       selector,
		Admitter:       admitter,
		AddPoolHeaders: true,
	})(next)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/v1/chat", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if got := w.Header().Get("X-KeyPool-Key"); got == "" {
			t.Fatalf("expected X-KeyPool-Key header to be set")
		}
		if got := w.Header().Get("X-KeyPool-Limit"); got != "15" {
			t.Fatalf("expected X-KeyPool-Limit=15, got %q", got)
		}
		if got := w.Header().Get("X-KeyPool-Window"); got != "60" {
			t.Fatalf("expected X-KeyPool-Window=60, got %q", got)
		}
	}

	// rodízio: primeira requisição leva key-a, segunda key-b
	if len(seen) != 2 || seen[0] != "Bearer key-a" || seen[1] != "Bearer key-b" {
		t.Fatalf("expected bearer rotation [key-a key-b], got %v", seen)
	}
}

func TestMiddleware_InjectsQueryParamWhenConfigured(t *testing.T) {
	keys := []string{"key-a"}
	selector, err := infra.NewRoundRobin(keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admitter := infra.NewWindowStore(keys, 15, 60*time.Second)

	var gotKey, gotAuth string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Selector:         selector,
		Admitter:         admitter,
		InjectQueryParam: "key",
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/v1/models?page=2", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if gotKey != "key-a" {
		t.Fatalf("expected query param key=key-a, got %q", gotKey)
	}
	if gotAuth != "" {
		t.Fatalf("expected no Authorization header in query mode, got %q", gotAuth)
	}
}

func TestMiddleware_ExhaustedPoolRejectsWithoutCallingNext(t *testing.T) {
	keys := []string{"key-a", "key-b"}
	selector, err := infra.NewRoundRobin(keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admitter := infra.NewWindowStore(keys, 1, 60*time.Second)
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Selector: selector,
		Admitter: admitter,
		Stats:    stats,
	})(next)

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "http://example/v1/chat", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	// duas chaves com teto 1: duas passam, a terceira encontra o pool saturado
	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w3 := do()
	if w3.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w3.Code)
	}
	ra := w3.Header().Get("Retry-After")
	if ra == "" {
		t.Fatalf("expected Retry-After header to be set")
	}
	if secs, err := strconv.Atoi(ra); err != nil || secs <= 0 || secs > 60 {
		t.Fatalf("expected Retry-After within (0,60]s, got %q", ra)
	}

	if calls != 2 {
		t.Fatalf("expected next handler to be called twice, got %d", calls)
	}

	total := stats.Total()
	if total.Admitted != 2 || total.Saturated != 1 {
		t.Fatalf("expected stats admitted=2 saturated=1, got %+v", total)
	}
}

func TestMiddleware_ScenarioThreeKeysCeilingTwo(t *testing.T) {
	keys := []string{"A", "B", "C"}
	selector, err := infra.NewRoundRobin(keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admitter := infra.NewWindowStore(keys, 2, 60*time.Second)

	var admittedKeys []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admittedKeys = append(admittedKeys, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Selector: selector, Admitter: admitter})(next)

	var codes []int
	for i := 0; i < 7; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	// 6 sucessos na ordem A,B,C,A,B,C e a sétima 429
	want := []string{"Bearer A", "Bearer B", "Bearer C", "Bearer A", "Bearer B", "Bearer C"}
	if len(admittedKeys) != len(want) {
		t.Fatalf("expected %d forwarded requests, got %d", len(want), len(admittedKeys))
	}
	for i := range want {
		if admittedKeys[i] != want[i] {
			t.Fatalf("request %d: expected %q, got %q", i, want[i], admittedKeys[i])
		}
		if codes[i] != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, codes[i])
		}
	}
	if codes[6] != http.StatusTooManyRequests {
		t.Fatalf("expected 7th request to get 429, got %d", codes[6])
	}
}

func TestMiddleware_MaxInFlightRejectsWhenBusy(t *testing.T) {
	keys := []string{"key-a"}
	selector, err := infra.NewRoundRobin(keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admitter := infra.NewWindowStore(keys, 100, 60*time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once

	// handler que segura a vaga até liberarmos.
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedOnce.Do(func() { close(started) })
		<-release
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Selector:       selector,
		Admitter:       admitter,
		MaxInFlight:    1,
		AcquireTimeout: 25 * time.Millisecond,
	})(next)

	var wg sync.WaitGroup
	wg.Add(1)

	// request 1: ocupa o semáforo e fica pendurado
	go func() {
		defer wg.Done()
		r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		w1 := httptest.NewRecorder()
		h.ServeHTTP(w1, r1)
		if w1.Code != http.StatusOK {
			t.Errorf("expected first request 200, got %d", w1.Code)
		}
	}()

	// espera a primeira realmente entrar no handler
	select {
	case <-started:
	case <-time.After(200 * time.Millisecond):
		close(release)
		wg.Wait()
		t.Fatalf("timeout waiting first request to start")
	}

	// request 2: sem vaga dentro do timeout => 503
	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w2.Code)
	}

	close(release)
	wg.Wait()
}
