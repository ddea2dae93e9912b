package infra

import (
	"sync"
	"time"

	"keypool-gateway/middleware/keypool/domain"
)

// WindowStore implementa domain.Admitter com janela fixa por chave:
// cada chave tem um par (início da janela, contagem) e admite até `limit`
// requisições por janela.
//
// Janela fixa permite rajada na virada (ex: 15 requisições em 0:59 e mais 15
// em 1:00). É característica do algoritmo, não bug; quem precisar de
// suavização usa o BucketStore.
//
// As entradas são criadas todas na construção e o mapa nunca muda depois,
// então cada chave tem seu próprio mutex e chaves diferentes não se bloqueiam.
// Chave fora do pool não tem entrada e é rejeitada (falha fechado).
type WindowStore struct {
	entries map[domain.Key]*windowEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

type windowEntry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

type WindowOption func(*WindowStore)

// WithNow troca a fonte de tempo (testes).
func WithNow(now func() time.Time) WindowOption {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(keys []string, limit int, window time.Duration, opts ...WindowOption) *WindowStore {
	s := &WindowStore{
		entries: make(map[domain.Key]*windowEntry, len(keys)),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	start := s.now()
	for _, k := range keys {
		s.entries[domain.Key(k)] = &windowEntry{windowStart: start}
	}
	return s
}

func (s *WindowStore) Limit() int            { return s.limit }
func (s *WindowStore) Window() time.Duration { return s.window }

// Admit implementa domain.Admitter.
//
// A janela é checada (e resetada, se expirou) e a contagem incrementada dentro
// do mesmo lock da entrada: duas chamadas concorrentes nunca admitem além do
// limite. Rejeição não tem efeito colateral.
func (s *WindowStore) Admit(key domain.Key) bool {
	ent, ok := s.entries[key]
	if !ok {
		// chave desconhecida: falha fechado
		return false
	}

	now := s.now()

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if now.Sub(ent.windowStart) >= s.window {
		ent.windowStart = now
		ent.count = 0
	}
	if ent.count < s.limit {
		ent.count++
		return true
	}
	return false
}

// NextReset retorna quanto falta para a janela mais próxima expirar,
// considerando todas as chaves. Serve de dica para Retry-After quando o pool
// inteiro está saturado. Nunca retorna negativo.
func (s *WindowStore) NextReset() time.Duration {
	now := s.now()

	min := time.Duration(-1)
	for _, ent := range s.entries {
		ent.mu.Lock()
		wait := s.window - now.Sub(ent.windowStart)
		ent.mu.Unlock()

		if wait < 0 {
			wait = 0
		}
		if min < 0 || wait < min {
			min = wait
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// Count retorna a contagem atual da chave na janela corrente (0 se expirou
// ou se a chave não existe). Exposto para inspeção/estatísticas.
func (s *WindowStore) Count(key domain.Key) int {
	ent, ok := s.entries[key]
	if !ok {
		return 0
	}

	now := s.now()

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if now.Sub(ent.windowStart) >= s.window {
		return 0
	}
	return ent.count
}
