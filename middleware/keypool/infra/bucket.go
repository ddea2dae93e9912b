package infra

import (
	"time"

	"keypool-gateway/middleware/keypool/domain"

	"golang.org/x/time/rate"
)

// BucketStore implementa domain.Admitter com token-bucket (x/time/rate) por
// chave: alternativa ao WindowStore para quem prefere suavizar o tráfego em
// vez de aceitar rajadas na virada da janela.
//
// O refil equivale ao mesmo teto: limit tokens a cada window, com burst=limit.
// Como no WindowStore, o mapa de chaves é fixo na construção e chave
// desconhecida é rejeitada.
type BucketStore struct {
	entries map[domain.Key]*rate.Limiter
	limit   int
	window  time.Duration
}

func NewBucketStore(keys []string, limit int, window time.Duration) *BucketStore {
	s := &BucketStore{
		entries: make(map[domain.Key]*rate.Limiter, len(keys)),
		limit:   limit,
		window:  window,
	}
	rps := rate.Limit(float64(limit) / window.Seconds())
	for _, k := range keys {
		s.entries[domain.Key(k)] = rate.NewLimiter(rps, limit)
	}
	return s
}

func (s *BucketStore) Limit() int            { return s.limit }
func (s *BucketStore) Window() time.Duration { return s.window }

// Admit implementa domain.Admitter.
func (s *BucketStore) Admit(key domain.Key) bool {
	lim, ok := s.entries[key]
	if !ok {
		return false
	}
	return lim.Allow()
}
