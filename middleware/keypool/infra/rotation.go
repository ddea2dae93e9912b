package infra

import (
	"errors"
	"sync"

	"keypool-gateway/middleware/keypool/domain"
)

// RoundRobin implementa domain.Selector com um cursor único sobre uma
// sequência imutável de chaves.
//
// A leitura da chave e o avanço do cursor acontecem dentro do mesmo lock:
// cada chamada consome exatamente um slot de rotação, mesmo sob concorrência.
type RoundRobin struct {
	mu    sync.Mutex
	keys  []domain.Key
	next  int
	taken uint64
}

// NewRoundRobin cria o rodízio. Falha se a lista de chaves estiver vazia —
// um pool sem chaves não tem o que rotacionar e o processo não deve subir.
func NewRoundRobin(keys []string) (*RoundRobin, error) {
	if len(keys) == 0 {
		return nil, errors.New("keypool: at least one key is required")
	}
	ks := make([]domain.Key, len(keys))
	for i, k := range keys {
		ks[i] = domain.Key(k)
	}
	return &RoundRobin{keys: ks}, nil
}

// Next implementa domain.Selector.
func (r *RoundRobin) Next() domain.Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.keys[r.next]
	r.next = (r.next + 1) % len(r.keys)
	r.taken++
	return k
}

// Len retorna o tamanho do pool (usado para limitar tentativas por decisão).
func (r *RoundRobin) Len() int { return len(r.keys) }

// Taken retorna o total de slots de rotação já consumidos.
func (r *RoundRobin) Taken() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taken
}
