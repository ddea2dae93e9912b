package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do pool (admitido ou saturado).
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas
// e podem ser usadas para web, gRPC, etc.
//
// KeyID carrega o identificador da chave (Key.ID()), nunca o segredo —
// cuidado redobrado aqui porque essas strings acabam em Redis/logs.
type StatsEvent struct {
	KeyID   string
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do pool.
//
// Implementações podem armazenar em Redis, memória, etc.
// O middleware deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
