package domain

// Camada de domínio do pool de chaves.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"encoding/hex"
	"hash/fnv"
	"time"
)

// Key é uma credencial de upstream (ex: API key). O valor é segredo:
// nunca deve aparecer em logs nem em stores de estatística — use ID().
type Key string

// ID retorna um identificador curto e estável da chave (prefixo do hash
// FNV-1a em hex), seguro para logs, headers e métricas.
//
// Observação: é identificação, não segurança. Não serve para comparação
// criptográfica.
func (k Key) ID() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// Selector entrega a próxima chave do rodízio.
//
// Cada chamada consome exatamente um "slot" de rotação: chamadas concorrentes
// veem slots distintos, em ordem total, sem pular nem repetir.
type Selector interface {
	Next() Key
}

// Admitter decide se a chave pode consumir uma unidade de quota agora.
//
// A implementação pode ser janela fixa, token-bucket, etc.
// Chave desconhecida deve falhar fechado (retornar false), nunca panicar.
type Admitter interface {
	Admit(Key) bool
}

type Decision struct {
	Allowed bool
	// Key é a chave admitida. Vazia quando Allowed=false.
	Key Key
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
