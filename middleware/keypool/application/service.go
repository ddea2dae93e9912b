package application

import (
	"time"

	"keypool-gateway/middleware/keypool/domain"
)

// Service concentra a regra de aplicação do pool de chaves.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas percorre o rodízio
// até encontrar uma chave com quota e retorna uma decisão.
type Service struct {
	Selector domain.Selector
	Admitter domain.Admitter
	// Attempts limita quantas chaves o rodízio tenta por decisão.
	// Normalmente é o tamanho do pool: tentar mais que isso só repete chave.
	Attempts int
	// RetryAfter padrão quando o Admitter não sabe estimar a próxima janela.
	RetryAfter time.Duration
}

// resetHinter é opcional: admitters que conhecem suas janelas podem estimar
// quanto falta para a quota mais próxima liberar.
type resetHinter interface {
	NextReset() time.Duration
}

// Decide percorre o rodízio por até Attempts chaves e admite a primeira com
// quota disponível. Cada tentativa consome um slot de rotação, admitida ou não.
//
// Se todas estiverem saturadas, retorna deny com RetryAfter — o chamador não
// deve contatar o upstream nesse caso.
func (s Service) Decide() domain.Decision {
	retry := s.RetryAfter
	if retry <= 0 {
		retry = 1 * time.Second
	}

	if s.Selector == nil || s.Admitter == nil {
		// wiring incompleto: falha fechado, sem chave não há o que encaminhar
		return domain.Decision{Allowed: false, RetryAfter: retry}
	}

	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		k := s.Selector.Next()
		if s.Admitter.Admit(k) {
			return domain.Decision{Allowed: true, Key: k}
		}
	}

	if h, ok := s.Admitter.(resetHinter); ok {
		if d := h.NextReset(); d > 0 {
			retry = d
		}
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
