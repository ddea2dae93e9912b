// Package domain define contratos e tipos de domínio para o pool de chaves
// de upstream: rodízio (round-robin), admissão por quota e estatísticas.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
package domain
