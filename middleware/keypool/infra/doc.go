// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RoundRobin: cursor de rodízio sobre o pool de chaves
//   - WindowStore: contador de janela fixa por chave (algoritmo padrão)
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de requisições em voo
package infra
