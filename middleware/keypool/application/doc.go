// Package application contém os casos de uso (regras de aplicação) do pool
// de chaves: escolher a próxima chave com quota disponível e limitar
// requisições em voo.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide() retorna uma Decision (chave admitida ou deny + retry-after).
package application
