// Package keypool fornece os adapters HTTP (net/http) do gateway de
// encaminhamento: rodízio de chaves de upstream com quota por chave.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (escolher chave admitida, limitar em-voo) sem net/http
//   - infra: implementações concretas (cursor round-robin, janela fixa, token bucket,
//     semáforo), detalhes de infraestrutura
//   - keypool (este pacote): middleware HTTP + injeção da credencial + proxy reverso
//     + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Percorre o rodízio (no máximo uma volta) até achar chave com quota
//  2. Se todas saturadas, responde 429 com Retry-After, sem tocar o upstream
//  3. Se admitiu, injeta a credencial (header Authorization ou query param)
//  4. Encaminha ao upstream fixo e repassa status/headers/body como vieram
//
// Variáveis de ambiente do binário proxy (cmd/proxy) controlam o comportamento,
// como API_KEYS, TARGET_API_URL, RATE_LIMIT e RATE_WINDOW.
package keypool
