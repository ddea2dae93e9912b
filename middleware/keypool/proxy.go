package keypool

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewReverseProxy cria o proxy reverso para o upstream fixo.
//
// O transporte é injetável (testes usam um RoundTripper fake; produção pode
// passar nil para o default). A resposta do upstream é repassada como veio —
// status, headers e body — exceto headers hop-by-hop, que o httputil já remove.
//
// Erros de transporte viram 502; timeout vira 504. Nenhum dos dois é
// retentado com outra chave: a quota já foi consumida na admissão.
func NewReverseProxy(target *url.URL, transport http.RoundTripper, logf func(format string, args ...any)) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		// o upstream espera o Host dele, não o do cliente
		req.Host = target.Host
	}

	if transport != nil {
		proxy.Transport = transport
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if logf != nil {
			logf("proxy error: %v", err)
		}
		status := http.StatusBadGateway
		if isTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, http.StatusText(status), status)
	}

	return proxy
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
