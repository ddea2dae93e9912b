package keypool

import (
	"net/http"
	"time"

	"keypool-gateway/middleware/keypool/application"
	"keypool-gateway/middleware/keypool/domain"
	"keypool-gateway/middleware/keypool/infra"
)

type Options struct {
	Selector domain.Selector
	Admitter domain.Admitter
	Stats    domain.StatsStore

	// Attempts limita quantas chaves o rodízio tenta por requisição.
	// Se 0, usa o tamanho do pool quando o Selector souber informá-lo.
	Attempts int

	// InjectQueryParam, quando não vazio, injeta a credencial como query param
	// com esse nome. Vazio injeta "Authorization: Bearer <key>" (padrão).
	InjectQueryParam string

	RejectStatus int
	RetryAfter   time.Duration

	// AddPoolHeaders expõe X-KeyPool-* na resposta (id da chave, limite, janela).
	// O id é hash, nunca o segredo.
	AddPoolHeaders bool

	// MaxInFlight limita requisições simultâneas em voo para o upstream.
	// 0 desliga o limite.
	MaxInFlight    int
	BusyStatus     int
	AcquireTimeout time.Duration
}

// poolSizer e limitInfo são opcionais: implementações que souberem seu tamanho
// ou seus parâmetros de quota enriquecem defaults e headers.
type poolSizer interface {
	Len() int
}

type limitInfo interface {
	Limit() int
	Window() time.Duration
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.BusyStatus == 0 {
		opts.BusyStatus = http.StatusServiceUnavailable
	}
	if opts.Attempts == 0 {
		if p, ok := opts.Selector.(poolSizer); ok {
			opts.Attempts = p.Len()
		}
	}

	svc := application.Service{
		Selector:   opts.Selector,
		Admitter:   opts.Admitter,
		Attempts:   opts.Attempts,
		RetryAfter: opts.RetryAfter,
	}

	conc := application.ConcurrencyService{AcquireTimeout: opts.AcquireTimeout}
	if opts.MaxInFlight > 0 {
		conc.Pool = infra.NewChanPool(opts.MaxInFlight)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if conc.Pool != nil {
				release, ok := conc.Acquire(r.Context())
				if !ok {
					http.Error(w, http.StatusText(opts.BusyStatus), opts.BusyStatus)
					return
				}
				defer release()
			}

			dec := svc.Decide()

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					KeyID:   keyID(dec),
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(ceilSeconds(dec.RetryAfter)))
				http.Error(w, "all upstream keys are rate limited, retry later", opts.RejectStatus)
				return
			}

			if opts.AddPoolHeaders {
				w.Header().Set("X-KeyPool-Key", dec.Key.ID())
				if li, ok := opts.Admitter.(limitInfo); ok {
					w.Header().Set("X-KeyPool-Limit", formatInt(li.Limit()))
					w.Header().Set("X-KeyPool-Window", formatInt(int(li.Window().Seconds())))
				}
			}

			injectKey(r, dec.Key, opts.InjectQueryParam)

			next.ServeHTTP(w, r)
		})
	}
}

// injectKey anexa a credencial admitida à requisição de saída, na convenção
// que o upstream espera.
func injectKey(r *http.Request, key domain.Key, queryParam string) {
	if queryParam != "" {
		q := r.URL.Query()
		q.Set(queryParam, string(key))
		r.URL.RawQuery = q.Encode()
		return
	}
	r.Header.Set("Authorization", "Bearer "+string(key))
}

func keyID(dec domain.Decision) string {
	if !dec.Allowed {
		return ""
	}
	return dec.Key.ID()
}
