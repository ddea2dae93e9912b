// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers/logs.
//    Evita puxar fmt (que é mais “pesado” e genérico) só para formatação simples
//    Arredonda Retry-After para cima: truncar faria o cliente voltar cedo demais
//        e tomar outro 429

package keypool

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
