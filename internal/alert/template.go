package alert

import (
	"strings"

	"github.com/danhigham/tipcharm/internal/domain"
)

// Render substitutes {user}, {amount}, {symbol} and {message}. Values are
// inserted literally and are not rescanned for placeholders.
func Render(template string, ev domain.TipEvent) string {
	if template == "" {
		template = DefaultTemplate
	}
	r := strings.NewReplacer(
		"{user}", ev.Sender,
		"{amount}", ev.AmountDisplay,
		"{symbol}", ev.Symbol,
		"{message}", ev.Message,
	)
	return r.Replace(template)
}
