package alphavantage

import (
	"net/url"
	"strings"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

// buildQuery assembles the provider query parameters for one target.
// Commodity endpoints use the symbol itself as the function name; the other
// domains use fixed functions with symbol parameters. The output size knob
// only exists on the stock and forex endpoints.
func buildQuery(t domain.Target, apiKey, outputSize string) url.Values {
	q := url.Values{}
	switch t.Domain {
	case domain.Commodity:
		q.Set("function", strings.ToUpper(t.Symbol))
		q.Set("interval", "monthly")
	case domain.Crypto:
		q.Set("function", "DIGITAL_CURRENCY_DAILY")
		q.Set("symbol", strings.ToUpper(t.Symbol))
		q.Set("market", strings.ToUpper(t.Quote))
	case domain.Stock:
		q.Set("function", "TIME_SERIES_DAILY")
		q.Set("symbol", strings.ToUpper(t.Symbol))
		q.Set("outputsize", outputSize)
	case domain.Forex:
		q.Set("function", "FX_DAILY")
		q.Set("from_symbol", strings.ToUpper(t.Symbol))
		q.Set("to_symbol", strings.ToUpper(t.Quote))
		q.Set("outputsize", outputSize)
	case domain.FXRate:
		q.Set("function", "CURRENCY_EXCHANGE_RATE")
		q.Set("from_currency", strings.ToUpper(t.Symbol))
		q.Set("to_currency", strings.ToUpper(t.Quote))
	}
	q.Set("apikey", apiKey)
	return q
}
