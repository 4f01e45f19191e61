package pipeline

import (
	"strings"

	appconfig "github.com/Archbaer/cupcake-mononoke/config"
	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

// Targets flattens the configured per-domain lists into one ordered target
// slice: domains in processing order, symbols in configuration order.
// Symbols are uppercased so snapshot names stay stable when a list entry
// changes case between deployments.
func Targets(tc appconfig.TargetsConfig) []domain.Target {
	var targets []domain.Target

	for _, s := range tc.Commodities {
		targets = append(targets, target(domain.Commodity, s, ""))
	}
	for _, p := range tc.Cryptocurrencies {
		targets = append(targets, target(domain.Crypto, p[0], p[1]))
	}
	for _, s := range tc.Stocks {
		targets = append(targets, target(domain.Stock, s, ""))
	}
	for _, p := range tc.Forex {
		targets = append(targets, target(domain.Forex, p[0], p[1]))
	}
	for _, p := range tc.FXRates {
		targets = append(targets, target(domain.FXRate, p[0], p[1]))
	}
	for _, s := range tc.Companies {
		targets = append(targets, target(domain.Company, s, ""))
	}
	return targets
}

func target(d domain.Domain, symbol, quote string) domain.Target {
	return domain.Target{
		Domain: d,
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Quote:  strings.ToUpper(strings.TrimSpace(quote)),
	}
}
