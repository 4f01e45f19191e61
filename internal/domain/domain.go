package domain

import (
	"fmt"
	"strings"
)

// Domain identifies one asset class handled by the pipeline. Every raw
// snapshot, normalized record and processed dataset belongs to exactly one
// domain.
type Domain string

const (
	Commodity Domain = "commodity"
	Crypto    Domain = "crypto"
	Stock     Domain = "stock"
	Forex     Domain = "forex"
	FXRate    Domain = "fx_rate"
	Company   Domain = "company"
)

// All lists every supported domain in processing order.
func All() []Domain {
	return []Domain{Commodity, Crypto, Stock, Forex, FXRate, Company}
}

// Parse maps a configuration string onto a known Domain.
func Parse(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "commodity", "commodities":
		return Commodity, nil
	case "crypto", "cryptocurrency", "cryptocurrencies":
		return Crypto, nil
	case "stock", "stocks":
		return Stock, nil
	case "forex":
		return Forex, nil
	case "fx_rate", "fx_rates", "fxrate":
		return FXRate, nil
	case "company", "companies":
		return Company, nil
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// Dir returns the directory name used for the domain under the raw and
// processed data roots.
func (d Domain) Dir() string {
	switch d {
	case Commodity:
		return "commodities"
	case Crypto:
		return "cryptocurrencies"
	case Stock:
		return "stocks"
	case Forex:
		return "forex"
	case FXRate:
		return "fx_rates"
	case Company:
		return "yahoo_financials"
	}
	return string(d)
}

// Paired reports whether targets in the domain carry a quote currency in
// addition to the base symbol.
func (d Domain) Paired() bool {
	switch d {
	case Crypto, Forex, FXRate:
		return true
	}
	return false
}

// Timeseries reports whether the domain produces dated observations. The
// company domain produces profile, officer and financial tables instead.
func (d Domain) Timeseries() bool {
	return d != Company
}

// Target is one request unit: a symbol (and quote currency for paired
// domains) to fetch within a domain. Targets come from configuration and are
// immutable for the duration of a run.
type Target struct {
	Domain Domain
	Symbol string
	Quote  string
}

// Key returns the file-name stem identifying the target inside its domain
// directory, e.g. "WTI" or "BTC_USD".
func (t Target) Key() string {
	if t.Quote != "" {
		return fmt.Sprintf("%s_%s", t.Symbol, t.Quote)
	}
	return t.Symbol
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Domain, t.Key())
}
