package normalize

import (
	"fmt"
	"time"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

// Result carries the normalized rows produced from one raw snapshot.
// Timeseries domains fill Instruments and Points; the company domain fills
// the profile, officer, and financial tables instead.
type Result struct {
	Instruments []domain.Instrument
	Points      []domain.TimeseriesPoint
	Profiles    []domain.CompanyProfile
	Officers    []domain.CompanyOfficer
	Financials  []domain.FinancialFact
	Dropped     int
}

// Add folds another result into this one. Used to accumulate all snapshots
// of a domain before merging.
func (r *Result) Add(other *Result) {
	if other == nil {
		return
	}
	r.Instruments = append(r.Instruments, other.Instruments...)
	r.Points = append(r.Points, other.Points...)
	r.Profiles = append(r.Profiles, other.Profiles...)
	r.Officers = append(r.Officers, other.Officers...)
	r.Financials = append(r.Financials, other.Financials...)
	r.Dropped += other.Dropped
}

// Count returns the number of normalized rows across all record kinds.
func (r *Result) Count() int {
	return len(r.Instruments) + len(r.Points) + len(r.Profiles) + len(r.Officers) + len(r.Financials)
}

// NormalizationError marks a snapshot that cannot be turned into records at
// all. Value-level problems inside an otherwise well-formed snapshot are
// dropped row by row instead of raising this.
type NormalizationError struct {
	Domain string
	Target string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalizing %s/%s: %s", e.Domain, e.Target, e.Reason)
}

// Records parses one raw snapshot payload into normalized rows. The target
// key names the snapshot within its domain; for domains whose payloads do
// not repeat the requested symbol it is also the identity source.
func Records(d domain.Domain, targetKey string, payload []byte) (*Result, error) {
	switch d {
	case domain.Commodity:
		return commodityRecords(targetKey, payload)
	case domain.Crypto:
		return cryptoRecords(targetKey, payload)
	case domain.Stock:
		return stockRecords(targetKey, payload)
	case domain.Forex:
		return forexRecords(targetKey, payload)
	case domain.FXRate:
		return fxRateRecords(targetKey, payload)
	case domain.Company:
		return companyRecords(targetKey, payload)
	default:
		return nil, &NormalizationError{Domain: string(d), Target: targetKey, Reason: "no parser for domain"}
	}
}

const dateLayout = "2006-01-02"

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

func errFor(d domain.Domain, target, reason string) *NormalizationError {
	return &NormalizationError{Domain: string(d), Target: target, Reason: reason}
}
