package domain

import "strings"

// Instrument is the normalized entity record for one logical asset. The
// identifier is a pure function of the canonical attributes, so the same
// logical instrument always maps onto the same row regardless of run order.
type Instrument struct {
	ID       string
	Source   string
	DataType string
	Symbol   string
	Quote    string
	Name     string
	Unit     string
	Currency string
	Exchange string
}

// NewInstrument builds an instrument with its derived identifier filled in.
// Symbol and quote are stored uppercased so repeated runs produce
// byte-identical rows.
func NewInstrument(source string, d Domain, symbol, quote string) Instrument {
	return Instrument{
		ID:       InstrumentID(source, string(d), symbol, quote),
		Source:   canon(source),
		DataType: string(d),
		Symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		Quote:    strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// TimeseriesPoint is one dated observation belonging to an instrument.
// Fields that a domain does not populate stay nil and serialize as empty
// columns. Primary key: (InstrumentID, Date).
type TimeseriesPoint struct {
	InstrumentID string
	Date         string // YYYY-MM-DD
	Open         *float64
	High         *float64
	Low          *float64
	Close        *float64
	Volume       *float64
	Price        *float64
}

// CompanyProfile describes one company instrument. Primary key: InstrumentID.
type CompanyProfile struct {
	InstrumentID string
	Symbol       string
	Name         string
	Sector       string
	Industry     string
	Country      string
	Website      string
	Employees    *int64
}

// CompanyOfficer is one row of a company's officer roster.
type CompanyOfficer struct {
	InstrumentID string
	Name         string
	Title        string
	Age          *int64
	YearBorn     *int64
	TotalPay     *float64
}

// FinancialFact is a single line item from a company financial statement.
// Primary key: (InstrumentID, Statement, PeriodEnd, Item).
type FinancialFact struct {
	InstrumentID string
	PeriodEnd    string // YYYY-MM-DD
	Statement    string // income_statement, balance_sheet, cash_flow
	Item         string
	Value        *float64
	Currency     string
}

// Float returns a pointer to v. Convenience for building optional numeric
// fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }
