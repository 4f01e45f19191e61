package normalize

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/internal/yahoofinance"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// Company snapshots come in pairs: <SYM>_info carries the profile and the
// officer roster, <SYM>_financials carries the statement histories. Only the
// info side emits the instrument row; the identifier is a pure function of
// the symbol, so statement facts land on the same instrument regardless of
// which snapshot is normalized first.

const (
	infoSuffix       = "_info"
	financialsSuffix = "_financials"

	statementIncome   = "income_statement"
	statementBalance  = "balance_sheet"
	statementCashflow = "cash_flow"
)

func companyRecords(targetKey string, payload []byte) (*Result, error) {
	switch {
	case strings.HasSuffix(targetKey, infoSuffix):
		return companyInfoRecords(targetKey, strings.TrimSuffix(targetKey, infoSuffix), payload)
	case strings.HasSuffix(targetKey, financialsSuffix):
		return companyFinancialRecords(targetKey, strings.TrimSuffix(targetKey, financialsSuffix), payload)
	default:
		return nil, errFor(domain.Company, targetKey, "unrecognized company snapshot key")
	}
}

// fmtNumber is Yahoo's numeric wrapper: {"raw": 123, "fmt": "123"}.
type fmtNumber struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type officerEnvelope struct {
	Name     string     `json:"name"`
	Title    string     `json:"title"`
	Age      *int64     `json:"age"`
	YearBorn *int64     `json:"yearBorn"`
	TotalPay *fmtNumber `json:"totalPay"`
}

type infoEnvelope struct {
	AssetProfile *struct {
		Sector            string            `json:"sector"`
		Industry          string            `json:"industry"`
		Country           string            `json:"country"`
		Website           string            `json:"website"`
		FullTimeEmployees *int64            `json:"fullTimeEmployees"`
		CompanyOfficers   []officerEnvelope `json:"companyOfficers"`
	} `json:"assetProfile"`
	Price *struct {
		Symbol       string `json:"symbol"`
		LongName     string `json:"longName"`
		ShortName    string `json:"shortName"`
		Currency     string `json:"currency"`
		ExchangeName string `json:"exchangeName"`
	} `json:"price"`
}

func companyInfoRecords(targetKey, symbol string, payload []byte) (*Result, error) {
	result, reason := unwrapQuoteSummary(payload)
	if reason != "" {
		return nil, errFor(domain.Company, targetKey, reason)
	}

	var env infoEnvelope
	if err := json.Unmarshal(result, &env); err != nil {
		return nil, errFor(domain.Company, targetKey, "quoteSummary result has unexpected shape")
	}

	name := ""
	if env.Price != nil {
		if env.Price.Symbol != "" {
			symbol = env.Price.Symbol
		}
		name = env.Price.LongName
		if name == "" {
			name = env.Price.ShortName
		}
	}

	inst := domain.NewInstrument(yahoofinance.ProviderName, domain.Company, symbol, "")
	inst.Name = name
	if env.Price != nil {
		inst.Currency = env.Price.Currency
		inst.Exchange = env.Price.ExchangeName
	}

	profile := domain.CompanyProfile{
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		Name:         name,
	}
	res := &Result{
		Instruments: []domain.Instrument{inst},
	}
	log := dropLog(domain.Company, targetKey)

	if env.AssetProfile != nil {
		profile.Sector = env.AssetProfile.Sector
		profile.Industry = env.AssetProfile.Industry
		profile.Country = env.AssetProfile.Country
		profile.Website = env.AssetProfile.Website
		profile.Employees = env.AssetProfile.FullTimeEmployees

		for _, o := range env.AssetProfile.CompanyOfficers {
			if strings.TrimSpace(o.Name) == "" {
				res.Dropped++
				log.Warn("dropping officer without a name")
				continue
			}
			officer := domain.CompanyOfficer{
				InstrumentID: inst.ID,
				Name:         o.Name,
				Title:        o.Title,
				Age:          o.Age,
				YearBorn:     o.YearBorn,
			}
			if o.TotalPay != nil {
				officer.TotalPay = o.TotalPay.Raw
			}
			res.Officers = append(res.Officers, officer)
		}
	}

	res.Profiles = []domain.CompanyProfile{profile}
	return res, nil
}

type financialsEnvelope struct {
	Income *struct {
		Statements []map[string]json.RawMessage `json:"incomeStatementHistory"`
	} `json:"incomeStatementHistory"`
	Balance *struct {
		Statements []map[string]json.RawMessage `json:"balanceSheetStatements"`
	} `json:"balanceSheetHistory"`
	Cashflow *struct {
		Statements []map[string]json.RawMessage `json:"cashflowStatements"`
	} `json:"cashflowStatementHistory"`
}

func companyFinancialRecords(targetKey, symbol string, payload []byte) (*Result, error) {
	result, reason := unwrapQuoteSummary(payload)
	if reason != "" {
		return nil, errFor(domain.Company, targetKey, reason)
	}

	var env financialsEnvelope
	if err := json.Unmarshal(result, &env); err != nil {
		return nil, errFor(domain.Company, targetKey, "quoteSummary result has unexpected shape")
	}

	instrumentID := domain.InstrumentID(yahoofinance.ProviderName, string(domain.Company), symbol, "")
	res := &Result{}
	log := dropLog(domain.Company, targetKey)

	if env.Income != nil {
		appendStatements(res, instrumentID, statementIncome, env.Income.Statements, log)
	}
	if env.Balance != nil {
		appendStatements(res, instrumentID, statementBalance, env.Balance.Statements, log)
	}
	if env.Cashflow != nil {
		appendStatements(res, instrumentID, statementCashflow, env.Cashflow.Statements, log)
	}
	return res, nil
}

// appendStatements flattens one statement history into line-item facts. Each
// period contributes one fact per numeric field.
func appendStatements(res *Result, instrumentID, statement string, periods []map[string]json.RawMessage, log *logger.Entry) {
	for _, period := range periods {
		end, ok := periodEnd(period["endDate"])
		if !ok {
			res.Dropped++
			log.WithFields(logger.Fields{"statement": statement}).Warn("dropping statement period without a valid end date")
			continue
		}

		items := make([]string, 0, len(period))
		for item := range period {
			if item == "endDate" || item == "maxAge" {
				continue
			}
			items = append(items, item)
		}
		sort.Strings(items)

		for _, item := range items {
			v, ok := asNumber(period[item])
			if !ok {
				res.Dropped++
				log.WithFields(logger.Fields{"statement": statement, "period": end, "item": item}).Warn("dropping non-numeric statement item")
				continue
			}
			res.Financials = append(res.Financials, domain.FinancialFact{
				InstrumentID: instrumentID,
				PeriodEnd:    end,
				Statement:    statement,
				Item:         item,
				Value:        domain.Float(v),
			})
		}
	}
}

// periodEnd resolves a statement's end date, preferring the provider's own
// formatted date over the epoch value.
func periodEnd(msg json.RawMessage) (string, bool) {
	if len(msg) == 0 {
		return "", false
	}
	var n fmtNumber
	if err := json.Unmarshal(msg, &n); err != nil {
		return "", false
	}
	if validDate(n.Fmt) {
		return n.Fmt, true
	}
	if n.Raw != nil {
		return time.Unix(int64(*n.Raw), 0).UTC().Format(dateLayout), true
	}
	return "", false
}

// asNumber accepts both Yahoo's raw/fmt wrapper and a plain JSON number.
func asNumber(msg json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, false
	}
	var n fmtNumber
	if err := json.Unmarshal(trimmed, &n); err == nil && n.Raw != nil {
		return *n.Raw, true
	}
	var plain float64
	if err := json.Unmarshal(trimmed, &plain); err == nil {
		return plain, true
	}
	return 0, false
}

// unwrapQuoteSummary peels the quoteSummary envelope down to the single
// result object, returning a reason when the envelope itself is broken.
func unwrapQuoteSummary(payload []byte) (json.RawMessage, string) {
	var env struct {
		QuoteSummary struct {
			Result []json.RawMessage `json:"result"`
			Error  *struct {
				Description string `json:"description"`
			} `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, "payload is not valid JSON"
	}
	if env.QuoteSummary.Error != nil {
		return nil, env.QuoteSummary.Error.Description
	}
	if len(env.QuoteSummary.Result) == 0 {
		return nil, "quoteSummary result is empty"
	}
	return env.QuoteSummary.Result[0], ""
}
