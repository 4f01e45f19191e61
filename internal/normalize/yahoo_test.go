package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

const companyInfoFixture = `{
  "quoteSummary": {
    "result": [
      {
        "assetProfile": {
          "address1": "One Apple Park Way",
          "city": "Cupertino",
          "country": "United States",
          "website": "https://www.apple.com",
          "industry": "Consumer Electronics",
          "sector": "Technology",
          "fullTimeEmployees": 161000,
          "companyOfficers": [
            {
              "name": "Mr. Timothy D. Cook",
              "age": 62,
              "title": "CEO & Director",
              "yearBorn": 1960,
              "totalPay": {"raw": 16425933, "fmt": "16.43M"}
            },
            {
              "name": "Ms. Katherine L. Adams",
              "title": "Senior VP, General Counsel & Secretary"
            },
            {
              "name": "   ",
              "title": "Ghost Entry"
            }
          ]
        },
        "price": {
          "symbol": "AAPL",
          "longName": "Apple Inc.",
          "currency": "USD",
          "exchangeName": "NasdaqGS"
        }
      }
    ],
    "error": null
  }
}`

const companyFinancialsFixture = `{
  "quoteSummary": {
    "result": [
      {
        "incomeStatementHistory": {
          "incomeStatementHistory": [
            {
              "maxAge": 1,
              "endDate": {"raw": 1696032000, "fmt": "2023-09-30"},
              "totalRevenue": {"raw": 383285000000, "fmt": "383.29B"},
              "netIncome": {"raw": 96995000000, "fmt": "97B"}
            },
            {
              "maxAge": 1,
              "endDate": {"raw": 1664409600, "fmt": "2022-09-24"},
              "totalRevenue": {"raw": 394328000000, "fmt": "394.33B"}
            }
          ]
        },
        "balanceSheetHistory": {
          "balanceSheetStatements": [
            {
              "maxAge": 1,
              "endDate": {"raw": 1696032000, "fmt": "2023-09-30"},
              "totalAssets": {"raw": 352583000000, "fmt": "352.58B"}
            }
          ]
        },
        "cashflowStatementHistory": {
          "cashflowStatements": [
            {
              "maxAge": 1,
              "endDate": {"raw": 1696032000, "fmt": "2023-09-30"},
              "totalCashFromOperatingActivities": {"raw": 110543000000, "fmt": "110.54B"},
              "currencyCode": "USD"
            }
          ]
        }
      }
    ],
    "error": null
  }
}`

func TestCompanyInfoRecords(t *testing.T) {
	res, err := Records(domain.Company, "AAPL_info", []byte(companyInfoFixture))
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	if len(res.Instruments) != 1 {
		t.Fatalf("expected one instrument, got %d", len(res.Instruments))
	}
	inst := res.Instruments[0]
	if inst.ID != domain.InstrumentID("yahoo_finance", "company", "AAPL", "") {
		t.Errorf("unexpected identifier: %s", inst.ID)
	}
	if inst.Name != "Apple Inc." || inst.Currency != "USD" || inst.Exchange != "NasdaqGS" {
		t.Errorf("descriptive attributes lost: %+v", inst)
	}

	if len(res.Profiles) != 1 {
		t.Fatalf("expected one profile, got %d", len(res.Profiles))
	}
	profile := res.Profiles[0]
	if profile.InstrumentID != inst.ID {
		t.Error("profile does not reference the instrument")
	}
	if profile.Sector != "Technology" || profile.Industry != "Consumer Electronics" {
		t.Errorf("profile fields wrong: %+v", profile)
	}
	if profile.Employees == nil || *profile.Employees != 161000 {
		t.Errorf("unexpected employee count: %v", profile.Employees)
	}

	// the nameless officer entry is dropped, the other two survive
	if len(res.Officers) != 2 {
		t.Fatalf("expected two officers, got %d", len(res.Officers))
	}
	if res.Dropped != 1 {
		t.Errorf("expected one dropped row, got %d", res.Dropped)
	}
	cook := res.Officers[0]
	if cook.Name != "Mr. Timothy D. Cook" || cook.Title != "CEO & Director" {
		t.Errorf("unexpected first officer: %+v", cook)
	}
	if cook.TotalPay == nil || *cook.TotalPay != 16425933 {
		t.Errorf("unexpected total pay: %v", cook.TotalPay)
	}
	if res.Officers[1].TotalPay != nil || res.Officers[1].Age != nil {
		t.Error("absent officer fields must stay nil")
	}

	if len(res.Points) != 0 || len(res.Financials) != 0 {
		t.Error("info snapshot must not produce timeseries or financial rows")
	}
}

func TestCompanyFinancialRecords(t *testing.T) {
	res, err := Records(domain.Company, "AAPL_financials", []byte(companyFinancialsFixture))
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	wantID := domain.InstrumentID("yahoo_finance", "company", "AAPL", "")
	// 2 + 1 income facts, 1 balance fact, 1 cashflow fact; the string
	// currencyCode item is dropped
	if len(res.Financials) != 5 {
		t.Fatalf("expected five facts, got %d", len(res.Financials))
	}
	if res.Dropped != 1 {
		t.Errorf("expected one dropped item, got %d", res.Dropped)
	}

	byKey := make(map[string]domain.FinancialFact, len(res.Financials))
	for _, f := range res.Financials {
		if f.InstrumentID != wantID {
			t.Fatalf("fact does not reference the company instrument: %+v", f)
		}
		byKey[f.Statement+"|"+f.PeriodEnd+"|"+f.Item] = f
	}

	rev, ok := byKey["income_statement|2023-09-30|totalRevenue"]
	if !ok {
		t.Fatal("missing fiscal 2023 revenue fact")
	}
	if rev.Value == nil || *rev.Value != 383285000000 {
		t.Errorf("unexpected revenue: %v", rev.Value)
	}
	if _, ok := byKey["income_statement|2022-09-24|totalRevenue"]; !ok {
		t.Error("missing fiscal 2022 revenue fact")
	}
	if _, ok := byKey["balance_sheet|2023-09-30|totalAssets"]; !ok {
		t.Error("missing balance sheet fact")
	}
	if _, ok := byKey["cash_flow|2023-09-30|totalCashFromOperatingActivities"]; !ok {
		t.Error("missing cash flow fact")
	}

	if len(res.Instruments) != 0 {
		t.Error("financial snapshot must not emit an instrument row")
	}
}

func TestCompanyRecordsBadKey(t *testing.T) {
	_, err := Records(domain.Company, "AAPL", []byte(companyInfoFixture))
	var normErr *NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("expected NormalizationError, got %T: %v", err, err)
	}
	if !strings.Contains(normErr.Reason, "unrecognized") {
		t.Errorf("unexpected reason: %s", normErr.Reason)
	}
}

func TestCompanyRecordsEnvelopeError(t *testing.T) {
	payload := `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for ticker symbol: ZZZZ"}}}`
	_, err := Records(domain.Company, "ZZZZ_info", []byte(payload))
	var normErr *NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("expected NormalizationError, got %T: %v", err, err)
	}
	if !strings.Contains(normErr.Reason, "Quote not found") {
		t.Errorf("provider wording lost: %s", normErr.Reason)
	}
}

func TestPeriodEndFallsBackToEpoch(t *testing.T) {
	end, ok := periodEnd(json.RawMessage(`{"raw": 1696032000}`))
	if !ok || end != "2023-09-30" {
		t.Errorf("periodEnd = (%q, %v), want (2023-09-30, true)", end, ok)
	}
	if _, ok := periodEnd(json.RawMessage(`{}`)); ok {
		t.Error("empty end date accepted")
	}
	if _, ok := periodEnd(nil); ok {
		t.Error("missing end date accepted")
	}
}

func TestAsNumber(t *testing.T) {
	cases := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{`{"raw": 42.5, "fmt": "42.5"}`, 42.5, true},
		{`1250000`, 1250000, true},
		{`{"fmt": "n/a"}`, 0, false},
		{`null`, 0, false},
		{`"USD"`, 0, false},
	}
	for _, tc := range cases {
		got, ok := asNumber(json.RawMessage(tc.raw))
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("asNumber(%s) = (%v, %v), want (%v, %v)", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}
