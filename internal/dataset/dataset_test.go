package dataset

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

func sampleTimeseries() *Dataset {
	btc := domain.NewInstrument("alpha_vantage", domain.Crypto, "BTC", "USD")
	btc.Name = "Bitcoin"
	btc.Currency = "USD"
	eth := domain.NewInstrument("alpha_vantage", domain.Crypto, "ETH", "USD")
	eth.Currency = "USD"

	ds := New(domain.Crypto)
	ds.Instruments = []domain.Instrument{eth, btc}
	ds.Points = []domain.TimeseriesPoint{
		{InstrumentID: eth.ID, Date: "2024-01-02", Open: domain.Float(2290), High: domain.Float(2350), Low: domain.Float(2280), Close: domain.Float(2340), Volume: domain.Float(12.5)},
		{InstrumentID: btc.ID, Date: "2024-01-02", Open: domain.Float(42750.30), High: domain.Float(43500), Low: domain.Float(42100.90), Close: domain.Float(43205.15), Volume: domain.Float(987.65)},
		{InstrumentID: btc.ID, Date: "2024-01-01", Open: domain.Float(42000.10), High: domain.Float(43120.55), Low: domain.Float(41500), Close: domain.Float(42750.30), Volume: domain.Float(1234.56)},
	}
	return ds
}

func sampleCompany() *Dataset {
	aapl := domain.NewInstrument("yahoo_finance", domain.Company, "AAPL", "")
	aapl.Name = "Apple Inc."
	aapl.Currency = "USD"
	aapl.Exchange = "NasdaqGS"

	ds := New(domain.Company)
	ds.Instruments = []domain.Instrument{aapl}
	ds.Profiles = []domain.CompanyProfile{{
		InstrumentID: aapl.ID, Symbol: "AAPL", Name: "Apple Inc.",
		Sector: "Technology", Industry: "Consumer Electronics",
		Country: "United States", Website: "https://www.apple.com",
		Employees: domain.Int(161000),
	}}
	ds.Officers = []domain.CompanyOfficer{
		{InstrumentID: aapl.ID, Name: "Ms. Katherine L. Adams", Title: "Senior VP, General Counsel & Secretary"},
		{InstrumentID: aapl.ID, Name: "Mr. Timothy D. Cook", Title: "CEO & Director", Age: domain.Int(62), YearBorn: domain.Int(1960), TotalPay: domain.Float(16425933)},
	}
	ds.Financials = []domain.FinancialFact{
		{InstrumentID: aapl.ID, PeriodEnd: "2023-09-30", Statement: "income_statement", Item: "totalRevenue", Value: domain.Float(383285000000)},
		{InstrumentID: aapl.ID, PeriodEnd: "2023-09-30", Statement: "balance_sheet", Item: "totalAssets", Value: domain.Float(352583000000)},
	}
	return ds
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	ds := sampleTimeseries()

	if err := ds.Save(root); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(root, domain.Crypto)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Instruments, ds.Instruments) {
		t.Error("instruments did not round trip")
	}
	if !reflect.DeepEqual(loaded.Points, ds.Points) {
		t.Error("points did not round trip")
	}
	// crypto has no price column, so the loaded pointers must stay nil
	for _, p := range loaded.Points {
		if p.Price != nil {
			t.Fatalf("empty column materialized a value: %+v", p)
		}
	}
}

func TestCompanyRoundTrip(t *testing.T) {
	root := t.TempDir()
	ds := sampleCompany()

	if err := ds.Save(root); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(root, domain.Company)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Profiles, ds.Profiles) {
		t.Error("profiles did not round trip")
	}
	if !reflect.DeepEqual(loaded.Officers, ds.Officers) {
		t.Error("officers did not round trip")
	}
	if !reflect.DeepEqual(loaded.Financials, ds.Financials) {
		t.Error("financials did not round trip")
	}
	if len(loaded.Points) != 0 {
		t.Error("company dataset must not read a timeseries table")
	}
}

func TestSaveIsByteStable(t *testing.T) {
	root := t.TempDir()
	ds := sampleTimeseries()
	if err := ds.Save(root); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	files := []string{"instruments.csv", "timeseries.csv"}
	before := make(map[string][]byte, len(files))
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(ds.Dir(root), name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		before[name] = b
	}

	loaded, err := Load(root, domain.Crypto)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := loaded.Save(root); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	for _, name := range files {
		after, err := os.ReadFile(filepath.Join(ds.Dir(root), name))
		if err != nil {
			t.Fatalf("re-reading %s: %v", name, err)
		}
		if string(after) != string(before[name]) {
			t.Errorf("%s changed across a load/save cycle", name)
		}
	}
}

func TestLoadMissingDomain(t *testing.T) {
	loaded, err := Load(t.TempDir(), domain.Commodity)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Size() != 0 {
		t.Errorf("expected an empty dataset, got %d rows", loaded.Size())
	}
}

func TestLoadRejectsForeignHeader(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, domain.Stock.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	bad := "id,symbol\nx,AAPL\n"
	if err := os.WriteFile(filepath.Join(dir, "instruments.csv"), []byte(bad), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(root, domain.Stock); err == nil {
		t.Fatal("expected an error for a foreign header")
	}
}

func TestSortCanonicalOrder(t *testing.T) {
	ds := sampleCompany()
	ds.Sort()

	if ds.Officers[0].Name != "Mr. Timothy D. Cook" {
		t.Errorf("officers not sorted by name: %s first", ds.Officers[0].Name)
	}
	if ds.Financials[0].Statement != "balance_sheet" {
		t.Errorf("financials not sorted by statement: %s first", ds.Financials[0].Statement)
	}

	ts := sampleTimeseries()
	ts.Sort()
	for i := 1; i < len(ts.Points); i++ {
		a, b := ts.Points[i-1], ts.Points[i]
		if a.InstrumentID > b.InstrumentID || (a.InstrumentID == b.InstrumentID && a.Date > b.Date) {
			t.Fatalf("points out of order at %d: %+v before %+v", i, a, b)
		}
	}
}

func TestFloatFormatting(t *testing.T) {
	cases := []struct {
		in   *float64
		want string
	}{
		{nil, ""},
		{domain.Float(8345.12), "8345.12"},
		{domain.Float(52342100), "52342100"},
		{domain.Float(147.52), "147.52"},
		{domain.Float(0.000001), "0.000001"},
	}
	for _, tc := range cases {
		if got := formatFloat(tc.in); got != tc.want {
			t.Errorf("formatFloat(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
