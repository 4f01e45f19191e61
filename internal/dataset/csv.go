package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

// Column sets are fixed: merge idempotence depends on every run writing the
// same header and the same value formatting.
var (
	instrumentsHeader = []string{"instrument_id", "source", "data_type", "symbol", "quote", "name", "unit", "currency", "exchange"}
	timeseriesHeader  = []string{"instrument_id", "date", "open", "high", "low", "close", "volume", "price"}
	profilesHeader    = []string{"instrument_id", "symbol", "name", "sector", "industry", "country", "website", "employees"}
	officersHeader    = []string{"instrument_id", "name", "title", "age", "year_born", "total_pay"}
	financialsHeader  = []string{"instrument_id", "period_end", "statement", "item", "value", "currency"}
)

// formatFloat renders optional numerics with the shortest exact decimal
// form. Nil serializes as an empty column.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// writeCSV publishes one table atomically: temp file in the target
// directory, then rename, the same discipline as raw snapshots.
func writeCSV(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// readCSV loads one table, checking the header. A missing file means the
// table has never been written and reads as empty.
func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	got := records[0]
	if len(got) != len(header) {
		return nil, fmt.Errorf("%s: unexpected header %v", path, got)
	}
	for i := range header {
		if got[i] != header[i] {
			return nil, fmt.Errorf("%s: unexpected header %v", path, got)
		}
	}
	return records[1:], nil
}

func saveInstruments(path string, ds *Dataset) error {
	rows := make([][]string, 0, len(ds.Instruments))
	for _, inst := range ds.Instruments {
		rows = append(rows, []string{
			inst.ID, inst.Source, inst.DataType, inst.Symbol, inst.Quote,
			inst.Name, inst.Unit, inst.Currency, inst.Exchange,
		})
	}
	return writeCSV(path, instrumentsHeader, rows)
}

func loadInstruments(path string, ds *Dataset) error {
	rows, err := readCSV(path, instrumentsHeader)
	if err != nil {
		return err
	}
	for _, row := range rows {
		ds.Instruments = append(ds.Instruments, domain.Instrument{
			ID: row[0], Source: row[1], DataType: row[2], Symbol: row[3], Quote: row[4],
			Name: row[5], Unit: row[6], Currency: row[7], Exchange: row[8],
		})
	}
	return nil
}

func savePoints(path string, ds *Dataset) error {
	rows := make([][]string, 0, len(ds.Points))
	for _, p := range ds.Points {
		rows = append(rows, []string{
			p.InstrumentID, p.Date,
			formatFloat(p.Open), formatFloat(p.High), formatFloat(p.Low),
			formatFloat(p.Close), formatFloat(p.Volume), formatFloat(p.Price),
		})
	}
	return writeCSV(path, timeseriesHeader, rows)
}

func loadPoints(path string, ds *Dataset) error {
	rows, err := readCSV(path, timeseriesHeader)
	if err != nil {
		return err
	}
	for _, row := range rows {
		p := domain.TimeseriesPoint{InstrumentID: row[0], Date: row[1]}
		cols := []struct {
			dst **float64
			raw string
		}{
			{&p.Open, row[2]}, {&p.High, row[3]}, {&p.Low, row[4]},
			{&p.Close, row[5]}, {&p.Volume, row[6]}, {&p.Price, row[7]},
		}
		for _, c := range cols {
			v, err := parseFloat(c.raw)
			if err != nil {
				return fmt.Errorf("%s: bad numeric column for %s on %s: %w", path, p.InstrumentID, p.Date, err)
			}
			*c.dst = v
		}
		ds.Points = append(ds.Points, p)
	}
	return nil
}

func saveProfiles(path string, ds *Dataset) error {
	rows := make([][]string, 0, len(ds.Profiles))
	for _, pr := range ds.Profiles {
		rows = append(rows, []string{
			pr.InstrumentID, pr.Symbol, pr.Name, pr.Sector, pr.Industry,
			pr.Country, pr.Website, formatInt(pr.Employees),
		})
	}
	return writeCSV(path, profilesHeader, rows)
}

func loadProfiles(path string, ds *Dataset) error {
	rows, err := readCSV(path, profilesHeader)
	if err != nil {
		return err
	}
	for _, row := range rows {
		employees, err := parseInt(row[7])
		if err != nil {
			return fmt.Errorf("%s: bad employee count for %s: %w", path, row[0], err)
		}
		ds.Profiles = append(ds.Profiles, domain.CompanyProfile{
			InstrumentID: row[0], Symbol: row[1], Name: row[2], Sector: row[3],
			Industry: row[4], Country: row[5], Website: row[6], Employees: employees,
		})
	}
	return nil
}

func saveOfficers(path string, ds *Dataset) error {
	rows := make([][]string, 0, len(ds.Officers))
	for _, o := range ds.Officers {
		rows = append(rows, []string{
			o.InstrumentID, o.Name, o.Title,
			formatInt(o.Age), formatInt(o.YearBorn), formatFloat(o.TotalPay),
		})
	}
	return writeCSV(path, officersHeader, rows)
}

func loadOfficers(path string, ds *Dataset) error {
	rows, err := readCSV(path, officersHeader)
	if err != nil {
		return err
	}
	for _, row := range rows {
		age, err := parseInt(row[3])
		if err != nil {
			return fmt.Errorf("%s: bad age for %s: %w", path, row[1], err)
		}
		yearBorn, err := parseInt(row[4])
		if err != nil {
			return fmt.Errorf("%s: bad birth year for %s: %w", path, row[1], err)
		}
		totalPay, err := parseFloat(row[5])
		if err != nil {
			return fmt.Errorf("%s: bad total pay for %s: %w", path, row[1], err)
		}
		ds.Officers = append(ds.Officers, domain.CompanyOfficer{
			InstrumentID: row[0], Name: row[1], Title: row[2],
			Age: age, YearBorn: yearBorn, TotalPay: totalPay,
		})
	}
	return nil
}

func saveFinancials(path string, ds *Dataset) error {
	rows := make([][]string, 0, len(ds.Financials))
	for _, f := range ds.Financials {
		rows = append(rows, []string{
			f.InstrumentID, f.PeriodEnd, f.Statement, f.Item,
			formatFloat(f.Value), f.Currency,
		})
	}
	return writeCSV(path, financialsHeader, rows)
}

func loadFinancials(path string, ds *Dataset) error {
	rows, err := readCSV(path, financialsHeader)
	if err != nil {
		return err
	}
	for _, row := range rows {
		value, err := parseFloat(row[4])
		if err != nil {
			return fmt.Errorf("%s: bad value for %s %s: %w", path, row[0], row[3], err)
		}
		ds.Financials = append(ds.Financials, domain.FinancialFact{
			InstrumentID: row[0], PeriodEnd: row[1], Statement: row[2],
			Item: row[3], Value: value, Currency: row[5],
		})
	}
	return nil
}
