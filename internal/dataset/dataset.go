package dataset

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/Archbaer/cupcake-mononoke/internal/domain"
)

// Dataset is the processed table set for one domain, the unit the merge
// engine reads and rewrites. Timeseries domains persist instruments and
// dated observations; the company domain persists instruments plus the
// profile, officer and financial tables.
type Dataset struct {
	Domain      domain.Domain
	Instruments []domain.Instrument
	Points      []domain.TimeseriesPoint
	Profiles    []domain.CompanyProfile
	Officers    []domain.CompanyOfficer
	Financials  []domain.FinancialFact
}

const (
	instrumentsFile = "instruments.csv"
	timeseriesFile  = "timeseries.csv"
	profilesFile    = "profiles.csv"
	officersFile    = "officers.csv"
	financialsFile  = "financials.csv"
)

func New(d domain.Domain) *Dataset {
	return &Dataset{Domain: d}
}

// Dir returns the directory holding the domain's tables under a processed
// data root.
func (ds *Dataset) Dir(root string) string {
	return filepath.Join(root, ds.Domain.Dir())
}

// Load reads the persisted tables for a domain. A domain that has never
// been merged yields an empty dataset, not an error.
func Load(root string, d domain.Domain) (*Dataset, error) {
	ds := New(d)
	dir := ds.Dir(root)

	if err := loadInstruments(filepath.Join(dir, instrumentsFile), ds); err != nil {
		return nil, fmt.Errorf("loading %s instruments: %w", d, err)
	}
	if d.Timeseries() {
		if err := loadPoints(filepath.Join(dir, timeseriesFile), ds); err != nil {
			return nil, fmt.Errorf("loading %s timeseries: %w", d, err)
		}
		return ds, nil
	}

	if err := loadProfiles(filepath.Join(dir, profilesFile), ds); err != nil {
		return nil, fmt.Errorf("loading %s profiles: %w", d, err)
	}
	if err := loadOfficers(filepath.Join(dir, officersFile), ds); err != nil {
		return nil, fmt.Errorf("loading %s officers: %w", d, err)
	}
	if err := loadFinancials(filepath.Join(dir, financialsFile), ds); err != nil {
		return nil, fmt.Errorf("loading %s financials: %w", d, err)
	}
	return ds, nil
}

// Save sorts the tables into canonical order and rewrites them atomically.
// Saving an unchanged dataset reproduces the files byte for byte.
func (ds *Dataset) Save(root string) error {
	ds.Sort()
	dir := ds.Dir(root)

	if err := saveInstruments(filepath.Join(dir, instrumentsFile), ds); err != nil {
		return fmt.Errorf("saving %s instruments: %w", ds.Domain, err)
	}
	if ds.Domain.Timeseries() {
		if err := savePoints(filepath.Join(dir, timeseriesFile), ds); err != nil {
			return fmt.Errorf("saving %s timeseries: %w", ds.Domain, err)
		}
		return nil
	}

	if err := saveProfiles(filepath.Join(dir, profilesFile), ds); err != nil {
		return fmt.Errorf("saving %s profiles: %w", ds.Domain, err)
	}
	if err := saveOfficers(filepath.Join(dir, officersFile), ds); err != nil {
		return fmt.Errorf("saving %s officers: %w", ds.Domain, err)
	}
	if err := saveFinancials(filepath.Join(dir, financialsFile), ds); err != nil {
		return fmt.Errorf("saving %s financials: %w", ds.Domain, err)
	}
	return nil
}

// Size returns the total row count across all tables.
func (ds *Dataset) Size() int {
	return len(ds.Instruments) + len(ds.Points) + len(ds.Profiles) + len(ds.Officers) + len(ds.Financials)
}

// Sort puts every table into its canonical order: the order rows are
// persisted in, so diffs between runs reflect data changes only.
func (ds *Dataset) Sort() {
	sort.Slice(ds.Instruments, func(i, j int) bool {
		return ds.Instruments[i].ID < ds.Instruments[j].ID
	})
	sort.Slice(ds.Points, func(i, j int) bool {
		a, b := ds.Points[i], ds.Points[j]
		if a.InstrumentID != b.InstrumentID {
			return a.InstrumentID < b.InstrumentID
		}
		return a.Date < b.Date
	})
	sort.Slice(ds.Profiles, func(i, j int) bool {
		return ds.Profiles[i].InstrumentID < ds.Profiles[j].InstrumentID
	})
	sort.Slice(ds.Officers, func(i, j int) bool {
		a, b := ds.Officers[i], ds.Officers[j]
		if a.InstrumentID != b.InstrumentID {
			return a.InstrumentID < b.InstrumentID
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Title < b.Title
	})
	sort.Slice(ds.Financials, func(i, j int) bool {
		a, b := ds.Financials[i], ds.Financials[j]
		if a.InstrumentID != b.InstrumentID {
			return a.InstrumentID < b.InstrumentID
		}
		if a.Statement != b.Statement {
			return a.Statement < b.Statement
		}
		if a.PeriodEnd != b.PeriodEnd {
			return a.PeriodEnd < b.PeriodEnd
		}
		return a.Item < b.Item
	})
}
