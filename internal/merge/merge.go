package merge

import (
	"sort"

	"github.com/Archbaer/cupcake-mononoke/internal/dataset"
	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/internal/normalize"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// Stats count rows a merge actually changed: new rows plus replacements
// that carried different content. Re-merging identical input yields zeros.
type Stats struct {
	Instruments int
	Points      int
	Profiles    int
	Officers    int
	Financials  int
}

func (s Stats) Total() int {
	return s.Instruments + s.Points + s.Profiles + s.Officers + s.Financials
}

// Merge folds normalized records into an existing dataset and returns the
// merged copy. Rows are deduplicated by their primary keys with the newer
// side winning; the inputs are never mutated. Attribute disagreement on an
// instrument is legal but logged, since identical identifiers are supposed
// to mean identical attributes.
func Merge(existing *dataset.Dataset, incoming *normalize.Result) (*dataset.Dataset, Stats) {
	merged := dataset.New(existing.Domain)
	var stats Stats
	log := logger.GetLogger().WithComponent("merge").WithFields(logger.Fields{
		"domain": string(existing.Domain),
	})

	mergeInstruments(existing, incoming, merged, &stats, log)
	mergePoints(existing, incoming, merged, &stats)
	mergeProfiles(existing, incoming, merged, &stats)
	mergeOfficers(existing, incoming, merged, &stats)
	mergeFinancials(existing, incoming, merged, &stats)

	merged.Sort()
	return merged, stats
}

// Apply is the load-merge-write cycle for one domain. A domain that has
// never been persisted loads as empty, so the first run behaves like any
// other.
func Apply(root string, d domain.Domain, incoming *normalize.Result) (*dataset.Dataset, Stats, error) {
	existing, err := dataset.Load(root, d)
	if err != nil {
		return nil, Stats{}, err
	}
	merged, stats := Merge(existing, incoming)
	if err := merged.Save(root); err != nil {
		return nil, Stats{}, err
	}
	return merged, stats, nil
}

func mergeInstruments(existing *dataset.Dataset, incoming *normalize.Result, merged *dataset.Dataset, stats *Stats, log *logger.Entry) {
	byID := make(map[string]domain.Instrument, len(existing.Instruments))
	order := make([]string, 0, len(existing.Instruments))
	for _, inst := range existing.Instruments {
		if _, ok := byID[inst.ID]; !ok {
			order = append(order, inst.ID)
		}
		byID[inst.ID] = inst
	}

	if incoming != nil {
		for _, inst := range incoming.Instruments {
			prev, ok := byID[inst.ID]
			if !ok {
				byID[inst.ID] = inst
				order = append(order, inst.ID)
				stats.Instruments++
				continue
			}
			if prev == inst {
				continue
			}
			log.WithFields(logger.Fields{
				"instrument_id": inst.ID,
				"symbol":        inst.Symbol,
			}).Warn("instrument attributes changed, keeping the newer record")
			byID[inst.ID] = inst
			stats.Instruments++
		}
	}

	for _, id := range order {
		merged.Instruments = append(merged.Instruments, byID[id])
	}
}

type pointKey struct {
	id   string
	date string
}

func mergePoints(existing *dataset.Dataset, incoming *normalize.Result, merged *dataset.Dataset, stats *Stats) {
	byKey := make(map[pointKey]domain.TimeseriesPoint, len(existing.Points))
	order := make([]pointKey, 0, len(existing.Points))
	for _, p := range existing.Points {
		k := pointKey{p.InstrumentID, p.Date}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = p
	}

	if incoming != nil {
		for _, p := range incoming.Points {
			k := pointKey{p.InstrumentID, p.Date}
			prev, ok := byKey[k]
			if !ok {
				byKey[k] = p
				order = append(order, k)
				stats.Points++
				continue
			}
			if pointEq(prev, p) {
				continue
			}
			byKey[k] = p
			stats.Points++
		}
	}

	for _, k := range order {
		merged.Points = append(merged.Points, byKey[k])
	}
}

func mergeProfiles(existing *dataset.Dataset, incoming *normalize.Result, merged *dataset.Dataset, stats *Stats) {
	byID := make(map[string]domain.CompanyProfile, len(existing.Profiles))
	order := make([]string, 0, len(existing.Profiles))
	for _, pr := range existing.Profiles {
		if _, ok := byID[pr.InstrumentID]; !ok {
			order = append(order, pr.InstrumentID)
		}
		byID[pr.InstrumentID] = pr
	}

	if incoming != nil {
		for _, pr := range incoming.Profiles {
			prev, ok := byID[pr.InstrumentID]
			if !ok {
				byID[pr.InstrumentID] = pr
				order = append(order, pr.InstrumentID)
				stats.Profiles++
				continue
			}
			if profileEq(prev, pr) {
				continue
			}
			byID[pr.InstrumentID] = pr
			stats.Profiles++
		}
	}

	for _, id := range order {
		merged.Profiles = append(merged.Profiles, byID[id])
	}
}

// mergeOfficers replaces the whole roster of an instrument when the new
// snapshot carries one. Departed officers disappear this way instead of
// lingering forever.
func mergeOfficers(existing *dataset.Dataset, incoming *normalize.Result, merged *dataset.Dataset, stats *Stats) {
	rosters := make(map[string][]domain.CompanyOfficer)
	order := make([]string, 0)
	for _, o := range existing.Officers {
		if _, ok := rosters[o.InstrumentID]; !ok {
			order = append(order, o.InstrumentID)
		}
		rosters[o.InstrumentID] = append(rosters[o.InstrumentID], o)
	}

	if incoming != nil {
		fresh := make(map[string][]domain.CompanyOfficer)
		for _, o := range incoming.Officers {
			fresh[o.InstrumentID] = append(fresh[o.InstrumentID], o)
		}
		for id, roster := range fresh {
			prev, ok := rosters[id]
			if !ok {
				order = append(order, id)
			}
			if !rosterEq(prev, roster) {
				stats.Officers += len(roster)
			}
			rosters[id] = roster
		}
	}

	sort.Strings(order)
	for _, id := range order {
		merged.Officers = append(merged.Officers, rosters[id]...)
	}
}

type factKey struct {
	id        string
	statement string
	periodEnd string
	item      string
}

func mergeFinancials(existing *dataset.Dataset, incoming *normalize.Result, merged *dataset.Dataset, stats *Stats) {
	byKey := make(map[factKey]domain.FinancialFact, len(existing.Financials))
	order := make([]factKey, 0, len(existing.Financials))
	for _, f := range existing.Financials {
		k := factKey{f.InstrumentID, f.Statement, f.PeriodEnd, f.Item}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = f
	}

	if incoming != nil {
		for _, f := range incoming.Financials {
			k := factKey{f.InstrumentID, f.Statement, f.PeriodEnd, f.Item}
			prev, ok := byKey[k]
			if !ok {
				byKey[k] = f
				order = append(order, k)
				stats.Financials++
				continue
			}
			if factEq(prev, f) {
				continue
			}
			byKey[k] = f
			stats.Financials++
		}
	}

	for _, k := range order {
		merged.Financials = append(merged.Financials, byKey[k])
	}
}

func floatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func pointEq(a, b domain.TimeseriesPoint) bool {
	return a.InstrumentID == b.InstrumentID && a.Date == b.Date &&
		floatEq(a.Open, b.Open) && floatEq(a.High, b.High) &&
		floatEq(a.Low, b.Low) && floatEq(a.Close, b.Close) &&
		floatEq(a.Volume, b.Volume) && floatEq(a.Price, b.Price)
}

func profileEq(a, b domain.CompanyProfile) bool {
	return a.InstrumentID == b.InstrumentID && a.Symbol == b.Symbol &&
		a.Name == b.Name && a.Sector == b.Sector && a.Industry == b.Industry &&
		a.Country == b.Country && a.Website == b.Website &&
		intEq(a.Employees, b.Employees)
}

func officerEq(a, b domain.CompanyOfficer) bool {
	return a.InstrumentID == b.InstrumentID && a.Name == b.Name &&
		a.Title == b.Title && intEq(a.Age, b.Age) &&
		intEq(a.YearBorn, b.YearBorn) && floatEq(a.TotalPay, b.TotalPay)
}

func rosterEq(a, b []domain.CompanyOfficer) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]domain.CompanyOfficer(nil), a...)
	bs := append([]domain.CompanyOfficer(nil), b...)
	byName := func(s []domain.CompanyOfficer) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].Name != s[j].Name {
				return s[i].Name < s[j].Name
			}
			return s[i].Title < s[j].Title
		}
	}
	sort.Slice(as, byName(as))
	sort.Slice(bs, byName(bs))
	for i := range as {
		if !officerEq(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func factEq(a, b domain.FinancialFact) bool {
	return a.InstrumentID == b.InstrumentID && a.PeriodEnd == b.PeriodEnd &&
		a.Statement == b.Statement && a.Item == b.Item &&
		floatEq(a.Value, b.Value) && a.Currency == b.Currency
}
