package normalize

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/Archbaer/cupcake-mononoke/internal/alphavantage"
	"github.com/Archbaer/cupcake-mononoke/internal/domain"
	"github.com/Archbaer/cupcake-mononoke/logger"
)

// Alpha Vantage serializes every number as a JSON string, and historic
// commodity series pad missing months with a bare ".". Observations that do
// not parse are dropped row by row; the instrument itself always survives.

type commodityEnvelope struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
	Unit     string `json:"unit"`
	Data     []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"data"`
}

func commodityRecords(targetKey string, payload []byte) (*Result, error) {
	var env commodityEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errFor(domain.Commodity, targetKey, "payload is not valid JSON")
	}
	if env.Data == nil {
		return nil, errFor(domain.Commodity, targetKey, `missing "data" series`)
	}

	inst := domain.NewInstrument(alphavantage.ProviderName, domain.Commodity, targetKey, "")
	inst.Name = env.Name
	inst.Unit = env.Unit

	res := &Result{Instruments: []domain.Instrument{inst}}
	log := dropLog(domain.Commodity, targetKey)

	entries := env.Data
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	for _, e := range entries {
		if !validDate(e.Date) {
			res.Dropped++
			log.WithFields(logger.Fields{"date": e.Date}).Warn("dropping observation with invalid date")
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(e.Value), 64)
		if err != nil {
			res.Dropped++
			log.WithFields(logger.Fields{"date": e.Date, "value": e.Value}).Warn("dropping non-numeric observation")
			continue
		}
		res.Points = append(res.Points, domain.TimeseriesPoint{
			InstrumentID: inst.ID,
			Date:         e.Date,
			Price:        domain.Float(v),
		})
	}
	return res, nil
}

type ohlcvObservation struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type cryptoEnvelope struct {
	Meta struct {
		Code   string `json:"2. Digital Currency Code"`
		Name   string `json:"3. Digital Currency Name"`
		Market string `json:"4. Market Code"`
	} `json:"Meta Data"`
	Series map[string]ohlcvObservation `json:"Time Series (Digital Currency Daily)"`
}

func cryptoRecords(targetKey string, payload []byte) (*Result, error) {
	var env cryptoEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errFor(domain.Crypto, targetKey, "payload is not valid JSON")
	}
	if env.Series == nil {
		return nil, errFor(domain.Crypto, targetKey, `missing "Time Series (Digital Currency Daily)"`)
	}
	if env.Meta.Code == "" || env.Meta.Market == "" {
		return nil, errFor(domain.Crypto, targetKey, "metadata missing currency codes")
	}

	inst := domain.NewInstrument(alphavantage.ProviderName, domain.Crypto, env.Meta.Code, env.Meta.Market)
	inst.Name = env.Meta.Name
	inst.Currency = inst.Quote

	res := &Result{Instruments: []domain.Instrument{inst}}
	appendOHLCV(res, inst.ID, env.Series, true, dropLog(domain.Crypto, targetKey))
	return res, nil
}

type stockEnvelope struct {
	Meta struct {
		Symbol string `json:"2. Symbol"`
	} `json:"Meta Data"`
	Series map[string]ohlcvObservation `json:"Time Series (Daily)"`
}

func stockRecords(targetKey string, payload []byte) (*Result, error) {
	var env stockEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errFor(domain.Stock, targetKey, "payload is not valid JSON")
	}
	if env.Series == nil {
		return nil, errFor(domain.Stock, targetKey, `missing "Time Series (Daily)"`)
	}
	if env.Meta.Symbol == "" {
		return nil, errFor(domain.Stock, targetKey, "metadata missing symbol")
	}

	inst := domain.NewInstrument(alphavantage.ProviderName, domain.Stock, env.Meta.Symbol, "")

	res := &Result{Instruments: []domain.Instrument{inst}}
	appendOHLCV(res, inst.ID, env.Series, true, dropLog(domain.Stock, targetKey))
	return res, nil
}

type forexEnvelope struct {
	Meta struct {
		From string `json:"2. From Symbol"`
		To   string `json:"3. To Symbol"`
	} `json:"Meta Data"`
	Series map[string]ohlcvObservation `json:"Time Series FX (Daily)"`
}

func forexRecords(targetKey string, payload []byte) (*Result, error) {
	var env forexEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errFor(domain.Forex, targetKey, "payload is not valid JSON")
	}
	if env.Series == nil {
		return nil, errFor(domain.Forex, targetKey, `missing "Time Series FX (Daily)"`)
	}
	if env.Meta.From == "" || env.Meta.To == "" {
		return nil, errFor(domain.Forex, targetKey, "metadata missing currency pair")
	}

	inst := domain.NewInstrument(alphavantage.ProviderName, domain.Forex, env.Meta.From, env.Meta.To)
	inst.Currency = inst.Quote

	res := &Result{Instruments: []domain.Instrument{inst}}
	appendOHLCV(res, inst.ID, env.Series, false, dropLog(domain.Forex, targetKey))
	return res, nil
}

type fxRateEnvelope struct {
	Rate *struct {
		From      string `json:"1. From_Currency Code"`
		FromName  string `json:"2. From_Currency Name"`
		To        string `json:"3. To_Currency Code"`
		ToName    string `json:"4. To_Currency Name"`
		Rate      string `json:"5. Exchange Rate"`
		Refreshed string `json:"6. Last Refreshed"`
	} `json:"Realtime Currency Exchange Rate"`
}

func fxRateRecords(targetKey string, payload []byte) (*Result, error) {
	var env fxRateEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errFor(domain.FXRate, targetKey, "payload is not valid JSON")
	}
	if env.Rate == nil {
		return nil, errFor(domain.FXRate, targetKey, `missing "Realtime Currency Exchange Rate"`)
	}
	if env.Rate.From == "" || env.Rate.To == "" {
		return nil, errFor(domain.FXRate, targetKey, "metadata missing currency pair")
	}

	inst := domain.NewInstrument(alphavantage.ProviderName, domain.FXRate, env.Rate.From, env.Rate.To)
	if env.Rate.FromName != "" && env.Rate.ToName != "" {
		inst.Name = env.Rate.FromName + " to " + env.Rate.ToName
	}
	inst.Currency = inst.Quote

	res := &Result{Instruments: []domain.Instrument{inst}}
	log := dropLog(domain.FXRate, targetKey)

	// The realtime endpoint yields a single observation dated by its
	// refresh time.
	date, _, _ := strings.Cut(env.Rate.Refreshed, " ")
	if !validDate(date) {
		res.Dropped++
		log.WithFields(logger.Fields{"refreshed": env.Rate.Refreshed}).Warn("dropping observation with invalid date")
		return res, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(env.Rate.Rate), 64)
	if err != nil {
		res.Dropped++
		log.WithFields(logger.Fields{"date": date, "value": env.Rate.Rate}).Warn("dropping non-numeric observation")
		return res, nil
	}
	res.Points = append(res.Points, domain.TimeseriesPoint{
		InstrumentID: inst.ID,
		Date:         date,
		Price:        domain.Float(v),
	})
	return res, nil
}

// appendOHLCV converts a date-keyed observation map into points in date
// order. An observation with any unparseable field is dropped whole, so a
// merged row is never half filled.
func appendOHLCV(res *Result, instrumentID string, series map[string]ohlcvObservation, withVolume bool, log *logger.Entry) {
	dates := make([]string, 0, len(series))
	for date := range series {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		if !validDate(date) {
			res.Dropped++
			log.WithFields(logger.Fields{"date": date}).Warn("dropping observation with invalid date")
			continue
		}
		obs := series[date]
		fields := []string{obs.Open, obs.High, obs.Low, obs.Close}
		if withVolume {
			fields = append(fields, obs.Volume)
		}
		values := make([]float64, 0, len(fields))
		ok := true
		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				ok = false
				break
			}
			values = append(values, v)
		}
		if !ok {
			res.Dropped++
			log.WithFields(logger.Fields{"date": date}).Warn("dropping non-numeric observation")
			continue
		}

		point := domain.TimeseriesPoint{
			InstrumentID: instrumentID,
			Date:         date,
			Open:         domain.Float(values[0]),
			High:         domain.Float(values[1]),
			Low:          domain.Float(values[2]),
			Close:        domain.Float(values[3]),
		}
		if withVolume {
			point.Volume = domain.Float(values[4])
		}
		res.Points = append(res.Points, point)
	}
}

func dropLog(d domain.Domain, targetKey string) *logger.Entry {
	return logger.GetLogger().WithComponent("normalize").WithFields(logger.Fields{
		"domain": string(d),
		"target": targetKey,
	})
}
