package warehouse

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/Archbaer/cupcake-mononoke/internal/dataset"
)

// instrumentRow mirrors the instruments table. Empty strings stand for
// absent attributes, same as the CSV files.
type instrumentRow struct {
	InstrumentID string `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Source       string `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
	DataType     string `parquet:"name=data_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol       string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Quote        string `parquet:"name=quote, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name         string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Unit         string `parquet:"name=unit, type=BYTE_ARRAY, convertedtype=UTF8"`
	Currency     string `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	Exchange     string `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// timeseriesRow mirrors the timeseries table. Numeric columns are optional
// because each domain populates a different subset.
type timeseriesRow struct {
	InstrumentID string   `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date         string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Open         *float64 `parquet:"name=open, type=DOUBLE, repetitiontype=OPTIONAL"`
	High         *float64 `parquet:"name=high, type=DOUBLE, repetitiontype=OPTIONAL"`
	Low          *float64 `parquet:"name=low, type=DOUBLE, repetitiontype=OPTIONAL"`
	Close        *float64 `parquet:"name=close, type=DOUBLE, repetitiontype=OPTIONAL"`
	Volume       *float64 `parquet:"name=volume, type=DOUBLE, repetitiontype=OPTIONAL"`
	Price        *float64 `parquet:"name=price, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type profileRow struct {
	InstrumentID string `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol       string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name         string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sector       string `parquet:"name=sector, type=BYTE_ARRAY, convertedtype=UTF8"`
	Industry     string `parquet:"name=industry, type=BYTE_ARRAY, convertedtype=UTF8"`
	Country      string `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	Website      string `parquet:"name=website, type=BYTE_ARRAY, convertedtype=UTF8"`
	Employees    *int64 `parquet:"name=employees, type=INT64, repetitiontype=OPTIONAL"`
}

type officerRow struct {
	InstrumentID string   `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name         string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title        string   `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Age          *int64   `parquet:"name=age, type=INT64, repetitiontype=OPTIONAL"`
	YearBorn     *int64   `parquet:"name=year_born, type=INT64, repetitiontype=OPTIONAL"`
	TotalPay     *float64 `parquet:"name=total_pay, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type financialRow struct {
	InstrumentID string   `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PeriodEnd    string   `parquet:"name=period_end, type=BYTE_ARRAY, convertedtype=UTF8"`
	Statement    string   `parquet:"name=statement, type=BYTE_ARRAY, convertedtype=UTF8"`
	Item         string   `parquet:"name=item, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value        *float64 `parquet:"name=value, type=DOUBLE, repetitiontype=OPTIONAL"`
	Currency     string   `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(string) (source.ParquetFile, error)  { return mfw, nil }

func (mfw *memoryFileWriter) Seek(int64, int) (int64, error) {
	// the writer only appends
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// tableData pairs one dataset table with its parquet row prototype.
type tableData struct {
	name      string
	prototype interface{}
	rows      []interface{}
}

// tableRows converts the non-empty tables of a dataset into parquet rows.
func tableRows(ds *dataset.Dataset) []tableData {
	var tables []tableData

	if len(ds.Instruments) > 0 {
		rows := make([]interface{}, 0, len(ds.Instruments))
		for _, in := range ds.Instruments {
			rows = append(rows, instrumentRow{
				InstrumentID: in.ID,
				Source:       in.Source,
				DataType:     in.DataType,
				Symbol:       in.Symbol,
				Quote:        in.Quote,
				Name:         in.Name,
				Unit:         in.Unit,
				Currency:     in.Currency,
				Exchange:     in.Exchange,
			})
		}
		tables = append(tables, tableData{name: "instruments", prototype: new(instrumentRow), rows: rows})
	}

	if len(ds.Points) > 0 {
		rows := make([]interface{}, 0, len(ds.Points))
		for _, p := range ds.Points {
			rows = append(rows, timeseriesRow{
				InstrumentID: p.InstrumentID,
				Date:         p.Date,
				Open:         p.Open,
				High:         p.High,
				Low:          p.Low,
				Close:        p.Close,
				Volume:       p.Volume,
				Price:        p.Price,
			})
		}
		tables = append(tables, tableData{name: "timeseries", prototype: new(timeseriesRow), rows: rows})
	}

	if len(ds.Profiles) > 0 {
		rows := make([]interface{}, 0, len(ds.Profiles))
		for _, p := range ds.Profiles {
			rows = append(rows, profileRow{
				InstrumentID: p.InstrumentID,
				Symbol:       p.Symbol,
				Name:         p.Name,
				Sector:       p.Sector,
				Industry:     p.Industry,
				Country:      p.Country,
				Website:      p.Website,
				Employees:    p.Employees,
			})
		}
		tables = append(tables, tableData{name: "profiles", prototype: new(profileRow), rows: rows})
	}

	if len(ds.Officers) > 0 {
		rows := make([]interface{}, 0, len(ds.Officers))
		for _, o := range ds.Officers {
			rows = append(rows, officerRow{
				InstrumentID: o.InstrumentID,
				Name:         o.Name,
				Title:        o.Title,
				Age:          o.Age,
				YearBorn:     o.YearBorn,
				TotalPay:     o.TotalPay,
			})
		}
		tables = append(tables, tableData{name: "officers", prototype: new(officerRow), rows: rows})
	}

	if len(ds.Financials) > 0 {
		rows := make([]interface{}, 0, len(ds.Financials))
		for _, f := range ds.Financials {
			rows = append(rows, financialRow{
				InstrumentID: f.InstrumentID,
				PeriodEnd:    f.PeriodEnd,
				Statement:    f.Statement,
				Item:         f.Item,
				Value:        f.Value,
				Currency:     f.Currency,
			})
		}
		tables = append(tables, tableData{name: "financials", prototype: new(financialRow), rows: rows})
	}

	return tables
}

// buildParquet renders rows into a parquet file held in memory.
func buildParquet(prototype interface{}, rows []interface{}, codec parquet.CompressionCodec) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, prototype, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return fw.Bytes(), nil
}

// codecFor maps the configured compression name to a parquet codec.
// Unknown names fall back to no compression.
func codecFor(compression string) parquet.CompressionCodec {
	switch compression {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "lzo":
		return parquet.CompressionCodec_LZO
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}
