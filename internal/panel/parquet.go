package panel

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/newthinker/stockpick/internal/core"
)

// CellRecord is the Parquet schema of a cached panel: one row per
// (date, asset) cell in long format. Missing prices are null.
type CellRecord struct {
	Date   int64    `parquet:"date"` // Unix ms
	Symbol string   `parquet:"symbol,dict"`
	Column int32    `parquet:"column"`
	Close  *float64 `parquet:"close,optional"`
}

// EncodeParquet writes p as long-format Parquet rows.
func EncodeParquet(w io.Writer, p *Panel) error {
	records := make([]CellRecord, 0, p.Len()*p.Width())
	for i, d := range p.dates {
		ms := d.UnixMilli()
		for j, a := range p.assets {
			rec := CellRecord{Date: ms, Symbol: a, Column: int32(j)}
			if v := p.rows[i][j]; !IsMissing(v) {
				rec.Close = &v
			}
			records = append(records, rec)
		}
	}
	return parquet.Write(w, records)
}

// DecodeParquet rebuilds a panel from bytes produced by EncodeParquet.
func DecodeParquet(data []byte) (*Panel, error) {
	records, err := parquet.Read[CellRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidPanel, fmt.Errorf("reading parquet: %w", err))
	}
	if len(records) == 0 {
		return nil, core.ErrEmptyPanel
	}

	columns := make(map[int32]string)
	stamps := make(map[int64]struct{})
	for _, r := range records {
		if prev, ok := columns[r.Column]; ok && prev != r.Symbol {
			return nil, core.WrapError(core.ErrInvalidPanel,
				fmt.Errorf("column %d holds both %q and %q", r.Column, prev, r.Symbol))
		}
		columns[r.Column] = r.Symbol
		stamps[r.Date] = struct{}{}
	}

	ordinals := make([]int32, 0, len(columns))
	for c := range columns {
		ordinals = append(ordinals, c)
	}
	sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] < ordinals[j] })
	assets := make([]string, len(ordinals))
	colOf := make(map[int32]int, len(ordinals))
	for k, c := range ordinals {
		assets[k] = columns[c]
		colOf[c] = k
	}

	ms := make([]int64, 0, len(stamps))
	for s := range stamps {
		ms = append(ms, s)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	dates := make([]time.Time, len(ms))
	rowOf := make(map[int64]int, len(ms))
	for i, s := range ms {
		dates[i] = time.UnixMilli(s).UTC()
		rowOf[s] = i
	}

	rows := newRows(len(dates), len(assets))
	for _, r := range records {
		v := math.NaN()
		if r.Close != nil {
			v = *r.Close
		}
		rows[rowOf[r.Date]][colOf[r.Column]] = v
	}

	return New(dates, assets, rows)
}
