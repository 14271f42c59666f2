package panel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stockpick/internal/core"
)

// dateLayouts are the date formats accepted in the first CSV column,
// including the timezone-qualified timestamps written by common
// dataframe exports.
var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ReadCSV parses a wide CSV panel: a header row "date,<asset>,..." followed
// by one row per trading date. Empty cells and NaN are missing prices.
func ReadCSV(r io.Reader) (*Panel, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.ErrEmptyPanel
	}
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidPanel, fmt.Errorf("reading header: %w", err))
	}
	if len(header) < 2 {
		return nil, core.WrapError(core.ErrEmptyPanel, fmt.Errorf("header has no asset columns"))
	}
	assets := make([]string, len(header)-1)
	for j, h := range header[1:] {
		assets[j] = strings.TrimSpace(h)
	}

	var dates []time.Time
	var rows [][]float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidPanel, fmt.Errorf("line %d: %w", line, err))
		}

		d, err := parseDate(rec[0])
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidPanel, fmt.Errorf("line %d: %w", line, err))
		}

		row := make([]float64, len(assets))
		for j := range assets {
			v, err := parsePrice(rec[j+1])
			if err != nil {
				return nil, core.WrapError(core.ErrInvalidPanel,
					fmt.Errorf("line %d column %s: %w", line, assets[j], err))
			}
			row[j] = v
		}

		dates = append(dates, d)
		rows = append(rows, row)
	}

	return New(dates, assets, rows)
}

// WriteCSV writes p in the format ReadCSV accepts. Missing prices are
// written as empty cells.
func WriteCSV(w io.Writer, p *Panel) error {
	cw := csv.NewWriter(w)

	header := append([]string{"date"}, p.assets...)
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for i, d := range p.dates {
		rec[0] = d.Format(time.DateOnly)
		for j, v := range p.rows[i] {
			if IsMissing(v) {
				rec[j+1] = ""
				continue
			}
			rec[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || math.IsInf(v, 0) {
		return math.NaN(), nil
	}
	return v, nil
}
