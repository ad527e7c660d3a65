package analysis

// parse.go turns raw CSV bytes into typed rows.
//
// Column names follow the upload format: transaction_id, date, amount,
// category. Matching is exact and case-sensitive; extra columns are ignored.
//
// Dates are tried against one ordered layout list. Slash and dash dates
// without a leading year are month-first, so "01/02/2023" is 2 January 2023.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Required CSV header names.
const (
	ColumnTransactionID = "transaction_id"
	ColumnDate          = "date"
	ColumnAmount        = "amount"
	ColumnCategory      = "category"
)

// RequiredColumns lists the header names every upload must carry.
var RequiredColumns = []string{ColumnTransactionID, ColumnDate, ColumnAmount, ColumnCategory}

// dateLayouts is the single date parser used for every upload.
// Earlier entries win, so ISO forms are tried before the US forms.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"20060102",
}

const utf8BOM = "\ufeff"

// ParseDate parses s with the upload date layouts. Values without a zone
// are interpreted as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Amount bounds. Exponents outside them make every later sum rescale through
// huge big.Int powers of ten.
const (
	maxAmountLen        = 64
	maxAmountIntDigits  = 18
	maxAmountFracDigits = 18
)

// ParseAmount parses a plain decimal amount such as "-12.50". Amounts with
// more than 18 integer or 18 fractional digits are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxAmountLen {
		return decimal.Zero, fmt.Errorf("amount %.16q... is too long", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("non-numeric amount %q", s)
	}
	exp := d.Exponent()
	if exp < -maxAmountFracDigits || int64(d.NumDigits())+int64(exp) > maxAmountIntDigits {
		return decimal.Zero, fmt.Errorf("amount %q is out of range", s)
	}
	return d, nil
}

// ReadRows decodes CSV from r, validates the header and coerces every row.
func ReadRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no header row", ErrParse)
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrParse, err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	rows := []Row{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}

		line, _ := reader.FieldPos(0)
		row, err := coerceRow(record, index, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// columnIndex maps each required column to its position in the header.
func columnIndex(header []string) (map[string]int, error) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrValidation, strings.Join(missing, ", "))
	}

	return index, nil
}

func coerceRow(record []string, index map[string]int, line int) (Row, error) {
	field := func(col string) (string, error) {
		v := strings.TrimSpace(record[index[col]])
		if v == "" {
			return "", fmt.Errorf("%w: line %d: empty %s", ErrValidation, line, col)
		}
		return v, nil
	}

	id, err := field(ColumnTransactionID)
	if err != nil {
		return Row{}, err
	}
	category, err := field(ColumnCategory)
	if err != nil {
		return Row{}, err
	}

	rawDate, err := field(ColumnDate)
	if err != nil {
		return Row{}, err
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return Row{}, fmt.Errorf("%w: line %d: %v", ErrValidation, line, err)
	}

	rawAmount, err := field(ColumnAmount)
	if err != nil {
		return Row{}, err
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return Row{}, fmt.Errorf("%w: line %d: %v", ErrValidation, line, err)
	}

	return Row{
		TransactionID: id,
		Date:          date,
		Amount:        amount,
		Category:      category,
	}, nil
}
