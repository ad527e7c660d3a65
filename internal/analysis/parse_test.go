package analysis

import (
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-15 13:45:00", time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC), false},
		{"2024-01-15T13:45:00", time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC), false},
		{"2024-01-15T13:45:00Z", time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC), false},
		{"2024/01/15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"01/02/2023", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"1/2/2023", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"12-31-2023", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"Jan 5, 2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), false},
		{"  2024-02-29  ", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"31/12/2023", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate_KeepsOffset(t *testing.T) {
	got, err := ParseDate("2024-01-31T23:30:00-05:00")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if label := MonthEnd(got).String(); label != "2024-01-31" {
		t.Errorf("MonthEnd = %s, want 2024-01-31 (local wall clock of the value)", label)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"10", "10", false},
		{"-12.50", "-12.5", false},
		{" 3.14 ", "3.14", false},
		{"1e3", "1000", false},
		{"$5", "", true},
		{"abc", "", true},
		{"123456789012345678.99", "123456789012345678.99", false},
		{"0.000000000000000001", "0.000000000000000001", false},
		{"1e17", "100000000000000000", false},
		{"1234567890123456789", "", true},
		{"1e18", "", true},
		{"1e10000000", "", true},
		{"-1e-10000000", "", true},
		{"0.0000000000000000001", "", true},
		{strings.Repeat("9", 100), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(dec(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestReadRows_StripsByteOrderMark(t *testing.T) {
	rows, err := ReadRows(strings.NewReader("\ufeff" + header + "1,2024-01-01,10,A\n"))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 1 || rows[0].TransactionID != "1" {
		t.Errorf("rows = %+v, want one row with id 1", rows)
	}
}

func TestReadRows_SkipsBlankLines(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(header + "1,2024-01-01,10,A\n\n2,2024-01-02,5,B\n"))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
}

func TestMonthEnd(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2024-01-31"},
		{time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), "2024-02-29"},
		{time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), "2023-02-28"},
		{time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC), "2023-12-31"},
		{time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), "2024-04-30"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := MonthEnd(tt.in).String(); got != tt.want {
				t.Errorf("MonthEnd(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
